// Package unit implements the engine's basic schedulable computation
// (spec.md §4.1): a name, a callable, positional/keyword argument slots,
// lifecycle hooks, and a worker goroutine per invocation.
//
// A Unit is constructed inert; each call to Start spawns a fresh Worker so
// the same Unit may be started and awaited repeatedly (spec.md Design
// Notes: "reentrant start").
package unit

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"taskgraph/internal/logging"
)

var log = logging.Named("unit")

// Callable is the shape of work a Unit executes. It receives the resolved
// positional and keyword arguments (literals and DepRefs already resolved
// by the caller — the scheduler, in the common case) and returns a value or
// an error.
type Callable func(args []any, kwargs map[string]any) (any, error)

const (
	HookOnSuccess = "on_success"
	HookOnException = "on_exception"
)

// HookFunc is invoked with (unitID, value) on success or (unitID, err) on
// exception.
type HookFunc func(unitID string, payload any)

// Unit is a single schedulable computation.
type Unit struct {
	id       string
	name     string
	callable Callable

	mu     sync.Mutex
	args   []any
	kwargs map[string]any
	hooks  map[string]map[uintptr]HookFunc

	worker *Worker
}

// Option configures a Unit at construction time.
type Option func(*Unit)

// WithName overrides the derived display name.
func WithName(name string) Option {
	return func(u *Unit) { u.name = name }
}

// WithArgs sets the initial positional argument slots.
func WithArgs(args ...any) Option {
	return func(u *Unit) { u.args = args }
}

// WithKwargs sets the initial keyword argument slots.
func WithKwargs(kwargs map[string]any) Option {
	return func(u *Unit) { u.kwargs = kwargs }
}

// New constructs a Unit. If callable is nil, a no-op callable returning nil
// is substituted (spec.md §4.1). The display name is explicit (WithName),
// else derived from the callable's declared function name, else
// synthesized as "lambda:<id>" for anonymous/unnamed callables.
func New(callable Callable, opts ...Option) *Unit {
	u := &Unit{
		id:     uuid.New().String(),
		hooks:  newHookRegistry(),
		kwargs: map[string]any{},
	}
	for _, opt := range opts {
		opt(u)
	}
	if callable == nil {
		callable = func([]any, map[string]any) (any, error) { return nil, nil }
	}
	u.callable = callable
	if u.name == "" {
		u.name = deriveName(callable, u.id)
	}
	return u
}

func newHookRegistry() map[string]map[uintptr]HookFunc {
	return map[string]map[uintptr]HookFunc{
		HookOnSuccess:   {},
		HookOnException: {},
	}
}

func deriveName(callable Callable, id string) string {
	name := runtime_FuncName(callable)
	if name != "" {
		return name
	}
	return fmt.Sprintf("lambda:%s", id)
}

// runtime_FuncName extracts a usable declared name for a function value, or
// "" if the function is anonymous (a Go closure reports a synthetic name
// like "pkg.glob..funcN" — that counts as anonymous here).
func runtime_FuncName(callable Callable) string {
	ptr := reflect.ValueOf(callable).Pointer()
	fn := runtimeFuncForPC(ptr)
	if fn == nil {
		return ""
	}
	full := fn.Name()
	if full == "" {
		return ""
	}
	short := shortFuncName(full)
	if short == "" || isAnonymousFuncName(short) {
		return ""
	}
	return short
}

// ID returns the Unit's stable, process-unique identifier.
func (u *Unit) ID() string { return u.id }

// Name returns the Unit's display name.
func (u *Unit) Name() string { return u.name }

func (u *Unit) String() string { return fmt.Sprintf("Unit[%s]", u.name) }

// Args returns a copy of the current positional argument slots.
func (u *Unit) Args() []any {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]any, len(u.args))
	copy(out, u.args)
	return out
}

// Kwargs returns a copy of the current keyword argument slots.
func (u *Unit) Kwargs() map[string]any {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make(map[string]any, len(u.kwargs))
	for k, v := range u.kwargs {
		out[k] = v
	}
	return out
}

// SetArgs replaces the argument slots wholesale. It does not validate
// dependencies (that is the Graph's job on its next mutation) and does not
// touch hooks. Safe before Start; undefined if called during a run (the
// scheduler has already snapshotted the graph by then).
func (u *Unit) SetArgs(args []any, kwargs map[string]any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.args = args
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	u.kwargs = kwargs
}

// AddHook registers fn for event (HookOnSuccess or HookOnException). Hook
// sets behave like sets: registering the same function value twice leaves a
// single registration, keyed by the function value's pointer identity
// (spec.md Design Notes: Go has no native function-value equality, so
// reflect.Value.Pointer() stands in for Python's hashable-by-identity
// closures).
func (u *Unit) AddHook(event string, fn HookFunc) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	set, ok := u.hooks[event]
	if !ok {
		return errorf("add unknown hook %q", event)
	}
	set[hookKey(fn)] = fn
	return nil
}

// RemoveHook unregisters fn for event. Removing an absent callback is a
// silent no-op.
func (u *Unit) RemoveHook(event string, fn HookFunc) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	set, ok := u.hooks[event]
	if !ok {
		return errorf("remove unknown hook %q", event)
	}
	delete(set, hookKey(fn))
	return nil
}

func hookKey(fn HookFunc) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

func (u *Unit) triggerHooks(event string, unitID string, payload any) {
	u.mu.Lock()
	fns := make([]HookFunc, 0, len(u.hooks[event]))
	for _, fn := range u.hooks[event] {
		fns = append(fns, fn)
	}
	u.mu.Unlock()
	for _, fn := range fns {
		fn(unitID, payload)
	}
}

// Start spawns a fresh Worker invoking the callable with the supplied
// resolved arguments (not the stored slots — resolving slots, e.g. DepRef
// lookups, is the scheduler's job) and returns immediately.
func (u *Unit) Start(args []any, kwargs map[string]any) *Worker {
	w := newWorker(u.id)
	u.mu.Lock()
	u.worker = w
	u.mu.Unlock()

	log.Debug("starting unit", "unit", u.name, "unit_id", u.id, "worker_id", w.id)
	go u.run(w, args, kwargs)
	return w
}

func (u *Unit) run(w *Worker, args []any, kwargs map[string]any) {
	value, err := func() (v any, e error) {
		defer func() {
			if r := recover(); r != nil {
				e = fmt.Errorf("unit %q panicked: %v", u.name, r)
			}
		}()
		return u.callable(args, kwargs)
	}()

	if err != nil {
		u.triggerHooks(HookOnException, u.id, err)
		log.Debug("unit failed", "unit", u.name, "unit_id", u.id, "worker_id", w.id, "err", err)
	} else {
		u.triggerHooks(HookOnSuccess, u.id, value)
		log.Debug("unit succeeded", "unit", u.name, "unit_id", u.id, "worker_id", w.id)
	}
	w.done <- Outcome{Value: value, Err: err}
}

// Wait blocks until the most recently started Worker terminates, honoring
// timeout if non-zero, and returns its outcome.
func (u *Unit) Wait(timeoutSeconds float64) (Outcome, bool) {
	u.mu.Lock()
	w := u.worker
	u.mu.Unlock()
	if w == nil {
		return Outcome{}, false
	}
	return w.wait(durationFromSeconds(timeoutSeconds))
}

// Worker returns the most recently started Worker, or nil if Start has
// never been called.
func (u *Unit) Worker() *Worker {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.worker
}
