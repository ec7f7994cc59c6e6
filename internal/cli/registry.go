package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"taskgraph/internal/unit"
)

// Registry maps a demo callable name (as named in a graph description file)
// to the unit.Callable it constructs. The engine itself never knows these
// names exist — Callable is an opaque Go func, and the CLI's registry is
// only how a declarative JSON file can stand in for source code, standing
// in for the real external collaborators spec.md excludes (VM launch,
// serverless daemon dispatch, ...).
type Registry map[string]unit.Callable

// DefaultRegistry returns the demo callables bundled with the CLI, modeled
// loosely on original_source/functions/fibonacci/handler.py.
func DefaultRegistry() Registry {
	return Registry{
		"echo":      echoCallable,
		"sleep":     sleepCallable,
		"fail":      failCallable,
		"fibonacci": fibonacciCallable,
	}
}

func echoCallable(args []any, kwargs map[string]any) (any, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if len(args) > 1 {
		return args, nil
	}
	if v, ok := kwargs["value"]; ok {
		return v, nil
	}
	return nil, nil
}

func sleepCallable(args []any, kwargs map[string]any) (any, error) {
	seconds, err := numberArg(args, kwargs, "seconds", 0)
	if err != nil {
		return nil, err
	}
	if seconds > 0 {
		time.Sleep(time.Duration(seconds * float64(time.Second)))
	}
	return seconds, nil
}

func failCallable(args []any, kwargs map[string]any) (any, error) {
	message := "fail callable invoked"
	if v, ok := kwargs["message"]; ok {
		if s, ok := v.(string); ok {
			message = s
		}
	} else if len(args) > 0 {
		if s, ok := args[0].(string); ok {
			message = s
		}
	}
	return nil, errors.New(message)
}

func fibonacciCallable(args []any, kwargs map[string]any) (any, error) {
	n, err := numberArg(args, kwargs, "n", 10)
	if err != nil {
		return nil, err
	}
	steps := int(n)
	if steps < 0 {
		return nil, fmt.Errorf("fibonacci: n must be non-negative, got %d", steps)
	}
	if steps > 10000 {
		return nil, fmt.Errorf("fibonacci: n is too large (max 10000), got %d", steps)
	}
	return fibonacci(steps), nil
}

func fibonacci(n int) []int {
	switch {
	case n <= 0:
		return []int{}
	case n == 1:
		return []int{0}
	case n == 2:
		return []int{0, 1}
	}
	seq := make([]int, n)
	seq[0], seq[1] = 0, 1
	for i := 2; i < n; i++ {
		seq[i] = seq[i-1] + seq[i-2]
	}
	return seq
}

func numberArg(args []any, kwargs map[string]any, name string, fallback float64) (float64, error) {
	var raw any
	if v, ok := kwargs[name]; ok {
		raw = v
	} else if len(args) > 0 {
		raw = args[0]
	} else {
		return fallback, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("expected %q to be numeric, got %T", name, raw)
	}
}

// Names returns the registered callable names, as listed in the
// unknown-callable error LoadGraphFromFile returns.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	return names
}

func (r Registry) String() string {
	return strings.Join(r.Names(), ", ")
}
