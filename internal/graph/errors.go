package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"taskgraph/internal/depref"
)

var (
	// ErrEmptyGraph is wrapped by a GraphError raised when Start is called
	// on a graph with zero units.
	ErrEmptyGraph = errors.New("empty graph")
	// ErrCycle is wrapped by a GraphError raised when a mutation would
	// introduce a cycle.
	ErrCycle = errors.New("cycle detected")
	// ErrUnknownProducer is wrapped by a GraphError raised when a DepRef's
	// producer is not a member of the graph.
	ErrUnknownProducer = errors.New("unknown producer")
	// ErrPrecedenceArity is wrapped by a GraphError raised when
	// AddPrecedence is called with fewer than two units.
	ErrPrecedenceArity = errors.New("precedence arity")
	// ErrFieldSelector is wrapped by a GraphError raised when a DepRef
	// field selector fails to resolve at runtime.
	ErrFieldSelector = errors.New("bad field selector")
)

// Error wraps structural or semantic problems with a Graph (spec.md §7:
// GraphError). It is the single error kind the Graph package raises,
// distinguished by the sentinel it wraps (errors.Is against ErrCycle,
// ErrEmptyGraph, etc).
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func cycleErrorf(path []string) *Error {
	msg := ""
	if len(path) > 0 {
		msg = "Cycle detected: " + strings.Join(path, " -> ")
	} else {
		msg = "Cycle detected"
	}
	return &Error{Kind: ErrCycle, Msg: msg}
}

// wrapFieldSelectorErrors translates every *depref.ResolutionError reaching
// Errors() from the scheduler into a *Error wrapping ErrFieldSelector
// (spec.md §7: a bad field selector resolved at runtime is a GraphError).
// The scheduler can't do this translation itself — it can't import graph
// without creating an import cycle (graph already imports scheduler to
// drive it) — so it surfaces the raw depref error and graph wraps it here,
// at the one place the scheduler's errors reach the public surface.
func wrapFieldSelectorErrors(err error) error {
	if err == nil {
		return nil
	}
	merr, ok := err.(*multierror.Error)
	if !ok {
		return translateFieldSelectorError(err)
	}
	var out *multierror.Error
	for _, e := range merr.Errors {
		out = multierror.Append(out, translateFieldSelectorError(e))
	}
	return out.ErrorOrNil()
}

func translateFieldSelectorError(err error) error {
	var resErr *depref.ResolutionError
	if errors.As(err, &resErr) {
		return newError(ErrFieldSelector, "%s", resErr.Error())
	}
	return err
}
