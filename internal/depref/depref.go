// Package depref implements the DepRef value object: a declaration that one
// unit's argument slot should be filled from another unit's output, with an
// optional field selector into that output.
//
// DepRef has no knowledge of units, graphs, or schedulers beyond the narrow
// Producer interface below — this keeps internal/unit, internal/graph and
// internal/depref free of import cycles while still letting a *unit.Unit
// satisfy Producer without any adapter code.
package depref

import "fmt"

// Producer is the subset of unit.Unit that DepRef needs: a stable identity
// and a human-readable name for error messages.
type Producer interface {
	ID() string
	Name() string
}

// ResultsStore is the subset of the scheduler's results store that DepRef
// needs to resolve itself. Implementations must be safe for concurrent use.
type ResultsStore interface {
	Get(unitID string) (value any, ok bool)
}

// DepRef binds a producer unit to an optional field selector.
type DepRef struct {
	producer Producer
	field    string
	hasField bool
}

// New creates a DepRef referring to producer's whole output. If field is
// supplied (at most one value is meaningful; additional values are ignored),
// the DepRef instead selects that key out of a map-shaped output.
func New(producer Producer, field ...string) *DepRef {
	d := &DepRef{producer: producer}
	if len(field) > 0 {
		d.field = field[0]
		d.hasField = true
	}
	return d
}

// Producer returns the bound producer unit.
func (d *DepRef) Producer() Producer { return d.producer }

// Field returns the field selector and whether one was set.
func (d *DepRef) Field() (string, bool) { return d.field, d.hasField }

// IsReady reports whether the producer has a stored result.
func (d *DepRef) IsReady(results ResultsStore) bool {
	_, ok := results.Get(d.producer.ID())
	return ok
}

// ResolutionError is returned by Resolve when a field selector does not
// match the shape or contents of the producer's output. The scheduler
// records it as the consuming unit's failure, and Graph.Errors() wraps it
// into a *graph.Error of kind ErrFieldSelector on the way out, per
// spec.md §7 (field-selector failures surface as graph errors).
type ResolutionError struct {
	ProducerName string
	Field        string
	Reason       string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("dependency on %q field %q: %s", e.ProducerName, e.Field, e.Reason)
}

// Resolve reads the producer's stored output and applies the field selector
// if present. Callers must only call Resolve after IsReady returns true.
func (d *DepRef) Resolve(results ResultsStore) (any, error) {
	value, ok := results.Get(d.producer.ID())
	if !ok {
		return nil, fmt.Errorf("depref: resolve called before producer %q is ready", d.producer.Name())
	}
	if !d.hasField {
		return value, nil
	}

	indexable, ok := value.(map[string]any)
	if !ok {
		return nil, &ResolutionError{
			ProducerName: d.producer.Name(),
			Field:        d.field,
			Reason:       "producer output is not a map, cannot select a field",
		}
	}
	selected, ok := indexable[d.field]
	if !ok {
		return nil, &ResolutionError{
			ProducerName: d.producer.Name(),
			Field:        d.field,
			Reason:       "field not present in producer output",
		}
	}
	return selected, nil
}
