// Package trace is an observational-only recorder of scheduler lifecycle
// events (spec.md §5: worker start, success, failure, stranding,
// cancellation). It must never influence control flow — the scheduler
// reaches the same decisions whether or not a Sink is attached.
//
// Adapted from the teacher's internal/trace, which recorded cache/build
// decisions (TaskInvalidated, TaskCached, ...) for byte-stable replay
// comparison; here the event vocabulary is rebuilt around unit lifecycle
// instead of cache decisions, but the Sink/Recorder/Canonicalize shape is
// kept as-is.
package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// EventKind is the stable discriminator for Event. String values are part
// of a trace's canonical bytes; do not rename.
type EventKind string

const (
	EventWorkerStarted EventKind = "WorkerStarted"
	EventUnitSucceeded EventKind = "UnitSucceeded"
	EventUnitFailed    EventKind = "UnitFailed"
	EventUnitStranded  EventKind = "UnitStranded"
	EventUnitCancelled EventKind = "UnitCancelled"
)

// Event is a single logical transition in a unit's lifecycle during one
// Graph.Start/Wait run.
type Event struct {
	Kind EventKind

	// UnitID identifies the unit this event refers to. Always required.
	UnitID string

	// Reason is a stable, logical reason code (e.g. "DataDependencyFailed").
	Reason string

	// CauseUnitID records a related unit, e.g. the producer whose failure
	// stranded this one.
	CauseUnitID string
}

// Validate checks basic structural invariants.
func (e Event) Validate() error {
	if e.Kind == "" {
		return errors.New("kind is required")
	}
	if e.UnitID == "" {
		return fmt.Errorf("unitId is required for kind %q", e.Kind)
	}
	return nil
}

func kindOrder(k EventKind) int {
	switch k {
	case EventWorkerStarted:
		return 10
	case EventUnitSucceeded:
		return 20
	case EventUnitFailed:
		return 30
	case EventUnitStranded:
		return 40
	case EventUnitCancelled:
		return 50
	default:
		return 1000
	}
}

// Canonicalize sorts events into a total order independent of execution
// timing or goroutine scheduling: (unitID, kindOrder, reason, causeUnitID).
func Canonicalize(events []Event) []Event {
	out := make([]Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.UnitID != b.UnitID {
			return a.UnitID < b.UnitID
		}
		if kindOrder(a.Kind) != kindOrder(b.Kind) {
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		}
		if a.Reason != b.Reason {
			return a.Reason < b.Reason
		}
		return a.CauseUnitID < b.CauseUnitID
	})
	return out
}

// MarshalJSON fixes field order and omits absent optional fields.
func (e Event) MarshalJSON() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	buf.WriteString(`"kind":`)
	kb, _ := json.Marshal(string(e.Kind))
	buf.Write(kb)
	buf.WriteString(`,"unitId":`)
	ub, _ := json.Marshal(e.UnitID)
	buf.Write(ub)
	if e.Reason != "" {
		buf.WriteString(`,"reason":`)
		rb, _ := json.Marshal(e.Reason)
		buf.Write(rb)
	}
	if e.CauseUnitID != "" {
		buf.WriteString(`,"causeUnitId":`)
		cb, _ := json.Marshal(e.CauseUnitID)
		buf.Write(cb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
