package scheduler

import "taskgraph/internal/unit"

// GraphView is the read-only snapshot of a graph a ControlLoop executes
// over. internal/graph satisfies this with the frozen view its unexported
// snapshotView method builds, without scheduler importing graph (avoiding an import cycle:
// graph already imports scheduler to drive Start/Wait/Cancel).
type GraphView interface {
	// Units returns every unit in the graph, in deterministic order.
	Units() []*unit.Unit
	// Sources returns the IDs of units with no incoming edge of any kind —
	// the initial frontier.
	Sources() []string
	// Successors returns the IDs of units with an incoming edge (of any
	// kind) from id.
	Successors(id string) []string
	// Predecessors returns, for id, the IDs of its ordering predecessors
	// and the IDs of its data predecessors separately: a unit only needs
	// every predecessor to have completed (ordering or data) to be
	// considered, but only its data predecessors' success (not mere
	// completion) to avoid being stranded.
	Predecessors(id string) (ordering []string, data []string)
}
