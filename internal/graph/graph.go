// Package graph implements the directed multigraph of units connected by
// ordering and data edges (spec.md §4.3), including incremental mutation
// with full rollback on rejection, acyclicity validation, and the
// Start/Wait/Cancel/Results/Errors surface that drives an
// internal/scheduler.ControlLoop over a snapshot of the graph.
//
// Grounded on the teacher's internal/dag/validate.go (Kahn's-algorithm
// acyclicity check + deterministic DFS cycle-path extraction) and
// internal/dag/taskgraph.go's adjacency-list shape, reworked from an
// immutable-once-built graph into a mutable one that re-validates (and
// rolls back) after every insertion, per spec.md §4.3.
package graph

import (
	"context"
	"sync"

	"taskgraph/internal/depref"
	"taskgraph/internal/logging"
	"taskgraph/internal/scheduler"
	"taskgraph/internal/unit"
)

var log = logging.Named("graph")

// EdgeKind distinguishes the two kinds of edge spec.md §3/§4.3 describes.
// Both kinds are equivalent for topological sorting; only data edges carry
// the implicit argument-resolution contract.
type EdgeKind string

const (
	EdgeOrdering EdgeKind = "ordering"
	EdgeData     EdgeKind = "data"
)

type edgeKey struct {
	from, to string
	kind     EdgeKind
}

// Graph is the mutable DAG of units. The zero value is not usable; use New.
type Graph struct {
	mu sync.Mutex

	units map[string]*unit.Unit
	order []string // insertion order, for deterministic iteration

	edges    map[edgeKey]struct{}
	outgoing map[string]map[string]struct{} // from -> set(to)
	incoming map[string]map[string]struct{} // to -> set(from)

	loop *scheduler.ControlLoop
}

// New constructs a Graph, optionally pre-populated with initial units
// (spec.md §6: "constructor (variadic initial members)"). Initial units are
// added exactly as AddTasks would add them, except a construction-time
// failure panics rather than being recoverable — callers wanting error
// handling should construct empty and call AddTasks.
func New(initial ...*unit.Unit) *Graph {
	g := &Graph{
		units:    map[string]*unit.Unit{},
		edges:    map[edgeKey]struct{}{},
		outgoing: map[string]map[string]struct{}{},
		incoming: map[string]map[string]struct{}{},
	}
	if len(initial) > 0 {
		if err := g.AddTasks(initial...); err != nil {
			panic(err)
		}
	}
	return g
}

// Units returns the units currently in the graph, in insertion order.
func (g *Graph) Units() []*unit.Unit {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*unit.Unit, 0, len(g.order))
	for _, id := range g.order {
		if u, ok := g.units[id]; ok {
			out = append(out, u)
		}
	}
	return out
}

// Has reports whether a unit with the given id is a member of the graph.
func (g *Graph) Has(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.units[id]
	return ok
}

// snapshotState captures everything a rollback needs to restore.
type snapshotState struct {
	units    map[string]*unit.Unit
	order    []string
	edges    map[edgeKey]struct{}
	outgoing map[string]map[string]struct{}
	incoming map[string]map[string]struct{}
}

func (g *Graph) snapshot() snapshotState {
	s := snapshotState{
		units:    make(map[string]*unit.Unit, len(g.units)),
		order:    append([]string(nil), g.order...),
		edges:    make(map[edgeKey]struct{}, len(g.edges)),
		outgoing: make(map[string]map[string]struct{}, len(g.outgoing)),
		incoming: make(map[string]map[string]struct{}, len(g.incoming)),
	}
	for k, v := range g.units {
		s.units[k] = v
	}
	for k := range g.edges {
		s.edges[k] = struct{}{}
	}
	for k, set := range g.outgoing {
		cp := make(map[string]struct{}, len(set))
		for m := range set {
			cp[m] = struct{}{}
		}
		s.outgoing[k] = cp
	}
	for k, set := range g.incoming {
		cp := make(map[string]struct{}, len(set))
		for m := range set {
			cp[m] = struct{}{}
		}
		s.incoming[k] = cp
	}
	return s
}

func (g *Graph) restore(s snapshotState) {
	g.units = s.units
	g.order = s.order
	g.edges = s.edges
	g.outgoing = s.outgoing
	g.incoming = s.incoming
}

func (g *Graph) addEdge(from, to string, kind EdgeKind) bool {
	key := edgeKey{from: from, to: to, kind: kind}
	if _, exists := g.edges[key]; exists {
		return false // idempotent, per spec.md Design Notes
	}
	g.edges[key] = struct{}{}
	if g.outgoing[from] == nil {
		g.outgoing[from] = map[string]struct{}{}
	}
	g.outgoing[from][to] = struct{}{}
	if g.incoming[to] == nil {
		g.incoming[to] = map[string]struct{}{}
	}
	g.incoming[to][from] = struct{}{}
	return true
}

// AddTasks adds all of units to the graph; for every DepRef-typed argument
// slot on any of the added units, it also adds a data edge from the
// referenced producer to the consumer. The producer must already be a
// member of the graph, either from a previous call or anywhere within this
// same call. If the resulting graph would be cyclic, or any DepRef names a
// producer that is not (and will not become, within this call) a member of
// the graph, the entire call is rolled back and a *Error is returned.
func (g *Graph) AddTasks(units ...*unit.Unit) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	before := g.snapshot()

	for _, u := range units {
		if _, exists := g.units[u.ID()]; !exists {
			g.units[u.ID()] = u
			g.order = append(g.order, u.ID())
		}
	}

	for _, u := range units {
		for _, arg := range u.Args() {
			if dep, ok := arg.(*depref.DepRef); ok {
				if err := g.linkDependency(dep, u); err != nil {
					g.restore(before)
					return err
				}
			}
		}
		for _, kwarg := range u.Kwargs() {
			if dep, ok := kwarg.(*depref.DepRef); ok {
				if err := g.linkDependency(dep, u); err != nil {
					g.restore(before)
					return err
				}
			}
		}
	}

	if err := g.checkAcyclic(); err != nil {
		g.restore(before)
		return err
	}
	log.Debug("added units", "count", len(units))
	return nil
}

func (g *Graph) linkDependency(dep *depref.DepRef, consumer *unit.Unit) error {
	producerID := dep.Producer().ID()
	if _, exists := g.units[producerID]; !exists {
		return newError(ErrUnknownProducer, "DepRef on %q references producer %q which is not a member of the graph", consumer.Name(), dep.Producer().Name())
	}
	g.addEdge(producerID, consumer.ID(), EdgeData)
	return nil
}

// RemoveTasks removes each unit and all its incident edges. Units not
// currently in the graph are silently ignored.
func (g *Graph) RemoveTasks(units ...*unit.Unit) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, u := range units {
		id := u.ID()
		if _, exists := g.units[id]; !exists {
			continue
		}
		delete(g.units, id)
		g.order = removeString(g.order, id)

		for to := range g.outgoing[id] {
			delete(g.edges, edgeKey{from: id, to: to, kind: EdgeOrdering})
			delete(g.edges, edgeKey{from: id, to: to, kind: EdgeData})
			delete(g.incoming[to], id)
		}
		delete(g.outgoing, id)
		for from := range g.incoming[id] {
			delete(g.edges, edgeKey{from: from, to: id, kind: EdgeOrdering})
			delete(g.edges, edgeKey{from: from, to: id, kind: EdgeData})
			delete(g.outgoing[from], id)
		}
		delete(g.incoming, id)
	}
}

func removeString(list []string, target string) []string {
	out := list[:0:0]
	for _, s := range list {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}

// AddPrecedence adds ordering edges between consecutive pairs of at least
// two units (a->b, b->c, ...). Units not already in the graph are added as
// plain nodes (matching the original TaskGroup.add_precedence's implicit
// graph.add_edge behavior, which extends the node set). If the insertion
// would introduce a cycle, the whole call is rolled back — the edges it
// added and any units it added as nodes — and a *Error is returned.
func (g *Graph) AddPrecedence(units ...*unit.Unit) error {
	if len(units) < 2 {
		return newError(ErrPrecedenceArity, "add_precedence requires at least two units, got %d", len(units))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	before := g.snapshot()

	for _, u := range units {
		if _, exists := g.units[u.ID()]; !exists {
			g.units[u.ID()] = u
			g.order = append(g.order, u.ID())
		}
	}
	for i := 0; i < len(units)-1; i++ {
		g.addEdge(units[i].ID(), units[i+1].ID(), EdgeOrdering)
	}

	if err := g.checkAcyclic(); err != nil {
		g.restore(before)
		return err
	}
	return nil
}

// VerifyConstraints returns a *Error if the graph currently violates its
// acyclicity invariant, else nil. It is used internally after every
// mutation and is exposed publicly so callers (and tests) can assert the
// graph is well-formed, per spec.md §4.3.
func (g *Graph) VerifyConstraints() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checkAcyclic()
}

// Start snapshots the current graph and begins executing it: units with no
// predecessors start immediately, and each completion re-examines its
// successors for readiness (spec.md §4.4). It returns as soon as the
// control loop has been launched in the background, not once the run
// finishes — call Wait for that. Calling
// Start again before Wait has returned from a prior run replaces the
// in-flight loop's handle; the prior run is not cancelled by doing so.
func (g *Graph) Start(opts ...Option) error {
	g.mu.Lock()
	empty := len(g.units) == 0
	g.mu.Unlock()
	if empty {
		return newError(ErrEmptyGraph, "Start called with no units")
	}
	if err := g.VerifyConstraints(); err != nil {
		return err
	}

	var schedOpts scheduler.Options
	for _, opt := range opts {
		opt(&schedOpts)
	}

	loop := scheduler.New(g.snapshotView(), schedOpts)
	g.mu.Lock()
	g.loop = loop
	g.mu.Unlock()

	loop.Start()
	return nil
}

// Wait blocks until the most recently started run finishes (drains to
// completion, or cancels and drains in-flight work). It is a no-op if
// Start has never been called.
func (g *Graph) Wait(ctx context.Context) {
	g.mu.Lock()
	loop := g.loop
	g.mu.Unlock()
	if loop == nil {
		return
	}
	loop.Wait(ctx)
}

// Cancel requests that the current run stop dispatching new units once the
// units already running finish (spec.md §4.4 Open Questions). It is a
// no-op if Start has never been called.
func (g *Graph) Cancel() {
	g.mu.Lock()
	loop := g.loop
	g.mu.Unlock()
	if loop == nil {
		return
	}
	loop.Cancel()
}

// Results returns the successful outcomes of the most recent run, keyed by
// unit ID. It is empty if Start has never been called.
func (g *Graph) Results() map[string]any {
	g.mu.Lock()
	loop := g.loop
	g.mu.Unlock()
	if loop == nil {
		return map[string]any{}
	}
	return loop.Results()
}

// Errors returns the aggregated failures of the most recent run, or nil if
// none occurred. It is nil if Start has never been called. Field-selector
// resolution failures are wrapped into a *Error carrying ErrFieldSelector
// (spec.md §7) on the way out.
func (g *Graph) Errors() error {
	g.mu.Lock()
	loop := g.loop
	g.mu.Unlock()
	if loop == nil {
		return nil
	}
	return wrapFieldSelectorErrors(loop.Errors())
}

// Cancelled reports whether Cancel was called during the most recent run.
// It is false if Start has never been called.
func (g *Graph) Cancelled() bool {
	g.mu.Lock()
	loop := g.loop
	g.mu.Unlock()
	if loop == nil {
		return false
	}
	return loop.Cancelled()
}
