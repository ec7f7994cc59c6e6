package graph

import (
	"sort"

	"taskgraph/internal/unit"
)

// view is a frozen snapshot of a Graph's topology, built once at Start time
// so a scheduler.ControlLoop observes a stable graph even if the live Graph
// is mutated concurrently (spec.md Design Notes: behavior during a run is
// undefined for the live graph, but the scheduler itself must not race).
type view struct {
	units        []*unit.Unit
	sources      []string
	successors   map[string][]string
	orderingPred map[string][]string
	dataPred     map[string][]string
}

func (g *Graph) snapshotView() *view {
	g.mu.Lock()
	defer g.mu.Unlock()

	v := &view{
		units:        make([]*unit.Unit, 0, len(g.order)),
		successors:   map[string][]string{},
		orderingPred: map[string][]string{},
		dataPred:     map[string][]string{},
	}
	for _, id := range g.order {
		if u, ok := g.units[id]; ok {
			v.units = append(v.units, u)
		}
	}
	for _, id := range g.order {
		if len(g.incoming[id]) == 0 {
			v.sources = append(v.sources, id)
		}
		succ := make([]string, 0, len(g.outgoing[id]))
		for to := range g.outgoing[id] {
			succ = append(succ, to)
		}
		sort.Strings(succ)
		v.successors[id] = succ

		var ordering, data []string
		for from := range g.incoming[id] {
			if _, ok := g.edges[edgeKey{from: from, to: id, kind: EdgeData}]; ok {
				data = append(data, from)
			}
			if _, ok := g.edges[edgeKey{from: from, to: id, kind: EdgeOrdering}]; ok {
				ordering = append(ordering, from)
			}
		}
		sort.Strings(ordering)
		sort.Strings(data)
		v.orderingPred[id] = ordering
		v.dataPred[id] = data
	}
	sort.Strings(v.sources)
	return v
}

func (v *view) Units() []*unit.Unit { return v.units }
func (v *view) Sources() []string   { return v.sources }
func (v *view) Successors(id string) []string {
	return v.successors[id]
}
func (v *view) Predecessors(id string) (ordering []string, data []string) {
	return v.orderingPred[id], v.dataPred[id]
}
