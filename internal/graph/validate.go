package graph

import "sort"

// checkAcyclic runs Kahn's algorithm over the current edge set. If any
// nodes remain unprocessed once the frontier empties, the graph is cyclic;
// a deterministic cycle path is then extracted via DFS over the
// unprocessed nodes in ID order, so the error message is reproducible across
// runs rather than dependent on map iteration order.
//
// Grounded on the teacher's internal/dag/validate.go, which runs the same
// two-phase Kahn's-then-DFS check over an immutable graph; here it is
// re-run after every mutation instead of once at build time.
func (g *Graph) checkAcyclic() error {
	inDegree := make(map[string]int, len(g.order))
	for _, id := range g.order {
		inDegree[id] = len(g.incoming[id])
	}

	queue := make([]string, 0, len(g.order))
	for _, id := range g.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		// Sort the frontier slice for determinism; newly-zeroed nodes are
		// appended to it each round, so this keeps processing order
		// independent of map iteration.
		sort.Strings(queue)
		next := queue[0]
		queue = queue[1:]
		visited++

		targets := make([]string, 0, len(g.outgoing[next]))
		for to := range g.outgoing[next] {
			targets = append(targets, to)
		}
		sort.Strings(targets)
		for _, to := range targets {
			inDegree[to]--
			if inDegree[to] == 0 {
				queue = append(queue, to)
			}
		}
	}

	if visited == len(g.order) {
		return nil
	}

	remaining := make([]string, 0, len(g.order)-visited)
	for _, id := range g.order {
		if inDegree[id] > 0 {
			remaining = append(remaining, id)
		}
	}
	sort.Strings(remaining)

	path := g.findCyclePath(remaining)
	return cycleErrorf(g.namePath(path))
}

// findCyclePath runs a DFS from each node still unprocessed by Kahn's
// algorithm (remaining, already sorted), lowest ID first, and returns the
// first repeated-node path it finds — a concrete cycle witness. A start
// node that only lies downstream of a cycle yields no path, so the search
// moves on to the next one.
func (g *Graph) findCyclePath(remaining []string) []string {
	if len(remaining) == 0 {
		return nil
	}
	remainingSet := make(map[string]struct{}, len(remaining))
	for _, id := range remaining {
		remainingSet[id] = struct{}{}
	}

	visiting := map[string]int{} // index into stack, or -1 if fully resolved
	var stack []string

	var dfs func(id string) []string
	dfs = func(id string) []string {
		if idx, ok := visiting[id]; ok && idx >= 0 {
			return append(append([]string{}, stack[idx:]...), id)
		}
		visiting[id] = len(stack)
		stack = append(stack, id)

		targets := make([]string, 0, len(g.outgoing[id]))
		for to := range g.outgoing[id] {
			if _, ok := remainingSet[to]; ok {
				targets = append(targets, to)
			}
		}
		sort.Strings(targets)
		for _, to := range targets {
			if cycle := dfs(to); cycle != nil {
				return cycle
			}
		}

		visiting[id] = -1
		stack = stack[:len(stack)-1]
		return nil
	}

	for _, start := range remaining {
		if cycle := dfs(start); cycle != nil {
			return cycle
		}
	}
	return nil
}

func (g *Graph) namePath(ids []string) []string {
	names := make([]string, len(ids))
	for i, id := range ids {
		if u, ok := g.units[id]; ok {
			names[i] = u.Name()
		} else {
			names[i] = id
		}
	}
	return names
}
