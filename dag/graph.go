package dag

import (
	"sort"
)

// Graph is the dependency structure of a pipeline: operation names and
// input edges.
type Graph struct {
	Nodes []string
	Edges []Edge
}

// Edge is a dependency: To consumes From.
type Edge struct {
	From string
	To   string
}

// BuildLevels groups nodes by dependency level using Kahn's algorithm.
// Nodes of one level only depend on earlier levels and are sorted by name,
// so the result is deterministic. A cycle is reported with the name of one
// node on it.
func BuildLevels(g *Graph) ([][]string, error) {
	inDegree := make(map[string]int, len(g.Nodes))
	dependents := make(map[string][]string)

	for _, name := range g.Nodes {
		inDegree[name] = 0
	}
	for _, e := range g.Edges {
		if _, ok := inDegree[e.From]; !ok {
			return nil, configError(ErrUnknownInput, "%q consumes unknown operation %q", e.To, e.From).WithDetail("operation", e.To)
		}
		if _, ok := inDegree[e.To]; !ok {
			return nil, configError(ErrUnknownInput, "edge targets unknown operation %q", e.To).WithDetail("operation", e.To)
		}
		inDegree[e.To]++
		dependents[e.From] = append(dependents[e.From], e.To)
	}

	var queue []string
	for name, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}

	var levels [][]string
	visited := 0
	for len(queue) > 0 {
		sort.Strings(queue)
		levels = append(levels, queue)
		visited += len(queue)

		var next []string
		for _, name := range queue {
			for _, dep := range dependents[name] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		queue = next
	}

	if visited != len(inDegree) {
		var stuck []string
		for name, deg := range inDegree {
			if deg > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, configError(ErrCycle, "cycle through operation %q", stuck[0]).WithDetail("operation", stuck[0])
	}
	return levels, nil
}

// TopologicalOrder flattens BuildLevels.
func TopologicalOrder(g *Graph) ([]string, error) {
	levels, err := BuildLevels(g)
	if err != nil {
		return nil, err
	}
	var order []string
	for _, level := range levels {
		order = append(order, level...)
	}
	return order, nil
}
