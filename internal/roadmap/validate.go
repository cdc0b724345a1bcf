package roadmap

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError lists every structural problem found in a graph.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("roadmap validation failed:\n  %s", strings.Join(e.Problems, "\n  "))
}

// Validate checks that g is a non-empty DAG whose nodes fall inside days
// 1..horizon and whose edges never point backwards in time.
func Validate(g *Graph, horizon int) error {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	if g == nil || len(g.Nodes) == 0 {
		return &ValidationError{Problems: []string{"graph has no nodes"}}
	}

	var errs []string
	nodes := make(map[string]Node, len(g.Nodes))

	for i, n := range g.Nodes {
		if strings.TrimSpace(n.ID) == "" {
			errs = append(errs, fmt.Sprintf("node %d has an empty id", i))
			continue
		}
		if _, dup := nodes[n.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate node id: %q", n.ID))
			continue
		}
		nodes[n.ID] = n

		if n.Day < 1 || n.Day > horizon {
			errs = append(errs, fmt.Sprintf("node %q day %d outside 1..%d", n.ID, n.Day, horizon))
		}
		if !n.Type.Valid() {
			errs = append(errs, fmt.Sprintf("node %q has unknown type %q", n.ID, n.Type))
		}
		if strings.TrimSpace(n.Label) == "" {
			errs = append(errs, fmt.Sprintf("node %q has an empty label", n.ID))
		}
	}

	dangling := false
	for _, e := range g.Edges {
		src, okSrc := nodes[e.Source]
		dst, okDst := nodes[e.Target]
		if !okSrc || !okDst {
			errs = append(errs, fmt.Sprintf("edge %q -> %q references a missing node", e.Source, e.Target))
			dangling = true
			continue
		}
		if src.Day > dst.Day {
			errs = append(errs, fmt.Sprintf("edge %q -> %q goes from day %d back to day %d", e.Source, e.Target, src.Day, dst.Day))
		}
		if src.Day == dst.Day && src.Type.Valid() && dst.Type.Valid() && src.Type.rank() > dst.Type.rank() {
			errs = append(errs, fmt.Sprintf("edge %q -> %q orders %s before %s", e.Source, e.Target, src.Type, dst.Type))
		}
	}

	for id := range g.Resources {
		if _, ok := nodes[id]; !ok {
			errs = append(errs, fmt.Sprintf("resources reference missing node %q", id))
		}
	}

	if !dangling && len(nodes) == len(g.Nodes) {
		if order, ok := g.TopologicalOrder(); !ok {
			errs = append(errs, fmt.Sprintf("cycle detected involving nodes: %s", strings.Join(cyclicNodes(g, order), ", ")))
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Problems: errs}
	}
	return nil
}

func cyclicNodes(g *Graph, order []string) []string {
	done := make(map[string]struct{}, len(order))
	for _, id := range order {
		done[id] = struct{}{}
	}
	var out []string
	for _, n := range g.Nodes {
		if _, ok := done[n.ID]; !ok {
			out = append(out, n.ID)
		}
	}
	sort.Strings(out)
	return out
}
