package roadmap

import (
	"net/url"
	"sort"
	"strings"
)

// Normalize cleans a generated graph in place: trims text, lowercases node
// types, drops duplicate edges and keeps only unique http(s) resources that
// belong to existing nodes. Nodes are sorted by day, then type, then id.
func Normalize(g *Graph) {
	if g == nil {
		return
	}

	for i := range g.Nodes {
		n := &g.Nodes[i]
		n.ID = strings.TrimSpace(n.ID)
		n.Label = strings.TrimSpace(n.Label)
		n.Description = strings.TrimSpace(n.Description)
		n.Type = NodeType(strings.ToLower(strings.TrimSpace(string(n.Type))))
	}

	sort.SliceStable(g.Nodes, func(i, j int) bool {
		a, b := g.Nodes[i], g.Nodes[j]
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.Type.rank() != b.Type.rank() {
			return a.Type.rank() < b.Type.rank()
		}
		return a.ID < b.ID
	})

	ids := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		ids[n.ID] = struct{}{}
	}

	edges := g.Edges[:0]
	seenEdges := make(map[Edge]struct{}, len(g.Edges))
	for _, e := range g.Edges {
		e.Source = strings.TrimSpace(e.Source)
		e.Target = strings.TrimSpace(e.Target)
		if _, dup := seenEdges[e]; dup {
			continue
		}
		seenEdges[e] = struct{}{}
		edges = append(edges, e)
	}
	g.Edges = edges

	resources := make(map[string][]Resource, len(g.Resources))
	for id, list := range g.Resources {
		id = strings.TrimSpace(id)
		if _, ok := ids[id]; !ok {
			continue
		}
		seen := make(map[string]struct{}, len(list))
		for _, r := range list {
			r.Name = strings.TrimSpace(r.Name)
			r.URL = strings.TrimSpace(r.URL)
			if !isWebURL(r.URL) {
				continue
			}
			key := strings.ToLower(strings.TrimRight(r.URL, "/"))
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if r.Name == "" {
				r.Name = r.URL
			}
			resources[id] = append(resources[id], r)
		}
	}
	g.Resources = resources
}

func isWebURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
