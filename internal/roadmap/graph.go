// Package roadmap builds and validates day-ordered learning plans that close
// the skill gap between a user and a catalog item.
package roadmap

import "strings"

// DefaultHorizon is the number of planning days when none is configured.
const DefaultHorizon = 3

type NodeType string

const (
	NodeConcept  NodeType = "concept"
	NodePractice NodeType = "practice"
	NodeProject  NodeType = "project"
)

// rank orders node types within a skill thread.
func (t NodeType) rank() int {
	switch t {
	case NodeConcept:
		return 0
	case NodePractice:
		return 1
	case NodeProject:
		return 2
	default:
		return -1
	}
}

func (t NodeType) Valid() bool { return t.rank() >= 0 }

type Node struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Day         int      `json:"day"`
	Type        NodeType `json:"type"`
	Description string   `json:"description"`
}

type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

type Resource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Graph is the persisted shape of a learning plan.
type Graph struct {
	Nodes     []Node                `json:"nodes"`
	Edges     []Edge                `json:"edges"`
	Resources map[string][]Resource `json:"resources"`
}

// Roadmap is a validated graph plus the skills it was built to close.
type Roadmap struct {
	MissingSkills  []string `json:"missing_skills"`
	Graph          Graph    `json:"graph"`
	EstimatedHours int      `json:"estimated_hours,omitempty"`
	FocusAreas     []string `json:"focus_areas,omitempty"`
}

// NodeIDs returns node ids in graph order.
func (g *Graph) NodeIDs() []string {
	if g == nil {
		return nil
	}
	ids := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

// HasNode reports whether id names a node of g.
func (g *Graph) HasNode(id string) bool {
	if g == nil {
		return false
	}
	id = strings.TrimSpace(id)
	for _, n := range g.Nodes {
		if n.ID == id {
			return true
		}
	}
	return false
}

// TopologicalOrder returns node ids in a prerequisite-respecting order using
// Kahn's algorithm. ok is false when the graph has a cycle or dangling edge.
func (g *Graph) TopologicalOrder() (order []string, ok bool) {
	inDegree := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		inDegree[n.ID] = 0
	}
	adj := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		if _, ok := inDegree[e.Source]; !ok {
			return nil, false
		}
		if _, ok := inDegree[e.Target]; !ok {
			return nil, false
		}
		adj[e.Source] = append(adj[e.Source], e.Target)
		inDegree[e.Target]++
	}

	var queue []string
	for _, n := range g.Nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range adj[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	return order, len(order) == len(inDegree)
}
