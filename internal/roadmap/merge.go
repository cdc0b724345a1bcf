package roadmap

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/siddu28/Erflog/internal/ai"
)

//go:embed merge_prompt.md
var mergePromptTemplate string

const (
	// MergeHorizon is the longest a merged plan may run, in days.
	MergeHorizon = 21

	mergeMaxNodes = 30
)

// ErrTooFewRoadmaps is returned when fewer than two sources carry a roadmap.
var ErrTooFewRoadmaps = errors.New("at least two roadmaps are required to merge")

// MergeSource is one roadmap offered to a merge, labelled for the prompt.
type MergeSource struct {
	Label   string
	Roadmap *Roadmap
}

// MergeResult is a validated merged plan. Generated is false when the plan
// was combined without the generator.
type MergeResult struct {
	Roadmap   *Roadmap
	Generated bool
}

// Merger folds several saved roadmaps into one plan.
type Merger struct {
	caller *ai.Caller
	logger *zap.Logger
}

func NewMerger(caller *ai.Caller, logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{caller: caller, logger: logger}
}

// Merge asks the generator for a deduplicated plan over MergeHorizon days.
// When generation fails or the answer does not validate, the sources are
// combined deterministically instead; only cancellation is returned as an
// error once the sources are usable.
func (m *Merger) Merge(ctx context.Context, sources []MergeSource) (MergeResult, error) {
	usable := make([]MergeSource, 0, len(sources))
	for _, src := range sources {
		if src.Roadmap != nil && len(src.Roadmap.Graph.Nodes) > 0 {
			usable = append(usable, src)
		}
	}
	if len(usable) < 2 {
		return MergeResult{}, fmt.Errorf("%w: %d usable", ErrTooFewRoadmaps, len(usable))
	}

	combined, err := Combine(usable)
	if err != nil {
		return MergeResult{}, err
	}

	generated, err := m.generate(ctx, usable, combined)
	if err == nil {
		return MergeResult{Roadmap: generated, Generated: true}, nil
	}
	if ctx.Err() != nil {
		return MergeResult{}, ctx.Err()
	}

	m.logger.Warn("merged roadmap generation failed, combining sources",
		zap.Int("sources", len(usable)),
		zap.Error(err),
	)
	return MergeResult{Roadmap: combined}, nil
}

func (m *Merger) generate(ctx context.Context, sources []MergeSource, combined *Roadmap) (*Roadmap, error) {
	var d draft
	raw, err := m.caller.JSON(ctx, "merge_roadmaps", m.buildPrompt(sources, combined), &d)
	if err != nil {
		return nil, err
	}
	if err := CheckSchema(ai.ExtractJSON(raw)); err != nil {
		return nil, err
	}

	g := Graph{Nodes: d.Graph.Nodes, Edges: d.Graph.Edges, Resources: d.Resources}
	Normalize(&g)
	if len(g.Nodes) > mergeMaxNodes {
		return nil, &ValidationError{Problems: []string{
			fmt.Sprintf("graph has %d nodes, limit is %d", len(g.Nodes), mergeMaxNodes),
		}}
	}
	if err := Validate(&g, MergeHorizon); err != nil {
		return nil, err
	}

	skills := append([]string(nil), combined.MissingSkills...)
	skills = MissingSkills(append(skills, ai.CoerceStrings(d.MissingSkills)...), nil)

	hours := int(d.EstimatedHours)
	if hours <= 0 {
		hours = combined.EstimatedHours
	}
	focus := ai.CoerceStrings(d.FocusAreas)
	if len(focus) == 0 {
		focus = combined.FocusAreas
	}

	return &Roadmap{
		MissingSkills:  skills,
		Graph:          g,
		EstimatedHours: hours,
		FocusAreas:     focus,
	}, nil
}

func (m *Merger) buildPrompt(sources []MergeSource, combined *Roadmap) string {
	var b strings.Builder
	for i, src := range sources {
		label := strings.TrimSpace(src.Label)
		if label == "" {
			label = "Roadmap " + strconv.Itoa(i+1)
		}
		fmt.Fprintf(&b, "%d. %s (missing: %s)\n", i+1, label, orNone(strings.Join(src.Roadmap.MissingSkills, ", ")))
		for _, n := range src.Roadmap.Graph.Nodes {
			fmt.Fprintf(&b, "   - day %d, %s: %s\n", n.Day, n.Type, n.Label)
		}
	}

	return ai.Render(mergePromptTemplate, map[string]string{
		"HORIZON":        strconv.Itoa(MergeHorizon),
		"ROADMAPS":       b.String(),
		"MISSING_SKILLS": orNone(strings.Join(combined.MissingSkills, ", ")),
		"MAX_NODES":      strconv.Itoa(mergeMaxNodes),
	})
}

// Combine merges sources without a generator. Nodes that share a label and a
// type are kept once; node ids are prefixed with the source position so they
// stay unique. If folding shared nodes would break the ordering rules, the
// sources are laid side by side instead. Missing skills are ordered by how
// many sources need them.
func Combine(sources []MergeSource) (*Roadmap, error) {
	g := combineGraphs(sources, true)
	if Validate(&g, MergeHorizon) != nil {
		g = combineGraphs(sources, false)
	}
	if err := Validate(&g, MergeHorizon); err != nil {
		return nil, fmt.Errorf("combine roadmaps: %w", err)
	}

	var skills, focus [][]string
	hours := 0
	for _, src := range sources {
		skills = append(skills, src.Roadmap.MissingSkills)
		focus = append(focus, src.Roadmap.FocusAreas)
		hours += src.Roadmap.EstimatedHours
	}

	return &Roadmap{
		MissingSkills:  byFrequency(skills),
		Graph:          g,
		EstimatedHours: hours,
		FocusAreas:     byFrequency(focus),
	}, nil
}

func combineGraphs(sources []MergeSource, fold bool) Graph {
	g := Graph{Resources: make(map[string][]Resource)}
	nodes := make(map[string]Node)
	shared := make(map[string]string)

	for i, src := range sources {
		prefix := "r" + strconv.Itoa(i+1) + "-"
		ids := make(map[string]string, len(src.Roadmap.Graph.Nodes))

		for _, n := range src.Roadmap.Graph.Nodes {
			key := skillKey(n.Label) + "|" + string(n.Type)
			if id, ok := shared[key]; ok && fold {
				ids[n.ID] = id
				continue
			}
			orig := n.ID
			n.ID = prefix + orig
			shared[key] = n.ID
			ids[orig] = n.ID
			nodes[n.ID] = n
			g.Nodes = append(g.Nodes, n)
		}

		for _, e := range src.Roadmap.Graph.Edges {
			from, to := ids[e.Source], ids[e.Target]
			if from == "" || to == "" || from == to || !precedes(nodes[from], nodes[to]) {
				continue
			}
			g.Edges = append(g.Edges, Edge{Source: from, Target: to})
		}

		for id, list := range src.Roadmap.Graph.Resources {
			if to, ok := ids[id]; ok {
				g.Resources[to] = append(g.Resources[to], list...)
			}
		}
	}

	Normalize(&g)
	return g
}

// precedes reports whether an edge a -> b respects day and type order.
func precedes(a, b Node) bool {
	if a.Day != b.Day {
		return a.Day < b.Day
	}
	return a.Type.rank() <= b.Type.rank()
}

// byFrequency flattens lists into unique entries, most common first, ties in
// order of first appearance. Entries compare case-insensitively.
func byFrequency(lists [][]string) []string {
	type entry struct {
		text  string
		count int
		first int
	}
	seen := make(map[string]*entry)
	var order []*entry
	for _, list := range lists {
		for _, s := range MissingSkills(list, nil) {
			key := skillKey(s)
			if e, ok := seen[key]; ok {
				e.count++
				continue
			}
			e := &entry{text: s, count: 1, first: len(order)}
			seen[key] = e
			order = append(order, e)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].count != order[j].count {
			return order[i].count > order[j].count
		}
		return order[i].first < order[j].first
	})

	out := make([]string, 0, len(order))
	for _, e := range order {
		out = append(out, e.text)
	}
	return out
}
