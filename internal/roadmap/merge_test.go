package roadmap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siddu28/Erflog/internal/ai"
)

func containerSources() []MergeSource {
	return []MergeSource{
		{Label: "Platform Engineer at Acme", Roadmap: &Roadmap{
			MissingSkills: []string{"Docker", "Kubernetes"},
			Graph: Graph{
				Nodes: []Node{
					{ID: "a1", Label: "Docker basics", Day: 1, Type: NodeConcept},
					{ID: "a2", Label: "Compose an app", Day: 2, Type: NodePractice},
				},
				Edges:     []Edge{{Source: "a1", Target: "a2"}},
				Resources: map[string][]Resource{"a1": {{Name: "Docs", URL: "https://docs.docker.com"}}},
			},
			EstimatedHours: 6,
			FocusAreas:     []string{"ops"},
		}},
		{Label: "SRE at Globex", Roadmap: &Roadmap{
			MissingSkills: []string{"kubernetes", "Helm"},
			Graph: Graph{
				Nodes: []Node{
					{ID: "b1", Label: "docker basics", Day: 1, Type: NodeConcept},
					{ID: "b2", Label: "Ship a Helm chart", Day: 3, Type: NodeProject},
				},
				Edges:     []Edge{{Source: "b1", Target: "b2"}},
				Resources: map[string][]Resource{"b1": {{Name: "Same docs", URL: "https://docs.docker.com/"}}},
			},
			EstimatedHours: 8,
		}},
	}
}

func TestCombineFoldsSharedNodes(t *testing.T) {
	got, err := Combine(containerSources())
	require.NoError(t, err)

	assert.Equal(t, []string{"r1-a1", "r1-a2", "r2-b2"}, got.Graph.NodeIDs())
	assert.ElementsMatch(t, []Edge{
		{Source: "r1-a1", Target: "r1-a2"},
		{Source: "r1-a1", Target: "r2-b2"},
	}, got.Graph.Edges)
	assert.Len(t, got.Graph.Resources["r1-a1"], 1)
	assert.Equal(t, []string{"Kubernetes", "Docker", "Helm"}, got.MissingSkills)
	assert.Equal(t, 14, got.EstimatedHours)
	assert.Equal(t, []string{"ops"}, got.FocusAreas)
	assert.NoError(t, Validate(&got.Graph, MergeHorizon))
}

func TestCombineLaysSourcesSideBySideWhenFoldingCycles(t *testing.T) {
	sources := []MergeSource{
		{Roadmap: &Roadmap{Graph: Graph{
			Nodes: []Node{{ID: "x", Label: "A", Day: 1, Type: NodeConcept}, {ID: "y", Label: "B", Day: 1, Type: NodeConcept}},
			Edges: []Edge{{Source: "x", Target: "y"}},
		}}},
		{Roadmap: &Roadmap{Graph: Graph{
			Nodes: []Node{{ID: "p", Label: "B", Day: 1, Type: NodeConcept}, {ID: "q", Label: "A", Day: 1, Type: NodeConcept}},
			Edges: []Edge{{Source: "p", Target: "q"}},
		}}},
	}

	got, err := Combine(sources)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"r1-x", "r1-y", "r2-p", "r2-q"}, got.Graph.NodeIDs())
	assert.Len(t, got.Graph.Edges, 2)
}

func TestMergeUsesGeneratedPlan(t *testing.T) {
	gen := &queueGenerator{replies: []reply{{text: goodDraft}}}

	res, err := NewMerger(ai.NewCaller(gen, nil, 0), nil).Merge(context.Background(), containerSources())
	require.NoError(t, err)
	assert.True(t, res.Generated)
	assert.Equal(t, []string{"k1", "k2", "k3"}, res.Roadmap.Graph.NodeIDs())
	assert.Equal(t, []string{"Kubernetes", "Docker", "Helm", "gRPC", "go"}, res.Roadmap.MissingSkills)
	assert.Equal(t, 12, res.Roadmap.EstimatedHours)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "at most 21 days")
	assert.Contains(t, gen.prompts[0], "SRE at Globex")
	assert.Contains(t, gen.prompts[0], "day 3, project: Ship a Helm chart")
	assert.NotContains(t, gen.prompts[0], "{{")
}

func TestMergeFallsBackToCombinedPlan(t *testing.T) {
	tests := []struct {
		name  string
		reply reply
	}{
		{name: "malformed", reply: reply{text: "no plan today"}},
		{name: "invalid graph", reply: reply{text: cyclicDraft}},
		{name: "timeout", reply: reply{err: context.DeadlineExceeded}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &queueGenerator{replies: []reply{tt.reply}}

			res, err := NewMerger(ai.NewCaller(gen, nil, 0), nil).Merge(context.Background(), containerSources())
			require.NoError(t, err)
			assert.False(t, res.Generated)
			assert.Equal(t, []string{"r1-a1", "r1-a2", "r2-b2"}, res.Roadmap.Graph.NodeIDs())
		})
	}
}

func TestMergeNeedsTwoRoadmaps(t *testing.T) {
	gen := &queueGenerator{}
	sources := containerSources()
	sources[1].Roadmap = nil

	_, err := NewMerger(ai.NewCaller(gen, nil, 0), nil).Merge(context.Background(), sources)
	require.ErrorIs(t, err, ErrTooFewRoadmaps)
	assert.Empty(t, gen.prompts)
}

func TestMergeReturnsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &queueGenerator{replies: []reply{{err: context.Canceled}}}

	_, err := NewMerger(ai.NewCaller(gen, nil, 0), nil).Merge(ctx, containerSources())
	assert.ErrorIs(t, err, context.Canceled)
}
