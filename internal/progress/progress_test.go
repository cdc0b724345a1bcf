package progress

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siddu28/Erflog/internal/catalog"
	"github.com/siddu28/Erflog/internal/lock"
	"github.com/siddu28/Erflog/internal/profile"
	"github.com/siddu28/Erflog/internal/roadmap"
	"github.com/siddu28/Erflog/internal/store"
)

type countingStore struct {
	*store.Memory
	saves    atomic.Int32
	triggers atomic.Int32
}

func (s *countingStore) SaveProgress(ctx context.Context, rec *store.ProgressRecord, expected int64) (*store.ProgressRecord, error) {
	s.saves.Add(1)
	return s.Memory.SaveProgress(ctx, rec, expected)
}

func (s *countingStore) TriggerCompletion(ctx context.Context, savedItemID, userID string, skills []string) (*store.CompletionResult, error) {
	s.triggers.Add(1)
	return s.Memory.TriggerCompletion(ctx, savedItemID, userID, skills)
}

func setup(t *testing.T) (*Tracker, *countingStore, string) {
	t.Helper()
	ctx := context.Background()
	st := &countingStore{Memory: store.NewMemory()}
	require.NoError(t, st.UpsertProfile(ctx, &profile.UserProfile{ID: "u1", Skills: []string{"Go", "docker"}}))

	saved, err := st.SaveItem(ctx, store.SavedItemFrom("u1", store.SnapshotItem{
		ID:        "j1",
		Namespace: catalog.NamespaceJobs,
		Tier:      catalog.TierGap,
		Roadmap: &roadmap.Roadmap{
			MissingSkills: []string{"Docker", "Kubernetes", "Helm"},
			Graph: roadmap.Graph{
				Nodes: []roadmap.Node{
					{ID: "a", Label: "A", Day: 1, Type: roadmap.NodeConcept},
					{ID: "b", Label: "B", Day: 2, Type: roadmap.NodePractice},
					{ID: "c", Label: "C", Day: 3, Type: roadmap.NodeProject},
				},
				Edges: []roadmap.Edge{{Source: "a", Target: "b"}, {Source: "b", Target: "c"}},
			},
		},
	}))
	require.NoError(t, err)

	return NewTracker(st, lock.NewLocal(), nil), st, saved.ID
}

func TestGet_BeforeFirstToggle(t *testing.T) {
	tr, _, id := setup(t)

	v, err := tr.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 3, v.TotalNodes)
	assert.Equal(t, 0, v.CompletedNodes)
	assert.Equal(t, 0.0, v.Percentage)
	assert.Equal(t, int64(0), v.Version)
	assert.False(t, v.CompletionTriggered)
}

func TestGet_UnknownItem(t *testing.T) {
	tr, _, _ := setup(t)
	_, err := tr.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSet_PercentageRounding(t *testing.T) {
	tr, _, id := setup(t)
	ctx := context.Background()

	res, err := tr.Set(ctx, id, "a", true, nil)
	require.NoError(t, err)
	assert.Equal(t, 33.3, res.View.Percentage)
	assert.Nil(t, res.Completion)

	res, err = tr.Set(ctx, id, "b", true, nil)
	require.NoError(t, err)
	assert.Equal(t, 66.7, res.View.Percentage)
	assert.Equal(t, int64(2), res.View.Version)
}

func TestSet_IsIdempotent(t *testing.T) {
	tr, st, id := setup(t)
	ctx := context.Background()

	first, err := tr.Set(ctx, id, "a", true, nil)
	require.NoError(t, err)
	second, err := tr.Set(ctx, id, "a", true, nil)
	require.NoError(t, err)

	assert.Equal(t, first.View, second.View)
	assert.Equal(t, int32(1), st.saves.Load())

	untouched, err := tr.Set(ctx, id, "c", false, nil)
	require.NoError(t, err)
	assert.Equal(t, first.View.Version, untouched.View.Version)
	assert.Equal(t, int32(1), st.saves.Load())
}

func TestSet_RejectsUnknownNodeAndMissingRoadmap(t *testing.T) {
	tr, st, id := setup(t)
	ctx := context.Background()

	_, err := tr.Set(ctx, id, "zzz", true, nil)
	assert.ErrorIs(t, err, ErrUnknownNode)

	ready, err := st.SaveItem(ctx, store.SavedItemFrom("u1", store.SnapshotItem{ID: "j2", Namespace: catalog.NamespaceJobs, Tier: catalog.TierReady}))
	require.NoError(t, err)
	_, err = tr.Set(ctx, ready.ID, "a", true, nil)
	assert.ErrorIs(t, err, ErrNoRoadmap)

	v, err := tr.Get(ctx, ready.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v.Percentage)
}

func TestSet_VersionMismatchConflicts(t *testing.T) {
	tr, _, id := setup(t)
	ctx := context.Background()

	res, err := tr.Set(ctx, id, "a", true, nil)
	require.NoError(t, err)

	stale := int64(0)
	_, err = tr.Set(ctx, id, "b", true, &stale)
	assert.ErrorIs(t, err, store.ErrConflict)

	current := res.View.Version
	_, err = tr.Set(ctx, id, "b", true, &current)
	assert.NoError(t, err)
}

func TestSet_CompletionFiresOnce(t *testing.T) {
	tr, st, id := setup(t)
	ctx := context.Background()

	for _, node := range []string{"a", "b"} {
		res, err := tr.Set(ctx, id, node, true, nil)
		require.NoError(t, err)
		require.Nil(t, res.Completion)
	}

	res, err := tr.Set(ctx, id, "c", true, nil)
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.View.Percentage)
	assert.True(t, res.View.CompletionTriggered)
	require.NotNil(t, res.Completion)
	assert.True(t, res.Completion.Fired)
	assert.Equal(t, []string{"Kubernetes", "Helm"}, res.Completion.NewSkillsAdded)
	assert.Equal(t, 4, res.Completion.TotalSkills)
	assert.Equal(t, "Congratulations! 2 new skills added to your profile!", res.Completion.Message)

	// Dropping below 100% and coming back must not fire again.
	_, err = tr.Set(ctx, id, "c", false, nil)
	require.NoError(t, err)
	res, err = tr.Set(ctx, id, "c", true, nil)
	require.NoError(t, err)
	assert.Nil(t, res.Completion)
	assert.True(t, res.View.CompletionTriggered)

	c, err := tr.CompleteCheck(ctx, id)
	require.NoError(t, err)
	assert.False(t, c.Fired)
	assert.Equal(t, int32(1), st.triggers.Load())

	p, err := st.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "docker", "Kubernetes", "Helm"}, p.Skills)
}

func TestSet_ConcurrentTogglesFireOnce(t *testing.T) {
	tr, _, id := setup(t)
	ctx := context.Background()

	var (
		wg    sync.WaitGroup
		fired atomic.Int32
	)
	for i := 0; i < 4; i++ {
		for _, node := range []string{"a", "b", "c"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := tr.Set(ctx, id, node, true, nil)
				if assert.NoError(t, err) && res.Completion != nil {
					fired.Add(1)
				}
			}()
		}
	}
	wg.Wait()

	assert.Equal(t, int32(1), fired.Load())
	v, err := tr.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 100.0, v.Percentage)
	assert.Equal(t, int64(3), v.Version)
}

func TestCompleteCheck(t *testing.T) {
	tr, st, id := setup(t)
	ctx := context.Background()

	c, err := tr.CompleteCheck(ctx, id)
	require.NoError(t, err)
	assert.False(t, c.Fired)
	assert.Equal(t, "Roadmap is 0.0% complete.", c.Message)

	// Simulate a crash between saving the last node and triggering.
	rec := &store.ProgressRecord{SavedItemID: id, Nodes: map[string]store.NodeProgress{
		"a": {Completed: true}, "b": {Completed: true}, "c": {Completed: true},
	}}
	_, err = st.Memory.SaveProgress(ctx, rec, 0)
	require.NoError(t, err)

	c, err = tr.CompleteCheck(ctx, id)
	require.NoError(t, err)
	assert.True(t, c.Fired)
	assert.Equal(t, []string{"Kubernetes", "Helm"}, c.NewSkillsAdded)

	c, err = tr.CompleteCheck(ctx, id)
	require.NoError(t, err)
	assert.False(t, c.Fired)
	assert.Equal(t, "Roadmap already completed.", c.Message)
}
