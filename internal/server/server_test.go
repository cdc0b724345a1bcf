package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siddu28/Erflog/internal/catalog"
	"github.com/siddu28/Erflog/internal/compose"
	"github.com/siddu28/Erflog/internal/lock"
	"github.com/siddu28/Erflog/internal/matching"
	"github.com/siddu28/Erflog/internal/profile"
	"github.com/siddu28/Erflog/internal/progress"
	"github.com/siddu28/Erflog/internal/roadmap"
	"github.com/siddu28/Erflog/internal/saved"
	"github.com/siddu28/Erflog/internal/snapshot"
	"github.com/siddu28/Erflog/internal/store"
)

type stubRunner struct {
	mem     *store.Memory
	err     error
	forced  []string
	allRuns [][]string
}

func (r *stubRunner) Run(ctx context.Context, userID string, force bool) (*snapshot.Outcome, error) {
	if r.err != nil {
		return nil, r.err
	}
	if force {
		r.forced = append(r.forced, userID)
	}
	snap, err := r.mem.GetSnapshot(ctx, userID, "2026-10-16")
	if err != nil {
		return nil, err
	}
	return &snapshot.Outcome{Snapshot: snap, Cached: !force}, nil
}

func (r *stubRunner) RunAll(_ context.Context, userIDs []string) *snapshot.Summary {
	r.allRuns = append(r.allRuns, userIDs)
	return &snapshot.Summary{Status: snapshot.StatusSuccess, Total: len(userIDs), Processed: len(userIDs)}
}

type envelope struct {
	Status string          `json:"status"`
	Cached bool            `json:"cached"`
	Error  string          `json:"error"`
	Data   json.RawMessage `json:"data"`
}

type fixture struct {
	srv    *Server
	mem    *store.Memory
	runner *stubRunner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.UpsertProfile(ctx, &profile.UserProfile{ID: "u1", Skills: []string{"Go"}}))
	require.NoError(t, mem.ReplaceSnapshot(ctx, &store.Snapshot{
		UserID: "u1",
		Date:   "2026-10-16",
		RunID:  "run-1",
		Jobs: []store.SnapshotItem{
			{
				ID:               "j1",
				Namespace:        catalog.NamespaceJobs,
				Title:            "Platform Engineer",
				Tier:             catalog.TierGap,
				NeedsImprovement: true,
				Roadmap: &roadmap.Roadmap{
					MissingSkills: []string{"Kubernetes"},
					Graph: roadmap.Graph{Nodes: []roadmap.Node{
						{ID: "a", Label: "A", Day: 1, Type: roadmap.NodeConcept},
						{ID: "b", Label: "B", Day: 2, Type: roadmap.NodeProject},
					}},
				},
				ApplicationText: &compose.Bundle{ShortIntro: "Hello"},
			},
			{ID: "j2", Namespace: catalog.NamespaceJobs, Title: "SRE", Tier: catalog.TierReady},
		},
	}))

	runner := &stubRunner{mem: mem}
	srv := New(Deps{
		Runner:     runner,
		Snapshots:  mem,
		Users:      mem,
		Saved:      saved.NewService(mem, nil),
		Plans:      saved.NewPlans(mem, roadmap.NewMerger(nil, nil), nil),
		Tracker:    progress.NewTracker(mem, lock.NewLocal(), nil),
		CronSecret: "s3cret",
	})
	return &fixture{srv: srv, mem: mem, runner: runner}
}

func (f *fixture) do(t *testing.T, method, path, user string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(HeaderUserID, user)
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestToday(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/api/strategist/today", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Cached)

	var snap store.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, "run-1", snap.RunID)
	assert.Len(t, snap.Jobs, 2)

	rec, _ = f.do(t, http.MethodGet, "/api/strategist/today", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshForcesRun(t *testing.T) {
	f := newFixture(t)
	rec, env := f.do(t, http.MethodPost, "/api/strategist/refresh", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, env.Cached)
	assert.Equal(t, []string{"u1"}, f.runner.forced)
}

func TestRunErrorsMapToStatus(t *testing.T) {
	f := newFixture(t)
	f.runner.err = fmt.Errorf("retrieve job: %w", matching.ErrRetrievalUnavailable)
	rec, env := f.do(t, http.MethodGet, "/api/strategist/today", "u1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "error", env.Status)

	f.runner.err = fmt.Errorf("resolve profile: %w", profile.ErrNotFound)
	rec, _ = f.do(t, http.MethodGet, "/api/strategist/today", "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.runner.err = fmt.Errorf("boom")
	rec, env = f.do(t, http.MethodGet, "/api/strategist/today", "u1", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", env.Error)
}

func TestCron(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodPost, "/api/strategist/cron", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, f.runner.allRuns)

	req := httptest.NewRequest(http.MethodPost, "/api/strategist/cron", nil)
	req.Header.Set(HeaderCronSecret, "s3cret")
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, [][]string{{"u1"}}, f.runner.allRuns)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var sum snapshot.Summary
	require.NoError(t, json.Unmarshal(env.Data, &sum))
	assert.Equal(t, snapshot.StatusSuccess, sum.Status)
}

func TestItemEndpoints(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/api/strategist/items/j1/roadmap", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rm struct {
		Roadmap *roadmap.Roadmap `json:"roadmap"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &rm))
	require.NotNil(t, rm.Roadmap)
	assert.Len(t, rm.Roadmap.Graph.Nodes, 2)

	rec, _ = f.do(t, http.MethodGet, "/api/strategist/items/j1/application", "u1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/strategist/items/j2/application", "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/strategist/items/zz/roadmap", "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/strategist/items/j1/roadmap", "u2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSavedItemProgressFlow(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodPost, "/api/strategist/saved", "u1", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := f.do(t, http.MethodPost, "/api/strategist/saved", "u1", map[string]string{"item_id": "j1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var item store.SavedItem
	require.NoError(t, json.Unmarshal(env.Data, &item))
	require.NotEmpty(t, item.ID)

	rec, env = f.do(t, http.MethodGet, "/api/strategist/saved", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []store.SavedItem
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)

	base := "/api/strategist/saved/" + item.ID
	rec, _ = f.do(t, http.MethodGet, base+"/progress", "u2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = f.do(t, http.MethodPut, base+"/progress", "u1", map[string]any{"node_id": "zz", "completed": true})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = f.do(t, http.MethodPut, base+"/progress", "u1", map[string]any{"node_id": "a"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = f.do(t, http.MethodPut, base+"/progress", "u1", map[string]any{"node_id": "a", "completed": true, "version": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	var res progress.SetResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 50.0, res.View.Percentage)
	assert.Nil(t, res.Completion)

	rec, _ = f.do(t, http.MethodPut, base+"/progress", "u1", map[string]any{"node_id": "b", "completed": true, "version": 0})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, env = f.do(t, http.MethodPut, base+"/progress", "u1", map[string]any{"node_id": "b", "completed": true, "version": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	res = progress.SetResult{}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.NotNil(t, res.Completion)
	assert.Equal(t, []string{"Kubernetes"}, res.Completion.NewSkillsAdded)

	rec, env = f.do(t, http.MethodPost, base+"/complete", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var c progress.Completion
	require.NoError(t, json.Unmarshal(env.Data, &c))
	assert.False(t, c.Fired)

	rec, env = f.do(t, http.MethodGet, base+"/progress", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view progress.View
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, 100.0, view.Percentage)
	assert.True(t, view.CompletionTriggered)
}

func TestDashboardTrimsSnapshot(t *testing.T) {
	f := newFixture(t)
	snap := &store.Snapshot{UserID: "u1", Date: "2026-10-16", RunID: "run-2"}
	for i := range 7 {
		snap.Jobs = append(snap.Jobs, store.SnapshotItem{ID: fmt.Sprintf("j%d", i), Namespace: catalog.NamespaceJobs})
	}
	for i := range 3 {
		snap.Contests = append(snap.Contests, store.SnapshotItem{ID: fmt.Sprintf("c%d", i), Namespace: catalog.NamespaceContests})
	}
	require.NoError(t, f.mem.ReplaceSnapshot(context.Background(), snap))

	rec, env := f.do(t, http.MethodGet, "/api/strategist/dashboard", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Cached)

	var got struct {
		Date     string               `json:"date"`
		Jobs     []store.SnapshotItem `json:"jobs"`
		Contests []store.SnapshotItem `json:"contests"`
		News     []store.SnapshotItem `json:"news"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "2026-10-16", got.Date)
	require.Len(t, got.Jobs, 5)
	assert.Equal(t, "j0", got.Jobs[0].ID)
	assert.Len(t, got.Contests, 2)
	assert.NotNil(t, got.News)
	assert.Empty(t, got.News)
}

func TestSavedCheckAndRemove(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/api/strategist/items/j1/saved", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var check saved.Check
	require.NoError(t, json.Unmarshal(env.Data, &check))
	assert.False(t, check.Saved)

	_, env = f.do(t, http.MethodPost, "/api/strategist/saved", "u1", map[string]string{"item_id": "j1"})
	var item store.SavedItem
	require.NoError(t, json.Unmarshal(env.Data, &item))

	_, env = f.do(t, http.MethodGet, "/api/strategist/items/j1/saved", "u1", nil)
	require.NoError(t, json.Unmarshal(env.Data, &check))
	assert.True(t, check.Saved)
	assert.Equal(t, item.ID, check.SavedItemID)

	rec, _ = f.do(t, http.MethodDelete, "/api/strategist/saved/"+item.ID, "u2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = f.do(t, http.MethodDelete, "/api/strategist/saved/"+item.ID, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/strategist/saved/"+item.ID+"/progress", "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMergeRoadmaps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	withRoadmap := func(itemID, label string) *store.SavedItem {
		rec, err := f.mem.SaveItem(ctx, store.SavedItemFrom("u1", store.SnapshotItem{
			ID:        itemID,
			Namespace: catalog.NamespaceJobs,
			Roadmap: &roadmap.Roadmap{
				MissingSkills: []string{label},
				Graph:         roadmap.Graph{Nodes: []roadmap.Node{{ID: "n1", Label: label, Day: 1, Type: roadmap.NodeConcept}}},
			},
		}))
		require.NoError(t, err)
		return rec
	}
	a := withRoadmap("x1", "Docker")
	b := withRoadmap("x2", "Kafka")
	bare, err := f.mem.SaveItem(ctx, store.SavedItemFrom("u1", store.SnapshotItem{ID: "x3", Namespace: catalog.NamespaceJobs}))
	require.NoError(t, err)

	const path = "/api/strategist/roadmaps"

	rec, _ := f.do(t, http.MethodPost, path+"/merge", "u1", map[string]any{"saved_item_ids": []string{a.ID}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPost, path+"/merge", "u1", map[string]any{"saved_item_ids": []string{a.ID, a.ID}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPost, path+"/merge", "u1", map[string]any{"saved_item_ids": []string{a.ID, bare.ID}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = f.do(t, http.MethodPost, path+"/merge", "u2", map[string]any{"saved_item_ids": []string{a.ID, b.ID}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env := f.do(t, http.MethodPost, path+"/merge", "u1", map[string]any{"saved_item_ids": []string{a.ID, b.ID}, "name": "Backend"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var merged store.MergedRoadmap
	require.NoError(t, json.Unmarshal(env.Data, &merged))
	assert.Equal(t, "Backend", merged.Name)
	assert.Equal(t, []string{"Docker", "Kafka"}, merged.Roadmap.MissingSkills)
	assert.Len(t, merged.Roadmap.Graph.Nodes, 2)

	rec, env = f.do(t, http.MethodGet, path, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []store.MergedRoadmap
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)

	rec, _ = f.do(t, http.MethodGet, path+"/"+merged.ID, "u2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = f.do(t, http.MethodDelete, path+"/"+merged.ID, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(t, http.MethodGet, path+"/"+merged.ID, "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv := New(Deps{AllowOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/strategist/today", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", HeaderUserID)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
