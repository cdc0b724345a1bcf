package pinecone

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siddu28/Erflog/internal/catalog"
)

func newTestClient(srv *httptest.Server) *Client {
	c := New(nil, "secret")
	c.HTTPClient = srv.Client()
	c.APIURL = srv.URL
	return c
}

func TestCatalogIndexQuery(t *testing.T) {
	var got QueryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("Api-Key"))
		assert.NotEmpty(t, r.Header.Get("X-Pinecone-Api-Version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"matches": []map[string]any{
				{
					"id":    "job-1",
					"score": 0.91,
					"metadata": map[string]any{
						"title":        "Go Engineer",
						"company":      "Acme",
						"link":         "https://acme.test/jobs/1",
						"summary":      "Build services",
						"skills":       "go, kubernetes , ",
						"published_at": "2026-10-01T09:00:00Z",
					},
				},
				{
					"id":    "job-2",
					"score": 0.5,
					"metadata": map[string]any{
						"title":        "Intern",
						"platform":     "board",
						"skills":       []any{"python"},
						"published_at": "",
					},
				},
			},
		})
	}))
	defer srv.Close()

	index := NewCatalogIndex(newTestClient(srv), srv.URL, nil)
	matches, err := index.Query(context.Background(), []float32{0.1, 0.2}, catalog.NamespaceContests, 7)
	require.NoError(t, err)

	assert.Equal(t, "hackathon", got.Namespace)
	assert.Equal(t, 7, got.TopK)
	assert.True(t, got.IncludeMetadata)

	require.Len(t, matches, 2)
	first := matches[0]
	assert.Equal(t, "job-1", first.Item.ID)
	assert.Equal(t, catalog.NamespaceContests, first.Item.Namespace)
	assert.Equal(t, "Acme", first.Item.Org)
	assert.Equal(t, "Build services", first.Item.Description)
	assert.Equal(t, []string{"go", "kubernetes"}, first.Item.Skills)
	assert.Equal(t, time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC), first.Item.PublishedAt.UTC())
	assert.InDelta(t, 0.91, first.Score, 1e-9)

	second := matches[1]
	assert.Equal(t, "board", second.Item.Source)
	assert.True(t, second.Item.PublishedAt.IsZero())
	assert.Equal(t, []string{"python"}, second.Item.Skills)
}

func TestQueryBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewCatalogIndex(newTestClient(srv), srv.URL, nil).Query(context.Background(), []float32{1}, catalog.NamespaceJobs, 3)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
}

func TestUserVectorsFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vectors/fetch", r.URL.Path)
		assert.Equal(t, "users", r.URL.Query().Get("namespace"))

		vectors := map[string]any{}
		if id := r.URL.Query().Get("ids"); id == "u1" {
			vectors[id] = map[string]any{"id": id, "values": []float32{0.5, 0.25}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"vectors": vectors})
	}))
	defer srv.Close()

	users := NewUserVectors(newTestClient(srv), srv.URL, "users")

	vec, ok, err := users.FetchVector(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float32{0.5, 0.25}, vec)

	_, ok, err = users.FetchVector(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/indexes/catalog", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "catalog", "host": "catalog-abc.svc.pinecone.io"})
	}))
	defer srv.Close()

	c := newTestClient(srv)

	host, err := c.ResolveHost(context.Background(), "explicit.host", "catalog")
	require.NoError(t, err)
	assert.Equal(t, "explicit.host", host)

	host, err = c.ResolveHost(context.Background(), "", "catalog")
	require.NoError(t, err)
	assert.Equal(t, "catalog-abc.svc.pinecone.io", host)
}
