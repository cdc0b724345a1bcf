package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memProfiles map[string]*UserProfile

func (m memProfiles) GetProfile(_ context.Context, userID string) (*UserProfile, error) {
	p, ok := m[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

type stubVectors struct {
	vec []float32
	ok  bool
	err error
}

func (s stubVectors) FetchVector(context.Context, string) ([]float32, bool, error) {
	return s.vec, s.ok, s.err
}

type stubEmbedder struct {
	text string
	vec  []float32
	err  error
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.text = text
	return s.vec, s.err
}

func profiles() memProfiles {
	return memProfiles{"u1": {
		ID:                "u1",
		Skills:            []string{"Go", "SQL"},
		TargetRoles:       []string{"Backend Engineer"},
		ExperienceSummary: "Five years of services",
	}}
}

func TestResolvePrefersStoredVector(t *testing.T) {
	emb := &stubEmbedder{vec: []float32{9}}
	r := NewResolver(profiles(), stubVectors{vec: []float32{1, 2}, ok: true}, emb, nil)

	p, err := r.Resolve(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, p.Vector)
	assert.Empty(t, emb.text)
}

func TestResolveFallsBackToEmbedding(t *testing.T) {
	for name, vectors := range map[string]VectorFetcher{
		"missing": stubVectors{},
		"error":   stubVectors{err: errors.New("index down")},
		"none":    nil,
	} {
		t.Run(name, func(t *testing.T) {
			emb := &stubEmbedder{vec: []float32{0.5}}
			p, err := NewResolver(profiles(), vectors, emb, nil).Resolve(context.Background(), "u1")
			require.NoError(t, err)
			assert.Equal(t, []float32{0.5}, p.Vector)
			assert.Equal(t, "Skills: Go, SQL\nTarget Roles: Backend Engineer\nExperience: Five years of services", emb.text)
		})
	}
}

func TestResolveErrors(t *testing.T) {
	_, err := NewResolver(profiles(), nil, &stubEmbedder{}, nil).Resolve(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = NewResolver(profiles(), stubVectors{}, nil, nil).Resolve(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNoVector)

	empty := memProfiles{"u2": {ID: "u2"}}
	_, err = NewResolver(empty, nil, &stubEmbedder{vec: []float32{1}}, nil).Resolve(context.Background(), "u2")
	assert.ErrorIs(t, err, ErrNoVector)

	_, err = NewResolver(profiles(), nil, &stubEmbedder{err: errors.New("quota")}, nil).Resolve(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNoVector)
}
