// Package profile resolves a user's skill profile and embedding vector.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/siddu28/Erflog/internal/ai"
)

var (
	// ErrNotFound is returned when the user has no profile.
	ErrNotFound = errors.New("profile not found")
	// ErrNoVector is returned when no embedding can be stored or derived for the user.
	ErrNoVector = errors.New("no user embedding")
)

// minProfileText is the shortest profile text worth embedding.
const minProfileText = 10

type UserProfile struct {
	ID                string    `json:"user_id"`
	Name              string    `json:"name"`
	Skills            []string  `json:"skills"`
	TargetRoles       []string  `json:"target_roles"`
	ExperienceSummary string    `json:"experience_summary"`
	Education         string    `json:"education"`
	Vector            []float32 `json:"-"`
}

// Text renders the profile as the plain text used to derive an embedding.
func (p *UserProfile) Text() string {
	var b strings.Builder
	if len(p.Skills) > 0 {
		fmt.Fprintf(&b, "Skills: %s\n", strings.Join(p.Skills, ", "))
	}
	if len(p.TargetRoles) > 0 {
		fmt.Fprintf(&b, "Target Roles: %s\n", strings.Join(p.TargetRoles, ", "))
	}
	if s := strings.TrimSpace(p.ExperienceSummary); s != "" {
		fmt.Fprintf(&b, "Experience: %s\n", s)
	}
	if s := strings.TrimSpace(p.Education); s != "" {
		fmt.Fprintf(&b, "Education: %s\n", s)
	}
	return strings.TrimSpace(b.String())
}

// Reader loads profiles from the owning store.
type Reader interface {
	GetProfile(ctx context.Context, userID string) (*UserProfile, error)
}

// VectorFetcher returns a stored embedding; ok is false when none exists.
type VectorFetcher interface {
	FetchVector(ctx context.Context, userID string) (vector []float32, ok bool, err error)
}

// Resolver loads a profile and attaches its embedding, preferring the stored
// vector and falling back to embedding the profile text.
type Resolver struct {
	profiles Reader
	vectors  VectorFetcher
	embedder ai.Embedder
	logger   *zap.Logger
}

func NewResolver(profiles Reader, vectors VectorFetcher, embedder ai.Embedder, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{profiles: profiles, vectors: vectors, embedder: embedder, logger: logger}
}

func (r *Resolver) Resolve(ctx context.Context, userID string) (*UserProfile, error) {
	p, err := r.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", userID, err)
	}

	if r.vectors != nil {
		vec, ok, err := r.vectors.FetchVector(ctx, userID)
		switch {
		case err != nil:
			r.logger.Warn("failed to fetch stored user vector", zap.String("user_id", userID), zap.Error(err))
		case ok:
			p.Vector = vec
			return p, nil
		}
	}

	if r.embedder == nil {
		return nil, fmt.Errorf("%w for %s", ErrNoVector, userID)
	}

	text := p.Text()
	if len(text) < minProfileText {
		return nil, fmt.Errorf("%w for %s: profile text too short", ErrNoVector, userID)
	}

	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %v", ErrNoVector, userID, err)
	}
	r.logger.Debug("derived user vector from profile text", zap.String("user_id", userID), zap.Int("dimension", len(vec)))

	p.Vector = vec
	return p, nil
}
