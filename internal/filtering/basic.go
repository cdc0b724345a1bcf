package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/siddu28/Erflog/internal/catalog"
)

type incompleteFilter struct{}

// NewIncomplete creates a filter that removes matches without an id or title.
func NewIncomplete() Filter {
	return &incompleteFilter{}
}

func (f *incompleteFilter) Name() string { return "incomplete" }

func (f *incompleteFilter) Disable(string) {}

func (f *incompleteFilter) IsEnabled() bool { return true }

func (f *incompleteFilter) Validate(*Config) error { return nil }

func (f *incompleteFilter) Apply(_ context.Context, deps Deps, r *Results) (*Results, Step, error) {
	initial := r.Len()
	excluded := r.Exclude(func(m catalog.MatchResult) bool {
		return strings.TrimSpace(m.Item.ID) == "" || strings.TrimSpace(m.Item.Title) == ""
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Warn("dropping incomplete catalog items", zap.Int("count", len(excluded)))
	}

	return r, Step{Initial: initial, Dropped: len(excluded), Left: r.Len()}, nil
}

type duplicatesFilter struct {
	toggle
}

// NewDuplicates creates a filter that keeps only the highest scoring match per namespace and id.
func NewDuplicates() Filter {
	return &duplicatesFilter{}
}

func (f *duplicatesFilter) Name() string { return "duplicates" }

func (f *duplicatesFilter) Validate(*Config) error { return nil }

func (f *duplicatesFilter) Apply(_ context.Context, _ Deps, r *Results) (*Results, Step, error) {
	initial := r.Len()

	best := make(map[string]float64, initial)
	for _, m := range r.Items {
		key := dedupeKey(m)
		if score, ok := best[key]; !ok || m.Score > score {
			best[key] = m.Score
		}
	}

	seen := make(map[string]struct{}, initial)
	excluded := r.Exclude(func(m catalog.MatchResult) bool {
		key := dedupeKey(m)
		if _, ok := seen[key]; ok || m.Score < best[key] {
			return true
		}
		seen[key] = struct{}{}
		return false
	})

	return r, Step{Initial: initial, Dropped: len(excluded), Left: r.Len()}, nil
}

func dedupeKey(m catalog.MatchResult) string {
	return m.Item.Namespace.String() + "/" + m.Item.ID
}

type discardedFilter struct{}

// NewDiscarded creates a filter that removes matches classified as Discard.
func NewDiscarded() Filter {
	return &discardedFilter{}
}

func (f *discardedFilter) Name() string { return "discarded" }

func (f *discardedFilter) Disable(string) {}

func (f *discardedFilter) IsEnabled() bool { return true }

func (f *discardedFilter) Validate(*Config) error { return nil }

func (f *discardedFilter) Apply(_ context.Context, deps Deps, r *Results) (*Results, Step, error) {
	initial := r.Len()
	excluded := r.Exclude(func(m catalog.MatchResult) bool { return !m.Retained() })
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Debug("discarding low scoring matches", zap.Strings("items", excluded))
	}

	return r, Step{Initial: initial, Dropped: len(excluded), Left: r.Len()}, nil
}
