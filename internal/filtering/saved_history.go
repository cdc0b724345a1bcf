package filtering

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

type savedHistoryFilter struct {
	toggle
	enabled bool
}

// NewSavedHistory creates a filter that removes items the user has already saved.
// It only acts when Config.ExcludeSaved is set.
func NewSavedHistory() Filter {
	return &savedHistoryFilter{}
}

func (f *savedHistoryFilter) Name() string { return "saved_history" }

func (f *savedHistoryFilter) Validate(cfg *Config) error {
	f.enabled = cfg != nil && cfg.ExcludeSaved
	return nil
}

func (f *savedHistoryFilter) Apply(ctx context.Context, deps Deps, r *Results) (*Results, Step, error) {
	initial := r.Len()
	if !f.enabled {
		return r, Step{Initial: initial, Dropped: 0, Left: r.Len()}, nil
	}

	if deps.Saved == nil {
		return r, Step{}, fmt.Errorf("saved item store is required")
	}

	ids, err := deps.Saved.SavedItemIDs(ctx, deps.UserID)
	if err != nil {
		return r, Step{}, fmt.Errorf("list saved items: %w", err)
	}

	excluded := r.ExcludeIDs(ids)
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding items already saved by the user",
			zap.Strings("excluded_items", excluded),
			zap.Int("items_left", r.Len()),
		)
	}

	return r, Step{Initial: initial, Dropped: len(excluded), Left: r.Len()}, nil
}

func (f *savedHistoryFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"exclude_saved": strconv.FormatBool(f.enabled)},
	}
}
