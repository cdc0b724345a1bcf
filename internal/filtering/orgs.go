package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/siddu28/Erflog/internal/catalog"
)

type excludedOrgsFilter struct {
	toggle
	orgs []string
}

// NewExcludedOrgs creates a filter that removes matches by organisations configured in the config.
func NewExcludedOrgs() Filter {
	return &excludedOrgsFilter{}
}

func (f *excludedOrgsFilter) Name() string { return "excluded_orgs" }

func (f *excludedOrgsFilter) Validate(cfg *Config) error {
	f.orgs = nil
	if cfg != nil {
		for _, org := range cfg.ExcludedOrgs {
			if org = strings.TrimSpace(org); org != "" {
				f.orgs = append(f.orgs, org)
			}
		}
	}
	return nil
}

func (f *excludedOrgsFilter) Apply(_ context.Context, deps Deps, r *Results) (*Results, Step, error) {
	initial := r.Len()
	if len(f.orgs) == 0 {
		return r, Step{Initial: initial, Dropped: 0, Left: r.Len()}, nil
	}

	excluded := r.Exclude(func(m catalog.MatchResult) bool {
		for _, org := range f.orgs {
			if strings.EqualFold(strings.TrimSpace(m.Item.Org), org) {
				return true
			}
		}
		return false
	})
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding items by organisation",
			zap.Strings("excluded_orgs", f.orgs),
			zap.Strings("excluded_items", excluded),
			zap.Int("items_left", r.Len()),
		)
	}

	return r, Step{Initial: initial, Dropped: len(excluded), Left: r.Len()}, nil
}

func (f *excludedOrgsFilter) Status() Status {
	details := map[string]string{}
	if len(f.orgs) > 0 {
		details["orgs"] = strings.Join(f.orgs, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
