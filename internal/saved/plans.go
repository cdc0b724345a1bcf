package saved

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/siddu28/Erflog/internal/logger"
	"github.com/siddu28/Erflog/internal/roadmap"
	"github.com/siddu28/Erflog/internal/store"
)

// DefaultPlanName names a merged roadmap when the user gives none.
const DefaultPlanName = "My Master Plan"

// ErrTooFewItems is returned when a merge names fewer than two saved items.
var ErrTooFewItems = errors.New("at least two saved items are required")

type PlanStore interface {
	GetSavedItem(ctx context.Context, id string) (*store.SavedItem, error)
	SaveMergedRoadmap(ctx context.Context, r *store.MergedRoadmap) (*store.MergedRoadmap, error)
	GetMergedRoadmap(ctx context.Context, id string) (*store.MergedRoadmap, error)
	ListMergedRoadmaps(ctx context.Context, userID string) ([]store.MergedRoadmap, error)
	DeleteMergedRoadmap(ctx context.Context, userID, id string) error
}

type Merger interface {
	Merge(ctx context.Context, sources []roadmap.MergeSource) (roadmap.MergeResult, error)
}

// Plans builds and keeps merged roadmaps over a user's saved items.
type Plans struct {
	store  PlanStore
	merger Merger
	logger *zap.Logger
}

func NewPlans(st PlanStore, merger Merger, logger *zap.Logger) *Plans {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Plans{store: st, merger: merger, logger: logger}
}

// Merge combines the roadmaps of the given saved items into one stored plan.
// Every id must belong to userID; repeated ids count once.
func (p *Plans) Merge(ctx context.Context, userID, name string, savedItemIDs []string) (*store.MergedRoadmap, error) {
	ids := unique(savedItemIDs)
	if len(ids) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewItems, len(ids))
	}

	sources := make([]roadmap.MergeSource, 0, len(ids))
	refs := make([]store.MergeSource, 0, len(ids))
	for _, id := range ids {
		item, err := p.store.GetSavedItem(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("saved item %s: %w", id, err)
		}
		if item.UserID != userID {
			return nil, fmt.Errorf("saved item %s: %w", id, store.ErrNotFound)
		}
		sources = append(sources, roadmap.MergeSource{Label: label(item), Roadmap: item.Roadmap})
		refs = append(refs, store.MergeSource{
			SavedItemID: item.ID,
			ItemID:      item.ItemID,
			Title:       item.Title,
			Org:         item.Org,
		})
	}

	res, err := p.merger.Merge(ctx, sources)
	if err != nil {
		return nil, fmt.Errorf("merge roadmaps: %w", err)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultPlanName
	}

	rec, err := p.store.SaveMergedRoadmap(ctx, &store.MergedRoadmap{
		UserID:    userID,
		Name:      name,
		Roadmap:   res.Roadmap,
		Sources:   refs,
		Generated: res.Generated,
	})
	if err != nil {
		return nil, fmt.Errorf("save merged roadmap: %w", err)
	}

	p.logger.Info("roadmaps merged",
		zap.String(logger.FieldUserID, userID),
		zap.String("merged_roadmap_id", rec.ID),
		zap.Int("sources", len(refs)),
		zap.Int("nodes", len(res.Roadmap.Graph.Nodes)),
		zap.Bool("generated", res.Generated),
	)
	return rec, nil
}

func (p *Plans) List(ctx context.Context, userID string) ([]store.MergedRoadmap, error) {
	out, err := p.store.ListMergedRoadmaps(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list merged roadmaps: %w", err)
	}
	if out == nil {
		out = []store.MergedRoadmap{}
	}
	return out, nil
}

// Get returns a merged roadmap owned by userID.
func (p *Plans) Get(ctx context.Context, userID, id string) (*store.MergedRoadmap, error) {
	r, err := p.store.GetMergedRoadmap(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.UserID != userID {
		return nil, store.ErrNotFound
	}
	return r, nil
}

func (p *Plans) Delete(ctx context.Context, userID, id string) error {
	return p.store.DeleteMergedRoadmap(ctx, userID, id)
}

func label(item *store.SavedItem) string {
	switch {
	case item.Title != "" && item.Org != "":
		return item.Title + " at " + item.Org
	case item.Title != "":
		return item.Title
	default:
		return item.ItemID
	}
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
