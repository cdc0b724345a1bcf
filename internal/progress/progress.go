// Package progress tracks completion of saved roadmaps and fires the
// completion side effect at most once per saved item.
package progress

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/siddu28/Erflog/internal/lock"
	"github.com/siddu28/Erflog/internal/logger"
	"github.com/siddu28/Erflog/internal/store"
)

var (
	// ErrNoRoadmap is returned when the saved item has no roadmap to track.
	ErrNoRoadmap = errors.New("saved item has no roadmap")
	// ErrUnknownNode is returned when the node id is not part of the roadmap.
	ErrUnknownNode = errors.New("unknown roadmap node")
)

// Store is the persistence the tracker needs.
type Store interface {
	GetSavedItem(ctx context.Context, id string) (*store.SavedItem, error)
	GetProgress(ctx context.Context, savedItemID string) (*store.ProgressRecord, error)
	SaveProgress(ctx context.Context, rec *store.ProgressRecord, expected int64) (*store.ProgressRecord, error)
	TriggerCompletion(ctx context.Context, savedItemID, userID string, skills []string) (*store.CompletionResult, error)
}

// View is the client-facing progress of one saved item.
type View struct {
	SavedItemID         string                        `json:"saved_item_id"`
	Progress            map[string]store.NodeProgress `json:"progress"`
	TotalNodes          int                           `json:"total_nodes"`
	CompletedNodes      int                           `json:"completed_nodes"`
	Percentage          float64                       `json:"percentage"`
	CompletionTriggered bool                          `json:"completion_triggered"`
	Version             int64                         `json:"version"`
}

// Complete reports whether every roadmap node is done.
func (v *View) Complete() bool {
	return v.TotalNodes > 0 && v.CompletedNodes == v.TotalNodes
}

// Completion is the delta returned when a roadmap is finished.
type Completion struct {
	Fired          bool     `json:"fired"`
	Message        string   `json:"message"`
	NewSkillsAdded []string `json:"new_skills_added"`
	TotalSkills    int      `json:"total_skills,omitempty"`
}

// SetResult is returned by Set. Completion is non-nil only for the call that
// fired the completion side effect.
type SetResult struct {
	View       *View       `json:"view"`
	Completion *Completion `json:"completion,omitempty"`
}

type Tracker struct {
	store  Store
	locker lock.Locker
	now    func() time.Time
	logger *zap.Logger
}

func NewTracker(st Store, locker lock.Locker, logger *zap.Logger) *Tracker {
	if locker == nil {
		locker = lock.NewLocal()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{store: st, locker: locker, now: time.Now, logger: logger}
}

func lockKey(savedItemID string) string {
	return "progress:" + savedItemID
}

// Get returns the current progress of a saved item. An item that was never
// toggled reports zero progress at version 0.
func (t *Tracker) Get(ctx context.Context, savedItemID string) (*View, error) {
	item, err := t.store.GetSavedItem(ctx, savedItemID)
	if err != nil {
		return nil, fmt.Errorf("load saved item %s: %w", savedItemID, err)
	}
	rec, err := t.loadRecord(ctx, savedItemID)
	if err != nil {
		return nil, err
	}
	return buildView(item, rec), nil
}

// Set marks nodeID of the saved item as completed or not. expected, when
// non-nil, must equal the current version or ErrConflict is returned.
// Setting a node to its current value changes nothing.
func (t *Tracker) Set(ctx context.Context, savedItemID, nodeID string, completed bool, expected *int64) (*SetResult, error) {
	unlock, err := t.locker.Lock(ctx, lockKey(savedItemID))
	if err != nil {
		return nil, fmt.Errorf("acquire progress lock: %w", err)
	}
	defer unlock()

	item, err := t.store.GetSavedItem(ctx, savedItemID)
	if err != nil {
		return nil, fmt.Errorf("load saved item %s: %w", savedItemID, err)
	}
	if item.Roadmap == nil || len(item.Roadmap.Graph.Nodes) == 0 {
		return nil, ErrNoRoadmap
	}
	if !item.Roadmap.Graph.HasNode(nodeID) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, nodeID)
	}

	rec, err := t.loadRecord(ctx, savedItemID)
	if err != nil {
		return nil, err
	}
	if expected != nil && *expected != rec.Version {
		return nil, fmt.Errorf("%w: version %d, expected %d", store.ErrConflict, rec.Version, *expected)
	}

	log := logger.WithFields(t.logger,
		zap.String(logger.FieldSavedItemID, savedItemID),
		zap.String(logger.FieldUserID, item.UserID),
		zap.String("node_id", nodeID),
	)

	if rec.Nodes[nodeID].Completed == completed {
		log.Debug("progress unchanged")
		return &SetResult{View: buildView(item, rec)}, nil
	}

	next := &store.ProgressRecord{
		SavedItemID: savedItemID,
		Nodes:       make(map[string]store.NodeProgress, len(rec.Nodes)+1),
		UpdatedAt:   t.now().UTC(),
	}
	for id, p := range rec.Nodes {
		next.Nodes[id] = p
	}
	next.Nodes[nodeID] = store.NodeProgress{Completed: completed, UpdatedAt: next.UpdatedAt}

	saved, err := t.store.SaveProgress(ctx, next, rec.Version)
	if err != nil {
		return nil, fmt.Errorf("save progress: %w", err)
	}
	saved.CompletionTriggered = rec.CompletionTriggered
	saved.CompletedAt = rec.CompletedAt

	view := buildView(item, saved)
	log.Info("progress updated",
		zap.Bool("completed", completed),
		zap.Float64("percentage", view.Percentage),
		zap.Int64("version", view.Version),
	)

	res := &SetResult{View: view}
	if view.Complete() && !view.CompletionTriggered {
		c, err := t.fire(ctx, log, item)
		if err != nil {
			return nil, err
		}
		if c.Fired {
			view.CompletionTriggered = true
			res.Completion = c
		}
	}
	return res, nil
}

// CompleteCheck fires the completion side effect if the roadmap is fully
// done and it has not fired yet. It is safe to call at any time.
func (t *Tracker) CompleteCheck(ctx context.Context, savedItemID string) (*Completion, error) {
	unlock, err := t.locker.Lock(ctx, lockKey(savedItemID))
	if err != nil {
		return nil, fmt.Errorf("acquire progress lock: %w", err)
	}
	defer unlock()

	item, err := t.store.GetSavedItem(ctx, savedItemID)
	if err != nil {
		return nil, fmt.Errorf("load saved item %s: %w", savedItemID, err)
	}
	rec, err := t.loadRecord(ctx, savedItemID)
	if err != nil {
		return nil, err
	}
	view := buildView(item, rec)

	switch {
	case view.CompletionTriggered:
		return &Completion{Message: "Roadmap already completed.", NewSkillsAdded: []string{}}, nil
	case !view.Complete():
		return &Completion{
			Message:        fmt.Sprintf("Roadmap is %.1f%% complete.", view.Percentage),
			NewSkillsAdded: []string{},
		}, nil
	}

	log := logger.WithFields(t.logger,
		zap.String(logger.FieldSavedItemID, savedItemID),
		zap.String(logger.FieldUserID, item.UserID),
	)
	return t.fire(ctx, log, item)
}

func (t *Tracker) fire(ctx context.Context, log *zap.Logger, item *store.SavedItem) (*Completion, error) {
	skills := item.MissingSkills
	if item.Roadmap != nil && len(item.Roadmap.MissingSkills) > 0 {
		skills = item.Roadmap.MissingSkills
	}

	res, err := t.store.TriggerCompletion(ctx, item.ID, item.UserID, skills)
	if err != nil {
		return nil, fmt.Errorf("trigger completion: %w", err)
	}
	if !res.Fired {
		return &Completion{Message: "Roadmap already completed.", NewSkillsAdded: []string{}}, nil
	}

	c := &Completion{Fired: true, NewSkillsAdded: res.Added, TotalSkills: res.TotalSkills}
	if c.NewSkillsAdded == nil {
		c.NewSkillsAdded = []string{}
	}
	if n := len(c.NewSkillsAdded); n > 0 {
		c.Message = fmt.Sprintf("Congratulations! %d new skills added to your profile!", n)
	} else {
		c.Message = "Roadmap completed! All skills were already in your profile."
	}
	log.Info("roadmap completed",
		zap.Strings("new_skills_added", c.NewSkillsAdded),
		zap.Int("total_skills", c.TotalSkills),
	)
	return c, nil
}

func (t *Tracker) loadRecord(ctx context.Context, savedItemID string) (*store.ProgressRecord, error) {
	rec, err := t.store.GetProgress(ctx, savedItemID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return &store.ProgressRecord{SavedItemID: savedItemID, Nodes: map[string]store.NodeProgress{}}, nil
	case err != nil:
		return nil, fmt.Errorf("load progress %s: %w", savedItemID, err)
	}
	if rec.Nodes == nil {
		rec.Nodes = map[string]store.NodeProgress{}
	}
	return rec, nil
}

// buildView counts only nodes that belong to the item's roadmap.
func buildView(item *store.SavedItem, rec *store.ProgressRecord) *View {
	v := &View{
		SavedItemID:         item.ID,
		Progress:            rec.Nodes,
		CompletionTriggered: rec.CompletionTriggered,
		Version:             rec.Version,
	}
	if item.Roadmap == nil {
		return v
	}
	for _, id := range item.Roadmap.Graph.NodeIDs() {
		v.TotalNodes++
		if rec.Nodes[id].Completed {
			v.CompletedNodes++
		}
	}
	if v.TotalNodes > 0 {
		pct := float64(v.CompletedNodes) / float64(v.TotalNodes) * 100
		v.Percentage = math.Round(pct*10) / 10
	}
	return v
}
