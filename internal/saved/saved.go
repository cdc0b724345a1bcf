// Package saved lets users keep snapshot items for roadmap tracking.
package saved

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/siddu28/Erflog/internal/logger"
	"github.com/siddu28/Erflog/internal/store"
)

// ErrNotInSnapshot is returned when the item is not part of the user's
// latest snapshot.
var ErrNotInSnapshot = errors.New("item not in latest snapshot")

type Store interface {
	LatestSnapshot(ctx context.Context, userID string) (*store.Snapshot, error)
	SaveItem(ctx context.Context, item *store.SavedItem) (*store.SavedItem, error)
	GetSavedItem(ctx context.Context, id string) (*store.SavedItem, error)
	ListSavedItems(ctx context.Context, userID string) ([]store.SavedItem, error)
	FindSavedItem(ctx context.Context, userID, itemID string) (*store.SavedItem, error)
	DeleteSavedItem(ctx context.Context, userID, id string) error
}

// Check tells whether a catalog item is saved and under which id.
type Check struct {
	Saved       bool   `json:"is_saved"`
	SavedItemID string `json:"saved_item_id,omitempty"`
}

type Service struct {
	store  Store
	logger *zap.Logger
}

func NewService(st Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, logger: logger}
}

// Save copies itemID from the user's latest snapshot into the saved list.
// Saving an already saved item returns the existing record.
func (s *Service) Save(ctx context.Context, userID, itemID string) (*store.SavedItem, error) {
	snap, err := s.store.LatestSnapshot(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: no snapshot for %s", ErrNotInSnapshot, userID)
		}
		return nil, fmt.Errorf("load latest snapshot: %w", err)
	}

	item, ok := snap.FindItem(itemID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotInSnapshot, itemID)
	}

	rec, err := s.store.SaveItem(ctx, store.SavedItemFrom(userID, *item))
	if err != nil {
		return nil, fmt.Errorf("save item: %w", err)
	}
	s.logger.Info("item saved",
		zap.String(logger.FieldUserID, userID),
		zap.String(logger.FieldItemID, itemID),
		zap.String(logger.FieldSavedItemID, rec.ID),
		zap.Bool("has_roadmap", rec.Roadmap != nil),
	)
	return rec, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]store.SavedItem, error) {
	items, err := s.store.ListSavedItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list saved items: %w", err)
	}
	if items == nil {
		items = []store.SavedItem{}
	}
	return items, nil
}

// Get returns a saved item owned by userID. Items of other users are
// reported as not found.
func (s *Service) Get(ctx context.Context, userID, id string) (*store.SavedItem, error) {
	item, err := s.store.GetSavedItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.UserID != userID {
		return nil, store.ErrNotFound
	}
	return item, nil
}

func (s *Service) Check(ctx context.Context, userID, itemID string) (*Check, error) {
	item, err := s.store.FindSavedItem(ctx, userID, itemID)
	if errors.Is(err, store.ErrNotFound) {
		return &Check{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find saved item: %w", err)
	}
	return &Check{Saved: true, SavedItemID: item.ID}, nil
}

// Remove deletes a saved item of userID together with its progress.
func (s *Service) Remove(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteSavedItem(ctx, userID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("remove saved item: %w", err)
	}
	s.logger.Info("saved item removed",
		zap.String(logger.FieldUserID, userID),
		zap.String(logger.FieldSavedItemID, id),
	)
	return nil
}
