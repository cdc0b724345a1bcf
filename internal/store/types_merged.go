package store

import (
	"time"

	"github.com/siddu28/Erflog/internal/roadmap"
)

// MergeSource names one saved item that went into a merged roadmap.
type MergeSource struct {
	SavedItemID string `json:"saved_item_id"`
	ItemID      string `json:"item_id"`
	Title       string `json:"title"`
	Org         string `json:"org"`
}

// MergedRoadmap is a single plan built from several saved roadmaps. It is a
// copy: later changes to the sources do not touch it.
type MergedRoadmap struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Name      string           `json:"name"`
	Roadmap   *roadmap.Roadmap `json:"roadmap"`
	Sources   []MergeSource    `json:"sources"`
	Generated bool             `json:"generated"`
	CreatedAt time.Time        `json:"created_at"`
}
