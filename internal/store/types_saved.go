package store

import (
	"time"

	"github.com/siddu28/Erflog/internal/catalog"
	"github.com/siddu28/Erflog/internal/compose"
	"github.com/siddu28/Erflog/internal/roadmap"
)

// SavedItem is a snapshot item the user kept. Its roadmap is frozen at save
// time so progress stays meaningful after later snapshots replace the day.
type SavedItem struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	ItemID          string            `json:"item_id"`
	Namespace       catalog.Namespace `json:"namespace"`
	Title           string            `json:"title"`
	Org             string            `json:"org"`
	Link            string            `json:"link"`
	Score           float64           `json:"score"`
	Roadmap         *roadmap.Roadmap  `json:"roadmap"`
	MissingSkills   []string          `json:"missing_skills"`
	ApplicationText *compose.Bundle   `json:"application_text"`
	CreatedAt       time.Time         `json:"created_at"`
}

// SavedItemFrom copies the persisted fields of a snapshot item.
func SavedItemFrom(userID string, item SnapshotItem) *SavedItem {
	missing := item.MissingSkills
	if item.Roadmap != nil && len(item.Roadmap.MissingSkills) > 0 {
		missing = item.Roadmap.MissingSkills
	}
	return &SavedItem{
		UserID:          userID,
		ItemID:          item.ID,
		Namespace:       item.Namespace,
		Title:           item.Title,
		Org:             item.Org,
		Link:            item.Link,
		Score:           item.Score,
		Roadmap:         item.Roadmap,
		MissingSkills:   missing,
		ApplicationText: item.ApplicationText,
	}
}
