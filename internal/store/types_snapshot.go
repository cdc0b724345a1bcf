package store

import (
	"time"

	"github.com/siddu28/Erflog/internal/catalog"
	"github.com/siddu28/Erflog/internal/compose"
	"github.com/siddu28/Erflog/internal/roadmap"
)

// SnapshotItem is one enriched catalog item inside a daily snapshot.
// Roadmap is set only for Gap items; a Gap item whose roadmap could not be
// built carries RoadmapPending instead.
type SnapshotItem struct {
	ID               string            `json:"id"`
	Namespace        catalog.Namespace `json:"namespace"`
	Title            string            `json:"title"`
	Org              string            `json:"org"`
	Link             string            `json:"link"`
	Source           string            `json:"source,omitempty"`
	Location         string            `json:"location,omitempty"`
	Summary          string            `json:"summary,omitempty"`
	Score            float64           `json:"score"`
	Tier             catalog.Tier      `json:"tier"`
	Roadmap          *roadmap.Roadmap  `json:"roadmap"`
	MissingSkills    []string          `json:"missing_skills,omitempty"`
	ApplicationText  *compose.Bundle   `json:"application_text"`
	NeedsImprovement bool              `json:"needs_improvement"`
	RoadmapPending   bool              `json:"roadmap_pending,omitempty"`
}

// Failure records an item-scoped enrichment failure.
type Failure struct {
	ItemID    string            `json:"item_id"`
	Namespace catalog.Namespace `json:"namespace"`
	Stage     string            `json:"stage"`
	Error     string            `json:"error"`
}

const (
	StageRoadmap     = "roadmap"
	StageApplication = "application"
)

type Stats struct {
	Retained            int `json:"retained"`
	Ready               int `json:"ready"`
	Gap                 int `json:"gap"`
	Discarded           int `json:"discarded"`
	WithRoadmap         int `json:"with_roadmap"`
	RoadmapPending      int `json:"roadmap_pending"`
	WithApplicationText int `json:"with_application_text"`
	JobsCount           int `json:"jobs_count"`
	ContestsCount       int `json:"contests_count"`
	NewsCount           int `json:"news_count"`
}

// Snapshot is the committed result of one run for one user and day.
type Snapshot struct {
	UserID      string         `json:"user_id"`
	Date        string         `json:"date"`
	RunID       string         `json:"run_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Jobs        []SnapshotItem `json:"jobs"`
	Contests    []SnapshotItem `json:"contests"`
	News        []SnapshotItem `json:"news"`
	Stats       Stats          `json:"stats"`
	Failures    []Failure      `json:"failures,omitempty"`
}

// Items returns jobs, contests and news in that order.
func (s *Snapshot) Items() []SnapshotItem {
	out := make([]SnapshotItem, 0, len(s.Jobs)+len(s.Contests)+len(s.News))
	out = append(out, s.Jobs...)
	out = append(out, s.Contests...)
	return append(out, s.News...)
}

// FindItem looks an item up by id across all namespaces.
func (s *Snapshot) FindItem(id string) (*SnapshotItem, bool) {
	for _, list := range [][]SnapshotItem{s.Jobs, s.Contests, s.News} {
		for i := range list {
			if list[i].ID == id {
				return &list[i], true
			}
		}
	}
	return nil, false
}
