package store

import "time"

type NodeProgress struct {
	Completed bool      `json:"completed"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProgressRecord tracks completed roadmap nodes of one saved item.
// Version starts at 1 on first write and increases by one on every update.
type ProgressRecord struct {
	SavedItemID         string                  `json:"saved_item_id"`
	Nodes               map[string]NodeProgress `json:"nodes"`
	CompletionTriggered bool                    `json:"completion_triggered"`
	CompletedAt         *time.Time              `json:"completed_at,omitempty"`
	Version             int64                   `json:"version"`
	UpdatedAt           time.Time               `json:"updated_at"`
}

// CompletionResult reports the outcome of TriggerCompletion.
type CompletionResult struct {
	Fired       bool
	Added       []string
	TotalSkills int
}
