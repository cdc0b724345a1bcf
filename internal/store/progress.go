package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/siddu28/Erflog/internal/roadmap"
)

// GetProgress returns the progress record of a saved item, or ErrNotFound
// before the first toggle.
func (db *DB) GetProgress(ctx context.Context, savedItemID string) (*ProgressRecord, error) {
	if _, err := uuid.Parse(savedItemID); err != nil {
		return nil, ErrNotFound
	}

	var rec ProgressRecord
	var nodes []byte
	err := db.pool.QueryRow(ctx,
		`SELECT saved_item_id::text, nodes, completion_triggered, completed_at, version, updated_at
		 FROM roadmap_progress WHERE saved_item_id = $1`,
		savedItemID,
	).Scan(&rec.SavedItemID, &nodes, &rec.CompletionTriggered, &rec.CompletedAt, &rec.Version, &rec.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	if err := json.Unmarshal(nodes, &rec.Nodes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress nodes: %w", err)
	}
	return &rec, nil
}

// SaveProgress writes rec.Nodes if the stored version still equals expected.
// An expected version of 0 creates the record. A lost race returns ErrConflict.
func (db *DB) SaveProgress(ctx context.Context, rec *ProgressRecord, expected int64) (*ProgressRecord, error) {
	nodes, err := json.Marshal(rec.Nodes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal progress nodes: %w", err)
	}

	var row pgx.Row
	if expected == 0 {
		row = db.pool.QueryRow(ctx,
			`INSERT INTO roadmap_progress (saved_item_id, nodes, version, updated_at)
			 VALUES ($1, $2, 1, $3)
			 ON CONFLICT (saved_item_id) DO NOTHING
			 RETURNING version`,
			rec.SavedItemID, nodes, rec.UpdatedAt,
		)
	} else {
		row = db.pool.QueryRow(ctx,
			`UPDATE roadmap_progress SET nodes = $2, version = version + 1, updated_at = $3
			 WHERE saved_item_id = $1 AND version = $4
			 RETURNING version`,
			rec.SavedItemID, nodes, rec.UpdatedAt, expected,
		)
	}

	var version int64
	if err := row.Scan(&version); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to save progress: %w", mapConflict(err))
	}

	out := *rec
	out.Version = version
	return &out, nil
}

// TriggerCompletion flips completion_triggered of a saved item and merges
// skills into the user's profile in one transaction. Fired is false when the
// flag was already set, in which case nothing changes.
func (db *DB) TriggerCompletion(ctx context.Context, savedItemID, userID string, skills []string) (*CompletionResult, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE roadmap_progress SET completion_triggered = TRUE, completed_at = NOW()
		 WHERE saved_item_id = $1 AND NOT completion_triggered`,
		savedItemID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to trigger completion: %w", mapConflict(err))
	}
	if tag.RowsAffected() == 0 {
		return &CompletionResult{}, nil
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO profiles (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure profile: %w", err)
	}

	var existing []string
	err = tx.QueryRow(ctx,
		`SELECT skills FROM profiles WHERE user_id = $1 FOR UPDATE`,
		userID,
	).Scan(&existing)
	if err != nil {
		return nil, fmt.Errorf("failed to lock profile: %w", err)
	}

	merged, added := roadmap.MergeSkills(existing, skills)
	if len(added) > 0 {
		_, err = tx.Exec(ctx,
			`UPDATE profiles SET skills = $2, updated_at = NOW() WHERE user_id = $1`,
			userID, merged,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to merge skills: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit completion: %w", mapConflict(err))
	}
	return &CompletionResult{Fired: true, Added: added, TotalSkills: len(merged)}, nil
}
