package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ReplaceSnapshot commits s as the only snapshot of (s.UserID, s.Date),
// replacing any earlier one in a single statement.
func (db *DB) ReplaceSnapshot(ctx context.Context, s *Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO daily_snapshots (user_id, snapshot_date, run_id, generated_at, data)
		 VALUES ($1, $2::date, $3, $4, $5)
		 ON CONFLICT (user_id, snapshot_date) DO UPDATE SET
		   run_id = EXCLUDED.run_id,
		   generated_at = EXCLUDED.generated_at,
		   data = EXCLUDED.data`,
		s.UserID, s.Date, s.RunID, s.GeneratedAt, data,
	)
	if err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", mapConflict(err))
	}
	return nil
}

// GetSnapshot returns the snapshot committed for userID on date.
func (db *DB) GetSnapshot(ctx context.Context, userID, date string) (*Snapshot, error) {
	return db.scanSnapshot(db.pool.QueryRow(ctx,
		`SELECT data FROM daily_snapshots WHERE user_id = $1 AND snapshot_date = $2::date`,
		userID, date,
	))
}

// LatestSnapshot returns the most recent snapshot of userID.
func (db *DB) LatestSnapshot(ctx context.Context, userID string) (*Snapshot, error) {
	return db.scanSnapshot(db.pool.QueryRow(ctx,
		`SELECT data FROM daily_snapshots WHERE user_id = $1
		 ORDER BY snapshot_date DESC LIMIT 1`,
		userID,
	))
}

func (db *DB) scanSnapshot(row pgx.Row) (*Snapshot, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &s, nil
}
