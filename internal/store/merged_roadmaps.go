package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SaveMergedRoadmap stores r under a fresh id and returns the stored record.
func (db *DB) SaveMergedRoadmap(ctx context.Context, r *MergedRoadmap) (*MergedRoadmap, error) {
	rec := *r
	rec.ID = uuid.NewString()
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal merged roadmap: %w", err)
	}

	return db.scanMergedRoadmap(db.pool.QueryRow(ctx,
		`INSERT INTO merged_roadmaps (id, user_id, name, data)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id::text, created_at, data`,
		rec.ID, rec.UserID, rec.Name, data,
	))
}

// GetMergedRoadmap returns the merged roadmap with the given id.
func (db *DB) GetMergedRoadmap(ctx context.Context, id string) (*MergedRoadmap, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return db.scanMergedRoadmap(db.pool.QueryRow(ctx,
		`SELECT id::text, created_at, data FROM merged_roadmaps WHERE id = $1`,
		id,
	))
}

// ListMergedRoadmaps returns the user's merged roadmaps, newest first.
func (db *DB) ListMergedRoadmaps(ctx context.Context, userID string) ([]MergedRoadmap, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id::text, created_at, data FROM merged_roadmaps
		 WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list merged roadmaps: %w", err)
	}
	defer rows.Close()

	var out []MergedRoadmap
	for rows.Next() {
		r, err := db.scanMergedRoadmap(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating merged roadmaps: %w", err)
	}
	return out, nil
}

// DeleteMergedRoadmap removes a merged roadmap owned by userID.
func (db *DB) DeleteMergedRoadmap(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM merged_roadmaps WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete merged roadmap: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) scanMergedRoadmap(row pgx.Row) (*MergedRoadmap, error) {
	var r MergedRoadmap
	var data []byte
	var id string
	if err := row.Scan(&id, &r.CreatedAt, &data); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get merged roadmap: %w", err)
	}
	created := r.CreatedAt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal merged roadmap: %w", err)
	}
	r.ID = id
	r.CreatedAt = created
	return &r, nil
}
