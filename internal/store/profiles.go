package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/siddu28/Erflog/internal/profile"
)

// GetProfile returns the stored profile of userID or profile.ErrNotFound.
func (db *DB) GetProfile(ctx context.Context, userID string) (*profile.UserProfile, error) {
	p := profile.UserProfile{ID: userID}
	err := db.pool.QueryRow(ctx,
		`SELECT name, skills, target_roles, experience_summary, education
		 FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.Name, &p.Skills, &p.TargetRoles, &p.ExperienceSummary, &p.Education)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, profile.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

// UpsertProfile creates or replaces the profile of p.ID.
func (db *DB) UpsertProfile(ctx context.Context, p *profile.UserProfile) error {
	skills := p.Skills
	if skills == nil {
		skills = []string{}
	}
	roles := p.TargetRoles
	if roles == nil {
		roles = []string{}
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO profiles (user_id, name, skills, target_roles, experience_summary, education)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id) DO UPDATE SET
		   name = EXCLUDED.name,
		   skills = EXCLUDED.skills,
		   target_roles = EXCLUDED.target_roles,
		   experience_summary = EXCLUDED.experience_summary,
		   education = EXCLUDED.education,
		   updated_at = NOW()`,
		p.ID, p.Name, skills, roles, p.ExperienceSummary, p.Education,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// ActiveUserIDs lists the users the scheduled run covers.
func (db *DB) ActiveUserIDs(ctx context.Context) ([]string, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT user_id FROM profiles WHERE active ORDER BY user_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan active users: %w", err)
	}
	return ids, nil
}
