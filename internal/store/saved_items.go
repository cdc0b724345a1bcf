package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SaveItem stores item for its user. Saving the same catalog item twice keeps
// the first record and returns it.
func (db *DB) SaveItem(ctx context.Context, item *SavedItem) (*SavedItem, error) {
	rec := *item
	rec.ID = uuid.NewString()
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal saved item: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO saved_items (id, user_id, item_id, namespace, data)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, item_id) DO NOTHING`,
		rec.ID, rec.UserID, rec.ItemID, rec.Namespace.String(), data,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save item: %w", err)
	}

	return db.scanSavedItem(db.pool.QueryRow(ctx,
		`SELECT id::text, created_at, data FROM saved_items WHERE user_id = $1 AND item_id = $2`,
		rec.UserID, rec.ItemID,
	))
}

// GetSavedItem returns the saved item with the given id.
func (db *DB) GetSavedItem(ctx context.Context, id string) (*SavedItem, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return db.scanSavedItem(db.pool.QueryRow(ctx,
		`SELECT id::text, created_at, data FROM saved_items WHERE id = $1`,
		id,
	))
}

// ListSavedItems returns the user's saved items, newest first.
func (db *DB) ListSavedItems(ctx context.Context, userID string) ([]SavedItem, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id::text, created_at, data FROM saved_items
		 WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved items: %w", err)
	}
	defer rows.Close()

	var items []SavedItem
	for rows.Next() {
		item, err := db.scanSavedItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating saved items: %w", err)
	}
	return items, nil
}

// FindSavedItem returns the user's saved record of a catalog item.
func (db *DB) FindSavedItem(ctx context.Context, userID, itemID string) (*SavedItem, error) {
	return db.scanSavedItem(db.pool.QueryRow(ctx,
		`SELECT id::text, created_at, data FROM saved_items WHERE user_id = $1 AND item_id = $2`,
		userID, itemID,
	))
}

// DeleteSavedItem removes a saved item owned by userID. Its progress goes
// with it.
func (db *DB) DeleteSavedItem(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM saved_items WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete saved item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SavedItemIDs returns the catalog item ids the user has saved.
func (db *DB) SavedItemIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT item_id FROM saved_items WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved item ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan saved item ids: %w", err)
	}
	return ids, nil
}

func (db *DB) scanSavedItem(row pgx.Row) (*SavedItem, error) {
	var item SavedItem
	var data []byte
	var id string
	if err := row.Scan(&id, &item.CreatedAt, &data); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get saved item: %w", err)
	}
	created := item.CreatedAt
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal saved item: %w", err)
	}
	item.ID = id
	item.CreatedAt = created
	return &item, nil
}
