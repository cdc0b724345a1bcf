// Package store persists daily snapshots, saved items, roadmap progress and
// user profiles. DB is the PostgreSQL implementation; Memory keeps the same
// contract in process.
package store

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a concurrent writer won the race for a record.
	ErrConflict = errors.New("concurrent update conflict")
)

// DateLayout is the layout of snapshot dates.
const DateLayout = "2006-01-02"
