package store

import (
	"context"
	"time"
)

// Revision identifies the latest write to the key-value table and the
// client instance that made it.
type Revision struct {
	Number    int64      `db:"revision"`
	Writer    string     `db:"writer"`
	UpdatedAt *time.Time `db:"updated_at"`
}

// Store defines the persistence interface for the client's local state:
// the shared session and user preferences.
type Store interface {
	// GetValue returns the value stored under key and whether it exists.
	GetValue(ctx context.Context, key string) (string, bool, error)

	// GetValues returns the subset of keys that are present.
	GetValues(ctx context.Context, keys ...string) (map[string]string, error)

	// SetValues upserts all values in one transaction and bumps the revision.
	SetValues(ctx context.Context, writer string, values map[string]string) (Revision, error)

	// DeleteValues removes keys in one transaction and bumps the revision.
	DeleteValues(ctx context.Context, writer string, keys ...string) (Revision, error)

	// Revision returns the current write revision.
	Revision(ctx context.Context) (Revision, error)
}
