package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// kvRow is a single key-value entry.
type kvRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// GetValue returns the value stored under key and whether it exists.
func (s *SQLiteStore) GetValue(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM kv WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting value %q: %w", key, err)
	}
	return value, true, nil
}

// GetValues returns the subset of keys that are present.
func (s *SQLiteStore) GetValues(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In("SELECT key, value FROM kv WHERE key IN (?)", keys)
	if err != nil {
		return nil, fmt.Errorf("building values query: %w", err)
	}

	var rows []kvRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("querying values: %w", err)
	}
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// SetValues upserts all values in one transaction and bumps the revision.
func (s *SQLiteStore) SetValues(
	ctx context.Context,
	writer string,
	values map[string]string,
) (Revision, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Revision{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`)
	if err != nil {
		return Revision{}, fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	for key, value := range values {
		if _, err := stmt.ExecContext(ctx, key, value, now); err != nil {
			return Revision{}, fmt.Errorf("setting value %q: %w", key, err)
		}
	}

	rev, err := bumpRevision(ctx, tx, writer, now)
	if err != nil {
		return Revision{}, err
	}
	if err := tx.Commit(); err != nil {
		return Revision{}, fmt.Errorf("committing values: %w", err)
	}
	return rev, nil
}

// DeleteValues removes keys in one transaction and bumps the revision.
func (s *SQLiteStore) DeleteValues(
	ctx context.Context,
	writer string,
	keys ...string,
) (Revision, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Revision{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if len(keys) > 0 {
		query, args, err := sqlx.In("DELETE FROM kv WHERE key IN (?)", keys)
		if err != nil {
			return Revision{}, fmt.Errorf("building delete query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return Revision{}, fmt.Errorf("deleting values: %w", err)
		}
	}

	rev, err := bumpRevision(ctx, tx, writer, time.Now().UTC())
	if err != nil {
		return Revision{}, err
	}
	if err := tx.Commit(); err != nil {
		return Revision{}, fmt.Errorf("committing delete: %w", err)
	}
	return rev, nil
}

// Revision returns the current write revision.
func (s *SQLiteStore) Revision(ctx context.Context) (Revision, error) {
	var rev Revision
	err := s.db.GetContext(ctx, &rev,
		"SELECT revision, writer, updated_at FROM kv_meta WHERE id = 1")
	if err != nil {
		return Revision{}, fmt.Errorf("reading revision: %w", err)
	}
	return rev, nil
}

// bumpRevision increments the revision inside tx and records the writer.
func bumpRevision(ctx context.Context, tx *sqlx.Tx, writer string, now time.Time) (Revision, error) {
	_, err := tx.ExecContext(ctx,
		"UPDATE kv_meta SET revision = revision + 1, writer = ?, updated_at = ? WHERE id = 1",
		writer, now,
	)
	if err != nil {
		return Revision{}, fmt.Errorf("bumping revision: %w", err)
	}

	var rev Revision
	err = tx.GetContext(ctx, &rev,
		"SELECT revision, writer, updated_at FROM kv_meta WHERE id = 1")
	if err != nil {
		return Revision{}, fmt.Errorf("reading revision: %w", err)
	}
	return rev, nil
}
