// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package history reads a repository's tag database: the named
// snapshots a publisher recorded, each pointing at the root catalog
// of that snapshot.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/cvmfs/lib/objectstore"
	"github.com/bureau-foundation/cvmfs/lib/sqlitepool"
)

// ErrNotFound is returned when no tag matches a query.
var ErrNotFound = errors.New("tag not found")

const tagColumns = "name, hash, revision, timestamp, channel, description"

// Tag is a named snapshot.
type Tag struct {
	Name        string
	Hash        objectstore.ContentHash // root catalog of the snapshot
	Revision    int64
	Timestamp   time.Time
	Channel     int64
	Description string
}

// History is an open tag database.
type History struct {
	pool   *sqlitepool.Pool
	schema string
	fqrn   string
}

// Open opens the history database at path read-only.
func Open(ctx context.Context, path string, logger *slog.Logger) (*History, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     path,
		PoolSize: 1,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}

	history := &History{pool: pool}
	if err := history.readProperties(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return history, nil
}

func (h *History) readProperties(ctx context.Context) error {
	conn, err := h.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer h.pool.Put(conn)

	err = sqlitex.Execute(conn, "SELECT key, value FROM properties", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			switch stmt.ColumnText(0) {
			case "schema":
				h.schema = stmt.ColumnText(1)
			case "fqrn":
				h.fqrn = stmt.ColumnText(1)
			}
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("reading history properties: %w", err)
	}
	return nil
}

// Schema returns the database schema version.
func (h *History) Schema() string { return h.schema }

// RepositoryName returns the fully qualified repository name the
// database belongs to.
func (h *History) RepositoryName() string { return h.fqrn }

// Close releases the database.
func (h *History) Close() error {
	return h.pool.Close()
}

// ListTags returns every tag, newest first.
func (h *History) ListTags(ctx context.Context) ([]Tag, error) {
	return h.query(ctx, "SELECT "+tagColumns+" FROM tags ORDER BY timestamp DESC")
}

// TagByName returns the tag called name.
func (h *History) TagByName(ctx context.Context, name string) (Tag, error) {
	return h.first(ctx, fmt.Sprintf("name %q", name),
		"SELECT "+tagColumns+" FROM tags WHERE name = ? LIMIT 1", name)
}

// TagByRevision returns the tag for a revision number.
func (h *History) TagByRevision(ctx context.Context, revision int64) (Tag, error) {
	return h.first(ctx, fmt.Sprintf("revision %d", revision),
		"SELECT "+tagColumns+" FROM tags WHERE revision = ? LIMIT 1", revision)
}

// TagByDate returns the earliest tag published strictly after when.
func (h *History) TagByDate(ctx context.Context, when time.Time) (Tag, error) {
	return h.first(ctx, fmt.Sprintf("after %s", when.UTC().Format(time.RFC3339)),
		"SELECT "+tagColumns+" FROM tags WHERE timestamp > ? ORDER BY timestamp ASC LIMIT 1", when.Unix())
}

func (h *History) first(ctx context.Context, description, query string, args ...any) (Tag, error) {
	tags, err := h.query(ctx, query, args...)
	if err != nil {
		return Tag{}, err
	}
	if len(tags) == 0 {
		return Tag{}, fmt.Errorf("%w: %s", ErrNotFound, description)
	}
	return tags[0], nil
}

func (h *History) query(ctx context.Context, query string, args ...any) ([]Tag, error) {
	conn, err := h.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer h.pool.Put(conn)

	var tags []Tag
	var rowErr error
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			hash, err := objectstore.ParseContentHash(stmt.ColumnText(1))
			if err != nil {
				rowErr = fmt.Errorf("tag %q: %w", stmt.ColumnText(0), err)
				return rowErr
			}
			tags = append(tags, Tag{
				Name:        stmt.ColumnText(0),
				Hash:        hash,
				Revision:    stmt.ColumnInt64(2),
				Timestamp:   time.Unix(stmt.ColumnInt64(3), 0).UTC(),
				Channel:     stmt.ColumnInt64(4),
				Description: stmt.ColumnText(5),
			})
			return nil
		},
	})
	if rowErr != nil {
		return nil, rowErr
	}
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	return tags, nil
}
