// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Config holds the parameters for [Open]. Path is required.
type Config struct {
	// Path is an existing database file.
	Path string

	// PoolSize is the number of connections. Defaults to 1, which is
	// what a single-goroutine catalog reader needs.
	PoolSize int

	// Logger receives open/close messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger

	// OnConnect runs once per connection after the pragmas. An error
	// discards the connection and is returned from Take.
	OnConnect func(conn *sqlite.Conn) error
}

// Pool is a fixed-size pool of read-only SQLite connections. It is
// safe for concurrent use; the connections it hands out are not.
type Pool struct {
	inner  *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// readPragmas tune every connection for lookups on an immutable file.
var readPragmas = []string{
	"PRAGMA query_only=ON",
	"PRAGMA busy_timeout=5000",
	"PRAGMA cache_size=-8192",
	"PRAGMA mmap_size=268435456",
	"PRAGMA temp_store=MEMORY",
}

// Open creates a pool over the database at cfg.Path. Connections open
// lazily on the first Take. The caller must call Close.
func Open(cfg Config) (*Pool, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlitepool: Path is required")
	}
	// A read-only open of a missing file only fails at the first
	// query.
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, fmt.Errorf("sqlitepool: opening %s: %w", cfg.Path, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	poolSize := max(cfg.PoolSize, 1)

	inner, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		Flags:    sqlite.OpenReadOnly | sqlite.OpenURI,
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			for _, pragma := range readPragmas {
				if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
					return fmt.Errorf("sqlitepool: %s: %w", pragma, err)
				}
			}
			if cfg.OnConnect != nil {
				if err := cfg.OnConnect(conn); err != nil {
					return fmt.Errorf("sqlitepool: OnConnect: %w", err)
				}
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: opening %s: %w", cfg.Path, err)
	}

	logger.Debug("sqlite pool opened", "path", cfg.Path, "pool_size", poolSize)
	return &Pool{inner: inner, logger: logger, path: cfg.Path}, nil
}

// Take borrows a connection, waiting until one is free or ctx is done.
// The caller must Put it back.
func (p *Pool) Take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: take: %w", err)
	}
	return conn, nil
}

// Put returns a connection to the pool. Safe to call with nil.
func (p *Pool) Put(conn *sqlite.Conn) {
	p.inner.Put(conn)
}

// Path returns the database file path.
func (p *Pool) Path() string {
	return p.path
}

// Close closes all connections, waiting for borrowed ones to be
// returned.
func (p *Pool) Close() error {
	if err := p.inner.Close(); err != nil {
		p.logger.Error("sqlite pool close failed", "path", p.path, "error", err)
		return fmt.Errorf("sqlitepool: closing %s: %w", p.path, err)
	}
	p.logger.Debug("sqlite pool closed", "path", p.path)
	return nil
}
