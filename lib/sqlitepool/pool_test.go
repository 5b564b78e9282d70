// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/cvmfs/lib/sqlitepool"
)

const propertiesScript = `
	CREATE TABLE properties (key TEXT, value TEXT);
	INSERT INTO properties VALUES ('revision', '7');
`

func TestReadsAndRejectsWrites(t *testing.T) {
	path := writeDatabase(t, propertiesScript)
	pool := openTestPool(t, sqlitepool.Config{Path: path})

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	if got := queryRevision(t, conn); got != "7" {
		t.Errorf("revision = %q, want 7", got)
	}
	if err := sqlitex.Execute(conn, "INSERT INTO properties VALUES ('x', 'y')", nil); err == nil {
		t.Error("INSERT on a read-only pool succeeded")
	}
}

func TestLeavesNoJournal(t *testing.T) {
	path := writeDatabase(t, propertiesScript)
	pool := openTestPool(t, sqlitepool.Config{Path: path})

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	queryRevision(t, conn)
	pool.Put(conn)

	for _, suffix := range []string{"-wal", "-shm", "-journal"} {
		if _, err := os.Stat(path + suffix); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("%s exists after reading: %v", suffix, err)
		}
	}
}

func TestMissingFile(t *testing.T) {
	_, err := sqlitepool.Open(sqlitepool.Config{Path: filepath.Join(t.TempDir(), "absent.db")})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected a not-exist error, got %v", err)
	}
}

func TestEmptyPathRejected(t *testing.T) {
	if _, err := sqlitepool.Open(sqlitepool.Config{}); err == nil {
		t.Fatal("expected error for empty Path")
	}
}

func TestOnConnect(t *testing.T) {
	path := writeDatabase(t, propertiesScript)
	calls := 0
	pool := openTestPool(t, sqlitepool.Config{
		Path: path,
		OnConnect: func(conn *sqlite.Conn) error {
			calls++
			return nil
		},
	})

	for range 3 {
		conn, err := pool.Take(context.Background())
		if err != nil {
			t.Fatalf("Take: %v", err)
		}
		pool.Put(conn)
	}
	if calls != 1 {
		t.Errorf("OnConnect ran %d times for one connection", calls)
	}
}

func TestOnConnectFailure(t *testing.T) {
	path := writeDatabase(t, propertiesScript)
	pool := openTestPool(t, sqlitepool.Config{
		Path:      path,
		OnConnect: func(*sqlite.Conn) error { return errors.New("schema too old") },
	})
	if _, err := pool.Take(context.Background()); err == nil {
		t.Fatal("Take succeeded although OnConnect failed")
	}
}

func TestContextCancellation(t *testing.T) {
	pool := openTestPool(t, sqlitepool.Config{Path: writeDatabase(t, propertiesScript), PoolSize: 1})

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pool.Take(ctx); err == nil {
		t.Fatal("expected error from cancelled context on an exhausted pool")
	}
}

func openTestPool(t *testing.T, cfg sqlitepool.Config) *sqlitepool.Pool {
	t.Helper()
	pool, err := sqlitepool.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return pool
}

func writeDatabase(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate)
	if err != nil {
		t.Fatalf("OpenConn: %v", err)
	}
	defer conn.Close()
	if err := sqlitex.ExecuteScript(conn, script, nil); err != nil {
		t.Fatalf("ExecuteScript: %v", err)
	}
	return path
}

func queryRevision(t *testing.T, conn *sqlite.Conn) string {
	t.Helper()
	var revision string
	err := sqlitex.Execute(conn, "SELECT value FROM properties WHERE key = ?", &sqlitex.ExecOptions{
		Args: []any{"revision"},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			revision = stmt.ColumnText(0)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("SELECT: %v", err)
	}
	return revision
}
