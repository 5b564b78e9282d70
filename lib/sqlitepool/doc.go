// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the read-only SQLite connection pool
// shared by the catalog and history readers.
//
// Catalogs and history databases are immutable, content-addressed
// files in the object cache. Connections are opened with
// SQLITE_OPEN_READONLY and query_only=ON, so nothing writes a journal,
// a WAL file, or the database header. Each connection gets an 8 MB
// page cache, 256 MB of memory-mapped I/O and in-memory temp storage.
//
// Callers [Pool.Take] a connection, run statements with sqlitex, and
// [Pool.Put] it back:
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{Path: catalogPath, Logger: logger})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
package sqlitepool
