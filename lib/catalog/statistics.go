// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Statistics are the entry counters a catalog keeps for itself and
// for the subtree of catalogs below it. Counters are keyed without
// their table prefix: "regular" is this catalog's own count and
// "all_regular" the count including every nested catalog.
type Statistics struct {
	counters map[string]int64
}

// Statistics reads the statistics table. Catalogs older than schema
// 2.1 have none and return empty statistics.
func (c *Catalog) Statistics(ctx context.Context) (*Statistics, error) {
	statistics := &Statistics{counters: make(map[string]int64)}
	if !c.schemaAtLeast(statisticsSchema) {
		return statistics, nil
	}

	conn, err := c.take(ctx)
	if err != nil {
		return nil, err
	}
	defer c.pool.Put(conn)

	self := make(map[string]int64)
	subtree := make(map[string]int64)
	err = sqlitex.Execute(conn, "SELECT counter, value FROM statistics ORDER BY counter", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			name := stmt.ColumnText(0)
			value := stmt.ColumnInt64(1)
			if counter, ok := strings.CutPrefix(name, "self_"); ok {
				self[counter] = value
			} else if counter, ok := strings.CutPrefix(name, "subtree_"); ok {
				subtree[counter] = value
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("reading statistics of %s: %w", c.hash, err)
	}

	for counter, value := range self {
		statistics.counters[counter] = value
	}
	for counter, value := range subtree {
		statistics.counters["all_"+counter] = value + self[counter]
	}
	return statistics, nil
}

// Counter returns a named counter, e.g. "dir" or "all_file_size".
func (s *Statistics) Counter(name string) (int64, error) {
	value, ok := s.counters[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrCounterNotFound, name)
	}
	return value, nil
}

// Names returns the available counter names, sorted.
func (s *Statistics) Names() []string {
	names := make([]string, 0, len(s.counters))
	for name := range s.counters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries is the number of regular files, directories and symlinks
// in this catalog.
func (s *Statistics) Entries() int64 {
	return s.counters["regular"] + s.counters["dir"] + s.counters["symlink"]
}

// SubtreeEntries is Entries including nested catalogs.
func (s *Statistics) SubtreeEntries() int64 {
	return s.counters["all_regular"] + s.counters["all_dir"] + s.counters["all_symlink"]
}

func (s *Statistics) ChunkedFiles() int64        { return s.counters["chunked"] }
func (s *Statistics) SubtreeChunkedFiles() int64 { return s.counters["all_chunked"] }
func (s *Statistics) FileChunks() int64          { return s.counters["chunks"] }
func (s *Statistics) SubtreeFileChunks() int64   { return s.counters["all_chunks"] }
func (s *Statistics) DataSize() int64            { return s.counters["file_size"] }
func (s *Statistics) SubtreeDataSize() int64     { return s.counters["all_file_size"] }
