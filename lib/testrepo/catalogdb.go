// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testrepo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/cvmfs/lib/catalog"
	"github.com/bureau-foundation/cvmfs/lib/objectstore"
	"github.com/bureau-foundation/cvmfs/lib/pathhash"
)

const catalogTable = `
CREATE TABLE catalog (
	md5path_1 INTEGER, md5path_2 INTEGER, parent_1 INTEGER, parent_2 INTEGER,
	hardlinks INTEGER, hash BLOB, size INTEGER, mode INTEGER, mtime INTEGER,
	flags INTEGER, name TEXT, symlink TEXT, uid INTEGER, gid INTEGER, xattr BLOB,
	CONSTRAINT pk_catalog PRIMARY KEY (md5path_1, md5path_2));
CREATE INDEX idx_catalog_parent ON catalog (parent_1, parent_2);
CREATE TABLE properties (key TEXT, value TEXT, CONSTRAINT pk_properties PRIMARY KEY (key));
`

const chunksTable = `
CREATE TABLE chunks (
	md5path_1 INTEGER, md5path_2 INTEGER, offset INTEGER, size INTEGER, hash BLOB,
	CONSTRAINT pk_chunks PRIMARY KEY (md5path_1, md5path_2, offset, size));
`

const statisticsTable = `
CREATE TABLE statistics (counter TEXT, value INTEGER, CONSTRAINT pk_statistics PRIMARY KEY (counter));
`

var counterNames = []string{"regular", "dir", "symlink", "file_size", "chunked", "chunks", "nested"}

// catalogRow is one catalog table row plus its chunks.
type catalogRow struct {
	path    string
	flags   catalog.Flags
	digest  []byte
	size    int64
	mode    uint32
	mtime   int64
	name    string
	symlink string
	chunks  []chunkRow
}

type chunkRow struct {
	offset int64
	size   int64
	digest []byte
}

type nestedRow struct {
	path string
	hash objectstore.ContentHash
	size int64
}

// writeCatalogs writes every catalog, deepest first, and returns the
// root catalog's database size.
func (b *Builder) writeCatalogs(repository *Repository, timestamp time.Time) int64 {
	schema := b.schemaVersion()
	paths := b.sortedPaths()

	sizes := make(map[string]int64)
	totals := make(map[string]map[string]int64)

	for _, mount := range b.mountsDeepestFirst() {
		var rows []catalogRow
		self := make(map[string]int64)

		for _, path := range paths {
			owner := b.ownerOf(path)
			isParentMountpoint := b.mountpoints[path] && path != mount && b.ownerOf(pathhash.Parent(path)) == mount
			if owner != mount && !isParentMountpoint {
				continue
			}

			row := b.buildRow(repository, path, timestamp.Unix())
			switch {
			case isParentMountpoint:
				row.flags |= catalog.FlagNestedCatalogMountpoint
			case path == mount && mount != "":
				row.flags |= catalog.FlagNestedCatalogRoot
			}
			if len(row.chunks) > 0 && schema < 2.4-1e-6 {
				b.t.Fatalf("testrepo: chunked file %s needs schema 2.4 or later", path)
			}
			rows = append(rows, row)

			if !isParentMountpoint {
				countRow(self, row)
			}
		}

		var nested []nestedRow
		subtree := make(map[string]int64)
		for child := range b.mountpoints {
			if child == mount || b.ownerOf(pathhash.Parent(child)) != mount {
				continue
			}
			nested = append(nested, nestedRow{path: child, hash: repository.Catalogs[child], size: sizes[child]})
			for _, name := range counterNames {
				subtree[name] += totals[child][name]
			}
		}
		sort.Slice(nested, func(i, j int) bool { return nested[i].path < nested[j].path })
		self["nested"] = int64(len(nested))

		total := make(map[string]int64)
		for _, name := range counterNames {
			total[name] = self[name] + subtree[name]
		}
		totals[mount] = total

		content := b.writeCatalogDatabase(mount, rows, nested, self, subtree, timestamp.Unix(), schema)
		sizes[mount] = int64(len(content))
		repository.Catalogs[mount] = b.storeObject(content, objectstore.KindCatalog)
	}
	return sizes[""]
}

func countRow(counters map[string]int64, row catalogRow) {
	switch {
	case row.flags&catalog.FlagDirectory != 0:
		counters["dir"]++
	case row.flags&catalog.FlagSymlink != 0:
		counters["symlink"]++
	case row.flags&catalog.FlagFile != 0:
		counters["regular"]++
		counters["file_size"] += row.size
		if len(row.chunks) > 0 {
			counters["chunked"]++
			counters["chunks"] += int64(len(row.chunks))
		}
	}
}

func (b *Builder) buildRow(repository *Repository, path string, defaultMtime int64) catalogRow {
	n := b.nodes[path]
	mtime := defaultMtime
	if !n.mtime.IsZero() {
		mtime = n.mtime.Unix()
	}

	row := catalogRow{
		path:  path,
		mtime: mtime,
		name:  baseName(path),
	}

	switch n.kind {
	case kindDirectory:
		row.flags = catalog.FlagDirectory
		row.mode = 0o040755
		row.size = 4096
	case kindSymlink:
		row.flags = catalog.FlagSymlink
		row.mode = 0o120777
		row.size = int64(len(n.target))
		row.symlink = n.target
	case kindFile:
		row.flags = catalog.FlagFile | catalog.FlagsForAlgorithm(b.options.Algorithm)
		row.mode = 0o100644
		row.size = int64(len(n.content))

		hash := b.hashOf(n.content)
		row.digest = hash.Digest
		repository.Files[path] = hash

		if n.chunkSize > 0 {
			row.flags |= catalog.FlagFileChunk
			for offset := 0; offset < len(n.content); offset += n.chunkSize {
				end := min(offset+n.chunkSize, len(n.content))
				chunkHash := b.storeObject(n.content[offset:end], objectstore.KindNone)
				row.chunks = append(row.chunks, chunkRow{
					offset: int64(offset),
					size:   int64(end - offset),
					digest: chunkHash.Digest,
				})
			}
		} else {
			b.storeObject(n.content, objectstore.KindNone)
		}
	}
	return row
}

func (b *Builder) hashOf(content []byte) objectstore.ContentHash {
	hasher := b.options.Algorithm.New()
	hasher.Write(content)
	return objectstore.ContentHash{Digest: hasher.Sum(nil), Algorithm: b.options.Algorithm}
}

func baseName(path string) string {
	if path == "" {
		return ""
	}
	return path[strings.LastIndexByte(path, '/')+1:]
}

// writeCatalogDatabase creates the SQLite file for one catalog and
// returns its bytes.
func (b *Builder) writeCatalogDatabase(mount string, rows []catalogRow, nested []nestedRow, self, subtree map[string]int64, lastModified int64, schema float64) []byte {
	path := filepath.Join(b.scratch, fmt.Sprintf("catalog-r%d-%s.db", b.revision, strings.ReplaceAll(strings.TrimPrefix(mount, "/"), "/", "_")))
	os.Remove(path)

	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate)
	if err != nil {
		b.t.Fatalf("testrepo: creating catalog %s: %v", path, err)
	}

	script := catalogTable
	if b.options.OmitNestedSize {
		script += "CREATE TABLE nested_catalogs (path TEXT, sha1 TEXT, CONSTRAINT pk_nested_catalogs PRIMARY KEY (path));\n"
	} else {
		script += "CREATE TABLE nested_catalogs (path TEXT, sha1 TEXT, size INTEGER, CONSTRAINT pk_nested_catalogs PRIMARY KEY (path));\n"
	}
	if schema >= 2.4-1e-6 {
		script += chunksTable
	}
	if schema >= 2.1-1e-6 {
		script += statisticsTable
	}

	b.exec(conn, "BEGIN")
	if err := sqlitex.ExecuteScript(conn, script, nil); err != nil {
		b.t.Fatalf("testrepo: creating catalog schema: %v", err)
	}

	for _, row := range rows {
		pathLo, pathHi := pathhash.Of(row.path).Signed()
		var parentLo, parentHi int64
		if row.path != "" {
			parentLo, parentHi = pathhash.Of(pathhash.Parent(row.path)).Signed()
		}
		var digest any
		if len(row.digest) > 0 {
			digest = row.digest
		}
		var symlink any
		if row.symlink != "" {
			symlink = row.symlink
		}
		b.exec(conn, `INSERT INTO catalog (md5path_1, md5path_2, parent_1, parent_2, hardlinks, hash, size, mode, mtime, flags, name, symlink, uid, gid)
			VALUES (?, ?, ?, ?, 1, ?, ?, ?, ?, ?, ?, ?, 0, 0)`,
			pathLo, pathHi, parentLo, parentHi, digest, row.size, int64(row.mode), row.mtime, int64(row.flags), row.name, symlink)

		for _, chunk := range row.chunks {
			b.exec(conn, "INSERT INTO chunks (md5path_1, md5path_2, offset, size, hash) VALUES (?, ?, ?, ?, ?)",
				pathLo, pathHi, chunk.offset, chunk.size, chunk.digest)
		}
	}

	for _, reference := range nested {
		if b.options.OmitNestedSize {
			b.exec(conn, "INSERT INTO nested_catalogs (path, sha1) VALUES (?, ?)", reference.path, reference.hash.String())
		} else {
			b.exec(conn, "INSERT INTO nested_catalogs (path, sha1, size) VALUES (?, ?, ?)", reference.path, reference.hash.String(), reference.size)
		}
	}

	rootPrefix := mount
	if rootPrefix == "" {
		rootPrefix = "/"
	}
	properties := [][2]string{
		{"revision", fmt.Sprint(b.revision)},
		{"schema", b.options.Schema},
		{"schema_revision", "2"},
		{"root_prefix", rootPrefix},
		{"last_modified", fmt.Sprint(lastModified)},
	}
	if mount == "" && !b.previous.IsZero() {
		properties = append(properties, [2]string{"previous_revision", b.previous.String()})
	}
	for _, property := range properties {
		b.exec(conn, "INSERT INTO properties (key, value) VALUES (?, ?)", property[0], property[1])
	}

	if schema >= 2.1-1e-6 {
		for _, name := range counterNames {
			b.exec(conn, "INSERT INTO statistics (counter, value) VALUES (?, ?)", "self_"+name, self[name])
			b.exec(conn, "INSERT INTO statistics (counter, value) VALUES (?, ?)", "subtree_"+name, subtree[name])
		}
	}
	b.exec(conn, "COMMIT")

	if err := conn.Close(); err != nil {
		b.t.Fatalf("testrepo: closing catalog: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		b.t.Fatalf("testrepo: reading catalog: %v", err)
	}
	return content
}

// historyDatabase builds the tag database for every tag so far.
func (b *Builder) historyDatabase() []byte {
	path := filepath.Join(b.scratch, fmt.Sprintf("history-r%d.db", b.revision))
	os.Remove(path)

	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate)
	if err != nil {
		b.t.Fatalf("testrepo: creating history: %v", err)
	}

	b.exec(conn, "BEGIN")
	err = sqlitex.ExecuteScript(conn, `
		CREATE TABLE properties (key TEXT, value TEXT, CONSTRAINT pk_properties PRIMARY KEY (key));
		CREATE TABLE tags (name TEXT, hash TEXT, revision INTEGER, timestamp INTEGER,
			channel INTEGER, description TEXT, CONSTRAINT pk_tags PRIMARY KEY (name));
	`, nil)
	if err != nil {
		b.t.Fatalf("testrepo: creating history schema: %v", err)
	}
	b.exec(conn, "INSERT INTO properties (key, value) VALUES ('schema', '1.0')")
	b.exec(conn, "INSERT INTO properties (key, value) VALUES ('fqrn', ?)", b.options.Name)
	for _, tag := range b.tags {
		b.exec(conn, "INSERT OR REPLACE INTO tags (name, hash, revision, timestamp, channel, description) VALUES (?, ?, ?, ?, ?, ?)",
			tag.name, tag.hash, tag.revision, tag.timestamp, tag.channel, tag.description)
	}
	b.exec(conn, "COMMIT")

	if err := conn.Close(); err != nil {
		b.t.Fatalf("testrepo: closing history: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		b.t.Fatalf("testrepo: reading history: %v", err)
	}
	return content
}

func (b *Builder) exec(conn *sqlite.Conn, query string, args ...any) {
	b.t.Helper()
	if err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: args}); err != nil {
		b.t.Fatalf("testrepo: %s: %v", strings.Fields(query)[0], err)
	}
}
