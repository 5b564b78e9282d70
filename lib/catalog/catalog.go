// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/cvmfs/lib/objectstore"
	"github.com/bureau-foundation/cvmfs/lib/pathhash"
	"github.com/bureau-foundation/cvmfs/lib/sqlitepool"
)

// Schema versions that gate optional tables.
const (
	chunksSchema     = 2.4
	statisticsSchema = 2.1

	// schemaEpsilon absorbs float rounding of schema strings such as
	// "2.4".
	schemaEpsilon = 1e-6
)

const entryColumns = "md5path_1, md5path_2, parent_1, parent_2, hash, flags, size, mode, mtime, name, symlink"

const (
	listQuery   = "SELECT " + entryColumns + " FROM catalog WHERE parent_1 = ? AND parent_2 = ? ORDER BY name ASC"
	findQuery   = "SELECT " + entryColumns + " FROM catalog WHERE md5path_1 = ? AND md5path_2 = ? LIMIT 1"
	chunksQuery = "SELECT offset, size, hash FROM chunks WHERE md5path_1 = ? AND md5path_2 = ? ORDER BY offset ASC"
)

// Config holds the parameters for [Open].
type Config struct {
	// Path is the decompressed catalog database.
	Path string

	// Hash is the catalog's content hash, recorded for callers that
	// key catalogs by it.
	Hash objectstore.ContentHash

	// Logger receives open/close messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// Properties are the catalog-wide values from the properties table.
type Properties struct {
	Schema           float64
	SchemaRevision   int64
	Revision         int64
	RootPrefix       string // "/" for the repository root catalog
	LastModified     time.Time
	PreviousRevision string // content hash of the previous revision, if recorded
}

// Catalog is an open catalog database. It is not safe for concurrent
// use.
type Catalog struct {
	pool       *sqlitepool.Pool
	hash       objectstore.ContentHash
	logger     *slog.Logger
	properties Properties

	// nestedHasSize records whether nested_catalogs has a size
	// column.
	nestedHasSize bool
	closed        bool
}

// Open opens the catalog database at cfg.Path read-only and reads its
// properties. A database without a revision or schema is rejected
// with [ErrInvalidCatalog].
func Open(ctx context.Context, cfg Config) (*Catalog, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: 1,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening catalog %s: %w", cfg.Hash, err)
	}

	catalog := &Catalog{pool: pool, hash: cfg.Hash, logger: logger}
	if err := catalog.load(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("opening catalog %s: %w", cfg.Hash, err)
	}

	logger.Debug("catalog opened",
		"hash", cfg.Hash.String(),
		"root_prefix", catalog.properties.RootPrefix,
		"revision", catalog.properties.Revision,
		"schema", catalog.properties.Schema,
	)
	return catalog, nil
}

func (c *Catalog) load(ctx context.Context) error {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer c.pool.Put(conn)

	raw := make(map[string]string)
	err = sqlitex.Execute(conn, "SELECT key, value FROM properties", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			raw[stmt.ColumnText(0)] = stmt.ColumnText(1)
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("%w: reading properties: %w", ErrInvalidCatalog, err)
	}

	properties, err := parseProperties(raw)
	if err != nil {
		return err
	}
	c.properties = properties

	err = sqlitex.Execute(conn, "PRAGMA table_info(nested_catalogs)", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			if stmt.ColumnText(1) == "size" {
				c.nestedHasSize = true
			}
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("%w: inspecting nested_catalogs: %w", ErrInvalidCatalog, err)
	}
	return nil
}

func parseProperties(raw map[string]string) (Properties, error) {
	properties := Properties{
		RootPrefix:   "/",
		LastModified: time.Unix(0, 0).UTC(),
	}

	var err error
	value, ok := raw["schema"]
	if !ok {
		return Properties{}, fmt.Errorf("%w: no schema property", ErrInvalidCatalog)
	}
	if properties.Schema, err = strconv.ParseFloat(value, 64); err != nil || properties.Schema == 0 {
		return Properties{}, fmt.Errorf("%w: schema %q", ErrInvalidCatalog, value)
	}

	value, ok = raw["revision"]
	if !ok {
		return Properties{}, fmt.Errorf("%w: no revision property", ErrInvalidCatalog)
	}
	if properties.Revision, err = strconv.ParseInt(value, 10, 64); err != nil || properties.Revision == 0 {
		return Properties{}, fmt.Errorf("%w: revision %q", ErrInvalidCatalog, value)
	}

	if value, ok := raw["schema_revision"]; ok {
		if properties.SchemaRevision, err = strconv.ParseInt(value, 10, 64); err != nil {
			return Properties{}, fmt.Errorf("%w: schema_revision %q", ErrInvalidCatalog, value)
		}
	}
	if value, ok := raw["root_prefix"]; ok && value != "" {
		properties.RootPrefix = value
	}
	if value, ok := raw["last_modified"]; ok {
		seconds, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return Properties{}, fmt.Errorf("%w: last_modified %q", ErrInvalidCatalog, value)
		}
		properties.LastModified = time.Unix(seconds, 0).UTC()
	}
	properties.PreviousRevision = raw["previous_revision"]

	return properties, nil
}

// Hash returns the catalog's content hash.
func (c *Catalog) Hash() objectstore.ContentHash { return c.hash }

// Properties returns the catalog-wide properties.
func (c *Catalog) Properties() Properties { return c.properties }

// Revision returns the catalog revision number.
func (c *Catalog) Revision() int64 { return c.properties.Revision }

// MountPath returns the canonical path the catalog covers: "" for the
// repository root, otherwise e.g. "/sub".
func (c *Catalog) MountPath() string {
	return pathhash.Canonicalize(c.properties.RootPrefix)
}

// IsRoot reports whether this is the repository's root catalog.
func (c *Catalog) IsRoot() bool {
	return c.MountPath() == ""
}

// Close releases the database. It is safe to call more than once.
func (c *Catalog) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.pool.Close(); err != nil {
		return fmt.Errorf("closing catalog %s: %w", c.hash, err)
	}
	c.logger.Debug("catalog closed", "hash", c.hash.String())
	return nil
}

// ListDirectory returns the children of the directory whose path hash
// is parent, ordered by name. An empty result does not distinguish an
// empty directory from an absent one.
func (c *Catalog) ListDirectory(ctx context.Context, parent pathhash.Hash) ([]DirectoryEntry, error) {
	conn, err := c.take(ctx)
	if err != nil {
		return nil, err
	}
	defer c.pool.Put(conn)

	lo, hi := parent.Signed()
	var entries []DirectoryEntry
	var rowErr error
	err = sqlitex.Execute(conn, listQuery, &sqlitex.ExecOptions{
		Args: []any{lo, hi},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			entry, err := scanEntry(stmt)
			if err != nil {
				rowErr = err
				return err
			}
			entries = append(entries, entry)
			return nil
		},
	})
	if rowErr != nil {
		return nil, rowErr
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s in catalog %s: %w", parent, c.hash, err)
	}

	for i := range entries {
		if err := c.loadChunks(conn, &entries[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// ListPath lists the directory at path.
func (c *Catalog) ListPath(ctx context.Context, path string) ([]DirectoryEntry, error) {
	return c.ListDirectory(ctx, pathhash.Of(path))
}

// FindEntry returns the entry with the given path hash, or
// [ErrNotFound].
func (c *Catalog) FindEntry(ctx context.Context, hash pathhash.Hash) (DirectoryEntry, error) {
	conn, err := c.take(ctx)
	if err != nil {
		return DirectoryEntry{}, err
	}
	defer c.pool.Put(conn)

	lo, hi := hash.Signed()
	var entry DirectoryEntry
	var found bool
	var rowErr error
	err = sqlitex.Execute(conn, findQuery, &sqlitex.ExecOptions{
		Args: []any{lo, hi},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			entry, rowErr = scanEntry(stmt)
			found = rowErr == nil
			return rowErr
		},
	})
	if rowErr != nil {
		return DirectoryEntry{}, rowErr
	}
	if err != nil {
		return DirectoryEntry{}, fmt.Errorf("finding %s in catalog %s: %w", hash, c.hash, err)
	}
	if !found {
		return DirectoryEntry{}, fmt.Errorf("%w: %s in catalog %s", ErrNotFound, hash, c.hash)
	}

	if err := c.loadChunks(conn, &entry); err != nil {
		return DirectoryEntry{}, err
	}
	return entry, nil
}

// FindPath returns the entry at path, or [ErrNotFound].
func (c *Catalog) FindPath(ctx context.Context, path string) (DirectoryEntry, error) {
	entry, err := c.FindEntry(ctx, pathhash.Of(path))
	if err != nil {
		return DirectoryEntry{}, fmt.Errorf("%q: %w", pathhash.Canonicalize(path), err)
	}
	return entry, nil
}

// ListNestedReferences returns the catalogs mounted below this one.
func (c *Catalog) ListNestedReferences(ctx context.Context) ([]Reference, error) {
	conn, err := c.take(ctx)
	if err != nil {
		return nil, err
	}
	defer c.pool.Put(conn)

	query := "SELECT path, sha1 FROM nested_catalogs"
	if c.nestedHasSize {
		query = "SELECT path, sha1, size FROM nested_catalogs"
	}

	var references []Reference
	var rowErr error
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			hash, err := objectstore.ParseContentHash(stmt.ColumnText(1))
			if err != nil {
				rowErr = fmt.Errorf("%w: nested catalog %q: %w", ErrInvalidCatalog, stmt.ColumnText(0), err)
				return rowErr
			}
			reference := Reference{
				MountPath: pathhash.Canonicalize(stmt.ColumnText(0)),
				Hash:      hash,
			}
			if c.nestedHasSize {
				reference.Size = stmt.ColumnInt64(2)
			}
			references = append(references, reference)
			return nil
		},
	})
	if rowErr != nil {
		return nil, rowErr
	}
	if err != nil {
		return nil, fmt.Errorf("listing nested catalogs of %s: %w", c.hash, err)
	}
	return references, nil
}

// FindNestedForPath returns the nested catalog whose mountpoint is
// the longest prefix of path on a path-component boundary: a
// mountpoint "/foo" covers "/foo" and "/foo/bar" but not "/foobar".
func (c *Catalog) FindNestedForPath(ctx context.Context, path string) (Reference, bool, error) {
	references, err := c.ListNestedReferences(ctx)
	if err != nil {
		return Reference{}, false, err
	}
	reference, ok := LongestMountpoint(references, path)
	return reference, ok, nil
}

// LongestMountpoint picks the reference whose mountpoint covers path
// with the most specific match.
func LongestMountpoint(references []Reference, path string) (Reference, bool) {
	needle := pathhash.Canonicalize(path)

	var best Reference
	found := false
	for _, reference := range references {
		mount := reference.MountPath
		if mount == "" || !covers(mount, needle) {
			continue
		}
		if !found || len(mount) > len(best.MountPath) {
			best = reference
			found = true
		}
	}
	return best, found
}

func covers(mount, needle string) bool {
	return needle == mount || strings.HasPrefix(needle, mount+"/")
}

// NestedCount returns the number of nested catalog references.
func (c *Catalog) NestedCount(ctx context.Context) (int, error) {
	conn, err := c.take(ctx)
	if err != nil {
		return 0, err
	}
	defer c.pool.Put(conn)

	var count int
	err = sqlitex.Execute(conn, "SELECT count(*) FROM nested_catalogs", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("counting nested catalogs of %s: %w", c.hash, err)
	}
	return count, nil
}

// HasNested reports whether any catalog is mounted below this one.
func (c *Catalog) HasNested(ctx context.Context) (bool, error) {
	count, err := c.NestedCount(ctx)
	return count > 0, err
}

func (c *Catalog) take(ctx context.Context) (*sqlite.Conn, error) {
	if c.closed {
		return nil, fmt.Errorf("%w: %s", ErrClosed, c.hash)
	}
	return c.pool.Take(ctx)
}

func (c *Catalog) schemaAtLeast(version float64) bool {
	return c.properties.Schema >= version-schemaEpsilon
}

// loadChunks fills entry.Chunks for chunked files in catalogs that
// have a chunks table.
func (c *Catalog) loadChunks(conn *sqlite.Conn, entry *DirectoryEntry) error {
	if !c.schemaAtLeast(chunksSchema) || !entry.IsFile() {
		return nil
	}

	algorithm := entry.HashAlgorithm()
	lo, hi := entry.PathHash.Signed()
	var rowErr error
	err := sqlitex.Execute(conn, chunksQuery, &sqlitex.ExecOptions{
		Args: []any{lo, hi},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			hash, err := columnHash(stmt, 2, algorithm)
			if err != nil {
				rowErr = fmt.Errorf("%w: chunk of %q: %w", ErrInvalidCatalog, entry.Name, err)
				return rowErr
			}
			entry.Chunks = append(entry.Chunks, Chunk{
				Offset:      stmt.ColumnInt64(0),
				Size:        stmt.ColumnInt64(1),
				ContentHash: hash,
			})
			return nil
		},
	})
	if rowErr != nil {
		return rowErr
	}
	if err != nil {
		return fmt.Errorf("reading chunks of %q: %w", entry.Name, err)
	}
	return nil
}

func scanEntry(stmt *sqlite.Stmt) (DirectoryEntry, error) {
	entry := DirectoryEntry{
		PathHash:   pathhash.FromSigned(stmt.ColumnInt64(0), stmt.ColumnInt64(1)),
		ParentHash: pathhash.FromSigned(stmt.ColumnInt64(2), stmt.ColumnInt64(3)),
		Flags:      Flags(stmt.ColumnInt64(5)),
		Size:       stmt.ColumnInt64(6),
		Mode:       uint32(stmt.ColumnInt64(7)),
		Mtime:      time.Unix(stmt.ColumnInt64(8), 0).UTC(),
		Name:       stmt.ColumnText(9),
		Symlink:    stmt.ColumnText(10),
	}

	hash, err := columnHash(stmt, 4, entry.Flags.HashAlgorithm())
	if err != nil {
		return DirectoryEntry{}, fmt.Errorf("%w: entry %q: %w", ErrInvalidCatalog, entry.Name, err)
	}
	entry.ContentHash = hash
	return entry, nil
}

// columnHash reads a raw digest column. NULL and empty blobs yield a
// zero hash.
func columnHash(stmt *sqlite.Stmt, column int, algorithm objectstore.Algorithm) (objectstore.ContentHash, error) {
	if stmt.ColumnType(column) == sqlite.TypeNull {
		return objectstore.ContentHash{}, nil
	}
	length := stmt.ColumnLen(column)
	if length == 0 {
		return objectstore.ContentHash{}, nil
	}
	digest := make([]byte, length)
	stmt.ColumnBytes(column, digest)
	return objectstore.NewContentHash(digest, algorithm)
}
