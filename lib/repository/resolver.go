// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/cvmfs/lib/catalog"
	"github.com/bureau-foundation/cvmfs/lib/objectstore"
	"github.com/bureau-foundation/cvmfs/lib/pathhash"
)

// resolver answers path queries for the catalog tree rooted at one
// root catalog hash. The current revision and every [Revision] have
// their own resolver over the shared mount table.
type resolver struct {
	repository *Repository
	root       objectstore.ContentHash
}

func (rv resolver) rootCatalog(ctx context.Context) (*catalog.Catalog, error) {
	return rv.repository.RetrieveCatalog(ctx, rv.root)
}

// descend follows nested references from current for as long as one
// covers path, and returns the deepest catalog reached.
func (rv resolver) descend(ctx context.Context, current *catalog.Catalog, path string) (*catalog.Catalog, error) {
	visited := map[string]bool{current.Hash().String(): true}
	for {
		reference, found, err := current.FindNestedForPath(ctx, path)
		if err != nil {
			return nil, err
		}
		if !found {
			return current, nil
		}

		key := reference.Hash.String()
		if visited[key] {
			return nil, fmt.Errorf("%w: %s references %s again", ErrCatalogCycle, displayPath(reference.MountPath), key)
		}
		visited[key] = true

		current, err = rv.repository.RetrieveCatalog(ctx, reference.Hash)
		if err != nil {
			return nil, fmt.Errorf("descending into %s: %w", displayPath(reference.MountPath), err)
		}
	}
}

// resolvePath returns the catalog that owns path.
func (rv resolver) resolvePath(ctx context.Context, path string) (*catalog.Catalog, error) {
	root, err := rv.rootCatalog(ctx)
	if err != nil {
		return nil, err
	}
	return rv.descend(ctx, root, pathhash.Canonicalize(path))
}

// lookup resolves path one component at a time. At every prefix the
// owning catalog is found again, starting from the previous prefix's
// owner, because a nested catalog may be mounted at any ancestor.
func (rv resolver) lookup(ctx context.Context, path string) (catalog.DirectoryEntry, bool, error) {
	current, err := rv.rootCatalog(ctx)
	if err != nil {
		return catalog.DirectoryEntry{}, false, err
	}

	var entry catalog.DirectoryEntry
	for _, prefix := range pathhash.Prefixes(path) {
		current, err = rv.descend(ctx, current, prefix)
		if err != nil {
			return catalog.DirectoryEntry{}, false, err
		}
		entry, err = current.FindPath(ctx, prefix)
		if errors.Is(err, catalog.ErrNotFound) {
			return catalog.DirectoryEntry{}, false, nil
		}
		if err != nil {
			return catalog.DirectoryEntry{}, false, err
		}
	}
	return entry, true, nil
}

// listDirectory lists path, or reports found=false if path is absent
// or not a directory.
func (rv resolver) listDirectory(ctx context.Context, path string) ([]catalog.DirectoryEntry, bool, error) {
	canonical := pathhash.Canonicalize(path)
	entry, found, err := rv.lookup(ctx, canonical)
	if err != nil || !found || !entry.IsDirectory() {
		return nil, false, err
	}

	owner, err := rv.resolvePath(ctx, canonical)
	if err != nil {
		return nil, false, err
	}
	if entry.IsNestedCatalogMountpoint() && owner.MountPath() != canonical {
		reference, found, err := owner.FindNestedForPath(ctx, canonical)
		if err != nil {
			return nil, false, err
		}
		if !found || reference.MountPath != canonical {
			return nil, false, fmt.Errorf("%w: mountpoint %s", ErrNestedCatalogNotFound, displayPath(canonical))
		}
		if owner, err = rv.repository.RetrieveCatalog(ctx, reference.Hash); err != nil {
			return nil, false, err
		}
	}

	entries, err := owner.ListPath(ctx, canonical)
	if err != nil {
		return nil, false, err
	}
	if len(entries) > 0 {
		return entries, true, nil
	}

	// An empty listing may still mean the children live in a nested
	// catalog mounted exactly here.
	reference, found, err := owner.FindNestedForPath(ctx, canonical)
	if err != nil || !found || reference.MountPath != canonical {
		return entries, true, err
	}
	nested, err := rv.repository.RetrieveCatalog(ctx, reference.Hash)
	if err != nil {
		return nil, false, err
	}
	entries, err = nested.ListPath(ctx, canonical)
	if err != nil {
		return nil, false, err
	}
	return entries, true, nil
}

// getFile returns a local path holding the verified content of the
// regular file at path. Chunked files are reassembled in the cache.
func (rv resolver) getFile(ctx context.Context, path string) (string, error) {
	entry, found, err := rv.lookup(ctx, path)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("%w: %s", ErrNotFound, displayPath(pathhash.Canonicalize(path)))
	}
	if !entry.IsFile() {
		return "", fmt.Errorf("%w: %s", ErrNotFile, displayPath(pathhash.Canonicalize(path)))
	}

	if !entry.HasChunks() {
		return rv.repository.store.Retrieve(ctx, entry.ContentHash, objectstore.KindNone)
	}

	parts := make([]objectstore.ContentHash, len(entry.Chunks))
	var next int64
	for i, chunk := range entry.Chunks {
		if chunk.Offset != next {
			return "", fmt.Errorf("%w: %s: chunk %d starts at %d, expected %d",
				catalog.ErrInvalidCatalog, displayPath(pathhash.Canonicalize(path)), i, chunk.Offset, next)
		}
		next += chunk.Size
		parts[i] = chunk.ContentHash
	}
	if next != entry.Size {
		return "", fmt.Errorf("%w: %s: chunks cover %d bytes of %d",
			catalog.ErrInvalidCatalog, displayPath(pathhash.Canonicalize(path)), next, entry.Size)
	}
	return rv.repository.store.Assemble(ctx, entry.ContentHash, parts)
}

// catalogTree mounts every catalog reachable from the root and
// returns them in depth-first order.
func (rv resolver) catalogTree(ctx context.Context) ([]*catalog.Catalog, error) {
	root, err := rv.rootCatalog(ctx)
	if err != nil {
		return nil, err
	}

	visited := make(map[string]bool)
	var catalogs []*catalog.Catalog
	var walk func(current *catalog.Catalog) error
	walk = func(current *catalog.Catalog) error {
		key := current.Hash().String()
		if visited[key] {
			return fmt.Errorf("%w: catalog %s reached twice", ErrCatalogCycle, key)
		}
		visited[key] = true
		catalogs = append(catalogs, current)

		references, err := current.ListNestedReferences(ctx)
		if err != nil {
			return err
		}
		for _, reference := range references {
			nested, err := rv.repository.RetrieveCatalog(ctx, reference.Hash)
			if err != nil {
				return fmt.Errorf("retrieving nested catalog %s: %w", displayPath(reference.MountPath), err)
			}
			if err := walk(nested); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(root); err != nil {
		return nil, err
	}
	return catalogs, nil
}

// Lookup returns the entry at path in the current revision.
func (r *Repository) Lookup(ctx context.Context, path string) (catalog.DirectoryEntry, bool, error) {
	return r.current().lookup(ctx, path)
}

// ListDirectory lists path in the current revision, ordered by name.
// found is false if path does not exist or is not a directory.
func (r *Repository) ListDirectory(ctx context.Context, path string) ([]catalog.DirectoryEntry, bool, error) {
	return r.current().listDirectory(ctx, path)
}

// ResolvePath returns the mounted catalog that owns path.
func (r *Repository) ResolvePath(ctx context.Context, path string) (*catalog.Catalog, error) {
	return r.current().resolvePath(ctx, path)
}

// GetFile returns a local file holding the content at path. It
// fails with [ErrNotFound] or [ErrNotFile].
func (r *Repository) GetFile(ctx context.Context, path string) (string, error) {
	return r.current().getFile(ctx, path)
}

// RetrieveCatalogTree mounts every catalog of the current revision.
func (r *Repository) RetrieveCatalogTree(ctx context.Context) ([]*catalog.Catalog, error) {
	return r.current().catalogTree(ctx)
}

// Iterate starts a depth-first walk of the current revision.
func (r *Repository) Iterate(ctx context.Context) (*TreeIterator, error) {
	return newTreeIterator(ctx, r.current())
}

func (r *Repository) current() resolver {
	return resolver{repository: r, root: r.manifest.RootCatalog}
}
