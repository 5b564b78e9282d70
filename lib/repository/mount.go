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

// mount is one entry of the mount table.
//
// A catalog handed out by [Repository.RetrieveCatalog] (and so by
// every lookup) is resident: it stays open until UnloadAll. Iterators
// instead pin the catalogs they walk; a catalog that is not resident
// is closed when its last pin is released.
type mount struct {
	catalog  *catalog.Catalog
	resident bool
	pins     int
}

// RetrieveCatalog returns the catalog with the given content hash,
// mounting it on first use. The handle stays valid until
// [Repository.UnloadAll] or [Repository.Close].
func (r *Repository) RetrieveCatalog(ctx context.Context, hash objectstore.ContentHash) (*catalog.Catalog, error) {
	entry, err := r.mountCatalog(ctx, hash)
	if err != nil {
		return nil, err
	}
	entry.resident = true
	return entry.catalog, nil
}

// RetrieveRootCatalog returns the root catalog of the current
// revision.
func (r *Repository) RetrieveRootCatalog(ctx context.Context) (*catalog.Catalog, error) {
	return r.RetrieveCatalog(ctx, r.manifest.RootCatalog)
}

func (r *Repository) mountCatalog(ctx context.Context, hash objectstore.ContentHash) (*mount, error) {
	key := hash.String()
	if entry, ok := r.catalogs[key]; ok {
		return entry, nil
	}

	path, err := r.store.Retrieve(ctx, hash, objectstore.KindCatalog)
	if err != nil {
		return nil, fmt.Errorf("retrieving catalog %s: %w", key, err)
	}
	opened, err := catalog.Open(ctx, catalog.Config{Path: path, Hash: hash, Logger: r.logger})
	if err != nil {
		return nil, err
	}

	entry := &mount{catalog: opened}
	r.catalogs[key] = entry
	r.logger.Info("catalog mounted",
		"hash", key,
		"mount", displayPath(opened.MountPath()),
		"revision", opened.Revision(),
	)
	return entry, nil
}

// pin mounts the catalog if needed and holds it open until the
// matching release.
func (r *Repository) pin(ctx context.Context, hash objectstore.ContentHash) (*catalog.Catalog, error) {
	entry, err := r.mountCatalog(ctx, hash)
	if err != nil {
		return nil, err
	}
	entry.pins++
	return entry.catalog, nil
}

// release drops one pin. A catalog nobody else retrieved is closed
// and unmounted with its last pin. Releasing a catalog that UnloadAll
// already closed is a no-op.
func (r *Repository) release(pinned *catalog.Catalog) error {
	key := pinned.Hash().String()
	entry, ok := r.catalogs[key]
	if !ok || entry.catalog != pinned {
		return nil
	}
	entry.pins--
	if entry.pins > 0 || entry.resident {
		return nil
	}

	delete(r.catalogs, key)
	if err := pinned.Close(); err != nil {
		return err
	}
	r.logger.Info("catalog unmounted",
		"hash", key,
		"mount", displayPath(pinned.MountPath()),
	)
	return nil
}

// MountedCatalog returns an already mounted catalog whose mount path
// is path, or nil. It never fetches.
func (r *Repository) MountedCatalog(path string) *catalog.Catalog {
	canonical := pathhash.Canonicalize(path)
	for _, entry := range r.catalogs {
		if entry.catalog.MountPath() == canonical {
			return entry.catalog
		}
	}
	return nil
}

// OpenCatalogCount returns the number of mounted catalogs.
func (r *Repository) OpenCatalogCount() int {
	return len(r.catalogs)
}

// UnloadAll closes every mounted catalog and empties the mount table.
// Catalogs are mounted again on demand. Handles retrieved earlier and
// iterators still running are invalidated.
func (r *Repository) UnloadAll() error {
	var errs []error
	for key, entry := range r.catalogs {
		if err := entry.catalog.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(r.catalogs, key)
	}
	return errors.Join(errs...)
}

// displayPath renders the canonical root as "/".
func displayPath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
