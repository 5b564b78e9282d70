// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bureau-foundation/cvmfs/lib/catalog"
	"github.com/bureau-foundation/cvmfs/lib/history"
	"github.com/bureau-foundation/cvmfs/lib/objectstore"
)

// History opens the repository's tag database. The database stays
// open until [Repository.Close].
func (r *Repository) History(ctx context.Context) (*history.History, error) {
	if r.history != nil {
		return r.history, nil
	}
	if !r.manifest.HasHistory() {
		return nil, fmt.Errorf("%w: %s", ErrNoHistory, r.manifest.RepositoryName)
	}

	path, err := r.store.Retrieve(ctx, r.manifest.HistoryDatabase, objectstore.KindHistory)
	if err != nil {
		return nil, fmt.Errorf("retrieving history: %w", err)
	}
	opened, err := history.Open(ctx, path, r.logger)
	if err != nil {
		return nil, err
	}
	r.history = opened
	return opened, nil
}

// Tags lists every tag, newest first.
func (r *Repository) Tags(ctx context.Context) ([]history.Tag, error) {
	database, err := r.History(ctx)
	if err != nil {
		return nil, err
	}
	return database.ListTags(ctx)
}

// Revision returns the snapshot tagged name.
func (r *Repository) Revision(ctx context.Context, name string) (*Revision, error) {
	return r.revision(ctx, func(database *history.History) (history.Tag, error) {
		return database.TagByName(ctx, name)
	})
}

// RevisionByNumber returns the tagged snapshot with revision number
// number.
func (r *Repository) RevisionByNumber(ctx context.Context, number int64) (*Revision, error) {
	return r.revision(ctx, func(database *history.History) (history.Tag, error) {
		return database.TagByRevision(ctx, number)
	})
}

// RevisionByDate returns the first tagged snapshot published after
// when.
func (r *Repository) RevisionByDate(ctx context.Context, when time.Time) (*Revision, error) {
	return r.revision(ctx, func(database *history.History) (history.Tag, error) {
		return database.TagByDate(ctx, when)
	})
}

func (r *Repository) revision(ctx context.Context, find func(*history.History) (history.Tag, error)) (*Revision, error) {
	database, err := r.History(ctx)
	if err != nil {
		return nil, err
	}
	tag, err := find(database)
	if err != nil {
		return nil, err
	}
	return &Revision{tag: tag, resolver: resolver{repository: r, root: tag.Hash}}, nil
}

// Revision is a tagged snapshot of the repository. It answers the
// same queries as the Repository, against the snapshot's root
// catalog, and shares the Repository's mount table.
type Revision struct {
	tag      history.Tag
	resolver resolver
}

// Tag returns the history record the revision was resolved from.
func (v *Revision) Tag() history.Tag { return v.tag }

// Name returns the tag name.
func (v *Revision) Name() string { return v.tag.Name }

// Number returns the revision number.
func (v *Revision) Number() int64 { return v.tag.Revision }

// Timestamp returns when the snapshot was published.
func (v *Revision) Timestamp() time.Time { return v.tag.Timestamp }

// RootHash returns the snapshot's root catalog hash.
func (v *Revision) RootHash() objectstore.ContentHash { return v.tag.Hash }

func (v *Revision) RetrieveRootCatalog(ctx context.Context) (*catalog.Catalog, error) {
	return v.resolver.rootCatalog(ctx)
}

func (v *Revision) ResolvePath(ctx context.Context, path string) (*catalog.Catalog, error) {
	return v.resolver.resolvePath(ctx, path)
}

func (v *Revision) Lookup(ctx context.Context, path string) (catalog.DirectoryEntry, bool, error) {
	return v.resolver.lookup(ctx, path)
}

func (v *Revision) ListDirectory(ctx context.Context, path string) ([]catalog.DirectoryEntry, bool, error) {
	return v.resolver.listDirectory(ctx, path)
}

func (v *Revision) GetFile(ctx context.Context, path string) (string, error) {
	return v.resolver.getFile(ctx, path)
}

func (v *Revision) RetrieveCatalogTree(ctx context.Context) ([]*catalog.Catalog, error) {
	return v.resolver.catalogTree(ctx)
}

func (v *Revision) Iterate(ctx context.Context) (*TreeIterator, error) {
	return newTreeIterator(ctx, v.resolver)
}
