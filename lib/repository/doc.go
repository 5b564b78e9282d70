// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package repository resolves paths in a CernVM-FS repository across
// its tree of catalogs.
//
// A [Repository] reads the manifest from a [objectstore.Source],
// mounts the root catalog it names, and descends into nested catalogs
// on demand. Mounted catalogs live in a mount table keyed by content
// hash and owned by the Repository; [Repository.UnloadAll] closes
// them and releases their database handles.
//
// Lookups resolve a path one component at a time from the root,
// re-resolving the owning catalog at each prefix, since a nested
// catalog can be mounted at any ancestor of the target:
//
//	repo, err := repository.Open(ctx, repository.Config{
//	    Source:   "https://stratum1.example.org/cvmfs/sft.example.org",
//	    CacheDir: cacheDir,
//	})
//	entry, found, err := repo.Lookup(ctx, "/lcg/releases/README")
//
// Past snapshots are reached through the history database:
// [Repository.Revision] returns a [Revision] exposing the same
// lookups anchored at that snapshot's root catalog.
//
// [Repository.Iterate] walks the whole tree depth-first with a
// [TreeIterator]. Catalogs the walk mounts itself are closed as soon
// as it leaves them; catalogs retrieved through the Repository stay
// mounted.
//
// A Repository and its iterators are not safe for concurrent use. The
// underlying object cache is: several Repository values may share one
// cache directory.
package repository
