// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package catalog reads CernVM-FS file catalogs.
//
// A catalog is an SQLite database describing one subtree of a
// repository. The root catalog covers "/"; nested catalogs cover the
// subtrees mounted at the paths listed in their parent's
// nested_catalogs table. Every directory entry is keyed by the
// [pathhash.Hash] of its absolute path and points at its parent by the
// parent's path hash, so a directory listing is a single indexed
// query on (parent_1, parent_2).
//
// A subtree boundary appears twice: in the parent catalog as an entry
// flagged [FlagNestedCatalogMountpoint], which has no children there,
// and in the nested catalog as its root entry, flagged
// [FlagNestedCatalogRoot]. Crossing the boundary is the caller's job;
// this package only answers questions about a single database.
//
// Catalogs are opened read-only through [sqlitepool] and must be
// closed by the caller.
package catalog
