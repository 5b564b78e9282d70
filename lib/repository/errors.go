// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package repository

import "errors"

var (
	// ErrNotFound is returned when a repository source or a path
	// inside the repository does not exist.
	ErrNotFound = errors.New("not found in repository")

	// ErrNotFile is returned by GetFile for a path that is not a
	// regular file.
	ErrNotFile = errors.New("not a regular file")

	// ErrNestedCatalogNotFound is returned when a mountpoint entry
	// has no matching reference in its catalog.
	ErrNestedCatalogNotFound = errors.New("nested catalog not found")

	// ErrCatalogCycle is returned when nested catalog references
	// lead back to a catalog already on the walk.
	ErrCatalogCycle = errors.New("nested catalog cycle")

	// ErrNoHistory is returned for revision queries on a repository
	// whose manifest names no history database.
	ErrNoHistory = errors.New("repository keeps no history")
)
