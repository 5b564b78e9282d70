// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import "errors"

var (
	// ErrNotFound is returned when an entry is absent from the
	// catalog.
	ErrNotFound = errors.New("catalog entry not found")

	// ErrInvalidCatalog is returned when a database lacks mandatory
	// properties or holds malformed rows.
	ErrInvalidCatalog = errors.New("invalid catalog")

	// ErrCounterNotFound is returned by [Statistics.Counter] for a
	// counter the catalog does not record.
	ErrCounterNotFound = errors.New("statistics counter not found")

	// ErrClosed is returned by operations on a closed catalog.
	ErrClosed = errors.New("catalog is closed")
)
