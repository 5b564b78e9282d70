// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objectstore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an object is absent from the
	// source, or when the fetched object failed verification and is
	// therefore unusable.
	ErrNotFound = errors.New("object not found")

	// ErrIntegrity is returned when an object's content does not hash
	// to its name or its compressed stream is corrupt.
	ErrIntegrity = errors.New("object integrity check failed")

	// ErrSourceUnavailable is returned for network or filesystem
	// failures reaching the source. Callers may retry.
	ErrSourceUnavailable = errors.New("object source unavailable")

	// ErrCacheDirectory is returned when the cache directory is
	// missing, not a directory, or not writable.
	ErrCacheDirectory = errors.New("cache directory unusable")
)

// HashMismatchError reports an object whose decompressed content did
// not hash to the expected digest. It matches both [ErrIntegrity] and
// [ErrNotFound] under errors.Is.
type HashMismatchError struct {
	Name     string
	Expected ContentHash
	Computed []byte
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("object %s: content hash mismatch: expected %x, computed %x",
		e.Name, e.Expected.Digest, e.Computed)
}

func (e *HashMismatchError) Is(target error) bool {
	return target == ErrIntegrity || target == ErrNotFound
}

// CorruptObjectError reports an object whose compressed stream could
// not be inflated. It matches both [ErrIntegrity] and [ErrNotFound]
// under errors.Is and unwraps to the decoder error.
type CorruptObjectError struct {
	Name string
	Err  error
}

func (e *CorruptObjectError) Error() string {
	return fmt.Sprintf("object %s: corrupt compressed stream: %v", e.Name, e.Err)
}

func (e *CorruptObjectError) Unwrap() error { return e.Err }

func (e *CorruptObjectError) Is(target error) bool {
	return target == ErrIntegrity || target == ErrNotFound
}

// IsNotFound reports whether err indicates a missing or unusable
// object.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
