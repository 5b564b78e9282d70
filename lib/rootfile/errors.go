// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rootfile

import (
	"errors"
	"fmt"
)

var (
	// ErrParse is returned for malformed lines, bad field values and
	// missing mandatory fields.
	ErrParse = errors.New("malformed root file")

	// ErrIntegrity is returned when a checksum or signature does not
	// validate, a signature is missing, the whitelist has expired, or
	// the certificate is not whitelisted.
	ErrIntegrity = errors.New("root file integrity check failed")

	// ErrUnknownField is returned for a tag the grammar does not
	// define.
	ErrUnknownField = errors.New("unknown root file field")
)

// UnknownFieldError carries the unrecognised tag. It matches both
// [ErrUnknownField] and [ErrParse].
type UnknownFieldError struct {
	File string
	Tag  byte
	Line int
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("%s line %d: unknown field %q", e.File, e.Line, e.Tag)
}

func (e *UnknownFieldError) Is(target error) bool {
	return target == ErrUnknownField || target == ErrParse
}
