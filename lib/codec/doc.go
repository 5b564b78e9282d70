// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding used for the client's small
// on-disk state files.
//
// The repository format itself is text (root files) and SQLite
// (catalogs, history). The client adds a little local bookkeeping next
// to the object cache, such as when each root file was last fetched,
// and stores it as CBOR with Core Deterministic Encoding so the same
// logical record always produces identical bytes.
//
//	err := codec.WriteFile(path, record)
//	err = codec.ReadFile(path, &record)
//
// Struct types use `cbor` tags: these records are never exposed as
// JSON.
package codec
