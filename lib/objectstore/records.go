// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objectstore

import (
	"errors"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/cvmfs/lib/codec"
)

// recordsFile holds the root file fetch records, next to the root
// files themselves.
const recordsFile = "rootfiles.cbor"

// RootFileRecord describes the last successful download of a root
// file.
type RootFileRecord struct {
	FetchedAt time.Time `cbor:"fetched_at"`
	Size      int64     `cbor:"size"`
	Source    string    `cbor:"source"`
}

type rootFileRecords struct {
	Files map[string]RootFileRecord `cbor:"files"`
}

func loadRecords(cache *Cache) (rootFileRecords, error) {
	var records rootFileRecords
	err := codec.ReadFile(filepath.Join(cache.Root(), recordsFile), &records)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return rootFileRecords{}, err
	}
	if records.Files == nil {
		records.Files = make(map[string]RootFileRecord)
	}
	return records, nil
}

func (s *Store) recordFetch(name string, record RootFileRecord) error {
	s.recordsMu.Lock()
	defer s.recordsMu.Unlock()

	records, err := loadRecords(s.cache)
	if err != nil {
		return err
	}
	records.Files[name] = record
	return codec.WriteFile(filepath.Join(s.cache.Root(), recordsFile), records)
}
