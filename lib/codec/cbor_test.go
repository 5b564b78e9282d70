// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type sampleRecord struct {
	Name      string    `cbor:"name"`
	FetchedAt time.Time `cbor:"fetched_at"`
	Size      int64     `cbor:"size,omitempty"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleRecord{
		Name:      ".cvmfspublished",
		FetchedAt: time.Date(2026, 2, 3, 4, 5, 6, 7, time.UTC),
		Size:      812,
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Name != original.Name || decoded.Size != original.Size || !decoded.FetchedAt.Equal(original.FetchedAt) {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministicMapOrder(t *testing.T) {
	first, err := Marshal(map[string]int{"b": 2, "a": 1, "c": 3})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(map[string]int{"c": 3, "a": 1, "b": 2})
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("deterministic encoding violated: %x != %x", first, again)
		}
	}
}

func TestWriteFileReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.cbor")
	records := map[string]sampleRecord{
		".cvmfspublished": {Name: ".cvmfspublished", FetchedAt: time.Unix(1700000000, 0).UTC()},
	}

	if err := WriteFile(path, records); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var decoded map[string]sampleRecord
	if err := ReadFile(path, &decoded); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(decoded) != 1 || !decoded[".cvmfspublished"].FetchedAt.Equal(records[".cvmfspublished"].FetchedAt) {
		t.Errorf("ReadFile = %+v, want %+v", decoded, records)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries in directory", len(entries))
	}
}

func TestReadFileMissing(t *testing.T) {
	var decoded sampleRecord
	err := ReadFile(filepath.Join(t.TempDir(), "absent.cbor"), &decoded)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadFile on missing file: err = %v, want os.ErrNotExist", err)
	}
}

func TestUnmarshalIgnoresUnknownFields(t *testing.T) {
	data, err := Marshal(map[string]any{"name": "x", "future_field": 9})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Name != "x" {
		t.Errorf("Name = %q, want %q", decoded.Name, "x")
	}
}
