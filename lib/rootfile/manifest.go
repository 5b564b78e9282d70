// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rootfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/bureau-foundation/cvmfs/lib/objectstore"
)

// ManifestName is the manifest's file name at the repository root.
const ManifestName = ".cvmfspublished"

// Manifest describes one published snapshot of a repository.
type Manifest struct {
	RootCatalog        objectstore.ContentHash // C
	RootHash           string                  // R: path hash of the root entry, hex
	RootCatalogSize    int64                   // B
	Certificate        objectstore.ContentHash // X
	HistoryDatabase    objectstore.ContentHash // H, zero if the repository keeps no history
	LastModified       time.Time               // T
	TTLSeconds         int64                   // D
	Revision           int64                   // S
	RepositoryName     string                  // N
	MicroCatalog       objectstore.ContentHash // L
	GarbageCollectable bool                    // G
	AlternativeName    bool                    // A

	// Signature is nil for an unsigned manifest.
	Signature *Signature
}

// ParseManifest parses manifest bytes. Unknown tags and missing
// mandatory fields are errors.
func ParseManifest(data []byte) (*Manifest, error) {
	manifest := &Manifest{}
	var haveRootCatalog, haveRootHash, haveName bool

	grammar := Grammar{
		Name: "manifest",
		Fields: map[byte]func(string) error{
			'C': func(value string) error {
				haveRootCatalog = true
				return parseHashField(value, &manifest.RootCatalog)
			},
			'R': func(value string) error {
				haveRootHash = true
				manifest.RootHash = value
				return nil
			},
			'B': func(value string) error { return parseIntField(value, &manifest.RootCatalogSize) },
			'X': func(value string) error { return parseHashField(value, &manifest.Certificate) },
			'H': func(value string) error { return parseHashField(value, &manifest.HistoryDatabase) },
			'T': func(value string) error {
				var seconds int64
				if err := parseIntField(value, &seconds); err != nil {
					return err
				}
				manifest.LastModified = time.Unix(seconds, 0).UTC()
				return nil
			},
			'D': func(value string) error { return parseIntField(value, &manifest.TTLSeconds) },
			'S': func(value string) error { return parseIntField(value, &manifest.Revision) },
			'N': func(value string) error {
				haveName = true
				manifest.RepositoryName = value
				return nil
			},
			'L': func(value string) error { return parseHashField(value, &manifest.MicroCatalog) },
			'G': func(value string) error {
				manifest.GarbageCollectable = value == "yes"
				return nil
			},
			'A': func(value string) error {
				manifest.AlternativeName = value == "yes"
				return nil
			},
		},
		Validate: func() error {
			var errs []error
			if !haveRootCatalog {
				errs = append(errs, errors.New("no root catalog (C)"))
			}
			if !haveRootHash {
				errs = append(errs, errors.New("no root hash (R)"))
			}
			if manifest.TTLSeconds == 0 {
				errs = append(errs, errors.New("no TTL (D)"))
			}
			if manifest.Revision == 0 {
				errs = append(errs, errors.New("no revision (S)"))
			}
			if !haveName {
				errs = append(errs, errors.New("no repository name (N)"))
			}
			return errors.Join(errs...)
		},
	}

	signature, err := Parse(data, grammar)
	if err != nil {
		return nil, err
	}
	manifest.Signature = signature
	return manifest, nil
}

// LoadManifest reads and parses a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return ParseManifest(data)
}

// HasHistory reports whether the manifest names a history database.
func (m *Manifest) HasHistory() bool {
	return !m.HistoryDatabase.IsZero()
}

// TTL returns the manifest's time to live.
func (m *Manifest) TTL() time.Duration {
	return time.Duration(m.TTLSeconds) * time.Second
}

// VerifySignature checks the manifest signature with the
// certificate's key.
func (m *Manifest) VerifySignature(certificate *Certificate) error {
	if m.Signature == nil {
		return fmt.Errorf("%w: manifest is not signed", ErrIntegrity)
	}
	if err := certificate.Verify([]byte(m.Signature.Checksum), m.Signature.Bytes); err != nil {
		return fmt.Errorf("manifest signature: %w", err)
	}
	return nil
}

func parseHashField(value string, target *objectstore.ContentHash) error {
	hash, err := objectstore.ParseContentHash(value)
	if err != nil {
		return err
	}
	*target = hash
	return nil
}

func parseIntField(value string, target *int64) error {
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return err
	}
	*target = parsed
	return nil
}
