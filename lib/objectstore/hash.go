// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objectstore

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/ripemd160"
)

// Algorithm identifies the digest used to name an object.
type Algorithm uint8

const (
	AlgorithmUnknown Algorithm = iota
	AlgorithmSHA1
	AlgorithmRIPEMD160
)

// ripemd160Suffix is appended to the hex digest of RIPEMD-160 named
// objects. SHA-1 names carry no suffix.
const ripemd160Suffix = "-rmd160"

func (a Algorithm) String() string {
	switch a {
	case AlgorithmSHA1:
		return "sha1"
	case AlgorithmRIPEMD160:
		return "rmd160"
	default:
		return "unknown"
	}
}

// Suffix returns the object-name suffix for the algorithm.
func (a Algorithm) Suffix() string {
	if a == AlgorithmRIPEMD160 {
		return ripemd160Suffix
	}
	return ""
}

// Size returns the digest length in bytes, or 0 for an unknown
// algorithm.
func (a Algorithm) Size() int {
	switch a {
	case AlgorithmSHA1:
		return sha1.Size
	case AlgorithmRIPEMD160:
		return ripemd160.Size
	default:
		return 0
	}
}

// New returns a fresh hasher for the algorithm, or nil if the
// algorithm is unknown.
func (a Algorithm) New() hash.Hash {
	switch a {
	case AlgorithmSHA1:
		return sha1.New()
	case AlgorithmRIPEMD160:
		return ripemd160.New()
	default:
		return nil
	}
}

// ContentHash names an object: a digest of its decompressed content
// and the algorithm that produced it.
type ContentHash struct {
	Digest    []byte
	Algorithm Algorithm
}

// NewContentHash wraps a raw digest, checking its length against the
// algorithm.
func NewContentHash(digest []byte, algorithm Algorithm) (ContentHash, error) {
	hash := ContentHash{Digest: bytes.Clone(digest), Algorithm: algorithm}
	if err := hash.Validate(); err != nil {
		return ContentHash{}, err
	}
	return hash, nil
}

// ParseContentHash parses the textual form: lowercase or uppercase hex
// digest optionally followed by an algorithm suffix.
func ParseContentHash(text string) (ContentHash, error) {
	algorithm := AlgorithmSHA1
	hexDigest := text
	if strings.HasSuffix(text, ripemd160Suffix) {
		algorithm = AlgorithmRIPEMD160
		hexDigest = strings.TrimSuffix(text, ripemd160Suffix)
	} else if index := strings.IndexByte(text, '-'); index >= 0 {
		return ContentHash{}, fmt.Errorf("content hash %q: unknown algorithm suffix %q", text, text[index:])
	}

	digest, err := hex.DecodeString(hexDigest)
	if err != nil {
		return ContentHash{}, fmt.Errorf("content hash %q: %w", text, err)
	}
	hash := ContentHash{Digest: digest, Algorithm: algorithm}
	if err := hash.Validate(); err != nil {
		return ContentHash{}, fmt.Errorf("content hash %q: %w", text, err)
	}
	return hash, nil
}

// Validate checks that the algorithm is known and the digest has the
// algorithm's length.
func (h ContentHash) Validate() error {
	size := h.Algorithm.Size()
	if size == 0 {
		return fmt.Errorf("unknown hash algorithm %d", h.Algorithm)
	}
	if len(h.Digest) != size {
		return fmt.Errorf("%s digest is %d bytes, want %d", h.Algorithm, len(h.Digest), size)
	}
	return nil
}

// IsZero reports whether the hash is unset.
func (h ContentHash) IsZero() bool {
	return len(h.Digest) == 0
}

// Hex returns the hex digest without a suffix.
func (h ContentHash) Hex() string {
	return hex.EncodeToString(h.Digest)
}

// String returns the hex digest with the algorithm suffix, the form
// used in manifests, nested catalog references and object names.
func (h ContentHash) String() string {
	return h.Hex() + h.Algorithm.Suffix()
}

// Equal reports whether two hashes name the same object.
func (h ContentHash) Equal(other ContentHash) bool {
	return h.Algorithm == other.Algorithm && bytes.Equal(h.Digest, other.Digest)
}

// Kind is the object-name suffix distinguishing metadata objects from
// file content.
type Kind string

const (
	KindNone         Kind = ""
	KindCatalog      Kind = "C"
	KindCertificate  Kind = "X"
	KindHistory      Kind = "H"
	KindMicroCatalog Kind = "L"
)

// ObjectPath returns the slash-separated path of an object relative
// to the repository (and cache) root.
func ObjectPath(hash ContentHash, kind Kind) string {
	hexDigest := hash.Hex()
	if len(hexDigest) < 3 {
		return "data/" + hexDigest + hash.Algorithm.Suffix() + string(kind)
	}
	return "data/" + hexDigest[:2] + "/" + hexDigest[2:] + hash.Algorithm.Suffix() + string(kind)
}
