// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"io/fs"
	"time"

	"github.com/bureau-foundation/cvmfs/lib/objectstore"
	"github.com/bureau-foundation/cvmfs/lib/pathhash"
)

// Flags is the bitmask stored in the catalog's flags column.
type Flags uint32

const (
	FlagDirectory               Flags = 1
	FlagNestedCatalogMountpoint Flags = 2
	FlagFile                    Flags = 4
	FlagSymlink                 Flags = 8
	FlagFileStat                Flags = 16
	FlagNestedCatalogRoot       Flags = 32
	FlagFileChunk               Flags = 64

	// flagHashAlgorithmMask selects the content hash algorithm
	// sub-field, bits 8 through 10.
	flagHashAlgorithmMask  Flags = 0x700
	flagHashAlgorithmShift       = 8
)

// HashAlgorithm decodes the content hash algorithm sub-field. The
// stored value is offset by one: 0 means SHA-1, 1 RIPEMD-160.
func (f Flags) HashAlgorithm() objectstore.Algorithm {
	switch ((f & flagHashAlgorithmMask) >> flagHashAlgorithmShift) + 1 {
	case 1:
		return objectstore.AlgorithmSHA1
	case 2:
		return objectstore.AlgorithmRIPEMD160
	default:
		return objectstore.AlgorithmUnknown
	}
}

// FlagsForAlgorithm returns the sub-field bits that encode algorithm.
func FlagsForAlgorithm(algorithm objectstore.Algorithm) Flags {
	switch algorithm {
	case objectstore.AlgorithmRIPEMD160:
		return 1 << flagHashAlgorithmShift
	default:
		return 0
	}
}

// DirectoryEntry is one row of the catalog table. It is a value: it
// holds no reference to the catalog that produced it.
type DirectoryEntry struct {
	PathHash    pathhash.Hash
	ParentHash  pathhash.Hash
	ContentHash objectstore.ContentHash // zero for directories and symlinks
	Flags       Flags
	Size        int64
	Mode        uint32 // POSIX st_mode
	Mtime       time.Time
	Name        string
	Symlink     string
	Chunks      []Chunk // ordered by offset; empty unless the file is chunked
}

// Chunk is a byte range of a large file stored as its own object.
type Chunk struct {
	Offset      int64
	Size        int64
	ContentHash objectstore.ContentHash
}

func (e DirectoryEntry) IsDirectory() bool { return e.Flags&FlagDirectory != 0 }
func (e DirectoryEntry) IsFile() bool      { return e.Flags&FlagFile != 0 }
func (e DirectoryEntry) IsSymlink() bool   { return e.Flags&FlagSymlink != 0 }

// IsNestedCatalogMountpoint reports whether the entry is where a
// nested catalog is attached. Its children live in that catalog.
func (e DirectoryEntry) IsNestedCatalogMountpoint() bool {
	return e.Flags&FlagNestedCatalogMountpoint != 0
}

// IsNestedCatalogRoot reports whether the entry is the root of the
// catalog it was read from (other than the repository root).
func (e DirectoryEntry) IsNestedCatalogRoot() bool {
	return e.Flags&FlagNestedCatalogRoot != 0
}

// HasChunks reports whether the file content is split into chunks.
func (e DirectoryEntry) HasChunks() bool { return len(e.Chunks) > 0 }

// HashAlgorithm returns the algorithm of the content and chunk hashes.
func (e DirectoryEntry) HashAlgorithm() objectstore.Algorithm { return e.Flags.HashAlgorithm() }

// ContentHashString returns the object name form of the content
// hash, or "" if the entry has none.
func (e DirectoryEntry) ContentHashString() string {
	if e.ContentHash.IsZero() {
		return ""
	}
	return e.ContentHash.String()
}

// FileMode converts Mode to an fs.FileMode.
func (e DirectoryEntry) FileMode() fs.FileMode {
	mode := fs.FileMode(e.Mode & 0o777)
	switch e.Mode & 0o170000 {
	case 0o040000:
		mode |= fs.ModeDir
	case 0o120000:
		mode |= fs.ModeSymlink
	case 0o010000:
		mode |= fs.ModeNamedPipe
	case 0o140000:
		mode |= fs.ModeSocket
	case 0o020000:
		mode |= fs.ModeDevice | fs.ModeCharDevice
	case 0o060000:
		mode |= fs.ModeDevice
	}
	if e.Mode&0o4000 != 0 {
		mode |= fs.ModeSetuid
	}
	if e.Mode&0o2000 != 0 {
		mode |= fs.ModeSetgid
	}
	if e.Mode&0o1000 != 0 {
		mode |= fs.ModeSticky
	}
	return mode
}

// Reference names a nested catalog and where it is mounted.
type Reference struct {
	MountPath string // canonical, e.g. "/sub"
	Hash      objectstore.ContentHash
	Size      int64 // declared database size; 0 when the schema does not record it
}
