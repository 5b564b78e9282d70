// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/bureau-foundation/cvmfs/lib/catalog"
)

// entryJSON is the --json form of a directory entry.
type entryJSON struct {
	Path          string      `json:"path"`
	Name          string      `json:"name"`
	Type          string      `json:"type"`
	Mode          string      `json:"mode"`
	Size          int64       `json:"size"`
	Mtime         time.Time   `json:"mtime"`
	ContentHash   string      `json:"content_hash,omitempty"`
	HashAlgorithm string      `json:"hash_algorithm,omitempty"`
	Symlink       string      `json:"symlink,omitempty"`
	NestedCatalog bool        `json:"nested_catalog,omitempty"`
	Chunks        []chunkJSON `json:"chunks,omitempty"`

	// Set by stat only.
	Catalog      string `json:"catalog,omitempty"`
	CatalogMount string `json:"catalog_mount,omitempty"`
}

type chunkJSON struct {
	Offset      int64  `json:"offset"`
	Size        int64  `json:"size"`
	ContentHash string `json:"content_hash"`
}

func entryType(entry catalog.DirectoryEntry) string {
	switch {
	case entry.IsDirectory():
		return "directory"
	case entry.IsSymlink():
		return "symlink"
	case entry.IsFile():
		return "file"
	default:
		return "other"
	}
}

func newEntryJSON(path string, entry catalog.DirectoryEntry) entryJSON {
	result := entryJSON{
		Path:          displayPath(path),
		Name:          entry.Name,
		Type:          entryType(entry),
		Mode:          entry.FileMode().String(),
		Size:          entry.Size,
		Mtime:         entry.Mtime,
		ContentHash:   entry.ContentHashString(),
		Symlink:       entry.Symlink,
		NestedCatalog: entry.IsNestedCatalogMountpoint() || entry.IsNestedCatalogRoot(),
	}
	if entry.IsFile() {
		result.HashAlgorithm = entry.HashAlgorithm().String()
	}
	for _, chunk := range entry.Chunks {
		result.Chunks = append(result.Chunks, chunkJSON{
			Offset:      chunk.Offset,
			Size:        chunk.Size,
			ContentHash: chunk.ContentHash.String(),
		})
	}
	return result
}

// styledName renders an entry name highlighted by its kind.
func (env *environment) styledName(entry catalog.DirectoryEntry, name string) string {
	switch {
	case entry.IsNestedCatalogMountpoint() || entry.IsNestedCatalogRoot():
		return env.styles.Mountpoint(name)
	case entry.IsDirectory():
		return env.styles.Directory(name)
	case entry.IsSymlink():
		return env.styles.Symlink(name)
	default:
		return name
	}
}

// writeLong writes one ls -l style line.
func (env *environment) writeLong(w io.Writer, entry catalog.DirectoryEntry, name string) {
	line := fmt.Sprintf("%s %12d %s %s",
		entry.FileMode(), entry.Size, entry.Mtime.UTC().Format("2006-01-02 15:04"), env.styledName(entry, name))
	if entry.IsSymlink() {
		line += " -> " + entry.Symlink
	}
	fmt.Fprintln(w, line)
}
