// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pathhash

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"path"
	"strings"
)

// Hash is the split MD5 digest of a canonical path. Lo holds bytes
// 0-7 and Hi bytes 8-15, both decoded little-endian.
type Hash struct {
	Lo uint64
	Hi uint64
}

// Split decodes a 16-byte digest into its two little-endian halves.
func Split(digest [md5.Size]byte) Hash {
	return Hash{
		Lo: binary.LittleEndian.Uint64(digest[0:8]),
		Hi: binary.LittleEndian.Uint64(digest[8:16]),
	}
}

// Of returns the hash of the canonical form of p.
func Of(p string) Hash {
	return Split(md5.Sum([]byte(Canonicalize(p))))
}

// Root is the hash of the repository root (the empty path).
var Root = Of("")

// Signed returns both halves reinterpreted as the signed 64-bit
// integers SQLite stores in md5path_* and parent_* columns.
func (h Hash) Signed() (int64, int64) {
	return int64(h.Lo), int64(h.Hi)
}

// FromSigned is the inverse of [Hash.Signed].
func FromSigned(lo, hi int64) Hash {
	return Hash{Lo: uint64(lo), Hi: uint64(hi)}
}

// String formats the hash as two 16-digit hex halves.
func (h Hash) String() string {
	return fmt.Sprintf("%016x:%016x", h.Lo, h.Hi)
}

// Canonicalize normalizes p to the form catalogs hash: slashes
// collapsed, dot segments resolved, absolute, no trailing slash. The
// root (and the empty or nil-equivalent input) maps to "".
func Canonicalize(p string) string {
	if p == "" {
		return ""
	}
	cleaned := path.Clean("/" + p)
	if cleaned == "/" {
		return ""
	}
	return cleaned
}

// Parent returns the canonical parent of p. The parent of a top-level
// entry and of the root itself is the root ("").
func Parent(p string) string {
	canonical := Canonicalize(p)
	index := strings.LastIndexByte(canonical, '/')
	if index <= 0 {
		return ""
	}
	return canonical[:index]
}

// Join appends name to the canonical directory path dir.
func Join(dir, name string) string {
	return Canonicalize(dir + "/" + name)
}

// Prefixes returns every ancestor of p from the root down to p itself,
// in canonical form. Prefixes("/a/b") is ["", "/a", "/a/b"].
func Prefixes(p string) []string {
	canonical := Canonicalize(p)
	prefixes := []string{""}
	if canonical == "" {
		return prefixes
	}
	for index := 1; index < len(canonical); index++ {
		if canonical[index] == '/' {
			prefixes = append(prefixes, canonical[:index])
		}
	}
	return append(prefixes, canonical)
}
