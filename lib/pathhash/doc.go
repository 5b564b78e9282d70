// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pathhash computes the split MD5 path keys used by catalog
// databases.
//
// A catalog stores every directory entry under the MD5 digest of its
// canonical path, split into two 64-bit halves. The halves are the
// primary key of the catalog table (md5path_1, md5path_2) and the
// foreign key to the parent directory (parent_1, parent_2), so a
// directory listing is a single indexed query on the parent's hash.
//
// Canonical paths are absolute, have no trailing slash and no "." or
// ".." segments. The repository root is the empty string, every other
// path keeps its single leading slash:
//
//	Canonicalize("/")            == ""
//	Canonicalize("sub//a/../b/") == "/sub/b"
//
// Two paths name the same entry iff their hashes are equal. MD5
// collisions are not handled: the catalog format assumes the digest
// space is collision-free for this purpose.
package pathhash
