// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testrepo writes complete CernVM-FS repositories to a
// temporary directory for tests.
//
// A [Builder] collects a tree of files, directories and symlinks,
// marks some directories as nested catalog mountpoints, and
// [Builder.Publish] writes what a Stratum 0 would serve:
//
//   - zlib-compressed, content-addressed objects under data/,
//   - one SQLite catalog per nested subtree, linked through their
//     parents' nested_catalogs tables,
//   - a history database with every tagged snapshot,
//   - a self-signed certificate and the manifest it signs,
//   - a whitelist listing the certificate fingerprint, signed with a
//     separate key whose public half is written outside the
//     repository as the trusted key.
//
// Publish may be called repeatedly; each call is a new revision, and
// objects from earlier revisions remain in place so older tags stay
// resolvable.
//
// All helpers fail the test through t.Fatalf rather than returning
// errors.
package testrepo
