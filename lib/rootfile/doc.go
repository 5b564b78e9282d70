// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package rootfile parses and verifies the signed files at the top of
// a CernVM-FS repository: the manifest (.cvmfspublished) and the
// whitelist (.cvmfswhitelist), plus the X.509 certificate the manifest
// points at.
//
// Both root files share one line grammar. Each non-empty line is a
// one-character tag followed by its value. An optional "--" line ends
// the body; the next line is the 40-hex SHA-1 of the body bytes and
// everything after it is the binary signature:
//
//	Cd2a1b7c0...            <- tagged lines (the signed body)
//	S42
//	Nsft.example.org
//	--
//	8a3f...                 <- SHA-1 of the body
//	<signature bytes>
//
// [Parse] runs that grammar with a [Grammar] supplying the per-tag
// handlers, so [ParseManifest] and [ParseWhitelist] differ only in
// their handlers and validity rules. A body whose checksum does not
// match, or a "--" block with an empty signature, is rejected with
// [ErrIntegrity] before any field is interpreted.
//
// The trust chain is checked by [Verify]:
//
//  1. the whitelist signature validates against a trusted public key
//     distributed out of band,
//  2. the whitelist has not expired,
//  3. the whitelist lists the fingerprint of the repository
//     certificate, and
//  4. the certificate's key validates the manifest signature.
//
// Signatures are RSA PKCS #1 v1.5 over the SHA-1 digest of the
// checksum line's text. Verification also accepts the legacy raw form,
// where the checksum text itself is the PKCS #1 v1.5 payload.
package rootfile
