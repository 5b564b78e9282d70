// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rootfile

import (
	"crypto/rsa"
	"fmt"
	"time"
)

// Verify checks the full trust chain. A nil error means the manifest
// is trusted; any failure wraps [ErrIntegrity].
func Verify(manifest *Manifest, whitelist *Whitelist, certificate *Certificate, publicKey *rsa.PublicKey, now time.Time) error {
	if err := whitelist.VerifySignature(publicKey); err != nil {
		return err
	}
	if whitelist.Expired(now) {
		return fmt.Errorf("%w: whitelist expired at %s", ErrIntegrity, whitelist.ExpiresAt.Format(time.RFC3339))
	}
	if !whitelist.Contains(certificate.Fingerprint) {
		return fmt.Errorf("%w: certificate %s is not whitelisted", ErrIntegrity, certificate.Fingerprint)
	}
	return manifest.VerifySignature(certificate)
}
