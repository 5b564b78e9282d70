// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/cvmfs/lib/objectstore"
	"github.com/bureau-foundation/cvmfs/lib/rootfile"
)

// RetrieveCertificate fetches the certificate the manifest names.
func (r *Repository) RetrieveCertificate(ctx context.Context) (*rootfile.Certificate, error) {
	path, err := r.store.Retrieve(ctx, r.manifest.Certificate, objectstore.KindCertificate)
	if err != nil {
		return nil, fmt.Errorf("retrieving certificate: %w", err)
	}
	return rootfile.LoadCertificate(path)
}

// RetrieveWhitelist downloads and parses the current whitelist.
func (r *Repository) RetrieveWhitelist(ctx context.Context) (*rootfile.Whitelist, error) {
	path, err := r.store.RetrieveRaw(ctx, rootfile.WhitelistName)
	if err != nil {
		return nil, fmt.Errorf("retrieving whitelist: %w", err)
	}
	return rootfile.LoadWhitelist(path)
}

// Verify checks the manifest's trust chain against the whitelist key
// at publicKeyPath. trusted is true only when err is nil; a failed
// check is reported, never fatal, and err says which link broke.
func (r *Repository) Verify(ctx context.Context, publicKeyPath string) (trusted bool, err error) {
	publicKey, err := rootfile.LoadPublicKey(publicKeyPath)
	if err != nil {
		return false, err
	}
	whitelist, err := r.RetrieveWhitelist(ctx)
	if err != nil {
		return false, err
	}
	certificate, err := r.RetrieveCertificate(ctx)
	if err != nil {
		return false, err
	}

	if err := rootfile.Verify(r.manifest, whitelist, certificate, publicKey, r.clock.Now()); err != nil {
		r.logger.Warn("repository failed verification",
			"name", r.manifest.RepositoryName,
			"error", err,
		)
		return false, err
	}
	return true, nil
}
