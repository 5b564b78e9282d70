// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rootfile_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/cvmfs/lib/rootfile"
	"github.com/bureau-foundation/cvmfs/lib/testrepo"
)

const whitelistBody = `20260101000000
E20400101000000
Nsft.example.org
12:34:56:78:9A:BC:DE:F0:12:34:56:78:9A:BC:DE:F0:12:34:56:78 # CN=release manager
AB:CD:EF:01:23:45:67:89:AB:CD:EF:01:23:45:67:89:AB:CD:EF:01
`

func TestParseWhitelist(t *testing.T) {
	whitelist, err := rootfile.ParseWhitelist([]byte(whitelistBody))
	if err != nil {
		t.Fatalf("ParseWhitelist: %v", err)
	}

	if whitelist.RepositoryName != "sft.example.org" {
		t.Errorf("RepositoryName = %s", whitelist.RepositoryName)
	}
	if !whitelist.LastModified.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("LastModified = %s", whitelist.LastModified)
	}
	if !whitelist.ExpiresAt.Equal(time.Date(2040, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ExpiresAt = %s", whitelist.ExpiresAt)
	}
	if len(whitelist.Fingerprints) != 2 {
		t.Fatalf("Fingerprints = %v", whitelist.Fingerprints)
	}
	if whitelist.Fingerprints[0] != "12:34:56:78:9A:BC:DE:F0:12:34:56:78:9A:BC:DE:F0:12:34:56:78" {
		t.Errorf("comment should be stripped: %q", whitelist.Fingerprints[0])
	}
	if !whitelist.Contains("ab:cd:ef:01:23:45:67:89:ab:cd:ef:01:23:45:67:89:ab:cd:ef:01") {
		t.Error("Contains should ignore case")
	}
	if whitelist.Contains("00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00") {
		t.Error("unexpected fingerprint match")
	}
}

// A fingerprint beginning with a tag letter must not be taken for
// that tag.
func TestParseWhitelist_FingerprintStartingWithTag(t *testing.T) {
	body := whitelistBody + "E0:11:22:33:44:55:66:77:88:99:AA:BB:CC:DD:EE:FF:00:11:22:33\n"
	whitelist, err := rootfile.ParseWhitelist([]byte(body))
	if err != nil {
		t.Fatalf("ParseWhitelist: %v", err)
	}
	if len(whitelist.Fingerprints) != 3 {
		t.Errorf("Fingerprints = %v", whitelist.Fingerprints)
	}
	if !whitelist.ExpiresAt.Equal(time.Date(2040, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ExpiresAt overwritten: %s", whitelist.ExpiresAt)
	}
}

func TestParseWhitelist_Expired(t *testing.T) {
	whitelist, err := rootfile.ParseWhitelist([]byte(whitelistBody))
	if err != nil {
		t.Fatalf("ParseWhitelist: %v", err)
	}

	expiry := time.Date(2040, 1, 1, 0, 0, 0, 0, time.UTC)
	if whitelist.Expired(expiry.Add(-time.Second)) {
		t.Error("whitelist should be valid before its expiry")
	}
	if !whitelist.Expired(expiry) {
		t.Error("whitelist should be expired at its expiry")
	}
	if !whitelist.Expired(expiry.Add(time.Hour)) {
		t.Error("whitelist should be expired after its expiry")
	}
}

func TestParseWhitelist_MissingMandatory(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"fingerprints", "20260101000000\nE20400101000000\nNsft.example.org\n"},
		{"expiry", "20260101000000\nNsft.example.org\n" + strings.SplitN(whitelistBody, "\n", 4)[3]},
		{"name", "20260101000000\nE20400101000000\n" + strings.SplitN(whitelistBody, "\n", 4)[3]},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := rootfile.ParseWhitelist([]byte(test.body)); !errors.Is(err, rootfile.ErrParse) {
				t.Errorf("expected ErrParse, got %v", err)
			}
		})
	}
}

func TestParseWhitelist_BadExpiry(t *testing.T) {
	body := strings.Replace(whitelistBody, "E20400101000000", "E2040-01-01", 1)
	if _, err := rootfile.ParseWhitelist([]byte(body)); !errors.Is(err, rootfile.ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}
}

func TestParseWhitelist_UnknownField(t *testing.T) {
	_, err := rootfile.ParseWhitelist([]byte(whitelistBody + "Zzz\n"))
	if !errors.Is(err, rootfile.ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	builder := testrepo.New(t, testrepo.Options{})
	builder.File("/a", []byte("a"))
	repository := builder.Publish(testrepo.Snapshot{})

	manifest, whitelist, certificate := loadRootFiles(t, repository)
	publicKey, err := rootfile.LoadPublicKey(repository.PublicKeyPath)
	if err != nil {
		t.Fatalf("LoadPublicKey: %v", err)
	}

	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := rootfile.Verify(manifest, whitelist, certificate, publicKey, now); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestVerify_LegacySignatures(t *testing.T) {
	builder := testrepo.New(t, testrepo.Options{LegacySignatures: true})
	builder.File("/a", []byte("a"))
	repository := builder.Publish(testrepo.Snapshot{})

	manifest, whitelist, certificate := loadRootFiles(t, repository)
	publicKey, err := rootfile.LoadPublicKey(repository.PublicKeyPath)
	if err != nil {
		t.Fatalf("LoadPublicKey: %v", err)
	}
	if err := rootfile.Verify(manifest, whitelist, certificate, publicKey, time.Now()); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestVerify_Failures(t *testing.T) {
	builder := testrepo.New(t, testrepo.Options{
		WhitelistExpiry: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	builder.File("/a", []byte("a"))
	repository := builder.Publish(testrepo.Snapshot{})

	manifest, whitelist, certificate := loadRootFiles(t, repository)
	trustedKey, err := rootfile.LoadPublicKey(repository.PublicKeyPath)
	if err != nil {
		t.Fatalf("LoadPublicKey: %v", err)
	}
	beforeExpiry := time.Date(2029, 1, 1, 0, 0, 0, 0, time.UTC)

	strangers := testrepo.NewKeys(t)
	strangerCertificate, err := rootfile.ParseCertificate(strangers.CertificatePEM())
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}

	t.Run("untrusted key", func(t *testing.T) {
		err := rootfile.Verify(manifest, whitelist, certificate, &strangers.WhitelistKey.PublicKey, beforeExpiry)
		if !errors.Is(err, rootfile.ErrIntegrity) {
			t.Errorf("expected ErrIntegrity, got %v", err)
		}
	})
	t.Run("expired whitelist", func(t *testing.T) {
		afterExpiry := time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC)
		err := rootfile.Verify(manifest, whitelist, certificate, trustedKey, afterExpiry)
		if !errors.Is(err, rootfile.ErrIntegrity) || !strings.Contains(err.Error(), "expired") {
			t.Errorf("expected expiry failure, got %v", err)
		}
	})
	t.Run("certificate not whitelisted", func(t *testing.T) {
		err := rootfile.Verify(manifest, whitelist, strangerCertificate, trustedKey, beforeExpiry)
		if !errors.Is(err, rootfile.ErrIntegrity) || !strings.Contains(err.Error(), "not whitelisted") {
			t.Errorf("expected whitelist failure, got %v", err)
		}
	})
}

func TestCertificateFingerprint(t *testing.T) {
	keys := testrepo.SharedKeys(t)
	certificate, err := rootfile.ParseCertificate(keys.Certificate)
	if err != nil {
		t.Fatalf("ParseCertificate(DER): %v", err)
	}
	if certificate.Fingerprint != keys.Fingerprint {
		t.Errorf("Fingerprint = %s, want %s", certificate.Fingerprint, keys.Fingerprint)
	}
	if len(certificate.Fingerprint) != 59 {
		t.Errorf("fingerprint length = %d, want 59", len(certificate.Fingerprint))
	}
}

func TestParsePublicKey_Rejects(t *testing.T) {
	if _, err := rootfile.ParsePublicKey([]byte("not pem")); !errors.Is(err, rootfile.ErrParse) {
		t.Errorf("expected ErrParse for non-PEM input, got %v", err)
	}
	if _, err := rootfile.ParsePublicKey(testrepo.SharedKeys(t).CertificatePEM()); !errors.Is(err, rootfile.ErrParse) {
		t.Errorf("expected ErrParse for a certificate block, got %v", err)
	}
}

func loadRootFiles(t *testing.T, repository *testrepo.Repository) (*rootfile.Manifest, *rootfile.Whitelist, *rootfile.Certificate) {
	t.Helper()
	manifest, err := rootfile.LoadManifest(filepath.Join(repository.Dir, rootfile.ManifestName))
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	whitelist, err := rootfile.LoadWhitelist(filepath.Join(repository.Dir, rootfile.WhitelistName))
	if err != nil {
		t.Fatalf("LoadWhitelist: %v", err)
	}
	certificate, err := rootfile.ParseCertificate(repository.Keys.CertificatePEM())
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	return manifest, whitelist, certificate
}
