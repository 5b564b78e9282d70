// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testrepo

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zlib"
)

// Keys are the signing material of a test repository.
type Keys struct {
	// WhitelistKey signs the whitelist. Its public half is the
	// trusted key.
	WhitelistKey *rsa.PrivateKey

	// CertificateKey signs the manifest.
	CertificateKey *rsa.PrivateKey

	// Certificate is the self-signed DER certificate for
	// CertificateKey.
	Certificate []byte

	// Fingerprint is the whitelist form of the certificate
	// fingerprint.
	Fingerprint string
}

var (
	sharedKeysOnce sync.Once
	sharedKeys     *Keys
	sharedKeysErr  error
)

// SharedKeys returns keys generated once per test binary. RSA key
// generation dominates fixture cost otherwise.
func SharedKeys(t testing.TB) *Keys {
	t.Helper()
	sharedKeysOnce.Do(func() {
		sharedKeys, sharedKeysErr = generateKeys()
	})
	if sharedKeysErr != nil {
		t.Fatalf("generating repository keys: %v", sharedKeysErr)
	}
	return sharedKeys
}

// NewKeys generates fresh keys, for tests that need a second,
// untrusted key pair.
func NewKeys(t testing.TB) *Keys {
	t.Helper()
	keys, err := generateKeys()
	if err != nil {
		t.Fatalf("generating repository keys: %v", err)
	}
	return keys
}

func generateKeys() (*Keys, error) {
	whitelistKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	certificateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test.example.org CernVM-FS Release Managers"},
		NotBefore:    time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:     time.Date(2040, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &certificateKey.PublicKey, certificateKey)
	if err != nil {
		return nil, err
	}

	return &Keys{
		WhitelistKey:   whitelistKey,
		CertificateKey: certificateKey,
		Certificate:    der,
		Fingerprint:    fingerprint(der),
	}, nil
}

// CertificatePEM returns the certificate in PEM form, as repositories
// store it.
func (k *Keys) CertificatePEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: k.Certificate})
}

// PublicKeyPEM returns the trusted whitelist key as a PEM "PUBLIC
// KEY".
func (k *Keys) PublicKeyPEM(t testing.TB) []byte {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(&k.WhitelistKey.PublicKey)
	if err != nil {
		t.Fatalf("encoding public key: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
}

// WritePublicKey writes the trusted key into dir and returns its
// path.
func (k *Keys) WritePublicKey(t testing.TB, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "repository.pub")
	writeFile(t, path, k.PublicKeyPEM(t))
	return path
}

// Sign appends a signature block to body: "--", the SHA-1 checksum of
// body, and an RSA PKCS #1 v1.5 signature over the SHA-1 of the
// checksum text.
func Sign(t testing.TB, body []byte, key *rsa.PrivateKey) []byte {
	t.Helper()
	checksum := Checksum(body)
	digest := sha1.Sum([]byte(checksum))
	signature, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA1, digest[:])
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	return appendSignature(body, checksum, signature)
}

// SignLegacy signs the checksum text directly, without a digest.
func SignLegacy(t testing.TB, body []byte, key *rsa.PrivateKey) []byte {
	t.Helper()
	checksum := Checksum(body)
	signature, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.Hash(0), []byte(checksum))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	return appendSignature(body, checksum, signature)
}

// Checksum is the hex SHA-1 of body.
func Checksum(body []byte) string {
	digest := sha1.Sum(body)
	return hex.EncodeToString(digest[:])
}

func appendSignature(body []byte, checksum string, signature []byte) []byte {
	var buffer bytes.Buffer
	buffer.Write(body)
	buffer.WriteString("--\n")
	buffer.WriteString(checksum)
	buffer.WriteString("\n")
	buffer.Write(signature)
	return buffer.Bytes()
}

// Compress zlib-compresses content the way repository objects are
// stored.
func Compress(t testing.TB, content []byte) []byte {
	t.Helper()
	var buffer bytes.Buffer
	writer := zlib.NewWriter(&buffer)
	if _, err := writer.Write(content); err != nil {
		t.Fatalf("compressing: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("compressing: %v", err)
	}
	return buffer.Bytes()
}

func fingerprint(der []byte) string {
	digest := sha1.Sum(der)
	encoded := make([]byte, 0, len(digest)*3)
	for i, b := range digest {
		if i > 0 {
			encoded = append(encoded, ':')
		}
		encoded = append(encoded, []byte(hex.EncodeToString([]byte{b}))...)
	}
	return string(bytes.ToUpper(encoded))
}

func writeFile(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}
