// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rootfile

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
)

// Certificate is the X.509 certificate whose key signs the manifest.
type Certificate struct {
	X509 *x509.Certificate

	// Fingerprint is the SHA-1 of the DER encoding as colon-separated
	// uppercase hex pairs, the form whitelists use.
	Fingerprint string
}

// ParseCertificate accepts PEM or DER.
func ParseCertificate(data []byte) (*Certificate, error) {
	der := data
	if block, _ := pem.Decode(data); block != nil {
		if block.Type != "CERTIFICATE" {
			return nil, fmt.Errorf("%w: certificate: unexpected PEM block %q", ErrParse, block.Type)
		}
		der = block.Bytes
	}

	parsed, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: certificate: %w", ErrParse, err)
	}
	return &Certificate{X509: parsed, Fingerprint: Fingerprint(parsed.Raw)}, nil
}

// LoadCertificate reads and parses a certificate file.
func LoadCertificate(path string) (*Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading certificate: %w", err)
	}
	return ParseCertificate(data)
}

// Fingerprint formats the SHA-1 of der as "AB:CD:...".
func Fingerprint(der []byte) string {
	digest := sha1.Sum(der)
	pairs := make([]string, len(digest))
	for i, b := range digest {
		pairs[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(pairs, ":")
}

// Verify checks signature over message with the certificate's key.
func (c *Certificate) Verify(message, signature []byte) error {
	publicKey, ok := c.X509.PublicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: certificate key is %T, not RSA", ErrIntegrity, c.X509.PublicKey)
	}
	return verifyRSA(publicKey, message, signature)
}

// LoadPublicKey reads a PEM "PUBLIC KEY" or "RSA PUBLIC KEY" file.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}
	return ParsePublicKey(data)
}

// ParsePublicKey decodes a PEM RSA public key.
func ParsePublicKey(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: public key: no PEM block", ErrParse)
	}

	switch block.Type {
	case "RSA PUBLIC KEY":
		key, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: public key: %w", ErrParse, err)
		}
		return key, nil
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: public key: %w", ErrParse, err)
		}
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: public key is %T, not RSA", ErrParse, key)
		}
		return rsaKey, nil
	default:
		return nil, fmt.Errorf("%w: public key: unexpected PEM block %q", ErrParse, block.Type)
	}
}

// verifyRSA accepts a PKCS #1 v1.5 signature over SHA-1(message), or
// the raw form where message itself is the signed payload.
func verifyRSA(publicKey *rsa.PublicKey, message, signature []byte) error {
	digest := sha1.Sum(message)
	digestErr := rsa.VerifyPKCS1v15(publicKey, crypto.SHA1, digest[:], signature)
	if digestErr == nil {
		return nil
	}
	if rsa.VerifyPKCS1v15(publicKey, crypto.Hash(0), message, signature) == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrIntegrity, digestErr)
}
