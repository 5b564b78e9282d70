// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rootfile

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

// WhitelistName is the whitelist's file name at the repository root.
const WhitelistName = ".cvmfswhitelist"

// timestampLayout is the yyyyMMddHHmmss form used for whitelist
// timestamps, always UTC.
const timestampLayout = "20060102150405"

var (
	// fingerprintLine matches a certificate fingerprint, optionally
	// followed by a comment such as "# CN=...".
	fingerprintLine = regexp.MustCompile(`^(([0-9A-F]{2}:){19}[0-9A-F]{2}).*`)

	// timestampLine is the bare last-modified timestamp.
	timestampLine = regexp.MustCompile(`^[0-9]{14}$`)
)

// Whitelist lists the certificates allowed to sign a repository's
// manifest until an expiry date.
type Whitelist struct {
	RepositoryName string
	LastModified   time.Time
	ExpiresAt      time.Time
	Fingerprints   []string

	Signature *Signature
}

// ParseWhitelist parses whitelist bytes. Fingerprint lines are
// recognised before tags, since a fingerprint may begin with a tag
// letter.
func ParseWhitelist(data []byte) (*Whitelist, error) {
	whitelist := &Whitelist{}

	grammar := Grammar{
		Name: "whitelist",
		Patterns: []LinePattern{
			{
				Match: fingerprintLine,
				Apply: func(line string) error {
					whitelist.Fingerprints = append(whitelist.Fingerprints, fingerprintLine.FindStringSubmatch(line)[1])
					return nil
				},
			},
			{
				Match: timestampLine,
				Apply: func(line string) error {
					return parseTimestamp(line, &whitelist.LastModified)
				},
			},
		},
		Fields: map[byte]func(string) error{
			'N': func(value string) error {
				whitelist.RepositoryName = value
				return nil
			},
			'E': func(value string) error {
				return parseTimestamp(value, &whitelist.ExpiresAt)
			},
		},
		Validate: func() error {
			var errs []error
			if len(whitelist.Fingerprints) == 0 {
				errs = append(errs, errors.New("no certificate fingerprints"))
			}
			if whitelist.ExpiresAt.IsZero() {
				errs = append(errs, errors.New("no expiry (E)"))
			}
			if whitelist.RepositoryName == "" {
				errs = append(errs, errors.New("no repository name (N)"))
			}
			return errors.Join(errs...)
		},
	}

	signature, err := Parse(data, grammar)
	if err != nil {
		return nil, err
	}
	whitelist.Signature = signature
	return whitelist, nil
}

// LoadWhitelist reads and parses a whitelist file.
func LoadWhitelist(path string) (*Whitelist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading whitelist: %w", err)
	}
	return ParseWhitelist(data)
}

// Expired reports whether the whitelist is no longer valid at now.
func (w *Whitelist) Expired(now time.Time) bool {
	return !w.ExpiresAt.After(now)
}

// Contains reports whether fingerprint is whitelisted.
func (w *Whitelist) Contains(fingerprint string) bool {
	for _, listed := range w.Fingerprints {
		if strings.EqualFold(listed, fingerprint) {
			return true
		}
	}
	return false
}

// VerifySignature checks the whitelist signature with a trusted key.
func (w *Whitelist) VerifySignature(publicKey *rsa.PublicKey) error {
	if w.Signature == nil {
		return fmt.Errorf("%w: whitelist is not signed", ErrIntegrity)
	}
	if err := verifyRSA(publicKey, []byte(w.Signature.Checksum), w.Signature.Bytes); err != nil {
		return fmt.Errorf("whitelist signature: %w", err)
	}
	return nil
}

func parseTimestamp(value string, target *time.Time) error {
	parsed, err := time.ParseInLocation(timestampLayout, value, time.UTC)
	if err != nil {
		return fmt.Errorf("timestamp %q: %w", value, err)
	}
	*target = parsed
	return nil
}
