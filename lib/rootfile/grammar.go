// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rootfile

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// signatureMarker starts the signature block.
const signatureMarker = "--"

// Grammar tells [Parse] how to interpret the lines of one kind of
// root file.
type Grammar struct {
	// Name identifies the file kind in errors.
	Name string

	// Patterns are tried in order before tag dispatch. The first
	// pattern that matches a line consumes it.
	Patterns []LinePattern

	// Fields maps a tag to the handler for its value.
	Fields map[byte]func(value string) error

	// Validate runs after the last line and checks mandatory fields.
	Validate func() error
}

// LinePattern handles untagged lines recognised by shape.
type LinePattern struct {
	Match *regexp.Regexp
	Apply func(line string) error
}

// Signature is the trailer of a signed root file.
type Signature struct {
	// Checksum is the declared SHA-1 of Body, as hex text.
	Checksum string

	// Body is the exact signed bytes: everything before the "--"
	// line.
	Body []byte

	// Bytes is the raw signature.
	Bytes []byte
}

// Parse walks data with grammar. It returns the signature trailer, or
// nil for an unsigned file.
func Parse(data []byte, grammar Grammar) (*Signature, error) {
	var signature *Signature

	offset := 0
	lineNumber := 0
	for offset < len(data) {
		lineStart := offset
		line, next := readLine(data, offset)
		offset = next
		lineNumber++

		if line == "" {
			continue
		}

		if line == signatureMarker {
			var err error
			signature, err = parseSignature(data[:lineStart], data[offset:], grammar.Name)
			if err != nil {
				return nil, err
			}
			break
		}

		if err := dispatch(grammar, line, lineNumber); err != nil {
			return nil, err
		}
	}

	if grammar.Validate != nil {
		if err := grammar.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrParse, grammar.Name, err)
		}
	}
	return signature, nil
}

func dispatch(grammar Grammar, line string, lineNumber int) error {
	for _, pattern := range grammar.Patterns {
		if pattern.Match.MatchString(line) {
			if err := pattern.Apply(line); err != nil {
				return fmt.Errorf("%w: %s line %d: %w", ErrParse, grammar.Name, lineNumber, err)
			}
			return nil
		}
	}

	tag := line[0]
	handler, ok := grammar.Fields[tag]
	if !ok {
		return &UnknownFieldError{File: grammar.Name, Tag: tag, Line: lineNumber}
	}
	if err := handler(line[1:]); err != nil {
		return fmt.Errorf("%w: %s line %d (%c): %w", ErrParse, grammar.Name, lineNumber, tag, err)
	}
	return nil
}

// parseSignature checks the trailer following the "--" line: a
// checksum line that matches body, then a non-empty signature.
func parseSignature(body, trailer []byte, name string) (*Signature, error) {
	checksumLine, signatureStart := readLine(trailer, 0)
	if checksumLine == "" {
		return nil, fmt.Errorf("%w: %s: signature block has no checksum", ErrIntegrity, name)
	}

	checksum := strings.TrimSpace(checksumLine)
	if len(checksum) != 2*sha1.Size {
		return nil, fmt.Errorf("%w: %s: checksum %q is not a SHA-1", ErrIntegrity, name, checksum)
	}
	if _, err := hex.DecodeString(checksum); err != nil {
		return nil, fmt.Errorf("%w: %s: checksum %q: %w", ErrIntegrity, name, checksum, err)
	}

	digest := sha1.Sum(body)
	if !strings.EqualFold(hex.EncodeToString(digest[:]), checksum) {
		return nil, fmt.Errorf("%w: %s: body checksum %x does not match declared %s",
			ErrIntegrity, name, digest, checksum)
	}

	signatureBytes := trailer[signatureStart:]
	if len(signatureBytes) == 0 {
		return nil, fmt.Errorf("%w: %s: empty signature", ErrIntegrity, name)
	}

	return &Signature{
		Checksum: checksum,
		Body:     bytes.Clone(body),
		Bytes:    bytes.Clone(signatureBytes),
	}, nil
}

// readLine returns the line starting at offset without its newline,
// and the offset of the following line.
func readLine(data []byte, offset int) (string, int) {
	end := bytes.IndexByte(data[offset:], '\n')
	if end < 0 {
		return strings.TrimSuffix(string(data[offset:]), "\r"), len(data)
	}
	return strings.TrimSuffix(string(data[offset:offset+end]), "\r"), offset + end + 1
}
