// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Assemble concatenates the objects named by parts, in order, into a
// single cached file whose content must hash to whole. The result is
// cached under whole's object name, so a later call is served from
// the cache after re-verification. Each part is retrieved and
// verified on its own first.
func (s *Store) Assemble(ctx context.Context, whole ContentHash, parts []ContentHash) (string, error) {
	if err := whole.Validate(); err != nil {
		return "", fmt.Errorf("assembling object: %w", err)
	}

	name := ObjectPath(whole, KindNone)
	result, err, _ := s.fetches.Do("assemble:"+name, func() (any, error) {
		return s.assemble(ctx, whole, name, parts)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (s *Store) assemble(ctx context.Context, whole ContentHash, name string, parts []ContentHash) (string, error) {
	path := s.cache.Path(name)
	if _, err := os.Stat(path); err == nil {
		digest, err := digestFile(path, whole.Algorithm)
		if err == nil && bytes.Equal(digest, whole.Digest) {
			s.logger.Debug("assembled object cache hit", "object", name)
			return path, nil
		}
		s.logger.Warn("cached assembled object failed verification, assembling again", "object", name)
		os.Remove(path)
	}

	temporary, err := os.CreateTemp(filepath.Dir(path), ".assemble-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file for %s: %w", name, err)
	}
	temporaryPath := temporary.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(temporaryPath)
		}
	}()

	hasher := whole.Algorithm.New()
	output := io.MultiWriter(temporary, hasher)
	var written int64
	for index, part := range parts {
		partPath, err := s.Retrieve(ctx, part, KindNone)
		if err != nil {
			temporary.Close()
			return "", fmt.Errorf("assembling %s: part %d: %w", name, index, err)
		}
		n, err := appendFile(output, partPath)
		if err != nil {
			temporary.Close()
			return "", fmt.Errorf("assembling %s: part %d: %w", name, index, err)
		}
		written += n
	}
	if err := temporary.Close(); err != nil {
		return "", fmt.Errorf("closing temp file for %s: %w", name, err)
	}

	computed := hasher.Sum(nil)
	if !bytes.Equal(computed, whole.Digest) {
		return "", &HashMismatchError{Name: name, Expected: whole, Computed: computed}
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		return "", fmt.Errorf("publishing %s: %w", name, err)
	}
	success = true

	s.logger.Debug("object assembled",
		"object", name,
		"parts", len(parts),
		"size", written,
	)
	return path, nil
}

func appendFile(output io.Writer, path string) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()
	return io.Copy(output, file)
}
