// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objectstore

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
	"golang.org/x/sync/singleflight"

	"github.com/bureau-foundation/cvmfs/lib/clock"
)

// Config holds the parameters for [Open].
type Config struct {
	// CacheDir is the cache directory. Ignored when Cache is set.
	CacheDir string

	// Cache is an already opened cache, shared between stores.
	Cache *Cache

	// Source supplies objects and root files on a cache miss.
	Source Source

	// Logger receives cache and fetch events. If nil, a no-op logger
	// is used.
	Logger *slog.Logger

	// Clock stamps root file fetch records. If nil, the real clock is
	// used.
	Clock clock.Clock
}

// Store retrieves verified objects through the cache. Store is safe
// for concurrent use.
type Store struct {
	cache  *Cache
	source Source
	logger *slog.Logger
	clock  clock.Clock

	// fetches collapses concurrent retrievals of the same object into
	// a single download.
	fetches singleflight.Group

	// recordsMu serializes read-modify-write of the root file
	// records.
	recordsMu sync.Mutex
}

// Open creates a Store. The cache directory must be usable.
func Open(cfg Config) (*Store, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("objectstore: Source is required")
	}

	cache := cfg.Cache
	if cache == nil {
		var err error
		cache, err = OpenCache(cfg.CacheDir)
		if err != nil {
			return nil, err
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Info("object store opened",
		"cache", cache.Root(),
		"source", cfg.Source.String(),
	)

	return &Store{
		cache:  cache,
		source: cfg.Source,
		logger: logger,
		clock:  clock.OrReal(cfg.Clock),
	}, nil
}

// Cache returns the underlying cache.
func (s *Store) Cache() *Cache {
	return s.cache
}

// Source returns the configured source.
func (s *Store) Source() Source {
	return s.source
}

// Retrieve returns the local path of the object named by hash and
// kind, downloading it on a cache miss. The returned file's content
// hashes to hash. A cached file that fails verification is deleted
// and fetched again.
//
// Concurrent calls for the same object share one download and the
// first caller's context.
func (s *Store) Retrieve(ctx context.Context, hash ContentHash, kind Kind) (string, error) {
	if err := hash.Validate(); err != nil {
		return "", fmt.Errorf("retrieving object: %w", err)
	}

	name := ObjectPath(hash, kind)
	result, err, _ := s.fetches.Do(name, func() (any, error) {
		return s.retrieve(ctx, hash, name)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (s *Store) retrieve(ctx context.Context, hash ContentHash, name string) (string, error) {
	path := s.cache.Path(name)

	if _, err := os.Stat(path); err == nil {
		digest, err := digestFile(path, hash.Algorithm)
		if err != nil {
			return "", fmt.Errorf("verifying cached object %s: %w", name, err)
		}
		if bytes.Equal(digest, hash.Digest) {
			s.logger.Debug("object cache hit", "object", name)
			return path, nil
		}
		s.logger.Warn("cached object failed verification, fetching again",
			"object", name,
			"computed", fmt.Sprintf("%x", digest),
		)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("removing corrupt cached object %s: %w", name, err)
		}
	}

	return s.fetch(ctx, hash, name, path)
}

// fetch downloads name, inflating and hashing into a temp file in the
// shard directory, and renames it into place only if the digest
// matches.
func (s *Store) fetch(ctx context.Context, hash ContentHash, name, path string) (string, error) {
	reader, err := s.source.Open(ctx, name)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", name, err)
	}
	defer reader.Close()

	temporary, err := os.CreateTemp(filepath.Dir(path), ".fetch-*")
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

	inflater, err := zlib.NewReader(bufio.NewReader(reader))
	if err != nil {
		temporary.Close()
		return "", s.classifyReadError(name, err)
	}

	hasher := hash.Algorithm.New()
	written, err := io.Copy(io.MultiWriter(temporary, hasher), inflater)
	inflater.Close()
	if err != nil {
		temporary.Close()
		return "", s.classifyReadError(name, err)
	}
	if err := temporary.Close(); err != nil {
		return "", fmt.Errorf("closing temp file for %s: %w", name, err)
	}

	computed := hasher.Sum(nil)
	if !bytes.Equal(computed, hash.Digest) {
		s.logger.Warn("downloaded object failed verification",
			"object", name,
			"computed", fmt.Sprintf("%x", computed),
		)
		return "", &HashMismatchError{Name: name, Expected: hash, Computed: computed}
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		return "", fmt.Errorf("publishing %s: %w", name, err)
	}
	success = true

	s.logger.Debug("object fetched",
		"object", name,
		"size", written,
	)
	return path, nil
}

// classifyReadError separates a corrupt compressed stream from a
// transport failure while reading it.
func (s *Store) classifyReadError(name string, err error) error {
	var corrupt flate.CorruptInputError
	if errors.Is(err, zlib.ErrHeader) ||
		errors.Is(err, zlib.ErrChecksum) ||
		errors.Is(err, zlib.ErrDictionary) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.As(err, &corrupt) {
		return &CorruptObjectError{Name: name, Err: err}
	}
	if errors.Is(err, ErrSourceUnavailable) || errors.Is(err, ErrNotFound) {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	return fmt.Errorf("%w: reading %s: %w", ErrSourceUnavailable, name, err)
}

// RetrieveRaw downloads the uncompressed root file name into the
// cache root, replacing any previous copy, and records the fetch
// time.
func (s *Store) RetrieveRaw(ctx context.Context, name string) (string, error) {
	reader, err := s.source.Open(ctx, name)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", name, err)
	}
	defer reader.Close()

	path := s.cache.Path(name)
	temporary, err := os.CreateTemp(filepath.Dir(path), ".raw-*")
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

	written, err := io.Copy(temporary, reader)
	if err != nil {
		temporary.Close()
		return "", s.classifyReadError(name, err)
	}
	if err := temporary.Close(); err != nil {
		return "", fmt.Errorf("closing temp file for %s: %w", name, err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		return "", fmt.Errorf("publishing %s: %w", name, err)
	}
	success = true

	fetchedAt := s.clock.Now()
	if err := s.recordFetch(name, RootFileRecord{
		FetchedAt: fetchedAt,
		Size:      written,
		Source:    s.source.String(),
	}); err != nil {
		// The file itself is in place; only the offline fallback
		// loses its freshness information.
		s.logger.Warn("recording root file fetch failed",
			"file", name,
			"error", err,
		)
	}

	s.logger.Info("root file refreshed",
		"file", name,
		"size", written,
	)
	return path, nil
}

// RetrieveCachedRaw returns the last downloaded copy of a root file
// and when it was fetched. ok is false if there is no copy or no
// record of it.
func (s *Store) RetrieveCachedRaw(name string) (path string, fetchedAt time.Time, ok bool) {
	path, exists := s.cache.Get(name)
	if !exists {
		return "", time.Time{}, false
	}

	s.recordsMu.Lock()
	records, err := loadRecords(s.cache)
	s.recordsMu.Unlock()
	if err != nil {
		s.logger.Warn("reading root file records failed", "error", err)
		return "", time.Time{}, false
	}

	record, recorded := records.Files[name]
	if !recorded {
		return "", time.Time{}, false
	}
	return path, record.FetchedAt, true
}

// Evict clears every cached object.
func (s *Store) Evict() error {
	if err := s.cache.Evict(); err != nil {
		return err
	}
	s.logger.Info("object cache evicted", "cache", s.cache.Root())
	return nil
}

func digestFile(path string, algorithm Algorithm) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	hasher := algorithm.New()
	if hasher == nil {
		return nil, fmt.Errorf("unknown hash algorithm %d", algorithm)
	}
	if _, err := io.Copy(hasher, file); err != nil {
		return nil, err
	}
	return hasher.Sum(nil), nil
}
