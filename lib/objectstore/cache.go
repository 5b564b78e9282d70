// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objectstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	dataDir = "data"

	// rootFilePrefix is shared by every uncompressed root file the
	// repository publishes.
	rootFilePrefix = ".cvmfs"
)

// Cache is the on-disk object cache: data/00 through data/ff for
// content-addressed objects and the cache root for root files.
//
// Cache performs no locking. Concurrent writers publish through
// atomic renames, so readers never observe a partial file.
type Cache struct {
	root string
}

// OpenCache validates dir and creates the shard structure. The
// directory must already exist and be writable; any failure wraps
// [ErrCacheDirectory].
func OpenCache(dir string) (*Cache, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: no directory configured", ErrCacheDirectory)
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCacheDirectory, dir, err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheDirectory, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrCacheDirectory, root)
	}
	if err := unix.Access(root, unix.W_OK); err != nil {
		return nil, fmt.Errorf("%w: %s is not writable: %w", ErrCacheDirectory, root, err)
	}

	cache := &Cache{root: root}
	if err := cache.createShards(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheDirectory, err)
	}
	return cache, nil
}

// Root returns the absolute cache directory.
func (c *Cache) Root() string {
	return c.root
}

// Path maps a slash-separated repository name to its location in the
// cache. The file need not exist.
func (c *Cache) Path(name string) string {
	return filepath.Join(c.root, filepath.FromSlash(name))
}

// Get returns the cached path for name if it exists as a regular
// file.
func (c *Cache) Get(name string) (string, bool) {
	path := c.Path(name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return path, true
}

// Evict deletes every cached object and recreates the empty shard
// directories. Root files are kept.
func (c *Cache) Evict() error {
	if err := os.RemoveAll(filepath.Join(c.root, dataDir)); err != nil {
		return fmt.Errorf("evicting cache %s: %w", c.root, err)
	}
	return c.createShards()
}

// CleanupMetadata removes cached root files and their fetch records.
func (c *Cache) CleanupMetadata() error {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return fmt.Errorf("listing cache %s: %w", c.root, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasPrefix(name, rootFilePrefix) && name != recordsFile) {
			continue
		}
		if err := os.Remove(filepath.Join(c.root, name)); err != nil {
			return fmt.Errorf("removing cached root file %s: %w", name, err)
		}
	}
	return nil
}

func (c *Cache) createShards() error {
	for shard := 0; shard <= 0xff; shard++ {
		dir := filepath.Join(c.root, dataDir, fmt.Sprintf("%02x", shard))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating shard directory %s: %w", dir, err)
		}
	}
	return nil
}
