// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bureau-foundation/cvmfs/lib/clock"
	"github.com/bureau-foundation/cvmfs/lib/history"
	"github.com/bureau-foundation/cvmfs/lib/objectstore"
	"github.com/bureau-foundation/cvmfs/lib/rootfile"
	"github.com/bureau-foundation/cvmfs/lib/version"
)

// Replication marker files a Stratum 1 publishes next to the
// manifest.
const (
	LastSnapshotName = ".cvmfs_last_snapshot"
	SnapshottingName = ".cvmfs_is_snapshotting"
)

// serverRoot is where a Stratum 0 or 1 keeps its repositories; a
// bare repository name is looked up below it.
var serverRoot = "/srv/cvmfs"

// Repository types reported by [Repository.Type].
const (
	TypeUnknown  = "unknown"
	TypeStratum1 = "stratum1"
)

// Config holds the parameters for [Open].
type Config struct {
	// Source locates the repository: an http(s) URL, a file:// URL, a
	// local directory, or a repository name under /srv/cvmfs.
	Source string

	// CacheDir is the object cache directory. It must exist and be
	// writable. Ignored when Cache is set.
	CacheDir string

	// Cache is an already opened object cache.
	Cache *objectstore.Cache

	// HTTPClient is used for http(s) sources. If nil,
	// http.DefaultClient is used.
	HTTPClient *http.Client

	// UserAgent overrides the default User-Agent header.
	UserAgent string

	// AllowStaleManifest falls back to the cached manifest when the
	// source cannot be reached, as long as the cached copy is younger
	// than its TTL.
	AllowStaleManifest bool

	// Logger receives lifecycle events. If nil, a no-op logger is
	// used.
	Logger *slog.Logger

	// Clock drives whitelist expiry and manifest freshness checks.
	// If nil, the real clock is used.
	Clock clock.Clock
}

// ReplicationState describes a Stratum 1 replica's markers. The zero
// value means no markers were published.
type ReplicationState struct {
	// LastSnapshot is when the replica last finished a snapshot.
	LastSnapshot time.Time

	// Snapshotting reports a snapshot in progress, started at
	// SnapshottingSince (zero if the marker held no readable date).
	Snapshotting      bool
	SnapshottingSince time.Time
}

// Repository is an open repository. It is not safe for concurrent
// use.
type Repository struct {
	store    *objectstore.Store
	manifest *rootfile.Manifest
	logger   *slog.Logger
	clock    clock.Clock

	repositoryType string
	replication    ReplicationState

	// catalogs is the mount table, keyed by catalog content hash.
	catalogs map[string]*mount

	history *history.History
}

// Open connects to the repository named by cfg.Source, reads its
// manifest and replication markers, and mounts the root catalog.
func Open(ctx context.Context, cfg Config) (*Repository, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	source, err := resolveSource(cfg)
	if err != nil {
		return nil, err
	}

	store, err := objectstore.Open(objectstore.Config{
		CacheDir: cfg.CacheDir,
		Cache:    cfg.Cache,
		Source:   source,
		Logger:   logger,
		Clock:    cfg.Clock,
	})
	if err != nil {
		return nil, err
	}

	repository := &Repository{
		store:          store,
		logger:         logger,
		clock:          clock.OrReal(cfg.Clock),
		repositoryType: TypeUnknown,
		catalogs:       make(map[string]*mount),
	}

	if err := repository.readManifest(ctx, cfg.AllowStaleManifest); err != nil {
		return nil, err
	}
	repository.readReplicationState(ctx)

	if _, err := repository.RetrieveRootCatalog(ctx); err != nil {
		return nil, fmt.Errorf("mounting root catalog: %w", err)
	}

	logger.Info("repository opened",
		"name", repository.manifest.RepositoryName,
		"revision", repository.manifest.Revision,
		"source", source.String(),
		"type", repository.repositoryType,
	)
	return repository, nil
}

// resolveSource turns cfg.Source into an object source. A bare name
// that exists under /srv/cvmfs wins over a relative directory of the
// same name.
func resolveSource(cfg Config) (objectstore.Source, error) {
	location := cfg.Source
	if location == "" {
		return nil, fmt.Errorf("%w: no source given", ErrNotFound)
	}

	if !strings.Contains(location, "://") && !filepath.IsAbs(location) {
		candidate := filepath.Join(serverRoot, location)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			location = candidate
		}
	}

	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}

	source, err := objectstore.NewSource(location, client, userAgent)
	if err != nil {
		return nil, fmt.Errorf("%w: repository source %q: %w", ErrNotFound, cfg.Source, err)
	}
	return source, nil
}

func (r *Repository) readManifest(ctx context.Context, allowStale bool) error {
	path, err := r.store.RetrieveRaw(ctx, rootfile.ManifestName)
	if err != nil {
		if !allowStale || !errors.Is(err, objectstore.ErrSourceUnavailable) {
			return fmt.Errorf("reading manifest: %w", err)
		}
		stalePath, staleErr := r.staleManifest()
		if staleErr != nil {
			return fmt.Errorf("reading manifest: %w (no usable cached copy: %w)", err, staleErr)
		}
		r.logger.Warn("source unreachable, using cached manifest",
			"error", err,
			"path", stalePath,
		)
		path = stalePath
	}

	manifest, err := rootfile.LoadManifest(path)
	if err != nil {
		return err
	}
	r.manifest = manifest
	return nil
}

// staleManifest returns the cached manifest if it is still within
// its own TTL.
func (r *Repository) staleManifest() (string, error) {
	path, fetchedAt, ok := r.store.RetrieveCachedRaw(rootfile.ManifestName)
	if !ok {
		return "", errors.New("no cached manifest")
	}
	manifest, err := rootfile.LoadManifest(path)
	if err != nil {
		return "", err
	}
	age := r.clock.Now().Sub(fetchedAt)
	if age >= manifest.TTL() {
		return "", fmt.Errorf("cached manifest is %s old, TTL %s", age.Round(time.Second), manifest.TTL())
	}
	return path, nil
}

// markerLayouts are the date(1) formats replication markers use.
var markerLayouts = []string{
	time.UnixDate,
	"Mon Jan 02 15:04:05 MST 2006",
	time.RFC3339,
}

// readReplicationState reads the Stratum 1 markers. Failures are
// logged and leave the state empty.
func (r *Repository) readReplicationState(ctx context.Context) {
	if when, found, err := r.readMarker(ctx, LastSnapshotName); err != nil {
		r.logger.Warn("reading replication marker failed", "file", LastSnapshotName, "error", err)
	} else if found {
		r.replication.LastSnapshot = when
		if !when.IsZero() {
			r.repositoryType = TypeStratum1
		}
	}

	if when, found, err := r.readMarker(ctx, SnapshottingName); err != nil {
		r.logger.Warn("reading replication marker failed", "file", SnapshottingName, "error", err)
	} else if found {
		r.replication.Snapshotting = true
		r.replication.SnapshottingSince = when
	}
}

// readMarker fetches a marker file and parses the date on its first
// line. found is false if the source does not have the file; an
// unparseable date yields found with a zero time.
func (r *Repository) readMarker(ctx context.Context, name string) (time.Time, bool, error) {
	path, err := r.store.RetrieveRaw(ctx, name)
	if err != nil {
		if objectstore.IsNotFound(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}

	file, err := os.Open(path)
	if err != nil {
		return time.Time{}, false, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		return time.Time{}, true, scanner.Err()
	}
	line := strings.TrimSpace(scanner.Text())
	for _, layout := range markerLayouts {
		if when, err := time.Parse(layout, line); err == nil {
			return when.UTC(), true, nil
		}
	}
	r.logger.Debug("unparseable replication marker", "file", name, "content", line)
	return time.Time{}, true, nil
}

// Manifest returns the manifest the repository was opened with.
func (r *Repository) Manifest() *rootfile.Manifest { return r.manifest }

// Name returns the fully qualified repository name.
func (r *Repository) Name() string { return r.manifest.RepositoryName }

// Type returns TypeStratum1 when the source publishes a last-snapshot
// marker, TypeUnknown otherwise.
func (r *Repository) Type() string { return r.repositoryType }

// Replication returns the replica's snapshot markers.
func (r *Repository) Replication() ReplicationState { return r.replication }

// Store returns the object store backing the repository.
func (r *Repository) Store() *objectstore.Store { return r.store }

// RetrieveObject returns the cached path of a verified object.
func (r *Repository) RetrieveObject(ctx context.Context, hash objectstore.ContentHash, kind objectstore.Kind) (string, error) {
	return r.store.Retrieve(ctx, hash, kind)
}

// Close unloads every catalog and the history database.
func (r *Repository) Close() error {
	var errs []error
	if err := r.UnloadAll(); err != nil {
		errs = append(errs, err)
	}
	if r.history != nil {
		if err := r.history.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing history: %w", err))
		}
		r.history = nil
	}
	return errors.Join(errs...)
}
