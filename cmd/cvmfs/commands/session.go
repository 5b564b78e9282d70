// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/bureau-foundation/cvmfs/cmd/cvmfs/cli"
	"github.com/bureau-foundation/cvmfs/lib/catalog"
	"github.com/bureau-foundation/cvmfs/lib/config"
	"github.com/bureau-foundation/cvmfs/lib/repository"
)

// sessionParams are the flags shared by every command that reads a
// repository. They override the configuration file.
type sessionParams struct {
	Config     string `flag:"config" desc:"client configuration file (default $CVMFS_CLIENT_CONFIG)"`
	Source     string `flag:"source,s" desc:"repository URL, directory, or name under /srv/cvmfs"`
	CacheDir   string `flag:"cache-dir" desc:"object cache directory"`
	AllowStale bool   `flag:"allow-stale" desc:"use a cached manifest within its TTL when the source is unreachable"`
	Verbose    bool   `flag:"verbose,v" desc:"log debug messages"`
}

// load reads the configuration and applies flag overrides. It does
// not validate.
func (s *sessionParams) load() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if s.Config != "" {
		cfg, err = config.LoadFile(s.Config)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if s.Source != "" {
		cfg.Source = s.Source
	}
	if s.CacheDir != "" {
		cfg.CacheDir = s.CacheDir
	}
	if s.AllowStale {
		cfg.AllowStaleManifest = true
	}
	return cfg, nil
}

func (s *sessionParams) logger(env *environment, cfg *config.Config) (*slog.Logger, error) {
	return cli.NewLogger(env.stderr, cfg.Log.Level, cfg.Log.Format, s.Verbose)
}

// open validates the configuration and opens the repository. The
// cache directory is created if missing.
func (s *sessionParams) open(env *environment) (*repository.Repository, *config.Config, error) {
	cfg, err := s.load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := s.logger(env, cfg)
	if err != nil {
		return nil, nil, err
	}
	timeout, err := cfg.HTTPTimeout()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating cache directory: %w", err)
	}

	repo, err := repository.Open(env.ctx, repository.Config{
		Source:             cfg.Source,
		CacheDir:           cfg.CacheDir,
		HTTPClient:         &http.Client{Timeout: timeout},
		UserAgent:          cfg.HTTP.UserAgent,
		AllowStaleManifest: cfg.AllowStaleManifest,
		Logger:             logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return repo, cfg, nil
}

// snapshotParams select a tagged snapshot instead of the current
// revision.
type snapshotParams struct {
	Tag      string `flag:"tag,t" desc:"read the snapshot with this tag name"`
	Revision int64  `flag:"revision,r" desc:"read the tagged snapshot with this revision number"`
}

// tree is the read interface shared by the current revision and
// tagged snapshots.
type tree interface {
	Lookup(ctx context.Context, path string) (catalog.DirectoryEntry, bool, error)
	ListDirectory(ctx context.Context, path string) ([]catalog.DirectoryEntry, bool, error)
	ResolvePath(ctx context.Context, path string) (*catalog.Catalog, error)
	GetFile(ctx context.Context, path string) (string, error)
	RetrieveCatalogTree(ctx context.Context) ([]*catalog.Catalog, error)
	Iterate(ctx context.Context) (*repository.TreeIterator, error)
}

var (
	_ tree = (*repository.Repository)(nil)
	_ tree = (*repository.Revision)(nil)
)

// selectTree returns the tree the flags name.
func (p *snapshotParams) selectTree(ctx context.Context, repo *repository.Repository) (tree, error) {
	switch {
	case p.Tag != "" && p.Revision != 0:
		return nil, fmt.Errorf("--tag and --revision are mutually exclusive")
	case p.Tag != "":
		return repo.Revision(ctx, p.Tag)
	case p.Revision != 0:
		return repo.RevisionByNumber(ctx, p.Revision)
	default:
		return repo, nil
	}
}
