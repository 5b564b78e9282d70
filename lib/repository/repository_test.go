// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package repository_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/bureau-foundation/cvmfs/lib/catalog"
	"github.com/bureau-foundation/cvmfs/lib/clock"
	"github.com/bureau-foundation/cvmfs/lib/objectstore"
	"github.com/bureau-foundation/cvmfs/lib/repository"
	"github.com/bureau-foundation/cvmfs/lib/rootfile"
	"github.com/bureau-foundation/cvmfs/lib/testrepo"
)

// buildSmallTree publishes five files in two directories:
//
//	/README
//	/bin/run
//	/bin/tool
//	/lib/libx.so
//	/lib/liby.so
func buildSmallTree(t *testing.T) (*testrepo.Builder, *testrepo.Repository) {
	t.Helper()
	builder := testrepo.New(t, testrepo.Options{})
	builder.File("/README", []byte("read me\n"))
	builder.File("/bin/run", []byte("#!/bin/sh\n"))
	builder.File("/bin/tool", []byte("tool"))
	builder.File("/lib/libx.so", []byte("x"))
	builder.File("/lib/liby.so", []byte("y"))
	return builder, builder.Publish(testrepo.Snapshot{Tag: "initial"})
}

// buildNestedTree publishes a tree with a nested catalog at /sub and
// another at /sub/deep.
func buildNestedTree(t *testing.T) (*testrepo.Builder, *testrepo.Repository) {
	t.Helper()
	builder := testrepo.New(t, testrepo.Options{})
	builder.File("/a", []byte("a"))
	builder.File("/sub/x", []byte("x"))
	builder.File("/sub/y/z", []byte("z"))
	builder.File("/sub/deep/w", []byte("w"))
	builder.File("/subway", []byte("not nested"))
	builder.NestedCatalog("/sub")
	builder.NestedCatalog("/sub/deep")
	return builder, builder.Publish(testrepo.Snapshot{})
}

func openRepository(t *testing.T, source string) *repository.Repository {
	t.Helper()
	repo, err := repository.Open(context.Background(), repository.Config{
		Source:   source,
		CacheDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func names(entries []catalog.DirectoryEntry) []string {
	result := make([]string, len(entries))
	for i, entry := range entries {
		result[i] = entry.Name
	}
	return result
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func TestOpen(t *testing.T) {
	_, published := buildSmallTree(t)
	repo := openRepository(t, published.Dir)

	if repo.Name() != testrepo.DefaultName {
		t.Errorf("Name = %s", repo.Name())
	}
	if repo.Manifest().Revision != 1 {
		t.Errorf("Revision = %d", repo.Manifest().Revision)
	}
	if repo.Type() != repository.TypeUnknown {
		t.Errorf("Type = %s", repo.Type())
	}
	if repo.OpenCatalogCount() != 1 {
		t.Errorf("OpenCatalogCount = %d, want the root catalog only", repo.OpenCatalogCount())
	}
	if repo.MountedCatalog("/") == nil {
		t.Error("root catalog should be mounted")
	}
}

func TestOpen_Sources(t *testing.T) {
	_, published := buildSmallTree(t)

	t.Run("file URL", func(t *testing.T) {
		repo := openRepository(t, "file://"+published.Dir)
		if repo.Name() != testrepo.DefaultName {
			t.Errorf("Name = %s", repo.Name())
		}
	})

	t.Run("http", func(t *testing.T) {
		server := httptest.NewServer(http.FileServer(http.Dir(published.Dir)))
		defer server.Close()

		repo := openRepository(t, server.URL)
		entries, found, err := repo.ListDirectory(context.Background(), "/bin")
		if err != nil || !found {
			t.Fatalf("ListDirectory = %v, %v", found, err)
		}
		if got := names(entries); !slices.Equal(got, []string{"run", "tool"}) {
			t.Errorf("entries = %v", got)
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, err := repository.Open(context.Background(), repository.Config{
			Source:   filepath.Join(t.TempDir(), "no-such-repository"),
			CacheDir: t.TempDir(),
		})
		if !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("bad cache directory", func(t *testing.T) {
		_, err := repository.Open(context.Background(), repository.Config{
			Source:   published.Dir,
			CacheDir: filepath.Join(t.TempDir(), "absent"),
		})
		if !errors.Is(err, objectstore.ErrCacheDirectory) {
			t.Errorf("expected ErrCacheDirectory, got %v", err)
		}
	})
}

func TestListDirectory_Root(t *testing.T) {
	_, published := buildSmallTree(t)
	repo := openRepository(t, published.Dir)

	entries, found, err := repo.ListDirectory(context.Background(), "/")
	if err != nil || !found {
		t.Fatalf("ListDirectory(/) = %v, %v", found, err)
	}
	if got, want := names(entries), []string{"README", "bin", "lib"}; !slices.Equal(got, want) {
		t.Fatalf("root entries = %v, want %v", got, want)
	}
	if !entries[0].IsFile() || !entries[1].IsDirectory() || !entries[2].IsDirectory() {
		t.Errorf("unexpected entry kinds: %+v", entries)
	}

	for _, path := range []string{"", ".", "//"} {
		again, found, err := repo.ListDirectory(context.Background(), path)
		if err != nil || !found || !slices.Equal(names(again), names(entries)) {
			t.Errorf("ListDirectory(%q) = %v, %v, %v", path, names(again), found, err)
		}
	}
}

func TestListDirectory_NotADirectory(t *testing.T) {
	_, published := buildSmallTree(t)
	repo := openRepository(t, published.Dir)
	ctx := context.Background()

	for _, path := range []string{"/README", "/absent", "/absent/child"} {
		entries, found, err := repo.ListDirectory(ctx, path)
		if err != nil || found || entries != nil {
			t.Errorf("ListDirectory(%s) = %v, %v, %v", path, names(entries), found, err)
		}
	}
}

func TestLookup_AcrossNestedCatalogs(t *testing.T) {
	_, published := buildNestedTree(t)
	repo := openRepository(t, published.Dir)
	ctx := context.Background()

	tests := []struct {
		path  string
		found bool
		name  string
	}{
		{"/", true, ""},
		{"/a", true, "a"},
		{"/sub", true, "sub"},
		{"/sub/x", true, "x"},
		{"/sub/y/z", true, "z"},
		{"/sub/deep/w", true, "w"},
		{"/subway", true, "subway"},
		{"/sub/missing", false, ""},
		{"/missing/sub/x", false, ""},
	}
	for _, test := range tests {
		entry, found, err := repo.Lookup(ctx, test.path)
		if err != nil {
			t.Errorf("Lookup(%s): %v", test.path, err)
			continue
		}
		if found != test.found || entry.Name != test.name {
			t.Errorf("Lookup(%s) = %q, %v; want %q, %v", test.path, entry.Name, found, test.name, test.found)
		}
	}

	owner, err := repo.ResolvePath(ctx, "/sub/deep/w")
	if err != nil {
		t.Fatalf("ResolvePath: %v", err)
	}
	if owner.MountPath() != "/sub/deep" || !owner.Hash().Equal(published.Catalogs["/sub/deep"]) {
		t.Errorf("owner of /sub/deep/w = %s", owner.MountPath())
	}
	if owner, _ := repo.ResolvePath(ctx, "/subway"); owner.MountPath() != "" {
		t.Errorf("owner of /subway = %q, want the root catalog", owner.MountPath())
	}
}

func TestListDirectory_Mountpoint(t *testing.T) {
	_, published := buildNestedTree(t)
	repo := openRepository(t, published.Dir)

	entries, found, err := repo.ListDirectory(context.Background(), "/sub")
	if err != nil || !found {
		t.Fatalf("ListDirectory(/sub) = %v, %v", found, err)
	}
	if got := names(entries); !slices.Equal(got, []string{"deep", "x", "y"}) {
		t.Errorf("/sub entries = %v", got)
	}
	if !entries[0].IsNestedCatalogMountpoint() {
		t.Errorf("/sub/deep should be a mountpoint in the /sub catalog")
	}
	if repo.MountedCatalog("/sub") == nil {
		t.Error("/sub catalog should be mounted after listing it")
	}
}

func TestGetFile(t *testing.T) {
	builder := testrepo.New(t, testrepo.Options{})
	builder.File("/plain", []byte("plain content"))
	big := make([]byte, 10000)
	for i := range big {
		big[i] = byte('a' + i%26)
	}
	builder.ChunkedFile("/big", big, 4096)
	builder.Directory("/dir")
	builder.Symlink("/link", "plain")
	published := builder.Publish(testrepo.Snapshot{})

	repo := openRepository(t, published.Dir)
	ctx := context.Background()

	path, err := repo.GetFile(ctx, "/plain")
	if err != nil {
		t.Fatalf("GetFile(/plain): %v", err)
	}
	if readFile(t, path) != "plain content" {
		t.Errorf("/plain content = %q", readFile(t, path))
	}

	path, err = repo.GetFile(ctx, "/big")
	if err != nil {
		t.Fatalf("GetFile(/big): %v", err)
	}
	if readFile(t, path) != string(big) {
		t.Error("reassembled /big differs from the original")
	}

	for _, path := range []string{"/dir", "/link"} {
		if _, err := repo.GetFile(ctx, path); !errors.Is(err, repository.ErrNotFile) {
			t.Errorf("GetFile(%s): expected ErrNotFile, got %v", path, err)
		}
	}
	if _, err := repo.GetFile(ctx, "/absent"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("GetFile(/absent): expected ErrNotFound, got %v", err)
	}
}

// Corrupting a cached object must never yield the corrupt bytes.
func TestGetFile_CorruptCacheRefetches(t *testing.T) {
	_, published := buildSmallTree(t)
	repo := openRepository(t, published.Dir)
	ctx := context.Background()

	path, err := repo.GetFile(ctx, "/bin/tool")
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	data := []byte(readFile(t, path))
	data[0] ^= 0xff
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	path, err = repo.GetFile(ctx, "/bin/tool")
	if err != nil {
		t.Fatalf("GetFile after corruption: %v", err)
	}
	if readFile(t, path) != "tool" {
		t.Errorf("content after corruption = %q", readFile(t, path))
	}
}

func TestRetrieveCatalogTree(t *testing.T) {
	_, published := buildNestedTree(t)
	repo := openRepository(t, published.Dir)
	ctx := context.Background()

	catalogs, err := repo.RetrieveCatalogTree(ctx)
	if err != nil {
		t.Fatalf("RetrieveCatalogTree: %v", err)
	}
	var mounts []string
	for _, mounted := range catalogs {
		mounts = append(mounts, mounted.MountPath())
	}
	if !slices.Equal(mounts, []string{"", "/sub", "/sub/deep"}) {
		t.Errorf("mounts = %q", mounts)
	}
	if repo.OpenCatalogCount() != 3 {
		t.Errorf("OpenCatalogCount = %d", repo.OpenCatalogCount())
	}
	if repo.MountedCatalog("/sub/deep") == nil {
		t.Error("MountedCatalog(/sub/deep) = nil")
	}

	if err := repo.UnloadAll(); err != nil {
		t.Fatalf("UnloadAll: %v", err)
	}
	if repo.OpenCatalogCount() != 0 {
		t.Errorf("OpenCatalogCount after UnloadAll = %d", repo.OpenCatalogCount())
	}

	// Catalogs mount again on demand.
	if _, found, err := repo.Lookup(ctx, "/sub/x"); err != nil || !found {
		t.Errorf("Lookup after UnloadAll = %v, %v", found, err)
	}
}

func TestVerify(t *testing.T) {
	_, published := buildSmallTree(t)
	repo := openRepository(t, published.Dir)

	trusted, err := repo.Verify(context.Background(), published.PublicKeyPath)
	if err != nil || !trusted {
		t.Fatalf("Verify = %v, %v", trusted, err)
	}

	strangerKey := testrepo.NewKeys(t).WritePublicKey(t, t.TempDir())
	trusted, err = repo.Verify(context.Background(), strangerKey)
	if trusted || !errors.Is(err, rootfile.ErrIntegrity) {
		t.Errorf("Verify with an untrusted key = %v, %v", trusted, err)
	}
}

func TestVerify_ExpiredWhitelist(t *testing.T) {
	builder := testrepo.New(t, testrepo.Options{
		WhitelistExpiry: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	builder.File("/a", []byte("a"))
	published := builder.Publish(testrepo.Snapshot{})

	fake := clock.Fake(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	repo, err := repository.Open(context.Background(), repository.Config{
		Source:   published.Dir,
		CacheDir: t.TempDir(),
		Clock:    fake,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer repo.Close()

	if trusted, err := repo.Verify(context.Background(), published.PublicKeyPath); !trusted {
		t.Fatalf("Verify before expiry: %v", err)
	}

	fake.Set(time.Date(2027, 1, 1, 0, 0, 1, 0, time.UTC))
	trusted, err := repo.Verify(context.Background(), published.PublicKeyPath)
	if trusted || !errors.Is(err, rootfile.ErrIntegrity) {
		t.Errorf("Verify after expiry = %v, %v", trusted, err)
	}
}

func TestReplicationState(t *testing.T) {
	builder, _ := buildSmallTree(t)
	lastSnapshot := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	builder.MarkReplica(lastSnapshot, true)

	repo := openRepository(t, builder.Dir())
	if repo.Type() != repository.TypeStratum1 {
		t.Errorf("Type = %s", repo.Type())
	}
	state := repo.Replication()
	if !state.LastSnapshot.Equal(lastSnapshot) {
		t.Errorf("LastSnapshot = %s, want %s", state.LastSnapshot, lastSnapshot)
	}
	if !state.Snapshotting || !state.SnapshottingSince.Equal(lastSnapshot) {
		t.Errorf("Snapshotting = %v since %s", state.Snapshotting, state.SnapshottingSince)
	}
}

func TestOpen_StaleManifestFallback(t *testing.T) {
	_, published := buildSmallTree(t)
	server := httptest.NewServer(http.FileServer(http.Dir(published.Dir)))
	sourceURL := server.URL

	cacheDir := t.TempDir()
	fake := clock.Fake(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	config := repository.Config{
		Source:             sourceURL,
		CacheDir:           cacheDir,
		Clock:              fake,
		AllowStaleManifest: true,
	}

	first, err := repository.Open(context.Background(), config)
	if err != nil {
		t.Fatalf("Open online: %v", err)
	}
	first.Close()
	server.Close()

	t.Run("within TTL", func(t *testing.T) {
		fake.Advance(time.Minute)
		repo, err := repository.Open(context.Background(), config)
		if err != nil {
			t.Fatalf("Open offline: %v", err)
		}
		defer repo.Close()
		if _, found, err := repo.Lookup(context.Background(), "/README"); err != nil || !found {
			t.Errorf("Lookup offline = %v, %v", found, err)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		strict := config
		strict.AllowStaleManifest = false
		if _, err := repository.Open(context.Background(), strict); !errors.Is(err, objectstore.ErrSourceUnavailable) {
			t.Errorf("expected ErrSourceUnavailable, got %v", err)
		}
	})

	t.Run("past TTL", func(t *testing.T) {
		fake.Advance(time.Hour)
		if _, err := repository.Open(context.Background(), config); !errors.Is(err, objectstore.ErrSourceUnavailable) {
			t.Errorf("expected ErrSourceUnavailable, got %v", err)
		}
	})
}
