// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zlib"

	"github.com/bureau-foundation/cvmfs/lib/clock"
)

func TestOpenCache(t *testing.T) {
	t.Run("creates shards", func(t *testing.T) {
		cache, err := OpenCache(t.TempDir())
		if err != nil {
			t.Fatalf("OpenCache: %v", err)
		}
		for _, shard := range []string{"00", "7f", "ff"} {
			info, err := os.Stat(filepath.Join(cache.Root(), "data", shard))
			if err != nil || !info.IsDir() {
				t.Errorf("shard %s missing: %v", shard, err)
			}
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := OpenCache(filepath.Join(t.TempDir(), "absent"))
		if !errors.Is(err, ErrCacheDirectory) {
			t.Fatalf("err = %v, want ErrCacheDirectory", err)
		}
	})

	t.Run("not a directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := OpenCache(path)
		if !errors.Is(err, ErrCacheDirectory) {
			t.Fatalf("err = %v, want ErrCacheDirectory", err)
		}
	})

	t.Run("not writable", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("root bypasses permission checks")
		}
		dir := filepath.Join(t.TempDir(), "readonly")
		if err := os.Mkdir(dir, 0o555); err != nil {
			t.Fatal(err)
		}
		_, err := OpenCache(dir)
		if !errors.Is(err, ErrCacheDirectory) {
			t.Fatalf("err = %v, want ErrCacheDirectory", err)
		}
	})
}

func TestRetrieve(t *testing.T) {
	fixture := newFixture(t)
	content := []byte("#!/bin/sh\necho hello\n")
	hash := fixture.put(t, content, KindNone)

	path, err := fixture.store.Retrieve(context.Background(), hash, KindNone)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	assertFileContent(t, path, content)

	wantPath := filepath.Join(fixture.store.Cache().Root(), filepath.FromSlash(ObjectPath(hash, KindNone)))
	if path != wantPath {
		t.Errorf("path = %s, want %s", path, wantPath)
	}
}

func TestRetrieveCacheHitSkipsSource(t *testing.T) {
	fixture := newFixture(t)
	content := []byte("catalog bytes")
	hash := fixture.put(t, content, KindCatalog)

	if _, err := fixture.store.Retrieve(context.Background(), hash, KindCatalog); err != nil {
		t.Fatalf("first Retrieve: %v", err)
	}
	if err := os.Remove(filepath.Join(fixture.sourceDir, filepath.FromSlash(ObjectPath(hash, KindCatalog)))); err != nil {
		t.Fatal(err)
	}

	path, err := fixture.store.Retrieve(context.Background(), hash, KindCatalog)
	if err != nil {
		t.Fatalf("cached Retrieve: %v", err)
	}
	assertFileContent(t, path, content)
}

func TestRetrieveRefetchesCorruptCacheEntry(t *testing.T) {
	fixture := newFixture(t)
	content := []byte("the real content")
	hash := fixture.put(t, content, KindNone)

	path, err := fixture.store.Retrieve(context.Background(), hash, KindNone)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if err := os.WriteFile(path, []byte("bit rot"), 0o644); err != nil {
		t.Fatal(err)
	}

	path, err = fixture.store.Retrieve(context.Background(), hash, KindNone)
	if err != nil {
		t.Fatalf("Retrieve after corruption: %v", err)
	}
	assertFileContent(t, path, content)
}

func TestRetrieveHashMismatch(t *testing.T) {
	fixture := newFixture(t)
	hash := fixture.put(t, []byte("original"), KindNone)

	// Replace the stored object with different content under the same
	// name.
	fixture.write(t, ObjectPath(hash, KindNone), compress(t, []byte("tampered")))

	_, err := fixture.store.Retrieve(context.Background(), hash, KindNone)
	if err == nil {
		t.Fatal("expected hash mismatch")
	}
	var mismatch *HashMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, want *HashMismatchError", err)
	}
	if !errors.Is(err, ErrIntegrity) || !errors.Is(err, ErrNotFound) {
		t.Errorf("mismatch should match ErrIntegrity and ErrNotFound: %v", err)
	}
	assertShardEmpty(t, fixture.store.Cache(), hash)
}

func TestRetrieveCorruptStream(t *testing.T) {
	fixture := newFixture(t)
	hash := fixture.put(t, []byte("content"), KindNone)
	fixture.write(t, ObjectPath(hash, KindNone), []byte("not zlib at all"))

	_, err := fixture.store.Retrieve(context.Background(), hash, KindNone)
	var corrupt *CorruptObjectError
	if !errors.As(err, &corrupt) {
		t.Fatalf("err = %v, want *CorruptObjectError", err)
	}
	if !errors.Is(err, ErrIntegrity) {
		t.Errorf("corrupt stream should match ErrIntegrity: %v", err)
	}
	assertShardEmpty(t, fixture.store.Cache(), hash)
}

func TestRetrieveTruncatedStream(t *testing.T) {
	fixture := newFixture(t)
	content := bytes.Repeat([]byte("chunk of repeated data "), 512)
	hash := fixture.put(t, content, KindNone)
	compressed := compress(t, content)
	fixture.write(t, ObjectPath(hash, KindNone), compressed[:len(compressed)/2])

	_, err := fixture.store.Retrieve(context.Background(), hash, KindNone)
	if !errors.Is(err, ErrIntegrity) {
		t.Fatalf("err = %v, want ErrIntegrity", err)
	}
}

func TestRetrieveMissing(t *testing.T) {
	fixture := newFixture(t)
	hash, _ := ParseContentHash(strings.Repeat("ab", 20))

	_, err := fixture.store.Retrieve(context.Background(), hash, KindNone)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if errors.Is(err, ErrIntegrity) {
		t.Errorf("missing object should not be an integrity error: %v", err)
	}
}

func TestRetrieveRIPEMD160(t *testing.T) {
	fixture := newFixture(t)
	content := []byte("secondary algorithm")
	hasher := AlgorithmRIPEMD160.New()
	hasher.Write(content)
	hash := ContentHash{Digest: hasher.Sum(nil), Algorithm: AlgorithmRIPEMD160}
	fixture.write(t, ObjectPath(hash, KindNone), compress(t, content))

	path, err := fixture.store.Retrieve(context.Background(), hash, KindNone)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !strings.HasSuffix(path, "-rmd160") {
		t.Errorf("path %s lacks the algorithm suffix", path)
	}
	assertFileContent(t, path, content)
}

func TestRetrieveRejectsInvalidHash(t *testing.T) {
	fixture := newFixture(t)
	_, err := fixture.store.Retrieve(context.Background(), ContentHash{Digest: []byte{1, 2}, Algorithm: AlgorithmSHA1}, KindNone)
	if err == nil {
		t.Fatal("expected error for a short digest")
	}
}

func TestRetrieveConcurrentSingleDownload(t *testing.T) {
	sourceDir := t.TempDir()
	content := bytes.Repeat([]byte("shared"), 4096)
	hash := sha1Hash(content)
	writeFile(t, filepath.Join(sourceDir, filepath.FromSlash(ObjectPath(hash, KindNone))), compress(t, content))

	counting := &countingSource{Source: NewFileSource(sourceDir), gate: make(chan struct{})}
	store, err := Open(Config{CacheDir: t.TempDir(), Source: counting})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	const workers = 8
	var waitGroup sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			_, err := store.Retrieve(context.Background(), hash, KindNone)
			errs <- err
		}()
	}

	// Hold the first download open long enough for the others to
	// queue behind it.
	time.Sleep(50 * time.Millisecond)
	close(counting.gate)
	waitGroup.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Retrieve: %v", err)
		}
	}
	if opens := counting.opens.Load(); opens != 1 {
		t.Errorf("source opened %d times, want 1", opens)
	}
}

func TestRetrieveRawAndCachedRaw(t *testing.T) {
	fixture := newFixture(t)
	fake := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store, err := Open(Config{Cache: fixture.store.Cache(), Source: NewFileSource(fixture.sourceDir), Clock: fake})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, _, ok := store.RetrieveCachedRaw(".cvmfspublished"); ok {
		t.Fatal("RetrieveCachedRaw reported a copy before any fetch")
	}

	fixture.write(t, ".cvmfspublished", []byte("Nexample.org\n"))
	path, err := store.RetrieveRaw(context.Background(), ".cvmfspublished")
	if err != nil {
		t.Fatalf("RetrieveRaw: %v", err)
	}
	assertFileContent(t, path, []byte("Nexample.org\n"))

	// Root files are always re-downloaded.
	fixture.write(t, ".cvmfspublished", []byte("Nexample.org\nS2\n"))
	fake.Advance(time.Minute)
	path, err = store.RetrieveRaw(context.Background(), ".cvmfspublished")
	if err != nil {
		t.Fatalf("second RetrieveRaw: %v", err)
	}
	assertFileContent(t, path, []byte("Nexample.org\nS2\n"))

	cachedPath, fetchedAt, ok := store.RetrieveCachedRaw(".cvmfspublished")
	if !ok {
		t.Fatal("RetrieveCachedRaw found no copy")
	}
	if cachedPath != path {
		t.Errorf("cached path = %s, want %s", cachedPath, path)
	}
	if !fetchedAt.Equal(fake.Now()) {
		t.Errorf("fetchedAt = %s, want %s", fetchedAt, fake.Now())
	}

	if err := store.Cache().CleanupMetadata(); err != nil {
		t.Fatalf("CleanupMetadata: %v", err)
	}
	if _, _, ok := store.RetrieveCachedRaw(".cvmfspublished"); ok {
		t.Error("root file survived CleanupMetadata")
	}
}

func TestRetrieveRawMissing(t *testing.T) {
	fixture := newFixture(t)
	_, err := fixture.store.RetrieveRaw(context.Background(), ".cvmfs_last_snapshot")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestEvict(t *testing.T) {
	fixture := newFixture(t)
	hash := fixture.put(t, []byte("to be evicted"), KindNone)
	path, err := fixture.store.Retrieve(context.Background(), hash, KindNone)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if err := fixture.store.Evict(); err != nil {
		t.Fatalf("Evict: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("object survived eviction: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("shard directory not recreated: %v", err)
	}
}

func TestHTTPSource(t *testing.T) {
	content := []byte("served over http")
	hash := sha1Hash(content)
	compressed := compress(t, content)

	var userAgent atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		userAgent.Store(request.Header.Get("User-Agent"))
		switch request.URL.Path {
		case "/cvmfs/example.org/" + ObjectPath(hash, KindNone):
			writer.Write(compressed)
		case "/cvmfs/example.org/.cvmfswhitelist":
			http.Error(writer, "overloaded", http.StatusServiceUnavailable)
		default:
			http.NotFound(writer, request)
		}
	}))
	t.Cleanup(server.Close)

	source, err := NewSource(server.URL+"/cvmfs/example.org/", server.Client(), "cvmfs-test/1")
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	if _, ok := source.(*HTTPSource); !ok {
		t.Fatalf("NewSource returned %T, want *HTTPSource", source)
	}

	store, err := Open(Config{CacheDir: t.TempDir(), Source: source})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	path, err := store.Retrieve(context.Background(), hash, KindNone)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	assertFileContent(t, path, content)
	if got := userAgent.Load(); got != "cvmfs-test/1" {
		t.Errorf("User-Agent = %v", got)
	}

	_, err = store.RetrieveRaw(context.Background(), ".cvmfspublished")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("404: err = %v, want ErrNotFound", err)
	}
	_, err = store.RetrieveRaw(context.Background(), ".cvmfswhitelist")
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("503: err = %v, want ErrSourceUnavailable", err)
	}
	if err != nil && !strings.Contains(err.Error(), "overloaded") {
		t.Errorf("503: error %q does not quote the response body", err)
	}
}

func TestNewSource(t *testing.T) {
	dir := t.TempDir()

	for _, location := range []string{dir, "file://" + dir} {
		source, err := NewSource(location, nil, "")
		if err != nil {
			t.Fatalf("NewSource(%q): %v", location, err)
		}
		if _, ok := source.(*FileSource); !ok {
			t.Errorf("NewSource(%q) = %T, want *FileSource", location, source)
		}
	}

	if _, err := NewSource(filepath.Join(dir, "absent"), nil, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing directory: err = %v, want ErrNotFound", err)
	}
}

func TestFileSourceRejectsEscape(t *testing.T) {
	source := NewFileSource(t.TempDir())
	if _, err := source.Open(context.Background(), "../etc/passwd"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// fixture is a file-backed repository plus a store reading from it.
type fixture struct {
	sourceDir string
	store     *Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sourceDir := t.TempDir()
	store, err := Open(Config{
		CacheDir: t.TempDir(),
		Source:   NewFileSource(sourceDir),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return &fixture{sourceDir: sourceDir, store: store}
}

func (f *fixture) put(t *testing.T, content []byte, kind Kind) ContentHash {
	t.Helper()
	hash := sha1Hash(content)
	f.write(t, ObjectPath(hash, kind), compress(t, content))
	return hash
}

func (f *fixture) write(t *testing.T, name string, data []byte) {
	t.Helper()
	writeFile(t, filepath.Join(f.sourceDir, filepath.FromSlash(name)), data)
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func sha1Hash(content []byte) ContentHash {
	hasher := AlgorithmSHA1.New()
	hasher.Write(content)
	return ContentHash{Digest: hasher.Sum(nil), Algorithm: AlgorithmSHA1}
}

func compress(t *testing.T, content []byte) []byte {
	t.Helper()
	var buffer bytes.Buffer
	writer := zlib.NewWriter(&buffer)
	if _, err := writer.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}
	return buffer.Bytes()
}

func assertFileContent(t *testing.T, path string, want []byte) {
	t.Helper()
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("content of %s = %q, want %q", path, got, want)
	}
}

func assertShardEmpty(t *testing.T, cache *Cache, hash ContentHash) {
	t.Helper()
	shard := filepath.Dir(cache.Path(ObjectPath(hash, KindNone)))
	entries, err := os.ReadDir(shard)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		names := make([]string, len(entries))
		for i, entry := range entries {
			names[i] = entry.Name()
		}
		t.Errorf("shard %s not empty after failed fetch: %v", shard, names)
	}
}

type countingSource struct {
	Source
	opens atomic.Int32
	gate  chan struct{}
}

func (s *countingSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	s.opens.Add(1)
	<-s.gate
	return s.Source.Open(ctx, name)
}

func (s *countingSource) String() string {
	return fmt.Sprintf("counting(%s)", s.Source)
}
