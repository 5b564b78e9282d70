// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Source reads repository files by their slash-separated name
// relative to the repository root.
type Source interface {
	// Open returns the raw bytes of name as stored by the
	// repository: compressed for objects, plain for root files.
	// A missing file returns an error wrapping [ErrNotFound];
	// transport failures wrap [ErrSourceUnavailable].
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// String describes the source for logs.
	String() string
}

// HTTPSource fetches from a repository URL such as
// http://stratum1.example.org/cvmfs/sft.example.org.
type HTTPSource struct {
	baseURL   string
	client    *http.Client
	userAgent string
}

// NewHTTPSource returns a source rooted at baseURL. A nil client uses
// http.DefaultClient. An empty userAgent leaves Go's default.
func NewHTTPSource(baseURL string, client *http.Client, userAgent string) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    client,
		userAgent: userAgent,
	}
}

func (s *HTTPSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	target := s.baseURL + "/" + name
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", target, err)
	}
	if s.userAgent != "" {
		request.Header.Set("User-Agent", s.userAgent)
	}

	response, err := s.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrSourceUnavailable, target, err)
	}

	switch {
	case response.StatusCode == http.StatusOK:
		return response.Body, nil
	case response.StatusCode == http.StatusNotFound:
		response.Body.Close()
		return nil, fmt.Errorf("%w: GET %s: %s", ErrNotFound, target, response.Status)
	default:
		defer response.Body.Close()
		if detail := errorBody(response.Body); detail != "" {
			return nil, fmt.Errorf("%w: GET %s: %s: %s", ErrSourceUnavailable, target, response.Status, detail)
		}
		return nil, fmt.Errorf("%w: GET %s: %s", ErrSourceUnavailable, target, response.Status)
	}
}

// maxErrorBody bounds how much of an error response is quoted.
const maxErrorBody = 512

// errorBody returns the start of an error response for diagnostics.
// Read errors are ignored.
func errorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	return strings.TrimSpace(string(data))
}

func (s *HTTPSource) String() string {
	return s.baseURL
}

// FileSource reads a repository tree from a local directory, for
// example a Stratum 0 under /srv/cvmfs.
type FileSource struct {
	root string
}

// NewFileSource returns a source rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{root: dir}
}

func (s *FileSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !filepath.IsLocal(filepath.FromSlash(name)) {
		return nil, fmt.Errorf("%w: %q escapes the repository root", ErrNotFound, name)
	}

	file, err := os.Open(filepath.Join(s.root, filepath.FromSlash(name)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	return file, nil
}

func (s *FileSource) String() string {
	return "file://" + s.root
}

// NewSource picks a source for location: http:// and https:// URLs
// become an [HTTPSource], file:// URLs and existing directories a
// [FileSource]. Anything else wraps [ErrNotFound].
func NewSource(location string, client *http.Client, userAgent string) (Source, error) {
	switch {
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return NewHTTPSource(location, client, userAgent), nil
	case strings.HasPrefix(location, "file://"):
		parsed, err := url.Parse(location)
		if err != nil {
			return nil, fmt.Errorf("parsing source %q: %w", location, err)
		}
		return newDirectorySource(parsed.Path)
	default:
		return newDirectorySource(location)
	}
}

func newDirectorySource(dir string) (Source, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: no repository at %q", ErrNotFound, dir)
	}
	absolute, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}
	return NewFileSource(absolute), nil
}
