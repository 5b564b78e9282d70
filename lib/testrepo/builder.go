// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testrepo

import (
	"crypto/md5"
	"crypto/rsa"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/cvmfs/lib/objectstore"
	"github.com/bureau-foundation/cvmfs/lib/pathhash"
)

// DefaultName is the repository name used when Options.Name is empty.
const DefaultName = "test.example.org"

// baseTime anchors default timestamps so fixtures are reproducible.
var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Options configure a [Builder]. The zero value builds a schema 2.5,
// SHA-1 repository signed with [SharedKeys].
type Options struct {
	Name      string
	Schema    string // catalog schema version, default "2.5"
	Algorithm objectstore.Algorithm
	Keys      *Keys

	// WhitelistExpiry defaults to 2040-01-01.
	WhitelistExpiry time.Time

	// TTL is the manifest time to live, default 240 seconds.
	TTL time.Duration

	// LegacySignatures signs root files without the SHA-1 digest
	// wrapper.
	LegacySignatures bool

	// OmitNestedSize leaves the size column out of nested_catalogs,
	// as schema 1.x catalogs do.
	OmitNestedSize bool
}

type nodeKind int

const (
	kindDirectory nodeKind = iota
	kindFile
	kindSymlink
)

type node struct {
	kind      nodeKind
	content   []byte
	target    string
	chunkSize int
	mtime     time.Time
}

// Snapshot describes one [Builder.Publish] call.
type Snapshot struct {
	// Tag names the snapshot in the history database. Untagged
	// snapshots are not recorded there.
	Tag         string
	Description string
	Channel     int64

	// Timestamp defaults to one hour per revision after 2026-01-01.
	Timestamp time.Time
}

// Repository describes a published revision.
type Repository struct {
	Dir           string
	Name          string
	PublicKeyPath string
	Keys          *Keys
	Revision      int64
	Timestamp     time.Time

	RootCatalog objectstore.ContentHash
	Catalogs    map[string]objectstore.ContentHash // by mount path, "" for the root
	Certificate objectstore.ContentHash
	History     objectstore.ContentHash // zero if no tags
	Files       map[string]objectstore.ContentHash
}

// ObjectFile returns the absolute path of an object in the
// repository.
func (r *Repository) ObjectFile(hash objectstore.ContentHash, kind objectstore.Kind) string {
	return filepath.Join(r.Dir, filepath.FromSlash(objectstore.ObjectPath(hash, kind)))
}

type tagRecord struct {
	name        string
	hash        string
	revision    int64
	timestamp   int64
	channel     int64
	description string
}

// Builder accumulates a tree and publishes it as a repository.
type Builder struct {
	t       testing.TB
	options Options
	dir     string
	keyPath string
	scratch string

	nodes       map[string]*node
	mountpoints map[string]bool
	tags        []tagRecord
	revision    int64
	previous    objectstore.ContentHash
}

// New returns a Builder writing into a fresh temp directory.
func New(t testing.TB, options Options) *Builder {
	t.Helper()

	if options.Name == "" {
		options.Name = DefaultName
	}
	if options.Schema == "" {
		options.Schema = "2.5"
	}
	if options.Algorithm == objectstore.AlgorithmUnknown {
		options.Algorithm = objectstore.AlgorithmSHA1
	}
	if options.Keys == nil {
		options.Keys = SharedKeys(t)
	}
	if options.WhitelistExpiry.IsZero() {
		options.WhitelistExpiry = time.Date(2040, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if options.TTL == 0 {
		options.TTL = 240 * time.Second
	}

	builder := &Builder{
		t:           t,
		options:     options,
		dir:         t.TempDir(),
		scratch:     t.TempDir(),
		nodes:       map[string]*node{"": {kind: kindDirectory}},
		mountpoints: make(map[string]bool),
	}
	builder.keyPath = options.Keys.WritePublicKey(t, t.TempDir())
	return builder
}

// Dir returns the repository root, usable as a local source.
func (b *Builder) Dir() string { return b.dir }

// PublicKeyPath returns the trusted key file.
func (b *Builder) PublicKeyPath() string { return b.keyPath }

// File adds or replaces a regular file.
func (b *Builder) File(path string, content []byte) {
	b.add(path, &node{kind: kindFile, content: content})
}

// ChunkedFile adds a regular file stored as chunkSize-byte chunks.
func (b *Builder) ChunkedFile(path string, content []byte, chunkSize int) {
	if chunkSize <= 0 {
		b.t.Fatalf("testrepo: chunk size must be positive")
	}
	b.add(path, &node{kind: kindFile, content: content, chunkSize: chunkSize})
}

// Directory adds a directory.
func (b *Builder) Directory(path string) {
	b.add(path, &node{kind: kindDirectory})
}

// Symlink adds a symbolic link.
func (b *Builder) Symlink(path, target string) {
	b.add(path, &node{kind: kindSymlink, target: target})
}

// NestedCatalog makes the directory at path the root of its own
// catalog, creating the directory if needed.
func (b *Builder) NestedCatalog(path string) {
	canonical := pathhash.Canonicalize(path)
	if canonical == "" {
		b.t.Fatalf("testrepo: the root cannot be a nested catalog")
	}
	if existing, ok := b.nodes[canonical]; !ok || existing.kind != kindDirectory {
		b.Directory(canonical)
	}
	b.mountpoints[canonical] = true
}

// Remove deletes path and everything below it.
func (b *Builder) Remove(path string) {
	canonical := pathhash.Canonicalize(path)
	for candidate := range b.nodes {
		if candidate != "" && (candidate == canonical || strings.HasPrefix(candidate, canonical+"/")) {
			delete(b.nodes, candidate)
			delete(b.mountpoints, candidate)
		}
	}
}

// MarkReplica writes the replication markers a Stratum 1 serves.
func (b *Builder) MarkReplica(lastSnapshot time.Time, snapshotting bool) {
	writeFile(b.t, filepath.Join(b.dir, ".cvmfs_last_snapshot"), []byte(lastSnapshot.UTC().Format(time.UnixDate)+"\n"))
	marker := filepath.Join(b.dir, ".cvmfs_is_snapshotting")
	if snapshotting {
		writeFile(b.t, marker, []byte(lastSnapshot.UTC().Format(time.UnixDate)+"\n"))
	} else {
		os.Remove(marker)
	}
}

func (b *Builder) add(path string, n *node) {
	canonical := pathhash.Canonicalize(path)
	if canonical == "" {
		b.t.Fatalf("testrepo: cannot replace the root directory")
	}
	for _, prefix := range pathhash.Prefixes(pathhash.Parent(canonical)) {
		existing, ok := b.nodes[prefix]
		if !ok {
			b.nodes[prefix] = &node{kind: kindDirectory}
			continue
		}
		if existing.kind != kindDirectory {
			b.t.Fatalf("testrepo: %s is not a directory", prefix)
		}
	}
	b.nodes[canonical] = n
}

// Publish writes the current tree as the next revision.
func (b *Builder) Publish(snapshot Snapshot) *Repository {
	b.t.Helper()

	b.revision++
	timestamp := snapshot.Timestamp
	if timestamp.IsZero() {
		timestamp = baseTime.Add(time.Duration(b.revision) * time.Hour)
	}
	timestamp = timestamp.UTC().Truncate(time.Second)

	repository := &Repository{
		Dir:           b.dir,
		Name:          b.options.Name,
		PublicKeyPath: b.keyPath,
		Keys:          b.options.Keys,
		Revision:      b.revision,
		Timestamp:     timestamp,
		Catalogs:      make(map[string]objectstore.ContentHash),
		Files:         make(map[string]objectstore.ContentHash),
	}

	rootSize := b.writeCatalogs(repository, timestamp)
	repository.RootCatalog = repository.Catalogs[""]

	if snapshot.Tag != "" {
		b.tags = append(b.tags, tagRecord{
			name:        snapshot.Tag,
			hash:        repository.RootCatalog.String(),
			revision:    b.revision,
			timestamp:   timestamp.Unix(),
			channel:     snapshot.Channel,
			description: snapshot.Description,
		})
	}
	if len(b.tags) > 0 {
		repository.History = b.storeObject(b.historyDatabase(), objectstore.KindHistory)
	}

	repository.Certificate = b.storeObject(b.options.Keys.CertificatePEM(), objectstore.KindCertificate)
	b.writeManifest(repository, rootSize, timestamp)
	b.writeWhitelist(timestamp)

	b.previous = repository.RootCatalog
	return repository
}

func (b *Builder) writeManifest(repository *Repository, rootSize int64, timestamp time.Time) {
	rootPathHash := md5.Sum(nil)

	var body strings.Builder
	fmt.Fprintf(&body, "C%s\n", repository.RootCatalog)
	fmt.Fprintf(&body, "B%d\n", rootSize)
	fmt.Fprintf(&body, "R%s\n", hex.EncodeToString(rootPathHash[:]))
	fmt.Fprintf(&body, "D%d\n", int64(b.options.TTL/time.Second))
	fmt.Fprintf(&body, "S%d\n", repository.Revision)
	fmt.Fprintf(&body, "N%s\n", repository.Name)
	fmt.Fprintf(&body, "X%s\n", repository.Certificate)
	if !repository.History.IsZero() {
		fmt.Fprintf(&body, "H%s\n", repository.History)
	}
	fmt.Fprintf(&body, "T%d\n", timestamp.Unix())
	body.WriteString("Gno\n")
	body.WriteString("Ano\n")

	writeFile(b.t, filepath.Join(b.dir, ".cvmfspublished"), b.sign([]byte(body.String()), b.options.Keys.CertificateKey))
}

func (b *Builder) writeWhitelist(timestamp time.Time) {
	var body strings.Builder
	body.WriteString(timestamp.Format("20060102150405") + "\n")
	body.WriteString("E" + b.options.WhitelistExpiry.UTC().Format("20060102150405") + "\n")
	body.WriteString("N" + b.options.Name + "\n")
	body.WriteString(b.options.Keys.Fingerprint + " # test release manager\n")

	writeFile(b.t, filepath.Join(b.dir, ".cvmfswhitelist"), b.sign([]byte(body.String()), b.options.Keys.WhitelistKey))
}

func (b *Builder) sign(body []byte, key *rsa.PrivateKey) []byte {
	if b.options.LegacySignatures {
		return SignLegacy(b.t, body, key)
	}
	return Sign(b.t, body, key)
}

// storeObject compresses content into the repository under its
// content hash.
func (b *Builder) storeObject(content []byte, kind objectstore.Kind) objectstore.ContentHash {
	hasher := b.options.Algorithm.New()
	hasher.Write(content)
	hash := objectstore.ContentHash{Digest: hasher.Sum(nil), Algorithm: b.options.Algorithm}
	writeFile(b.t, filepath.Join(b.dir, filepath.FromSlash(objectstore.ObjectPath(hash, kind))), Compress(b.t, content))
	return hash
}

// ownerOf returns the mount path of the catalog that holds path.
func (b *Builder) ownerOf(path string) string {
	best := ""
	for mount := range b.mountpoints {
		if (path == mount || strings.HasPrefix(path, mount+"/")) && len(mount) > len(best) {
			best = mount
		}
	}
	return best
}

func (b *Builder) sortedPaths() []string {
	paths := make([]string, 0, len(b.nodes))
	for path := range b.nodes {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func (b *Builder) schemaVersion() float64 {
	version, err := strconv.ParseFloat(b.options.Schema, 64)
	if err != nil {
		b.t.Fatalf("testrepo: schema %q: %v", b.options.Schema, err)
	}
	return version
}

// mountsDeepestFirst orders catalogs so every child is written before
// the parent that references it.
func (b *Builder) mountsDeepestFirst() []string {
	mounts := []string{""}
	for mount := range b.mountpoints {
		mounts = append(mounts, mount)
	}
	sort.Slice(mounts, func(i, j int) bool {
		depthI, depthJ := strings.Count(mounts[i], "/"), strings.Count(mounts[j], "/")
		if depthI != depthJ {
			return depthI > depthJ
		}
		return mounts[i] < mounts[j]
	})
	return mounts
}
