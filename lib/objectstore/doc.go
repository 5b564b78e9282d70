// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package objectstore retrieves content-addressed objects from a
// CernVM-FS repository into a local, verified cache.
//
// A repository's backend is a flat store of zlib-compressed objects
// named by the digest of their decompressed content:
//
//	data/<first two hex chars>/<remaining hex chars>[<algorithm suffix>][<kind suffix>]
//
// The algorithm suffix is empty for SHA-1 and "-rmd160" for
// RIPEMD-160. The kind suffix marks metadata objects: "C" catalogs,
// "X" certificates, "H" history databases, "L" micro-catalogs. File
// contents carry no kind suffix. A handful of root files
// (.cvmfspublished, .cvmfswhitelist and the replication markers)
// live at the top of the repository and are stored uncompressed.
//
// The local cache mirrors the remote layout: 256 shard directories
// under data/ hold decompressed objects, and root files sit at the
// cache root. [Store.Retrieve] guarantees that the returned path
// exists and that its content hashes to the requested digest: cache
// hits are re-hashed, cache misses are inflated and hashed while
// streaming into a temp file in the shard directory and published
// with an atomic rename only when the digest matches. At most one
// download per object is in flight at a time.
//
// [Store.RetrieveRaw] always re-downloads root files, since they
// change between snapshots, and records when each was fetched in a
// small CBOR file so that a caller can fall back to a cached manifest
// that is still within its TTL when the source is unreachable
// ([Store.RetrieveCachedRaw]).
//
// Eviction is whole-cache only: [Cache.Evict] removes data/ and
// recreates the empty shards. There is no LRU or size-bounded policy.
//
// Sources are pluggable: [HTTPSource] fetches from a Stratum 0 or
// Stratum 1 web server, [FileSource] reads a repository tree on the
// local filesystem. [NewSource] picks one from a location string.
package objectstore
