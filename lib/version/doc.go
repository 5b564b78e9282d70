// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build information for the cvmfs binary.
//
// Three package-level variables are injected at build time via
// -ldflags -X:
//
//   - [GitCommit] -- short git SHA of the build
//   - [GitDirty] -- "true" if there were uncommitted changes
//   - [BuildTime] -- UTC timestamp of the build
//
// [Version] is the semantic version, set manually for releases.
//
// [Info] produces the one-line string printed by "cvmfs --version";
// [Full] adds the Go toolchain and platform. [UserAgent] is the
// default HTTP User-Agent sent to Stratum servers.
package version
