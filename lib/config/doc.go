// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the cvmfs
// client.
//
// Configuration is loaded from a single file specified by either the
// CVMFS_CLIENT_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no automatic file search. A missing
// configuration is not an error for the CLI: it starts from [Default]
// and applies command-line flags on top.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${CVMFS_CACHE} and ${VAR:-default} patterns are expanded.
//
// Key exports:
//
//   - [Config] -- source, cache directory, trusted key, HTTP and log settings
//   - [Default] -- returns a Config with per-user defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.Validate] -- reports every problem at once
//
// This package depends on no other packages in this module.
package config
