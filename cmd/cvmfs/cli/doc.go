// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command framework behind the cvmfs binary.
//
// A [Command] tree dispatches on the first positional argument and
// parses flags with pflag. Commands declare their flags as tagged
// struct fields bound by [FlagsFromParams]:
//
//	type lsParams struct {
//	    cli.JSONOutput
//	    Long bool `flag:"long,l" desc:"show mode, size and mtime"`
//	}
//
// Unknown commands and flags get a closest-match suggestion. A command
// that has already reported its outcome returns an [ExitError] to set
// the exit status without a second error line.
//
// [NewLogger] builds the stderr logger from the configured level and
// format, and [Styles] renders terminal highlighting with lipgloss when
// stdout is a terminal.
package cli
