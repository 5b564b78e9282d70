// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the cvmfs command tree.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/cvmfs/cmd/cvmfs/cli"
	"github.com/bureau-foundation/cvmfs/lib/version"
)

// environment carries what every command writes to.
type environment struct {
	ctx    context.Context
	stdout io.Writer
	stderr io.Writer
	styles cli.Styles
}

// Root returns the cvmfs command tree. Output goes to stdout, logs
// and help to stderr.
func Root(ctx context.Context, stdout, stderr io.Writer) *cli.Command {
	env := &environment{
		ctx:    ctx,
		stdout: stdout,
		stderr: stderr,
		styles: cli.StylesFor(stdout),
	}

	var rootParams struct {
		Version bool `flag:"version" desc:"print version information and exit"`
	}

	return &cli.Command{
		Name:        "cvmfs",
		Description: "Read CernVM-FS repositories without mounting them.",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("cvmfs", &rootParams)
		},
		Subcommands: []*cli.Command{
			infoCommand(env),
			lsCommand(env),
			statCommand(env),
			catCommand(env),
			findCommand(env),
			catalogsCommand(env),
			tagsCommand(env),
			verifyCommand(env),
			evictCommand(env),
		},
		Run: func(args []string) error {
			if rootParams.Version {
				fmt.Fprintf(stdout, "cvmfs %s\n", version.Info())
				return nil
			}
			return fmt.Errorf("subcommand required\n\nRun 'cvmfs --help' for usage.")
		},
	}
}

// displayPath renders the canonical root "" as "/".
func displayPath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}

// exitUntrusted is returned after a verify report that found the
// repository untrusted.
var exitUntrusted = &cli.ExitError{Code: 2}
