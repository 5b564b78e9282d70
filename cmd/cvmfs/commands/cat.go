// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/cvmfs/cmd/cvmfs/cli"
)

type catParams struct {
	sessionParams
	snapshotParams
	PathOnly bool `flag:"path-only" desc:"print the cached file's path instead of its content"`
}

func catCommand(env *environment) *cli.Command {
	var params catParams
	return &cli.Command{
		Name:    "cat",
		Summary: "write file contents to stdout",
		Usage:   "cvmfs cat [flags] <path>...",
		Description: `Fetch, verify and print regular files. Chunked files are reassembled
in the cache first. Symbolic links are not followed.`,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("cat", &params)
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("cat needs at least one path")
			}
			repo, _, err := params.open(env)
			if err != nil {
				return err
			}
			defer repo.Close()
			view, err := params.selectTree(env.ctx, repo)
			if err != nil {
				return err
			}
			for _, path := range args {
				if err := runCat(env, &params, view, path); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func runCat(env *environment, params *catParams, view tree, path string) error {
	cached, err := view.GetFile(env.ctx, path)
	if err != nil {
		return err
	}
	if params.PathOnly {
		_, err := fmt.Fprintln(env.stdout, cached)
		return err
	}

	file, err := os.Open(cached)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := io.Copy(env.stdout, file); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
