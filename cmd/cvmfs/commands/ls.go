// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/cvmfs/cmd/cvmfs/cli"
	"github.com/bureau-foundation/cvmfs/lib/catalog"
	"github.com/bureau-foundation/cvmfs/lib/pathhash"
)

type lsParams struct {
	sessionParams
	snapshotParams
	cli.JSONOutput
	Long bool `flag:"long,l" desc:"show mode, size and modification time"`
}

func lsCommand(env *environment) *cli.Command {
	var params lsParams
	return &cli.Command{
		Name:    "ls",
		Summary: "list a directory",
		Usage:   "cvmfs ls [flags] [path]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("ls", &params)
		},
		Examples: []cli.Example{
			{Description: "Long listing of a directory", Command: "cvmfs ls -l /lcg/releases"},
			{Description: "The root directory as of tag v1", Command: "cvmfs ls --tag v1"},
		},
		Run: func(args []string) error {
			if len(args) > 1 {
				return fmt.Errorf("ls takes at most one path")
			}
			path := "/"
			if len(args) == 1 {
				path = args[0]
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
			return runLs(env, &params, view, path)
		},
	}
}

func runLs(env *environment, params *lsParams, view tree, path string) error {
	entries, found, err := view.ListDirectory(env.ctx, path)
	if err != nil {
		return err
	}
	if !found {
		return lsSingle(env, params, view, path)
	}

	canonical := pathhash.Canonicalize(path)
	if params.OutputJSON {
		result := make([]entryJSON, 0, len(entries))
		for _, entry := range entries {
			result = append(result, newEntryJSON(pathhash.Join(canonical, entry.Name), entry))
		}
		_, err := params.EmitJSON(env.stdout, result)
		return err
	}

	for _, entry := range entries {
		writeListed(env, params, entry, entry.Name)
	}
	return nil
}

// lsSingle lists a path that is not a directory, as ls(1) does for a
// file operand.
func lsSingle(env *environment, params *lsParams, view tree, path string) error {
	entry, found, err := view.Lookup(env.ctx, path)
	if err != nil {
		return err
	}
	canonical := pathhash.Canonicalize(path)
	if !found {
		return fmt.Errorf("%s: no such file or directory", displayPath(canonical))
	}
	if done, err := params.EmitJSON(env.stdout, []entryJSON{newEntryJSON(canonical, entry)}); done {
		return err
	}
	writeListed(env, params, entry, displayPath(canonical))
	return nil
}

func writeListed(env *environment, params *lsParams, entry catalog.DirectoryEntry, name string) {
	if params.Long {
		env.writeLong(env.stdout, entry, name)
		return
	}
	fmt.Fprintln(env.stdout, env.styledName(entry, name))
}
