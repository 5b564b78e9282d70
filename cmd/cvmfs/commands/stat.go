// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/cvmfs/cmd/cvmfs/cli"
	"github.com/bureau-foundation/cvmfs/lib/pathhash"
)

type statParams struct {
	sessionParams
	snapshotParams
	cli.JSONOutput
}

func statCommand(env *environment) *cli.Command {
	var params statParams
	return &cli.Command{
		Name:    "stat",
		Summary: "show the catalog record of a path",
		Usage:   "cvmfs stat [flags] <path>",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("stat", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("stat takes exactly one path")
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
			return runStat(env, &params, view, args[0])
		},
	}
}

func runStat(env *environment, params *statParams, view tree, path string) error {
	canonical := pathhash.Canonicalize(path)
	entry, found, err := view.Lookup(env.ctx, canonical)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s: no such file or directory", displayPath(canonical))
	}
	owner, err := view.ResolvePath(env.ctx, canonical)
	if err != nil {
		return err
	}

	result := newEntryJSON(canonical, entry)
	result.Catalog = owner.Hash().String()
	result.CatalogMount = displayPath(owner.MountPath())
	if done, err := params.EmitJSON(env.stdout, result); done {
		return err
	}

	tw := tabwriter.NewWriter(env.stdout, 0, 0, 2, ' ', 0)
	row := func(label, format string, values ...any) {
		fmt.Fprintf(tw, "%s\t%s\n", env.styles.Label(label), fmt.Sprintf(format, values...))
	}
	row("path", "%s", result.Path)
	row("type", "%s", result.Type)
	row("mode", "%s", result.Mode)
	row("size", "%d", result.Size)
	row("mtime", "%s", result.Mtime.UTC().Format(time.RFC3339))
	if result.ContentHash != "" {
		row("content hash", "%s", result.ContentHash)
	}
	if result.Symlink != "" {
		row("symlink", "%s", result.Symlink)
	}
	if result.NestedCatalog {
		row("nested catalog", "yes")
	}
	row("catalog", "%s (%s)", result.Catalog, result.CatalogMount)
	for i, chunk := range result.Chunks {
		row(fmt.Sprintf("chunk %d", i), "%d+%d %s", chunk.Offset, chunk.Size, chunk.ContentHash)
	}
	return tw.Flush()
}
