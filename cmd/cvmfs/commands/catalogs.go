// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/cvmfs/cmd/cvmfs/cli"
)

type catalogsParams struct {
	sessionParams
	snapshotParams
	cli.JSONOutput
}

type catalogJSON struct {
	Mount    string  `json:"mount"`
	Hash     string  `json:"hash"`
	Revision int64   `json:"revision"`
	Schema   float64 `json:"schema"`
	Entries  int64   `json:"entries"`
	DataSize int64   `json:"data_size"`
	Nested   int     `json:"nested"`
}

func catalogsCommand(env *environment) *cli.Command {
	var params catalogsParams
	return &cli.Command{
		Name:    "catalogs",
		Summary: "list every catalog of the tree",
		Usage:   "cvmfs catalogs [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("catalogs", &params)
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("catalogs takes no arguments")
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
			return runCatalogs(env, &params, view)
		},
	}
}

func runCatalogs(env *environment, params *catalogsParams, view tree) error {
	catalogs, err := view.RetrieveCatalogTree(env.ctx)
	if err != nil {
		return err
	}

	results := make([]catalogJSON, 0, len(catalogs))
	for _, mounted := range catalogs {
		statistics, err := mounted.Statistics(env.ctx)
		if err != nil {
			return err
		}
		nested, err := mounted.NestedCount(env.ctx)
		if err != nil {
			return err
		}
		results = append(results, catalogJSON{
			Mount:    displayPath(mounted.MountPath()),
			Hash:     mounted.Hash().String(),
			Revision: mounted.Revision(),
			Schema:   mounted.Properties().Schema,
			Entries:  statistics.Entries(),
			DataSize: statistics.DataSize(),
			Nested:   nested,
		})
	}

	if done, err := params.EmitJSON(env.stdout, results); done {
		return err
	}
	tw := tabwriter.NewWriter(env.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
		env.styles.Label("MOUNT"), env.styles.Label("HASH"), env.styles.Label("REVISION"),
		env.styles.Label("ENTRIES"), env.styles.Label("NESTED"))
	for _, result := range results {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n",
			env.styles.Mountpoint(result.Mount), result.Hash, result.Revision, result.Entries, result.Nested)
	}
	return tw.Flush()
}
