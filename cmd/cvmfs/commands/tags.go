// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/cvmfs/cmd/cvmfs/cli"
	"github.com/bureau-foundation/cvmfs/lib/history"
)

type tagsParams struct {
	sessionParams
	cli.JSONOutput
}

type tagJSON struct {
	Name        string    `json:"name"`
	Revision    int64     `json:"revision"`
	Timestamp   time.Time `json:"timestamp"`
	RootCatalog string    `json:"root_catalog"`
	Channel     int64     `json:"channel"`
	Description string    `json:"description,omitempty"`
}

func tagsCommand(env *environment) *cli.Command {
	var params tagsParams
	return &cli.Command{
		Name:    "tags",
		Summary: "list named snapshots, newest first",
		Usage:   "cvmfs tags [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("tags", &params)
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("tags takes no arguments")
			}
			repo, _, err := params.open(env)
			if err != nil {
				return err
			}
			defer repo.Close()

			tags, err := repo.Tags(env.ctx)
			if err != nil {
				return err
			}
			return writeTags(env, &params, tags)
		},
	}
}

func writeTags(env *environment, params *tagsParams, tags []history.Tag) error {
	results := make([]tagJSON, 0, len(tags))
	for _, tag := range tags {
		results = append(results, tagJSON{
			Name:        tag.Name,
			Revision:    tag.Revision,
			Timestamp:   tag.Timestamp,
			RootCatalog: tag.Hash.String(),
			Channel:     tag.Channel,
			Description: tag.Description,
		})
	}
	if done, err := params.EmitJSON(env.stdout, results); done {
		return err
	}

	tw := tabwriter.NewWriter(env.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
		env.styles.Label("NAME"), env.styles.Label("REVISION"), env.styles.Label("PUBLISHED"), env.styles.Label("DESCRIPTION"))
	for _, result := range results {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n",
			result.Name, result.Revision, result.Timestamp.UTC().Format(time.RFC3339), result.Description)
	}
	return tw.Flush()
}
