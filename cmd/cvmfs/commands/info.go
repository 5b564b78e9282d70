// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/cvmfs/cmd/cvmfs/cli"
	"github.com/bureau-foundation/cvmfs/lib/repository"
)

type infoParams struct {
	sessionParams
	cli.JSONOutput
}

type infoJSON struct {
	Name              string     `json:"name"`
	Revision          int64      `json:"revision"`
	Type              string     `json:"type"`
	RootCatalog       string     `json:"root_catalog"`
	RootCatalogSize   int64      `json:"root_catalog_size,omitempty"`
	Certificate       string     `json:"certificate"`
	History           string     `json:"history,omitempty"`
	LastModified      time.Time  `json:"last_modified"`
	TTLSeconds        int64      `json:"ttl_seconds"`
	CatalogSchema     float64    `json:"catalog_schema"`
	Entries           int64      `json:"entries,omitempty"`
	DataSize          int64      `json:"data_size,omitempty"`
	NestedCatalogs    int64      `json:"nested_catalogs,omitempty"`
	LastSnapshot      *time.Time `json:"last_snapshot,omitempty"`
	SnapshottingSince *time.Time `json:"snapshotting_since,omitempty"`
}

func infoCommand(env *environment) *cli.Command {
	var params infoParams
	return &cli.Command{
		Name:    "info",
		Summary: "show the manifest and root catalog summary",
		Usage:   "cvmfs info [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("info", &params)
		},
		Examples: []cli.Example{{
			Description: "Describe a repository on a Stratum 1",
			Command:     "cvmfs info --source http://stratum1.example.org/cvmfs/sft.example.org",
		}},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("info takes no arguments")
			}
			repo, _, err := params.open(env)
			if err != nil {
				return err
			}
			defer repo.Close()
			return runInfo(env, &params, repo)
		},
	}
}

func runInfo(env *environment, params *infoParams, repo *repository.Repository) error {
	manifest := repo.Manifest()
	root, err := repo.RetrieveRootCatalog(env.ctx)
	if err != nil {
		return err
	}

	result := infoJSON{
		Name:            repo.Name(),
		Revision:        manifest.Revision,
		Type:            repo.Type(),
		RootCatalog:     manifest.RootCatalog.String(),
		RootCatalogSize: manifest.RootCatalogSize,
		Certificate:     manifest.Certificate.String(),
		LastModified:    manifest.LastModified,
		TTLSeconds:      manifest.TTLSeconds,
		CatalogSchema:   root.Properties().Schema,
	}
	if manifest.HasHistory() {
		result.History = manifest.HistoryDatabase.String()
	}
	if statistics, err := root.Statistics(env.ctx); err == nil {
		result.Entries = statistics.SubtreeEntries()
		result.DataSize = statistics.SubtreeDataSize()
		result.NestedCatalogs, _ = statistics.Counter("all_nested")
	}
	replication := repo.Replication()
	if !replication.LastSnapshot.IsZero() {
		result.LastSnapshot = &replication.LastSnapshot
	}
	if replication.Snapshotting {
		result.SnapshottingSince = &replication.SnapshottingSince
	}

	if done, err := params.EmitJSON(env.stdout, result); done {
		return err
	}

	tw := tabwriter.NewWriter(env.stdout, 0, 0, 2, ' ', 0)
	row := func(label, format string, values ...any) {
		fmt.Fprintf(tw, "%s\t%s\n", env.styles.Label(label), fmt.Sprintf(format, values...))
	}
	row("name", "%s", result.Name)
	row("revision", "%d", result.Revision)
	row("type", "%s", result.Type)
	row("root catalog", "%s", result.RootCatalog)
	row("certificate", "%s", result.Certificate)
	if result.History != "" {
		row("history", "%s", result.History)
	}
	row("last modified", "%s", result.LastModified.UTC().Format(time.RFC3339))
	row("ttl", "%s", time.Duration(result.TTLSeconds)*time.Second)
	row("catalog schema", "%g", result.CatalogSchema)
	if result.Entries != 0 {
		row("entries", "%d", result.Entries)
		row("data size", "%d", result.DataSize)
		row("nested catalogs", "%d", result.NestedCatalogs)
	}
	if result.LastSnapshot != nil {
		row("last snapshot", "%s", result.LastSnapshot.Format(time.RFC3339))
	}
	if result.SnapshottingSince != nil {
		row("snapshotting since", "%s", result.SnapshottingSince.Format(time.RFC3339))
	}
	return tw.Flush()
}
