// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"path"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/cvmfs/cmd/cvmfs/cli"
	"github.com/bureau-foundation/cvmfs/lib/catalog"
	"github.com/bureau-foundation/cvmfs/lib/pathhash"
)

type findParams struct {
	sessionParams
	snapshotParams
	cli.JSONOutput
	Name string `flag:"name" desc:"only entries whose base name matches this glob"`
	Type string `flag:"type" desc:"only entries of this type: f (file), d (directory), l (symlink)"`
	Long bool   `flag:"long,l" desc:"show mode, size and modification time"`
}

func findCommand(env *environment) *cli.Command {
	var params findParams
	return &cli.Command{
		Name:    "find",
		Summary: "walk the tree across nested catalogs",
		Usage:   "cvmfs find [flags] [path]",
		Description: `Walk the repository depth-first, children in name order, crossing
into nested catalogs. Only the catalogs on the current path are kept
open.`,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("find", &params)
		},
		Examples: []cli.Example{
			{Description: "Shared libraries below /lib", Command: "cvmfs find /lib --name '*.so' --type f"},
		},
		Run: func(args []string) error {
			if len(args) > 1 {
				return fmt.Errorf("find takes at most one path")
			}
			under := ""
			if len(args) == 1 {
				under = pathhash.Canonicalize(args[0])
			}
			match, err := params.matcher()
			if err != nil {
				return err
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
			return runFind(env, &params, view, under, match)
		},
	}
}

// matcher validates --name and --type and returns the entry filter.
func (p *findParams) matcher() (func(catalog.DirectoryEntry) bool, error) {
	if _, err := path.Match(p.Name, ""); err != nil {
		return nil, fmt.Errorf("--name %q: %w", p.Name, err)
	}
	var kind func(catalog.DirectoryEntry) bool
	switch p.Type {
	case "":
	case "f":
		kind = catalog.DirectoryEntry.IsFile
	case "d":
		kind = catalog.DirectoryEntry.IsDirectory
	case "l":
		kind = catalog.DirectoryEntry.IsSymlink
	default:
		return nil, fmt.Errorf("--type %q: want f, d or l", p.Type)
	}

	return func(entry catalog.DirectoryEntry) bool {
		if kind != nil && !kind(entry) {
			return false
		}
		if p.Name != "" {
			matched, _ := path.Match(p.Name, entry.Name)
			return matched
		}
		return true
	}, nil
}

func runFind(env *environment, params *findParams, view tree, under string, match func(catalog.DirectoryEntry) bool) error {
	iterator, err := view.Iterate(env.ctx)
	if err != nil {
		return err
	}
	defer iterator.Close()

	var results []entryJSON
	found := false
	for item, err := range iterator.All(env.ctx) {
		if err != nil {
			return err
		}
		if !within(item.Path, under) {
			continue
		}
		found = true
		if !match(item.Entry) {
			continue
		}
		if params.OutputJSON {
			results = append(results, newEntryJSON(item.Path, item.Entry))
			continue
		}
		if params.Long {
			env.writeLong(env.stdout, item.Entry, displayPath(item.Path))
		} else {
			fmt.Fprintln(env.stdout, displayPath(item.Path))
		}
	}
	if !found {
		return fmt.Errorf("%s: no such file or directory", displayPath(under))
	}
	if done, err := params.EmitJSON(env.stdout, results); done {
		return err
	}
	return nil
}

// within reports whether canonical path p is under or equal to root.
func within(p, root string) bool {
	return root == "" || p == root || strings.HasPrefix(p, root+"/")
}
