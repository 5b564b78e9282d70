// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/cvmfs/cmd/cvmfs/cli"
	"github.com/bureau-foundation/cvmfs/lib/objectstore"
)

type evictParams struct {
	sessionParams
	Metadata bool `flag:"metadata" desc:"also remove cached manifests and whitelists"`
}

func evictCommand(env *environment) *cli.Command {
	var params evictParams
	return &cli.Command{
		Name:    "evict",
		Summary: "empty the object cache",
		Usage:   "cvmfs evict [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("evict", &params)
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("evict takes no arguments")
			}
			cfg, err := params.load()
			if err != nil {
				return err
			}
			if cfg.CacheDir == "" {
				return fmt.Errorf("no cache directory configured")
			}
			logger, err := params.logger(env, cfg)
			if err != nil {
				return err
			}

			cache, err := objectstore.OpenCache(cfg.CacheDir)
			if err != nil {
				return err
			}
			if err := cache.Evict(); err != nil {
				return err
			}
			if params.Metadata {
				if err := cache.CleanupMetadata(); err != nil {
					return err
				}
			}
			logger.Info("cache evicted", "dir", cache.Root(), "metadata", params.Metadata)
			return nil
		},
	}
}
