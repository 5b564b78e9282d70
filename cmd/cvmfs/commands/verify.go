// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/cvmfs/cmd/cvmfs/cli"
)

type verifyParams struct {
	sessionParams
	cli.JSONOutput
	PublicKey string `flag:"public-key,k" desc:"PEM public key trusted to sign the whitelist (default public_key from the config)"`
}

type verifyJSON struct {
	Name     string `json:"name"`
	Revision int64  `json:"revision"`
	Trusted  bool   `json:"trusted"`
	Reason   string `json:"reason,omitempty"`
}

func verifyCommand(env *environment) *cli.Command {
	var params verifyParams
	return &cli.Command{
		Name:    "verify",
		Summary: "check the manifest's signature chain",
		Usage:   "cvmfs verify [flags]",
		Description: `Check that the whitelist is signed by the trusted key and unexpired,
that it lists the certificate, and that the certificate signed the
manifest. Exits 2 when the repository is untrusted.`,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("verify", &params)
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("verify takes no arguments")
			}
			repo, cfg, err := params.open(env)
			if err != nil {
				return err
			}
			defer repo.Close()

			keyPath := params.PublicKey
			if keyPath == "" {
				keyPath = cfg.PublicKey
			}
			if keyPath == "" {
				return fmt.Errorf("no public key: pass --public-key or set public_key in the config")
			}

			trusted, verifyErr := repo.Verify(env.ctx, keyPath)
			result := verifyJSON{
				Name:     repo.Name(),
				Revision: repo.Manifest().Revision,
				Trusted:  trusted,
			}
			if verifyErr != nil {
				result.Reason = verifyErr.Error()
			}

			if done, err := params.EmitJSON(env.stdout, result); done {
				if err != nil {
					return err
				}
			} else if trusted {
				fmt.Fprintf(env.stdout, "%s revision %d: %s\n", result.Name, result.Revision, env.styles.Success("trusted"))
			} else {
				fmt.Fprintf(env.stdout, "%s revision %d: %s: %s\n", result.Name, result.Revision, env.styles.Failure("untrusted"), result.Reason)
			}
			if !trusted {
				return exitUntrusted
			}
			return nil
		},
	}
}
