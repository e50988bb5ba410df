// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

package main

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/launchgate/launchgate/internal/config"
	"github.com/launchgate/launchgate/internal/keys"
)

// NewKeygenCmd creates the keygen subcommand.
func NewKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate the gateway RSA keypair",
		Long: `Generate a fresh RSA keypair for the gateway. The public key is
embedded in launcher builds; the private key never leaves the server.`,
		RunE: runKeygen,
	}
	cmd.Flags().String("keys-dir", config.DefaultKeysDir, "directory to write the keypair into")
	cmd.Flags().Bool("force", false, "overwrite an existing keypair")
	return cmd
}

func runKeygen(cmd *cobra.Command, _ []string) error {
	dir, err := cmd.Flags().GetString("keys-dir")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if keys.Exists(dir) && !force {
		return oops.Code("KEYS_EXIST").
			With("dir", dir).
			Errorf("a keypair already exists in %s; pass --force to replace it", dir)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return oops.Code("KEYS_SAVE_FAILED").With("dir", dir).Wrap(err)
	}

	pair, err := keys.Generate()
	if err != nil {
		return err
	}
	if err := pair.Save(dir); err != nil {
		return err
	}

	cmd.Printf("wrote %s\n", filepath.Join(dir, keys.PrivateKeyFile))
	cmd.Printf("wrote %s\n", filepath.Join(dir, keys.PublicKeyFile))
	return nil
}
