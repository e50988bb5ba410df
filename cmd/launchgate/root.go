// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/launchgate/launchgate/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// configPath resolves the config file: the --config flag, then the XDG
// config directory, then none.
func configPath() string {
	if configFile != "" {
		return configFile
	}
	return xdg.DefaultConfigFile()
}

// NewRootCmd creates the root command for the Launchgate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "launchgate",
		Short: "Launchgate - identity and session gateway for game launchers",
		Long: `Launchgate is the server-side identity and session layer for a
game-client distribution platform: it verifies launcher credentials,
maintains the account identity cache, applies IP and hardware
fingerprint abuse policies, and hands out signed client profiles.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewKeygenCmd())
	cmd.AddCommand(NewHashCmd())

	return cmd
}
