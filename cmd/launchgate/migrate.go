// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

package main

import (
	"os"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/launchgate/launchgate/internal/config"
	"github.com/launchgate/launchgate/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  `Apply, roll back, or inspect the PostgreSQL schema migrations.`,
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE:  runMigrateUp,
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			RunE:  runMigrateDown,
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the current schema version and pending migrations",
			RunE:  runMigrateStatus,
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Set the schema version without running migrations",
			Long:  `Set the recorded schema version. Only for recovering from a dirty state after fixing the database by hand.`,
			Args:  cobra.ExactArgs(1),
			RunE:  runMigrateForce,
		},
	)
	return cmd
}

// resolveDatabaseURL picks the connection string from the flag, the
// config file, or the DATABASE_URL environment variable, in that order.
func resolveDatabaseURL(cmd *cobra.Command) (string, error) {
	if url, err := cmd.Flags().GetString("database-url"); err == nil && url != "" {
		return url, nil
	}
	if path := configPath(); path != "" {
		cfg, err := config.Load(path, nil)
		if err != nil {
			return "", err
		}
		if cfg.DatabaseURL != "" {
			return cfg.DatabaseURL, nil
		}
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url, nil
	}
	return "", oops.Code("CONFIG_INVALID").
		Errorf("database URL is required: set --database-url, the config file, or DATABASE_URL")
}

func newMigrator(cmd *cobra.Command) (*store.Migrator, error) {
	url, err := resolveDatabaseURL(cmd)
	if err != nil {
		return nil, err
	}
	return store.NewMigrator(url)
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	m, err := newMigrator(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	if err := m.Up(); err != nil {
		return err
	}
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	cmd.Printf("schema at version %d (dirty: %v)\n", version, dirty)
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	m, err := newMigrator(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	if err := m.Down(); err != nil {
		return err
	}
	cmd.Println("rolled back all migrations")
	return nil
}

func runMigrateForce(cmd *cobra.Command, args []string) error {
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return oops.Code("INVALID_VERSION").With("arg", args[0]).Wrap(err)
	}

	m, err := newMigrator(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	if err := m.Force(version); err != nil {
		return err
	}
	cmd.Printf("schema version forced to %d\n", version)
	return nil
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	m, err := newMigrator(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	cmd.Printf("current version: %d (dirty: %v)\n", version, dirty)

	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		cmd.Println("no pending migrations")
		return nil
	}
	cmd.Printf("pending migrations: %v\n", pending)
	return nil
}
