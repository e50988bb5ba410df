// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

package main

import (
	"bufio"
	"strings"

	"github.com/spf13/cobra"

	"github.com/launchgate/launchgate/internal/auth"
)

// NewHashCmd creates the hash subcommand.
func NewHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash [password]",
		Short: "Hash a password for the file credential store",
		Long: `Produce an argon2id digest suitable for the password_hash field of
the file provider's credential YAML. With no argument the password is
read from stdin, keeping it out of shell history.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHash,
	}
}

func runHash(cmd *cobra.Command, args []string) error {
	var password string
	if len(args) == 1 {
		password = args[0]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return err
		}
		password = strings.TrimRight(line, "\r\n")
	}

	digest, err := auth.NewArgon2idHasher().Hash(password)
	if err != nil {
		return err
	}
	cmd.Println(digest)
	return nil
}
