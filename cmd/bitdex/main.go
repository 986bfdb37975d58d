// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bitdex",
		Short: "BitTorrent index backend",
		Long:  "BitDex is a BitTorrent index backend: torrent ingestion, per-user tracker keys, search and statistics.",
	}

	rootCmd.AddCommand(RunServeCommand())
	rootCmd.AddCommand(RunUserCommand())
	rootCmd.AddCommand(RunDBCommand())
	rootCmd.AddCommand(RunVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RunVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("bitdex %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
