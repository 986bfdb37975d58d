// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bitdex/bitdex/internal/database"
	"github.com/bitdex/bitdex/internal/domain"
	"github.com/bitdex/bitdex/internal/logger"
)

func RunDBCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database operations",
	}

	cmd.AddCommand(runDBMigrateCommand())
	return cmd
}

func runDBMigrateCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := domain.New(configPath)
			if err != nil {
				return err
			}

			logger.Init(config.Logging)

			// Opening the database applies pending migrations.
			db, err := database.New(config.Database.ConnectURL)
			if err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}
			defer db.Close()

			cmd.Println("Database schema is up to date.")
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to the TOML configuration file")

	return cmd
}
