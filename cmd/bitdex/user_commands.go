// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bitdex/bitdex/internal/auth"
	"github.com/bitdex/bitdex/internal/database"
	"github.com/bitdex/bitdex/internal/domain"
	"github.com/bitdex/bitdex/internal/logger"
	"github.com/bitdex/bitdex/internal/mailer"
	"github.com/bitdex/bitdex/internal/models"
)

func RunUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User management",
	}

	cmd.AddCommand(runCreateAdminCommand())
	return cmd
}

func runCreateAdminCommand() *cobra.Command {
	var (
		configPath string
		username   string
		email      string
		password   string
	)

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if username == "" {
				return errors.New("--username is required")
			}
			if password == "" {
				return errors.New("--password is required")
			}

			config, err := domain.New(configPath)
			if err != nil {
				return err
			}

			logger.Init(config.Logging)

			db, err := database.New(config.Database.ConnectURL)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			users := models.NewUserStore(db)
			signer := auth.NewTokenSigner([]byte(config.Auth.SecretKey))
			authService := auth.NewService(log.Logger, users, signer, mailer.NewLogSender(log.Logger), auth.Config{
				EmailOnSignup:     config.Auth.EmailOnSignup,
				MinPasswordLength: config.Auth.PasswordConstraints.Min,
				MaxPasswordLength: config.Auth.PasswordConstraints.Max,
			})

			user, err := authService.CreateAdmin(cmd.Context(), username, email, password)
			if err != nil {
				return err
			}

			cmd.Printf("Administrator %q created (id %d)\n", user.Username, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to the TOML configuration file")
	cmd.Flags().StringVar(&username, "username", "", "Username for the new administrator")
	cmd.Flags().StringVar(&email, "email", "", "Email address for the new administrator")
	cmd.Flags().StringVar(&password, "password", "", "Password for the new administrator")

	return cmd
}
