// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bitdex/bitdex/internal/api"
	"github.com/bitdex/bitdex/internal/auth"
	"github.com/bitdex/bitdex/internal/database"
	"github.com/bitdex/bitdex/internal/domain"
	"github.com/bitdex/bitdex/internal/logger"
	"github.com/bitdex/bitdex/internal/mailer"
	"github.com/bitdex/bitdex/internal/metrics"
	"github.com/bitdex/bitdex/internal/models"
	"github.com/bitdex/bitdex/internal/services/imageproxy"
	"github.com/bitdex/bitdex/internal/services/statsimport"
	"github.com/bitdex/bitdex/internal/services/torrents"
	"github.com/bitdex/bitdex/internal/tracker"
)

func RunServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the index API and the statistics importer",
		RunE: func(cmd *cobra.Command, _ []string) error {
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
			categories := models.NewCategoryStore(db)
			tags := models.NewTagStore(db)
			torrentStore := models.NewTorrentStore(db)
			trackerKeys := models.NewTrackerKeyStore(db)

			signer := auth.NewTokenSigner([]byte(config.Auth.SecretKey))

			var mail mailer.Sender
			if config.Mail.SMTP.Server != "" {
				mail = mailer.NewSMTPSender(log.Logger, mailer.SMTPConfig{
					Server:   config.Mail.SMTP.Server,
					Port:     config.Mail.SMTP.Port,
					Username: config.Mail.SMTP.Credentials.Username,
					Password: config.Mail.SMTP.Credentials.Password,
					From:     config.Mail.From,
					ReplyTo:  config.Mail.ReplyTo,
				})
			} else {
				mail = mailer.NewLogSender(log.Logger)
			}

			authService := auth.NewService(log.Logger, users, signer, mail, auth.Config{
				EmailOnSignup:            config.Auth.EmailOnSignup,
				EmailVerificationEnabled: config.Mail.EmailVerificationEnabled,
				MinPasswordLength:        config.Auth.PasswordConstraints.Min,
				MaxPasswordLength:        config.Auth.PasswordConstraints.Max,
				SiteBaseURL:              config.Net.BaseURL,
			})

			trackerConfig := tracker.Config{
				Mode:              config.Tracker.Mode,
				URL:               config.Tracker.URL,
				APIURL:            config.Tracker.APIURL,
				Token:             config.Tracker.Token,
				TokenValidSeconds: config.Tracker.TokenValidSeconds,
			}
			trackerClient := tracker.NewClient(log.Logger, trackerConfig)
			keyManager := tracker.NewKeyManager(log.Logger, trackerClient, trackerKeys, trackerConfig)

			torrentService := torrents.NewService(
				log.Logger,
				torrentStore,
				users,
				categories,
				tags,
				trackerClient,
				keyManager,
				trackerConfig,
				torrents.Config{
					DefaultPageSize: config.API.DefaultTorrentPageSize,
					MaxPageSize:     config.API.MaxTorrentPageSize,
				},
			)

			imageProxy := imageproxy.NewService(log.Logger, imageproxy.Config{
				Capacity:        config.ImageCache.CapacityBytes,
				EntrySizeLimit:  config.ImageCache.EntrySizeLimitBytes,
				RequestTimeout:  time.Duration(config.ImageCache.MaxRequestTimeoutMS) * time.Millisecond,
				UserQuotaPeriod: time.Duration(config.ImageCache.UserQuotaPeriodSeconds) * time.Second,
				UserQuotaBytes:  config.ImageCache.UserQuotaBytes,
			})

			interval := time.Duration(config.Importer.TorrentInfoUpdateInterval) * time.Second
			healthServer := statsimport.NewHealthServer(log.Logger, interval, config.Importer.Port)
			importer := statsimport.NewImporter(log.Logger, torrentStore, trackerClient, statsimport.Config{
				Interval:     interval,
				HeartbeatURL: fmt.Sprintf("http://127.0.0.1:%d/heartbeat", config.Importer.Port),
				TrackerURL:   config.Tracker.URL,
			})

			metricsManager := metrics.NewManager(torrentStore, users, categories)

			server := api.NewServer(&api.Dependencies{
				Config:         config,
				DB:             db,
				Signer:         signer,
				AuthService:    authService,
				Users:          users,
				Categories:     categories,
				Tags:           tags,
				TorrentService: torrentService,
				ImageProxy:     imageProxy,
				MetricsManager: metricsManager,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return server.ListenAndServe(ctx) })
			g.Go(func() error { return healthServer.ListenAndServe(ctx) })
			g.Go(func() error { return importer.Run(ctx) })

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			log.Info().Msg("shutdown complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to the TOML configuration file")

	return cmd
}
