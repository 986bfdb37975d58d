// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package api wires the HTTP surface: the v1 routes, the Prometheus scrape
// endpoint and the health check.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/bitdex/bitdex/internal/api/handlers"
	"github.com/bitdex/bitdex/internal/api/middleware"
	"github.com/bitdex/bitdex/internal/auth"
	"github.com/bitdex/bitdex/internal/database"
	"github.com/bitdex/bitdex/internal/domain"
	"github.com/bitdex/bitdex/internal/metrics"
	"github.com/bitdex/bitdex/internal/models"
	"github.com/bitdex/bitdex/internal/services/imageproxy"
	"github.com/bitdex/bitdex/internal/services/torrents"
)

const shutdownTimeout = 10 * time.Second

type Dependencies struct {
	Config         *domain.Config
	DB             *database.DB
	Signer         *auth.TokenSigner
	AuthService    *auth.Service
	Users          *models.UserStore
	Categories     *models.CategoryStore
	Tags           *models.TagStore
	TorrentService *torrents.Service
	ImageProxy     *imageproxy.Service
	MetricsManager *metrics.Manager
}

type Server struct {
	deps *Dependencies
}

func NewServer(deps *Dependencies) *Server {
	return &Server{deps: deps}
}

// Handler builds the full route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}).Handler)

	r.Get("/api/health", s.healthCheck)

	if s.deps.MetricsManager != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(
			s.deps.MetricsManager.GetRegistry(),
			promhttp.HandlerOpts{},
		))
	}

	logger := log.Logger

	userHandler := handlers.NewUserHandler(logger, s.deps.AuthService, s.deps.Users)
	categoryHandler := handlers.NewCategoryHandler(logger, s.deps.Categories)
	tagHandler := handlers.NewTagHandler(logger, s.deps.Tags)
	torrentHandler := handlers.NewTorrentHandler(logger, s.deps.TorrentService)
	settingsHandler := handlers.NewSettingsHandler(logger, s.deps.Config)
	proxyHandler := handlers.NewProxyHandler(logger, s.deps.ImageProxy)

	requireAuth := middleware.RequireAuth(s.deps.Signer)
	optionalAuth := middleware.OptionalAuth(s.deps.Signer)
	requireUnbanned := middleware.RequireUnbanned(s.deps.AuthService)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/user", func(r chi.Router) {
			r.Post("/register", userHandler.Register)
			r.Post("/login", userHandler.Login)
			r.Post("/token/verify", userHandler.VerifyToken)
			r.Get("/email/verify/{token}", userHandler.VerifyEmail)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, requireUnbanned)
				r.Post("/token/renew", userHandler.RenewToken)
				r.Post("/password", userHandler.ChangePassword)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, requireUnbanned, middleware.RequireAdmin)
				r.Delete("/ban/{username}", userHandler.Ban)
			})
		})

		r.Route("/category", func(r chi.Router) {
			r.Get("/", categoryHandler.List)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, requireUnbanned, middleware.RequireAdmin)
				r.Post("/", categoryHandler.Add)
				r.Delete("/", categoryHandler.Delete)
			})
		})

		r.Get("/tags", tagHandler.List)
		r.Route("/tag", func(r chi.Router) {
			r.Use(requireAuth, requireUnbanned, middleware.RequireAdmin)
			r.Post("/", tagHandler.Add)
			r.Delete("/", tagHandler.Delete)
		})

		r.Get("/torrents", torrentHandler.List)
		r.Route("/torrent", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(requireAuth, requireUnbanned)
				r.Post("/upload", torrentHandler.Upload)
				r.Put("/{infoHash}", torrentHandler.Update)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, requireUnbanned, middleware.RequireAdmin)
				r.Delete("/{infoHash}", torrentHandler.Delete)
			})

			r.Group(func(r chi.Router) {
				r.Use(optionalAuth, requireUnbanned)
				r.Get("/download/{infoHash}", torrentHandler.Download)
				r.Get("/{infoHash}", torrentHandler.Get)
			})
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/public", settingsHandler.Public)
			r.Get("/name", settingsHandler.Name)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, requireUnbanned, middleware.RequireAdmin)
				r.Get("/", settingsHandler.All)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth, requireUnbanned)
			r.Get("/proxy/image/*", proxyHandler.Image)
		})
	})

	return r
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.DB.Ping(r.Context()); err != nil {
		handlers.RespondError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	handlers.RespondJSON(w, http.StatusOK, "healthy")
}

// ListenAndServe runs the server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.deps.Config.Net.BindAddress,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", server.Addr).Msg("API server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
