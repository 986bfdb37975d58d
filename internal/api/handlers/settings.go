// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/bitdex/bitdex/internal/domain"
)

type SettingsHandler struct {
	log    zerolog.Logger
	config *domain.Config
}

func NewSettingsHandler(log zerolog.Logger, config *domain.Config) *SettingsHandler {
	return &SettingsHandler{
		log:    log.With().Str("handler", "settings").Logger(),
		config: config,
	}
}

// adminSettings mirrors the configuration with secrets redacted. Even
// administrators do not get the signing key or tracker token back over HTTP.
type adminSettings struct {
	Website    domain.WebsiteConfig    `json:"website"`
	Tracker    redactedTracker         `json:"tracker"`
	Net        domain.NetConfig        `json:"net"`
	Auth       redactedAuth            `json:"auth"`
	Database   domain.DatabaseConfig   `json:"database"`
	ImageCache domain.ImageCacheConfig `json:"image_cache"`
	API        domain.APIConfig        `json:"api"`
	Importer   domain.ImporterConfig   `json:"tracker_statistics_importer"`
	Metadata   domain.MetadataConfig   `json:"metadata"`
}

type redactedTracker struct {
	Mode              string `json:"mode"`
	URL               string `json:"url"`
	APIURL            string `json:"api_url"`
	TokenValidSeconds int64  `json:"token_valid_seconds"`
}

type redactedAuth struct {
	EmailOnSignup       string                     `json:"email_on_signup"`
	PasswordConstraints domain.PasswordConstraints `json:"password_constraints"`
}

func (h *SettingsHandler) All(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, adminSettings{
		Website: h.config.Website,
		Tracker: redactedTracker{
			Mode:              h.config.Tracker.Mode,
			URL:               h.config.Tracker.URL,
			APIURL:            h.config.Tracker.APIURL,
			TokenValidSeconds: h.config.Tracker.TokenValidSeconds,
		},
		Net: h.config.Net,
		Auth: redactedAuth{
			EmailOnSignup:       h.config.Auth.EmailOnSignup,
			PasswordConstraints: h.config.Auth.PasswordConstraints,
		},
		Database:   h.config.Database,
		ImageCache: h.config.ImageCache,
		API:        h.config.API,
		Importer:   h.config.Importer,
		Metadata:   h.config.Metadata,
	})
}

type publicSettings struct {
	WebsiteName   string `json:"website_name"`
	TrackerURL    string `json:"tracker_url"`
	TrackerMode   string `json:"tracker_mode"`
	EmailOnSignup string `json:"email_on_signup"`
}

func (h *SettingsHandler) Public(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, publicSettings{
		WebsiteName:   h.config.Website.Name,
		TrackerURL:    h.config.Tracker.URL,
		TrackerMode:   h.config.Tracker.Mode,
		EmailOnSignup: h.config.Auth.EmailOnSignup,
	})
}

func (h *SettingsHandler) Name(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.config.Website.Name)
}
