// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package domain holds the process configuration: a versioned TOML document
// with environment-variable overrides.
package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix = "BITDEX"
	// SchemaVersion is the configuration layout this build understands.
	SchemaVersion = "2.0.0"
)

type WebsiteConfig struct {
	Name string `mapstructure:"name"`
}

type TrackerConfig struct {
	Mode              string `mapstructure:"mode"`
	URL               string `mapstructure:"url"`
	APIURL            string `mapstructure:"api_url"`
	Token             string `mapstructure:"token"`
	TokenValidSeconds int64  `mapstructure:"token_valid_seconds"`
}

type NetConfig struct {
	BindAddress string `mapstructure:"bind_address"`
	BaseURL     string `mapstructure:"base_url"`
}

type PasswordConstraints struct {
	Min int `mapstructure:"min"`
	Max int `mapstructure:"max"`
}

type AuthConfig struct {
	EmailOnSignup       string              `mapstructure:"email_on_signup"`
	SecretKey           string              `mapstructure:"secret_key"`
	PasswordConstraints PasswordConstraints `mapstructure:"password_constraints"`
}

type DatabaseConfig struct {
	ConnectURL string `mapstructure:"connect_url"`
}

type SMTPCredentials struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type SMTPConfig struct {
	Server      string          `mapstructure:"server"`
	Port        int             `mapstructure:"port"`
	Credentials SMTPCredentials `mapstructure:"credentials"`
}

type MailConfig struct {
	EmailVerificationEnabled bool       `mapstructure:"email_verification_enabled"`
	From                     string     `mapstructure:"from"`
	ReplyTo                  string     `mapstructure:"reply_to"`
	SMTP                     SMTPConfig `mapstructure:"smtp"`
}

type ImageCacheConfig struct {
	CapacityBytes          int64 `mapstructure:"capacity"`
	EntrySizeLimitBytes    int64 `mapstructure:"entry_size_limit"`
	MaxRequestTimeoutMS    int64 `mapstructure:"max_request_timeout_ms"`
	UserQuotaPeriodSeconds int64 `mapstructure:"user_quota_period_seconds"`
	UserQuotaBytes         int64 `mapstructure:"user_quota_bytes"`
}

type APIConfig struct {
	DefaultTorrentPageSize int64 `mapstructure:"default_torrent_page_size"`
	MaxTorrentPageSize     int64 `mapstructure:"max_torrent_page_size"`
}

type ImporterConfig struct {
	TorrentInfoUpdateInterval int64 `mapstructure:"torrent_info_update_interval"`
	Port                      int   `mapstructure:"port"`
}

type LoggingConfig struct {
	Threshold string `mapstructure:"threshold"`
	Path      string `mapstructure:"path"`
	MaxSize   int    `mapstructure:"max_size"`
	MaxBackup int    `mapstructure:"max_backup"`
}

type MetadataConfig struct {
	SchemaVersion string `mapstructure:"schema_version"`
}

type Config struct {
	Website    WebsiteConfig    `mapstructure:"website"`
	Tracker    TrackerConfig    `mapstructure:"tracker"`
	Net        NetConfig        `mapstructure:"net"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Mail       MailConfig       `mapstructure:"mail"`
	ImageCache ImageCacheConfig `mapstructure:"image_cache"`
	API        APIConfig        `mapstructure:"api"`
	Importer   ImporterConfig   `mapstructure:"tracker_statistics_importer"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metadata   MetadataConfig   `mapstructure:"metadata"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("website.name", "BitDex")

	v.SetDefault("tracker.mode", "public")
	v.SetDefault("tracker.url", "udp://localhost:6969")
	v.SetDefault("tracker.api_url", "http://localhost:1212")
	v.SetDefault("tracker.token", "")
	v.SetDefault("tracker.token_valid_seconds", 7257600)

	v.SetDefault("net.bind_address", "0.0.0.0:3001")
	v.SetDefault("net.base_url", "")

	v.SetDefault("auth.email_on_signup", "optional")
	v.SetDefault("auth.secret_key", "")
	v.SetDefault("auth.password_constraints.min", 6)
	v.SetDefault("auth.password_constraints.max", 64)

	v.SetDefault("database.connect_url", "bitdex.db")

	v.SetDefault("mail.email_verification_enabled", false)
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.reply_to", "")
	v.SetDefault("mail.smtp.server", "")
	v.SetDefault("mail.smtp.port", 25)
	v.SetDefault("mail.smtp.credentials.username", "")
	v.SetDefault("mail.smtp.credentials.password", "")

	v.SetDefault("image_cache.capacity", 128*1024*1024)
	v.SetDefault("image_cache.entry_size_limit", 4*1024*1024)
	v.SetDefault("image_cache.max_request_timeout_ms", 1000)
	v.SetDefault("image_cache.user_quota_period_seconds", 3600)
	v.SetDefault("image_cache.user_quota_bytes", 64*1024*1024)

	v.SetDefault("api.default_torrent_page_size", 10)
	v.SetDefault("api.max_torrent_page_size", 30)

	v.SetDefault("tracker_statistics_importer.torrent_info_update_interval", 3600)
	v.SetDefault("tracker_statistics_importer.port", 3002)

	v.SetDefault("logging.threshold", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size", 50)
	v.SetDefault("logging.max_backup", 3)

	v.SetDefault("metadata.schema_version", SchemaVersion)
}

// New loads the configuration from the given TOML file, if any, applying
// BITDEX_SECTION__KEY environment overrides on top.
func New(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the options the server cannot run without.
func (c *Config) Validate() error {
	var problems []string

	if c.Tracker.Token == "" {
		problems = append(problems, "tracker.token is required")
	}
	if c.Auth.SecretKey == "" {
		problems = append(problems, "auth.secret_key is required")
	}
	if c.Logging.Threshold == "" {
		problems = append(problems, "logging.threshold is required")
	}
	if c.Metadata.SchemaVersion == "" {
		problems = append(problems, "metadata.schema_version is required")
	} else if c.Metadata.SchemaVersion != SchemaVersion {
		problems = append(problems, fmt.Sprintf("metadata.schema_version %q is not supported (want %s)", c.Metadata.SchemaVersion, SchemaVersion))
	}

	switch c.Auth.EmailOnSignup {
	case "required", "optional", "none":
	default:
		problems = append(problems, fmt.Sprintf("auth.email_on_signup %q must be one of required, optional, none", c.Auth.EmailOnSignup))
	}

	switch c.Tracker.Mode {
	case "public", "private", "whitelisted", "private_whitelisted":
	default:
		problems = append(problems, fmt.Sprintf("tracker.mode %q must be one of public, private, whitelisted, private_whitelisted", c.Tracker.Mode))
	}

	if c.Auth.PasswordConstraints.Min <= 0 || c.Auth.PasswordConstraints.Max < c.Auth.PasswordConstraints.Min {
		problems = append(problems, "auth.password_constraints must satisfy 0 < min <= max")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
