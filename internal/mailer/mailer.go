// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package mailer abstracts outbound mail so the rest of the code never talks
// SMTP directly.
package mailer

import (
	"context"

	"github.com/rs/zerolog"
)

// Sender delivers a single message to one recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender logs messages instead of delivering them. Used when no SMTP
// server is configured and in tests.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log.With().Str("module", "mailer").Logger()}
}

func (s *LogSender) Send(_ context.Context, to, subject, body string) error {
	s.log.Info().
		Str("to", to).
		Str("subject", subject).
		Int("bodyLen", len(body)).
		Msg("mail delivery skipped, no SMTP server configured")
	return nil
}
