// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

type SMTPConfig struct {
	Server   string
	Port     int
	Username string
	Password string
	From     string
	ReplyTo  string
}

// SMTPSender delivers mail through a configured SMTP relay. Plain auth is
// used only when credentials are set.
type SMTPSender struct {
	log    zerolog.Logger
	config SMTPConfig
}

func NewSMTPSender(log zerolog.Logger, config SMTPConfig) *SMTPSender {
	return &SMTPSender{
		log:    log.With().Str("module", "mailer").Logger(),
		config: config,
	}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	addr := net.JoinHostPort(s.config.Server, strconv.Itoa(s.config.Port))

	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Server)
	}

	var msg strings.Builder
	msg.WriteString("From: " + s.config.From + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	if s.config.ReplyTo != "" {
		msg.WriteString("Reply-To: " + s.config.ReplyTo + "\r\n")
	}
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, s.config.From, []string{to}, []byte(msg.String()))
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail to %s: %w", to, err)
		}
	}

	s.log.Debug().Str("to", to).Str("subject", subject).Msg("mail sent")
	return nil
}
