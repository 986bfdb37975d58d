// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package ctxkeys defines the request-context keys shared between
// middleware and handlers.
package ctxkeys

import (
	"context"

	"github.com/bitdex/bitdex/internal/auth"
)

type contextKey string

const userKey contextKey = "user"

// WithUser attaches the authenticated identity to the context.
func WithUser(ctx context.Context, user auth.TokenUser) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFrom returns the authenticated identity, if any.
func UserFrom(ctx context.Context) (auth.TokenUser, bool) {
	user, ok := ctx.Value(userKey).(auth.TokenUser)
	return user, ok
}
