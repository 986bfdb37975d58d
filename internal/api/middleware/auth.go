// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package middleware carries the authentication and authorization layers of
// the HTTP API.
package middleware

import (
	"net/http"
	"strings"

	"github.com/bitdex/bitdex/internal/api/ctxkeys"
	"github.com/bitdex/bitdex/internal/api/handlers"
	"github.com/bitdex/bitdex/internal/auth"
)

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(signer *auth.TokenSigner) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				handlers.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			user, err := signer.Verify(token)
			if err != nil {
				handlers.RespondServiceError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(ctxkeys.WithUser(r.Context(), user)))
		})
	}
}

// OptionalAuth attaches an identity when a valid token is present and
// passes anonymous requests through untouched. An invalid token is still an
// error so clients notice expired sessions.
func OptionalAuth(signer *auth.TokenSigner) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			user, err := signer.Verify(token)
			if err != nil {
				handlers.RespondServiceError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(ctxkeys.WithUser(r.Context(), user)))
		})
	}
}

// RequireUnbanned rejects requests carrying a banned identity. Must run
// after RequireAuth or OptionalAuth; anonymous requests pass through.
func RequireUnbanned(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user, ok := ctxkeys.UserFrom(r.Context()); ok {
				if err := authService.RequireUnbanned(r.Context(), user.UserID); err != nil {
					handlers.RespondServiceError(w, err)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin gates a route on the administrator flag. Must run after
// RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := ctxkeys.UserFrom(r.Context())
		if !ok {
			handlers.RespondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if !user.Administrator {
			handlers.RespondError(w, http.StatusForbidden, "administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
