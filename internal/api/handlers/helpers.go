// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package handlers implements the v1 HTTP API. Successful responses wrap
// their payload in {data: ...}; failures in {errors: [...]}.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/bitdex/bitdex/internal/auth"
	"github.com/bitdex/bitdex/internal/metainfo"
	"github.com/bitdex/bitdex/internal/models"
	"github.com/bitdex/bitdex/internal/services/imageproxy"
	"github.com/bitdex/bitdex/internal/services/torrents"
	"github.com/bitdex/bitdex/internal/tracker"
)

type dataEnvelope struct {
	Data any `json:"data"`
}

type errorEnvelope struct {
	Errors []string `json:"errors"`
}

// RespondJSON writes the success envelope.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(dataEnvelope{Data: data}); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// RespondError writes the error envelope.
func RespondError(w http.ResponseWriter, status int, messages ...string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorEnvelope{Errors: messages}); err != nil {
		log.Error().Err(err).Msg("failed to encode error response")
	}
}

// RespondServiceError maps domain sentinels to their HTTP status. Unknown
// errors become opaque 500s so internals never leak.
func RespondServiceError(w http.ResponseWriter, err error) {
	switch {
	// Validation: 400.
	case errors.Is(err, metainfo.ErrInvalidBencode),
		errors.Is(err, metainfo.ErrMissingInfo),
		errors.Is(err, metainfo.ErrInvalidPiecesLength),
		errors.Is(err, torrents.ErrTitleTooShort),
		errors.Is(err, models.ErrUsernameInvalid),
		errors.Is(err, models.ErrInvalidSort),
		errors.Is(err, models.ErrInvalidCategoryReference),
		errors.Is(err, models.ErrCategoryNameEmpty),
		errors.Is(err, models.ErrTagNameEmpty),
		errors.Is(err, auth.ErrEmailRequired),
		errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, auth.ErrPasswordTooLong),
		errors.Is(err, auth.ErrPasswordConfirmation):
		RespondError(w, http.StatusBadRequest, err.Error())

	// State conflicts: 400.
	case errors.Is(err, models.ErrUsernameTaken),
		errors.Is(err, models.ErrEmailTaken),
		errors.Is(err, models.ErrCategoryAlreadyExists),
		errors.Is(err, models.ErrCategoryInUse),
		errors.Is(err, models.ErrTagAlreadyExists),
		errors.Is(err, models.ErrTorrentTitleAlreadyExists),
		errors.Is(err, imageproxy.ErrUserQuotaMet),
		errors.Is(err, imageproxy.ErrURLIsUnreachable),
		errors.Is(err, imageproxy.ErrURLIsNotAnImage),
		errors.Is(err, imageproxy.ErrImageTooBig):
		RespondError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, models.ErrInfoHashAlreadyExists):
		RespondError(w, http.StatusBadRequest, "canonical info-hash already exists")

	// Authentication: 401.
	case errors.Is(err, auth.ErrTokenInvalid),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrEmailNotVerified),
		errors.Is(err, imageproxy.ErrUnauthenticated):
		RespondError(w, http.StatusUnauthorized, err.Error())

	// Authorization: 403.
	case errors.Is(err, auth.ErrUserBanned),
		errors.Is(err, torrents.ErrForbidden):
		RespondError(w, http.StatusForbidden, err.Error())

	// Not found: 404.
	case errors.Is(err, models.ErrUserNotFound),
		errors.Is(err, models.ErrCategoryNotFound),
		errors.Is(err, models.ErrTagNotFound),
		errors.Is(err, models.ErrTorrentNotFound),
		errors.Is(err, models.ErrInfoHashNotFound),
		errors.Is(err, tracker.ErrTorrentNotRegistered):
		RespondError(w, http.StatusNotFound, err.Error())

	// External systems: 503.
	case errors.Is(err, tracker.ErrTrackerOffline):
		RespondError(w, http.StatusServiceUnavailable, "tracker is offline")

	default:
		log.Error().Err(err).Msg("internal server error")
		RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON reads a request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
