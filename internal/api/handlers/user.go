// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/bitdex/bitdex/internal/api/ctxkeys"
	"github.com/bitdex/bitdex/internal/auth"
	"github.com/bitdex/bitdex/internal/models"
)

// defaultBanDuration applies when a ban request carries no expiry.
const defaultBanDuration = 100 * 365 * 24 * time.Hour

type UserHandler struct {
	log   zerolog.Logger
	auth  *auth.Service
	users *models.UserStore
}

func NewUserHandler(log zerolog.Logger, authService *auth.Service, users *models.UserStore) *UserHandler {
	return &UserHandler{
		log:   log.With().Str("handler", "user").Logger(),
		auth:  authService,
		users: users,
	}
}

type registrationRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Confirmation string `json:"confirm_password"`
}

type registrationResponse struct {
	UserID int64 `json:"user_id"`
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password, req.Confirmation)
	if err != nil {
		RespondServiceError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, registrationResponse{UserID: user.ID})
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, user, err := h.auth.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		RespondServiceError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, sessionResponse{
		Token:    token,
		Username: user.Username,
		Admin:    user.Administrator,
	})
}

type tokenRequest struct {
	Token string `json:"token"`
}

func (h *UserHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.auth.Verify(req.Token); err != nil {
		RespondServiceError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, "token is valid")
}

func (h *UserHandler) RenewToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, user, err := h.auth.Renew(r.Context(), req.Token)
	if err != nil {
		RespondServiceError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, sessionResponse{
		Token:    token,
		Username: user.Username,
		Admin:    user.Administrator,
	})
}

// VerifyEmail serves the link sent by mail, so the response is plain text
// a browser can display.
func (h *UserHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := h.auth.VerifyEmail(r.Context(), token); err != nil {
		h.log.Debug().Err(err).Msg("email verification failed")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("Email verification failed."))
		return
	}

	w.Write([]byte("Email verified successfully."))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	Password        string `json:"password"`
	Confirmation    string `json:"confirm_password"`
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := ctxkeys.UserFrom(r.Context())
	if !ok {
		RespondError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.auth.ChangePassword(r.Context(), user.UserID, req.CurrentPassword, req.Password, req.Confirmation); err != nil {
		RespondServiceError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, "password changed")
}

type banRequest struct {
	Reason    string     `json:"reason"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func (h *UserHandler) Ban(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var req banRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	target, err := h.users.GetByUsername(r.Context(), username)
	if err != nil {
		RespondServiceError(w, err)
		return
	}

	expiry := time.Now().Add(defaultBanDuration)
	if req.ExpiresAt != nil {
		expiry = *req.ExpiresAt
	}

	if err := h.users.BanUser(r.Context(), target.ID, req.Reason, expiry); err != nil {
		RespondServiceError(w, err)
		return
	}

	h.log.Info().Str("username", username).Msg("user banned")
	RespondJSON(w, http.StatusOK, "banned user "+username)
}
