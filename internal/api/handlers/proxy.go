// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/bitdex/bitdex/internal/api/ctxkeys"
	"github.com/bitdex/bitdex/internal/services/imageproxy"
)

type ProxyHandler struct {
	log    zerolog.Logger
	images *imageproxy.Service
}

func NewProxyHandler(log zerolog.Logger, images *imageproxy.Service) *ProxyHandler {
	return &ProxyHandler{
		log:    log.With().Str("handler", "proxy").Logger(),
		images: images,
	}
}

// Image proxies a remote image through the byte-bounded cache. The target
// URL arrives URL-encoded as the remainder of the path.
func (h *ProxyHandler) Image(w http.ResponseWriter, r *http.Request) {
	encoded := chi.URLParam(r, "*")
	target, err := url.QueryUnescape(encoded)
	if err != nil || target == "" {
		RespondError(w, http.StatusBadRequest, "invalid image url")
		return
	}

	var userID *int64
	if user, ok := ctxkeys.UserFrom(r.Context()); ok {
		userID = &user.UserID
	}

	image, err := h.images.GetImage(r.Context(), target, userID)
	if err != nil {
		RespondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(image)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(image)
}
