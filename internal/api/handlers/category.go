// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/bitdex/bitdex/internal/models"
)

type CategoryHandler struct {
	log        zerolog.Logger
	categories *models.CategoryStore
}

func NewCategoryHandler(log zerolog.Logger, categories *models.CategoryStore) *CategoryHandler {
	return &CategoryHandler{
		log:        log.With().Str("handler", "category").Logger(),
		categories: categories,
	}
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		RespondServiceError(w, err)
		return
	}
	if categories == nil {
		categories = []*models.Category{}
	}
	RespondJSON(w, http.StatusOK, categories)
}

type categoryRequest struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

func (h *CategoryHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	category, err := h.categories.Add(r.Context(), req.Name, req.Icon)
	if err != nil {
		RespondServiceError(w, err)
		return
	}

	h.log.Info().Str("category", category.Name).Msg("category added")
	RespondJSON(w, http.StatusOK, category.Name)
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.categories.Delete(r.Context(), req.Name); err != nil {
		RespondServiceError(w, err)
		return
	}

	h.log.Info().Str("category", req.Name).Msg("category deleted")
	RespondJSON(w, http.StatusOK, req.Name)
}
