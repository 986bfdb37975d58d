// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/bitdex/bitdex/internal/models"
)

type TagHandler struct {
	log  zerolog.Logger
	tags *models.TagStore
}

func NewTagHandler(log zerolog.Logger, tags *models.TagStore) *TagHandler {
	return &TagHandler{
		log:  log.With().Str("handler", "tag").Logger(),
		tags: tags,
	}
}

func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	tags, err := h.tags.List(r.Context())
	if err != nil {
		RespondServiceError(w, err)
		return
	}
	if tags == nil {
		tags = []*models.Tag{}
	}
	RespondJSON(w, http.StatusOK, tags)
}

type addTagRequest struct {
	Name string `json:"name"`
}

func (h *TagHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addTagRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tag, err := h.tags.Add(r.Context(), req.Name)
	if err != nil {
		RespondServiceError(w, err)
		return
	}

	h.log.Info().Str("tag", tag.Name).Msg("tag added")
	RespondJSON(w, http.StatusOK, tag.Name)
}

type deleteTagRequest struct {
	TagID int64 `json:"tag_id"`
}

func (h *TagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteTagRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.tags.Delete(r.Context(), req.TagID); err != nil {
		RespondServiceError(w, err)
		return
	}

	h.log.Info().Int64("tagId", req.TagID).Msg("tag deleted")
	RespondJSON(w, http.StatusOK, req.TagID)
}
