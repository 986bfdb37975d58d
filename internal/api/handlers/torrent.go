// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/bitdex/bitdex/internal/api/ctxkeys"
	"github.com/bitdex/bitdex/internal/services/torrents"
)

// maxUploadBytes bounds the multipart upload body. Metainfo files are small;
// anything bigger than this is not a torrent.
const maxUploadBytes = 10 << 20

type TorrentHandler struct {
	log      zerolog.Logger
	torrents *torrents.Service
}

func NewTorrentHandler(log zerolog.Logger, service *torrents.Service) *TorrentHandler {
	return &TorrentHandler{
		log:      log.With().Str("handler", "torrent").Logger(),
		torrents: service,
	}
}

// Upload accepts a multipart form with the metainfo file under "torrent" and
// title, description, category and tags fields alongside it.
func (h *TorrentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user, ok := ctxkeys.UserFrom(r.Context())
	if !ok {
		RespondError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, _, err := r.FormFile("torrent")
	if err != nil {
		RespondError(w, http.StatusBadRequest, "missing torrent file")
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "failed to read torrent file")
		return
	}

	var tagIDs []int64
	if tags := r.FormValue("tags"); tags != "" {
		if err := json.Unmarshal([]byte(tags), &tagIDs); err != nil {
			RespondError(w, http.StatusBadRequest, "tags must be a JSON array of tag ids")
			return
		}
	}

	result, err := h.torrents.Upload(r.Context(), user.UserID, torrents.UploadRequest{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
		TagIDs:      tagIDs,
		Torrent:     raw,
	})
	if err != nil {
		RespondServiceError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, result)
}

// Download serves the stored torrent re-encoded with announce URLs for the
// requesting user.
func (h *TorrentHandler) Download(w http.ResponseWriter, r *http.Request) {
	infoHash := strings.ToLower(chi.URLParam(r, "infoHash"))

	var userID *int64
	if user, ok := ctxkeys.UserFrom(r.Context()); ok {
		userID = &user.UserID
	}

	torrent, encoded, err := h.torrents.Download(r.Context(), infoHash, userID)
	if err != nil {
		RespondServiceError(w, err)
		return
	}

	filename := torrent.Name
	if filename == "" {
		filename = torrent.InfoHash
	}

	w.Header().Set("Content-Type", "application/x-bittorrent")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+".torrent"))
	w.Header().Set("x-torrust-torrent-infohash", torrent.InfoHash)
	w.Header().Set("Content-Length", strconv.Itoa(len(encoded)))
	w.Write(encoded)
}

func (h *TorrentHandler) Get(w http.ResponseWriter, r *http.Request) {
	infoHash := strings.ToLower(chi.URLParam(r, "infoHash"))

	var userID *int64
	if user, ok := ctxkeys.UserFrom(r.Context()); ok {
		userID = &user.UserID
	}

	detail, err := h.torrents.GetDetail(r.Context(), infoHash, userID)
	if err != nil {
		RespondServiceError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, detail)
}

type updateTorrentRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
	TagIDs      *[]int64 `json:"tags"`
}

func (h *TorrentHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := ctxkeys.UserFrom(r.Context())
	if !ok {
		RespondError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	infoHash := strings.ToLower(chi.URLParam(r, "infoHash"))

	var req updateTorrentRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	detail, err := h.torrents.Update(r.Context(), infoHash, user.UserID, user.Administrator, torrents.UpdateRequest{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		TagIDs:      req.TagIDs,
	})
	if err != nil {
		RespondServiceError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, detail)
}

type deleteTorrentResponse struct {
	TorrentID int64  `json:"torrent_id"`
	InfoHash  string `json:"info_hash"`
}

func (h *TorrentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	infoHash := strings.ToLower(chi.URLParam(r, "infoHash"))

	torrentID, err := h.torrents.Delete(r.Context(), infoHash)
	if err != nil {
		RespondServiceError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, deleteTorrentResponse{TorrentID: torrentID, InfoHash: infoHash})
}

// List serves the paginated search. Comma-separated category and tag filters
// come in as query parameters.
func (h *TorrentHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	params := torrents.ListParams{
		Search:     query.Get("search"),
		Categories: splitCSV(query.Get("categories")),
		Tags:       splitCSV(query.Get("tags")),
		Sort:       query.Get("sort"),
		Page:       parseInt(query.Get("page"), 0),
		PageSize:   parseInt(query.Get("page_size"), 0),
	}

	result, err := h.torrents.List(r.Context(), params)
	if err != nil {
		RespondServiceError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, result)
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	var parts []string
	for _, part := range strings.Split(value, ",") {
		if unescaped, err := url.QueryUnescape(part); err == nil {
			part = unescaped
		}
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func parseInt(value string, fallback int64) int64 {
	if value == "" {
		return fallback
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
