// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package torrents orchestrates the upload, download, update and listing
// flows: metainfo parsing, persistence, tracker whitelisting and announce
// URL personalization.
package torrents

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bitdex/bitdex/internal/metainfo"
	"github.com/bitdex/bitdex/internal/models"
	"github.com/bitdex/bitdex/internal/tracker"
)

var (
	ErrTitleTooShort = errors.New("torrents: title must be at least 3 characters")
	ErrForbidden     = errors.New("torrents: not the uploader or an administrator")
)

const minTitleLength = 3

type Config struct {
	DefaultPageSize int64
	MaxPageSize     int64
}

type Service struct {
	log        zerolog.Logger
	store      *models.TorrentStore
	users      *models.UserStore
	categories *models.CategoryStore
	tags       *models.TagStore
	tracker    *tracker.Client
	keys       *tracker.KeyManager
	trackerCfg tracker.Config
	config     Config
}

func NewService(
	log zerolog.Logger,
	store *models.TorrentStore,
	users *models.UserStore,
	categories *models.CategoryStore,
	tags *models.TagStore,
	trackerClient *tracker.Client,
	keys *tracker.KeyManager,
	trackerCfg tracker.Config,
	config Config,
) *Service {
	return &Service{
		log:        log.With().Str("module", "torrents").Logger(),
		store:      store,
		users:      users,
		categories: categories,
		tags:       tags,
		tracker:    trackerClient,
		keys:       keys,
		trackerCfg: trackerCfg,
		config:     config,
	}
}

type UploadRequest struct {
	Title       string
	Description string
	Category    string
	TagIDs      []int64
	Torrent     []byte
}

type UploadResult struct {
	TorrentID        int64  `json:"torrent_id"`
	InfoHash         string `json:"info_hash"`
	OriginalInfoHash string `json:"original_info_hash"`
}

// Upload validates and persists a torrent, then whitelists its canonical
// hash on the tracker. A failed whitelist rolls the upload back so the index
// never lists a torrent nobody can announce.
func (s *Service) Upload(ctx context.Context, uploaderID int64, req UploadRequest) (*UploadResult, error) {
	meta, err := metainfo.Decode(req.Torrent)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if len(title) < minTitleLength {
		return nil, ErrTitleTooShort
	}

	category, err := s.categories.GetByName(ctx, req.Category)
	if err != nil {
		return nil, err
	}

	if _, err := s.tags.ResolveIDs(ctx, req.TagIDs); err != nil {
		return nil, err
	}

	original, err := meta.InfoHash()
	if err != nil {
		return nil, fmt.Errorf("compute info-hash: %w", err)
	}
	canonical, err := meta.CanonicalInfoHash()
	if err != nil {
		return nil, fmt.Errorf("compute canonical info-hash: %w", err)
	}

	s.rewriteForStorage(meta)

	torrentID, err := s.store.Add(ctx, models.AddTorrentParams{
		UploaderID:        uploaderID,
		CategoryID:        category.ID,
		Title:             title,
		Description:       req.Description,
		TagIDs:            req.TagIDs,
		OriginalInfoHash:  original.Hex(),
		CanonicalInfoHash: canonical.Hex(),
		Meta:              meta,
	})
	if err != nil {
		return nil, err
	}

	if s.trackerCfg.IsWhitelisted() {
		if err := s.tracker.WhitelistInfoHash(ctx, canonical.Hex()); err != nil {
			s.log.Error().Err(err).Str("infoHash", canonical.Hex()).Msg("whitelisting failed, rolling back upload")
			if delErr := s.store.Delete(ctx, torrentID); delErr != nil {
				s.log.Error().Err(delErr).Int64("torrentId", torrentID).Msg("failed to roll back upload")
			}
			return nil, err
		}
	}

	s.log.Info().
		Int64("torrentId", torrentID).
		Str("infoHash", canonical.Hex()).
		Int64("uploaderId", uploaderID).
		Msg("torrent uploaded")

	return &UploadResult{
		TorrentID:        torrentID,
		InfoHash:         canonical.Hex(),
		OriginalInfoHash: original.Hex(),
	}, nil
}

// rewriteForStorage points the stored announce data at the configured
// tracker: the plain URL becomes the announce and the first tier, with any
// pre-existing copies removed.
func (s *Service) rewriteForStorage(meta *metainfo.Torrent) {
	base := strings.TrimRight(s.trackerCfg.URL, "/")
	meta.Announce = base
	if len(meta.AnnounceList) > 0 {
		meta.AnnounceList = prependTier(meta.AnnounceList, base)
	}
}

// prependTier inserts [[announce]] as tier 0, dropping the URL from every
// stored tier first so no duplicates remain.
func prependTier(tiers [][]string, announce string) [][]string {
	result := [][]string{{announce}}
	for _, tier := range tiers {
		var kept []string
		for _, u := range tier {
			if u != announce {
				kept = append(kept, u)
			}
		}
		if len(kept) > 0 {
			result = append(result, kept)
		}
	}
	return result
}

// Download rebuilds the metainfo for any hash in the content group, with
// announce URLs personalized for the requesting user. Anonymous downloads
// get the plain tracker URL.
func (s *Service) Download(ctx context.Context, infoHash string, userID *int64) (*models.Torrent, []byte, error) {
	t, err := s.store.GetByInfoHash(ctx, infoHash)
	if err != nil {
		return nil, nil, err
	}

	meta, err := rebuildMeta(t)
	if err != nil {
		return nil, nil, err
	}

	if userID != nil {
		announce, err := s.keys.AnnounceURL(ctx, *userID)
		if err != nil {
			return nil, nil, err
		}
		meta.Announce = announce
		if len(meta.AnnounceList) > 0 {
			meta.AnnounceList = prependTier(meta.AnnounceList, announce)
		}
	} else {
		meta.Announce = strings.TrimRight(s.trackerCfg.URL, "/")
	}

	encoded, err := meta.Encode()
	if err != nil {
		return nil, nil, fmt.Errorf("encode torrent: %w", err)
	}
	return t, encoded, nil
}

// rebuildMeta reconstructs a metainfo value from the stored decomposition.
// The info dictionary must hash back to the stored canonical hash.
func rebuildMeta(t *models.Torrent) (*metainfo.Torrent, error) {
	info := metainfo.Info{
		Name:        t.Name,
		PieceLength: t.PieceLength,
		RootHash:    t.RootHash,
		Private:     t.PrivateFlag,
		Source:      t.Source,
	}

	if t.PiecesHex != "" {
		pieces, err := hex.DecodeString(t.PiecesHex)
		if err != nil {
			return nil, fmt.Errorf("decode stored pieces: %w", err)
		}
		info.Pieces = pieces
	}

	if len(t.Files) == 1 && len(t.Files[0].Path) == 0 {
		info.Length = t.Files[0].Length
		info.MD5Sum = t.Files[0].MD5Sum
	} else {
		for _, f := range t.Files {
			info.Files = append(info.Files, metainfo.File{
				Path:   f.Path,
				Length: f.Length,
				MD5Sum: f.MD5Sum,
			})
		}
	}

	meta := &metainfo.Torrent{
		Comment:      t.Comment,
		CreatedBy:    t.CreatedBy,
		CreationDate: t.CreationDate,
		Encoding:     t.Encoding,
		HTTPSeeds:    t.HTTPSeeds,
		Info:         info,
	}

	if len(t.AnnounceURLs) > 0 {
		meta.Announce = t.AnnounceURLs[0]
		for _, u := range t.AnnounceURLs {
			meta.AnnounceList = append(meta.AnnounceList, []string{u})
		}
	}

	for _, n := range t.Nodes {
		meta.Nodes = append(meta.Nodes, metainfo.Node{Host: n.Host, Port: n.Port})
	}

	return meta, nil
}

// Detail is the full torrent view served by the detail endpoint.
type Detail struct {
	*models.Torrent
	Category    *models.Category `json:"category"`
	Uploader    string           `json:"uploader"`
	Seeders     int64            `json:"seeders"`
	Leechers    int64            `json:"leechers"`
	TrackerURLs []string         `json:"trackers"`
	MagnetLink  string           `json:"magnet_link"`
}

// GetDetail assembles the detail view: files with single-file paths fixed
// up, personalized tracker list, magnet link and swarm counts refreshed from
// the tracker when it is reachable.
func (s *Service) GetDetail(ctx context.Context, infoHash string, userID *int64) (*Detail, error) {
	t, err := s.store.GetByInfoHash(ctx, infoHash)
	if err != nil {
		return nil, err
	}

	// Single-file torrents store an empty path; the detail view shows the
	// torrent name instead.
	for i := range t.Files {
		if len(t.Files[i].Path) == 0 {
			t.Files[i].Path = []string{t.Name}
		}
	}

	category, err := s.categories.GetByID(ctx, t.CategoryID)
	if err != nil {
		return nil, err
	}

	uploader := ""
	if u, err := s.users.GetByID(ctx, t.UploaderID); err == nil {
		uploader = u.Username
	}

	trackers := t.AnnounceURLs
	if userID != nil {
		if announce, err := s.keys.AnnounceURL(ctx, *userID); err == nil {
			trackers = prependFlat(trackers, announce)
		} else {
			s.log.Error().Err(err).Int64("userId", *userID).Msg("failed to personalize tracker list")
		}
	} else {
		trackers = prependFlat(trackers, strings.TrimRight(s.trackerCfg.URL, "/"))
	}

	seeders, leechers := s.refreshStats(ctx, t)

	return &Detail{
		Torrent:     t,
		Category:    category,
		Uploader:    uploader,
		Seeders:     seeders,
		Leechers:    leechers,
		TrackerURLs: trackers,
		MagnetLink:  magnetLink(t.InfoHash, t.Title, trackers),
	}, nil
}

func prependFlat(urls []string, announce string) []string {
	result := []string{announce}
	for _, u := range urls {
		if u != announce {
			result = append(result, u)
		}
	}
	return result
}

// refreshStats asks the tracker for live counts, falling back to the stored
// aggregate when the tracker is unreachable.
func (s *Service) refreshStats(ctx context.Context, t *models.Torrent) (int64, int64) {
	info, err := s.tracker.GetTorrentInfo(ctx, t.InfoHash)
	if err == nil {
		if upErr := s.store.UpsertTrackerStats(ctx, t.ID, s.trackerCfg.URL, info.Seeders, info.Leechers); upErr != nil {
			s.log.Error().Err(upErr).Int64("torrentId", t.ID).Msg("failed to persist refreshed stats")
		}
		return info.Seeders, info.Leechers
	}
	if !errors.Is(err, tracker.ErrTorrentNotRegistered) {
		s.log.Debug().Err(err).Str("infoHash", t.InfoHash).Msg("live stats refresh failed, using stored counts")
	}

	seeders, leechers, err := s.store.AggregatedStats(ctx, t.ID)
	if err != nil {
		s.log.Error().Err(err).Int64("torrentId", t.ID).Msg("failed to load stored stats")
		return 0, 0
	}
	return seeders, leechers
}

func magnetLink(infoHash, title string, trackers []string) string {
	var b strings.Builder
	b.WriteString("magnet:?xt=urn:btih:")
	b.WriteString(infoHash)
	b.WriteString("&dn=")
	b.WriteString(url.QueryEscape(title))
	for _, tr := range trackers {
		b.WriteString("&tr=")
		b.WriteString(url.QueryEscape(tr))
	}
	return b.String()
}

type UpdateRequest struct {
	Title       *string
	Description *string
	Category    *string
	TagIDs      *[]int64
}

// Update applies a partial edit. Only the uploader or an administrator may
// edit a torrent.
func (s *Service) Update(ctx context.Context, infoHash string, userID int64, admin bool, req UpdateRequest) (*Detail, error) {
	t, err := s.store.GetByInfoHash(ctx, infoHash)
	if err != nil {
		return nil, err
	}
	if !admin && t.UploaderID != userID {
		return nil, ErrForbidden
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if len(title) < minTitleLength {
			return nil, ErrTitleTooShort
		}
		if err := s.store.UpdateTitle(ctx, t.ID, title); err != nil {
			return nil, err
		}
	}
	if req.Description != nil {
		if err := s.store.UpdateDescription(ctx, t.ID, *req.Description); err != nil {
			return nil, err
		}
	}
	if req.Category != nil {
		category, err := s.categories.GetByName(ctx, *req.Category)
		if err != nil {
			return nil, err
		}
		if err := s.store.UpdateCategory(ctx, t.ID, category.ID); err != nil {
			return nil, err
		}
	}
	if req.TagIDs != nil {
		if _, err := s.tags.ResolveIDs(ctx, *req.TagIDs); err != nil {
			return nil, err
		}
		if err := s.store.ReplaceTags(ctx, t.ID, *req.TagIDs); err != nil {
			return nil, err
		}
	}

	return s.GetDetail(ctx, infoHash, nil)
}

// Delete removes a torrent and drops its hash from the tracker whitelist.
// The whitelist removal is best-effort.
func (s *Service) Delete(ctx context.Context, infoHash string) (int64, error) {
	t, err := s.store.GetByInfoHash(ctx, infoHash)
	if err != nil {
		return 0, err
	}

	if err := s.store.Delete(ctx, t.ID); err != nil {
		return 0, err
	}

	if s.trackerCfg.IsWhitelisted() {
		if err := s.tracker.RemoveInfoHash(ctx, t.InfoHash); err != nil {
			s.log.Error().Err(err).Str("infoHash", t.InfoHash).Msg("failed to remove deleted torrent from whitelist")
		}
	}

	s.log.Info().Int64("torrentId", t.ID).Str("infoHash", t.InfoHash).Msg("torrent deleted")
	return t.ID, nil
}

type ListParams struct {
	Search     string
	Categories []string
	Tags       []string
	Sort       string
	Page       int64
	PageSize   int64
}

type ListResult struct {
	Total    int64                    `json:"total"`
	Results  []*models.TorrentListing `json:"results"`
	Page     int64                    `json:"page"`
	PageSize int64                    `json:"page_size"`
}

// List resolves the name filters, clamps pagination and runs the search.
// Unknown category and tag names are dropped rather than rejected.
func (s *Service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = s.config.DefaultPageSize
	}
	if pageSize > s.config.MaxPageSize {
		pageSize = s.config.MaxPageSize
	}
	page := params.Page
	if page < 0 {
		page = 0
	}

	sort := params.Sort
	if sort == "" {
		sort = "uploaded_desc"
	}

	var categoryIDs []int64
	for _, name := range params.Categories {
		category, err := s.categories.GetByName(ctx, name)
		if err != nil {
			if errors.Is(err, models.ErrCategoryNotFound) {
				continue
			}
			return nil, err
		}
		categoryIDs = append(categoryIDs, category.ID)
	}

	resolvedTags, err := s.tags.ResolveNames(ctx, params.Tags)
	if err != nil {
		return nil, err
	}
	var tagIDs []int64
	for _, tag := range resolvedTags {
		tagIDs = append(tagIDs, tag.ID)
	}

	total, results, err := s.store.Search(ctx, models.SearchParams{
		Search:      params.Search,
		CategoryIDs: categoryIDs,
		TagIDs:      tagIDs,
		Sort:        sort,
		Offset:      page * pageSize,
		Limit:       pageSize,
	})
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []*models.TorrentListing{}
	}

	return &ListResult{
		Total:    total,
		Results:  results,
		Page:     page,
		PageSize: pageSize,
	}, nil
}
