// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package imageproxy fronts remote image fetches with a byte-bounded
// in-memory cache and a per-user rolling download quota. Cache and quota
// state are process-local and reset on restart.
package imageproxy

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bitdex/bitdex/pkg/httphelpers"
)

var (
	ErrUnauthenticated  = errors.New("imageproxy: authentication required")
	ErrUserQuotaMet     = errors.New("imageproxy: user quota met")
	ErrURLIsUnreachable = errors.New("imageproxy: url is unreachable")
	ErrURLIsNotAnImage  = errors.New("imageproxy: url is not an image")
	ErrImageTooBig      = errors.New("imageproxy: image exceeds size limit")
)

type Config struct {
	// Capacity bounds the total cached bytes.
	Capacity int64
	// EntrySizeLimit rejects single images larger than this.
	EntrySizeLimit int64
	// RequestTimeout bounds the remote fetch.
	RequestTimeout time.Duration
	// UserQuotaPeriod is the rolling window length.
	UserQuotaPeriod time.Duration
	// UserQuotaBytes is the per-window byte budget per user.
	UserQuotaBytes int64
}

type cacheEntry struct {
	url   string
	bytes []byte
}

type userQuota struct {
	usage       int64
	windowStart time.Time
}

type Service struct {
	log    zerolog.Logger
	config Config
	http   *http.Client
	now    func() time.Time

	cacheMu sync.RWMutex
	cache   map[string][]byte
	// order holds cache keys oldest first for FIFO eviction.
	order []cacheEntry
	used  int64

	quotaMu sync.Mutex
	quotas  map[int64]*userQuota
}

func NewService(log zerolog.Logger, config Config) *Service {
	return &Service{
		log:    log.With().Str("module", "imageproxy").Logger(),
		config: config,
		http:   &http.Client{Timeout: config.RequestTimeout},
		now:    time.Now,
		cache:  make(map[string][]byte),
		quotas: make(map[int64]*userQuota),
	}
}

// GetImage returns the image behind url, from cache when possible. Cache
// hits are free; misses require an authenticated user with quota headroom.
func (s *Service) GetImage(ctx context.Context, url string, userID *int64) ([]byte, error) {
	if bytes, ok := s.cached(url); ok {
		return bytes, nil
	}

	if userID == nil {
		return nil, ErrUnauthenticated
	}
	if !s.quotaAllows(*userID) {
		return nil, ErrUserQuotaMet
	}

	bytes, err := s.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	s.insert(url, bytes)
	s.chargeQuota(*userID, int64(len(bytes)))
	return bytes, nil
}

func (s *Service) cached(url string) ([]byte, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	bytes, ok := s.cache[url]
	return bytes, ok
}

func (s *Service) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, ErrURLIsUnreachable
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, ErrURLIsUnreachable
	}
	defer httphelpers.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, ErrURLIsUnreachable
	}

	contentType := resp.Header.Get("Content-Type")
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	switch strings.TrimSpace(contentType) {
	case "image/jpeg", "image/png":
	default:
		return nil, ErrURLIsNotAnImage
	}

	// Read one byte past the limit to distinguish at-limit from over.
	body, err := io.ReadAll(io.LimitReader(resp.Body, s.config.EntrySizeLimit+1))
	if err != nil {
		return nil, ErrURLIsUnreachable
	}
	if int64(len(body)) > s.config.EntrySizeLimit {
		return nil, ErrImageTooBig
	}

	return body, nil
}

// insert stores the entry, evicting oldest-first until it fits. Entries are
// pre-checked against EntrySizeLimit, so a single entry always fits.
func (s *Service) insert(url string, bytes []byte) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if _, ok := s.cache[url]; ok {
		return
	}

	size := int64(len(bytes))
	for s.used+size > s.config.Capacity && len(s.order) > 0 {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.cache, oldest.url)
		s.used -= int64(len(oldest.bytes))
	}

	s.cache[url] = bytes
	s.order = append(s.order, cacheEntry{url: url, bytes: bytes})
	s.used += size
}

// quotaAllows resets an expired window, then reports remaining headroom.
func (s *Service) quotaAllows(userID int64) bool {
	s.quotaMu.Lock()
	defer s.quotaMu.Unlock()

	q := s.quota(userID)
	return q.usage < s.config.UserQuotaBytes
}

func (s *Service) chargeQuota(userID, bytes int64) {
	s.quotaMu.Lock()
	defer s.quotaMu.Unlock()

	q := s.quota(userID)
	if q.usage > math.MaxInt64-bytes {
		q.usage = math.MaxInt64
		return
	}
	q.usage += bytes
}

// quota returns the user's window, creating or resetting it as needed.
// Callers hold quotaMu.
func (s *Service) quota(userID int64) *userQuota {
	now := s.now()
	q, ok := s.quotas[userID]
	if !ok {
		q = &userQuota{windowStart: now}
		s.quotas[userID] = q
		return q
	}
	if now.Sub(q.windowStart) > s.config.UserQuotaPeriod {
		q.usage = 0
		q.windowStart = now
	}
	return q
}
