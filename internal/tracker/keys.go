// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bitdex/bitdex/internal/models"
)

// reuseMargin is how long a cached key must remain valid to be reused. Keys
// closer to expiry than this get replaced, so a handed-out announce URL stays
// usable for at least an hour.
const reuseMargin = time.Hour

// KeyManager hands out per-user announce URLs, caching issued keys in the
// database so the tracker is only asked when no usable key exists.
type KeyManager struct {
	log    zerolog.Logger
	client *Client
	keys   *models.TrackerKeyStore
	config Config
	now    func() time.Time
}

func NewKeyManager(log zerolog.Logger, client *Client, keys *models.TrackerKeyStore, config Config) *KeyManager {
	return &KeyManager{
		log:    log.With().Str("module", "tracker").Logger(),
		client: client,
		keys:   keys,
		config: config,
		now:    time.Now,
	}
}

// AnnounceURL returns the announce URL for the given user. On a public
// tracker everyone shares the plain URL; on a private one the user's personal
// key is appended as a path segment.
func (m *KeyManager) AnnounceURL(ctx context.Context, userID int64) (string, error) {
	base := strings.TrimRight(m.config.URL, "/")
	if !m.config.IsPrivate() {
		return base, nil
	}

	key, err := m.personalKey(ctx, userID)
	if err != nil {
		return "", err
	}
	return base + "/" + key.Key, nil
}

func (m *KeyManager) personalKey(ctx context.Context, userID int64) (*models.TrackerKey, error) {
	cutoff := m.now().Add(reuseMargin).Unix()

	cached, err := m.keys.LatestValid(ctx, userID, cutoff)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, models.ErrTrackerKeyNotFound) {
		return nil, err
	}

	issued, err := m.client.IssueKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("issue tracker key: %w", err)
	}

	validUntil := issued.ValidUntil
	if validUntil == 0 {
		validUntil = m.now().Unix() + m.config.TokenValidSeconds
	}

	key, err := m.keys.Add(ctx, userID, issued.Key, validUntil)
	if err != nil {
		return nil, fmt.Errorf("persist tracker key: %w", err)
	}

	m.log.Debug().Int64("userId", userID).Int64("validUntil", validUntil).Msg("issued new tracker key")
	return key, nil
}
