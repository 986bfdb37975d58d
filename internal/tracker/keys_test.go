// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitdex/bitdex/internal/models"
	"github.com/bitdex/bitdex/internal/testdb"
)

func setupKeyManager(t *testing.T, mode string, issued *atomic.Int32) (*KeyManager, int64) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := issued.Add(1)
		json.NewEncoder(w).Encode(Key{
			Key:        fmt.Sprintf("key-%d", n),
			ValidUntil: time.Now().Unix() + 7200,
		})
	}))
	t.Cleanup(server.Close)

	config := Config{
		Mode:              mode,
		URL:               "udp://tracker.example.com:6969/",
		APIURL:            server.URL,
		Token:             "admin-token",
		TokenValidSeconds: 7200,
	}

	db := testdb.Setup(t)
	users := models.NewUserStore(db)
	user, err := users.Create(context.Background(), "alice", "", "hash", false, true)
	require.NoError(t, err)

	manager := NewKeyManager(zerolog.Nop(), NewClient(zerolog.Nop(), config), models.NewTrackerKeyStore(db), config)
	return manager, user.ID
}

func TestAnnounceURLPublicTracker(t *testing.T) {
	var issued atomic.Int32
	manager, userID := setupKeyManager(t, ModePublic, &issued)

	announce, err := manager.AnnounceURL(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "udp://tracker.example.com:6969", announce)
	assert.Zero(t, issued.Load(), "public trackers never need keys")
}

func TestAnnounceURLPrivateTrackerCachesKey(t *testing.T) {
	var issued atomic.Int32
	manager, userID := setupKeyManager(t, ModePrivate, &issued)
	ctx := context.Background()

	first, err := manager.AnnounceURL(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "udp://tracker.example.com:6969/key-1", first)
	assert.EqualValues(t, 1, issued.Load())

	// Second call reuses the stored key.
	second, err := manager.AnnounceURL(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, issued.Load())
}

func TestAnnounceURLReplacesExpiringKey(t *testing.T) {
	var issued atomic.Int32
	manager, userID := setupKeyManager(t, ModePrivate, &issued)
	ctx := context.Background()

	_, err := manager.AnnounceURL(ctx, userID)
	require.NoError(t, err)

	// Jump to 30 minutes before expiry; the key no longer satisfies the
	// one-hour reuse margin.
	manager.now = func() time.Time { return time.Now().Add(7200*time.Second - 30*time.Minute) }

	announce, err := manager.AnnounceURL(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "udp://tracker.example.com:6969/key-2", announce)
	assert.EqualValues(t, 2, issued.Load())
}

func TestAnnounceURLTrackerDown(t *testing.T) {
	config := Config{
		Mode:              ModePrivate,
		URL:               "udp://tracker.example.com:6969",
		APIURL:            "http://127.0.0.1:1",
		Token:             "admin-token",
		TokenValidSeconds: 7200,
	}

	db := testdb.Setup(t)
	users := models.NewUserStore(db)
	user, err := users.Create(context.Background(), "alice", "", "hash", false, true)
	require.NoError(t, err)

	manager := NewKeyManager(zerolog.Nop(), NewClient(zerolog.Nop(), config), models.NewTrackerKeyStore(db), config)

	_, err = manager.AnnounceURL(context.Background(), user.ID)
	assert.ErrorIs(t, err, ErrTrackerOffline)
}
