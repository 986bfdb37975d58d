// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserStoreCreateAndGet(t *testing.T) {
	_, users, _, _, _ := setupStores(t)
	ctx := context.Background()

	user, err := users.Create(ctx, "alice", "alice@example.com", "argon-hash", false, false)
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.False(t, user.Administrator)

	got, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.False(t, got.EmailVerified)

	byName, err := users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	_, err = users.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserStoreCreateValidation(t *testing.T) {
	_, users, _, _, _ := setupStores(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
	}{
		{"empty", ""},
		{"too long", "abcdefghijklmnopqrstu"},
		{"bad characters", "alice!"},
		{"whitespace", "alice smith"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := users.Create(ctx, tt.username, "", "hash", false, false)
			assert.ErrorIs(t, err, ErrUsernameInvalid)
		})
	}
}

func TestUserStoreDuplicates(t *testing.T) {
	_, users, _, _, _ := setupStores(t)
	ctx := context.Background()

	_, err := users.Create(ctx, "alice", "alice@example.com", "hash", false, false)
	require.NoError(t, err)

	_, err = users.Create(ctx, "alice", "other@example.com", "hash", false, false)
	assert.ErrorIs(t, err, ErrUsernameTaken)

	// Usernames collide case-insensitively.
	_, err = users.Create(ctx, "ALICE", "third@example.com", "hash", false, false)
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = users.Create(ctx, "bob", "alice@example.com", "hash", false, false)
	assert.ErrorIs(t, err, ErrEmailTaken)

	// Empty emails never collide.
	_, err = users.Create(ctx, "carol", "", "hash", false, false)
	require.NoError(t, err)
	_, err = users.Create(ctx, "dave", "", "hash", false, false)
	require.NoError(t, err)
}

func TestUserStoreGetByLogin(t *testing.T) {
	_, users, _, _, _ := setupStores(t)
	ctx := context.Background()

	user := createTestUser(t, users, "alice")

	byEmail, err := users.GetByLogin(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byName, err := users.GetByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	_, err = users.GetByLogin(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserStorePasswordHash(t *testing.T) {
	_, users, _, _, _ := setupStores(t)
	ctx := context.Background()

	user, err := users.Create(ctx, "alice", "", "initial-hash", false, false)
	require.NoError(t, err)

	hash, err := users.PasswordHash(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "initial-hash", hash)

	require.NoError(t, users.UpdatePasswordHash(ctx, user.ID, "rotated-hash"))

	hash, err = users.PasswordHash(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "rotated-hash", hash)

	assert.ErrorIs(t, users.UpdatePasswordHash(ctx, 9999, "x"), ErrUserNotFound)
}

func TestUserStoreBans(t *testing.T) {
	_, users, _, _, _ := setupStores(t)
	ctx := context.Background()

	user := createTestUser(t, users, "alice")

	banned, err := users.IsBanned(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, banned)

	// An expired ban does not count.
	require.NoError(t, users.BanUser(ctx, user.ID, "old", time.Now().UTC().Add(-time.Hour)))
	banned, err = users.IsBanned(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, banned)

	require.NoError(t, users.BanUser(ctx, user.ID, "spam", time.Now().UTC().Add(time.Hour)))
	banned, err = users.IsBanned(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, banned)

	assert.ErrorIs(t, users.BanUser(ctx, 9999, "ghost", time.Now().UTC().Add(time.Hour)), ErrUserNotFound)
}

func TestUserStoreDeleteCascades(t *testing.T) {
	db, users, categories, _, torrents := setupStores(t)
	ctx := context.Background()

	user := createTestUser(t, users, "alice")
	category := createTestCategory(t, categories, "software")
	torrentID, _, _ := addTestTorrent(t, torrents, user.ID, category.ID, "Alice Upload", "cascade")

	require.NoError(t, users.Delete(ctx, user.ID))

	_, err := users.GetByID(ctx, user.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)

	var remaining int64
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM torrents WHERE id = ?`, torrentID).Scan(&remaining))
	assert.Zero(t, remaining)

	assert.ErrorIs(t, users.Delete(ctx, user.ID), ErrUserNotFound)
}

func TestUserStoreMarkEmailVerified(t *testing.T) {
	_, users, _, _, _ := setupStores(t)
	ctx := context.Background()

	user, err := users.Create(ctx, "alice", "alice@example.com", "hash", false, false)
	require.NoError(t, err)

	require.NoError(t, users.MarkEmailVerified(ctx, user.ID))

	got, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.EmailVerified)
}

func TestUserStoreCount(t *testing.T) {
	_, users, _, _, _ := setupStores(t)
	ctx := context.Background()

	count, err := users.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	createTestUser(t, users, "alice")
	createTestUser(t, users, "bob")

	count, err = users.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}
