// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryStoreAdd(t *testing.T) {
	_, _, categories, _, _ := setupStores(t)
	ctx := context.Background()

	category, err := categories.Add(ctx, "  movies  ", "film")
	require.NoError(t, err)
	assert.Equal(t, "movies", category.Name)
	assert.NotZero(t, category.ID)

	_, err = categories.Add(ctx, "movies", "")
	assert.ErrorIs(t, err, ErrCategoryAlreadyExists)

	_, err = categories.Add(ctx, "   ", "")
	assert.ErrorIs(t, err, ErrCategoryNameEmpty)
}

func TestCategoryStoreList(t *testing.T) {
	_, users, categories, _, torrents := setupStores(t)
	ctx := context.Background()

	user := createTestUser(t, users, "uploader")
	movies := createTestCategory(t, categories, "movies")
	createTestCategory(t, categories, "books")
	addTestTorrent(t, torrents, user.ID, movies.ID, "Some Movie", "list-1")
	addTestTorrent(t, torrents, user.ID, movies.ID, "Other Movie", "list-2")

	list, err := categories.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	// Sorted by name; counts reflect references.
	assert.Equal(t, "books", list[0].Name)
	assert.Zero(t, list[0].NumTorrents)
	assert.Equal(t, "movies", list[1].Name)
	assert.EqualValues(t, 2, list[1].NumTorrents)
}

func TestCategoryStoreDelete(t *testing.T) {
	_, users, categories, _, torrents := setupStores(t)
	ctx := context.Background()

	user := createTestUser(t, users, "uploader")
	movies := createTestCategory(t, categories, "movies")
	createTestCategory(t, categories, "books")
	torrentID, _, _ := addTestTorrent(t, torrents, user.ID, movies.ID, "Some Movie", "del")

	assert.ErrorIs(t, categories.Delete(ctx, "movies"), ErrCategoryInUse)
	assert.ErrorIs(t, categories.Delete(ctx, "music"), ErrCategoryNotFound)
	require.NoError(t, categories.Delete(ctx, "books"))

	// Once the reference is gone the delete goes through.
	require.NoError(t, torrents.Delete(ctx, torrentID))
	require.NoError(t, categories.Delete(ctx, "movies"))

	_, err := categories.GetByName(ctx, "movies")
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}
