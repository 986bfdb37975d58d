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

func TestTorrentStoreAddAndGet(t *testing.T) {
	_, users, categories, tags, torrents := setupStores(t)
	ctx := context.Background()

	user := createTestUser(t, users, "uploader")
	category := createTestCategory(t, categories, "software")
	linux, err := tags.Add(ctx, "linux")
	require.NoError(t, err)

	original, canonical := testHashes("add")
	meta := testMeta("debian-13.0.0-amd64")

	id, err := torrents.Add(ctx, AddTorrentParams{
		UploaderID:        user.ID,
		CategoryID:        category.ID,
		Title:             "Debian 13 amd64 netinst",
		Description:       "official image",
		TagIDs:            []int64{linux.ID},
		OriginalInfoHash:  original,
		CanonicalInfoHash: canonical,
		Meta:              meta,
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	// Both the uploaded and the canonical hash resolve to the same record.
	for _, hash := range []string{original, canonical} {
		got, err := torrents.GetByInfoHash(ctx, hash)
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, canonical, got.InfoHash)
		assert.Equal(t, "Debian 13 amd64 netinst", got.Title)
		assert.Equal(t, "official image", got.Description)
		assert.EqualValues(t, 3072, got.Size)
		assert.False(t, got.IsBEP30)

		require.Len(t, got.Files, 2)
		assert.Equal(t, []string{"sub", "a.bin"}, got.Files[0].Path)
		assert.EqualValues(t, 1024, got.Files[0].Length)

		assert.Equal(t, []string{
			"udp://tracker.example.com:6969",
			"http://backup.example.com/announce",
		}, got.AnnounceURLs)
		assert.Equal(t, []string{"http://seed.example.com/files/"}, got.HTTPSeeds)
		require.Len(t, got.Nodes, 1)
		assert.Equal(t, "router.example.com", got.Nodes[0].Host)
		require.Len(t, got.Tags, 1)
		assert.Equal(t, "linux", got.Tags[0].Name)
	}

	_, err = torrents.GetByInfoHash(ctx, "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
	assert.ErrorIs(t, err, ErrTorrentNotFound)
}

func TestTorrentStoreSingleFile(t *testing.T) {
	_, users, categories, _, torrents := setupStores(t)
	ctx := context.Background()

	user := createTestUser(t, users, "uploader")
	category := createTestCategory(t, categories, "software")

	original, canonical := testHashes("single")
	meta := testMeta("image.iso")
	meta.Info.Files = nil
	meta.Info.Length = 4096

	id, err := torrents.Add(ctx, AddTorrentParams{
		UploaderID:        user.ID,
		CategoryID:        category.ID,
		Title:             "Single file",
		OriginalInfoHash:  original,
		CanonicalInfoHash: canonical,
		Meta:              meta,
	})
	require.NoError(t, err)

	got, err := torrents.GetByInfoHash(ctx, canonical)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.EqualValues(t, 4096, got.Size)
	require.Len(t, got.Files, 1)
	assert.Empty(t, got.Files[0].Path)
	assert.EqualValues(t, 4096, got.Files[0].Length)
}

func TestTorrentStoreDuplicateHash(t *testing.T) {
	db, users, categories, _, torrents := setupStores(t)
	ctx := context.Background()

	user := createTestUser(t, users, "uploader")
	category := createTestCategory(t, categories, "software")

	_, _, canonical := addTestTorrent(t, torrents, user.ID, category.ID, "First Upload", "dup")

	// A different original with the same canonical hash is a duplicate, but
	// its mapping is recorded so future lookups by that hash resolve.
	otherOriginal, _ := testHashes("dup-reupload")
	_, err := torrents.Add(ctx, AddTorrentParams{
		UploaderID:        user.ID,
		CategoryID:        category.ID,
		Title:             "Second Upload",
		OriginalInfoHash:  otherOriginal,
		CanonicalInfoHash: canonical,
		Meta:              testMeta("dup"),
	})
	assert.ErrorIs(t, err, ErrInfoHashAlreadyExists)

	got, err := torrents.GetByInfoHash(ctx, otherOriginal)
	require.NoError(t, err)
	assert.Equal(t, canonical, got.InfoHash)

	var known bool
	require.NoError(t, db.QueryRowContext(ctx, `
		SELECT original_is_known FROM torrent_info_hashes WHERE info_hash = ?
	`, otherOriginal).Scan(&known))
	assert.True(t, known)

	// No half-inserted rows survived the failed upload.
	var infoRows int64
	require.NoError(t, db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM torrent_info WHERE title = 'Second Upload'
	`).Scan(&infoRows))
	assert.Zero(t, infoRows)
}

func TestTorrentStoreDuplicateTitle(t *testing.T) {
	_, users, categories, _, torrents := setupStores(t)
	ctx := context.Background()

	user := createTestUser(t, users, "uploader")
	category := createTestCategory(t, categories, "software")
	addTestTorrent(t, torrents, user.ID, category.ID, "Unique Title", "title-1")

	original, canonical := testHashes("title-2")
	_, err := torrents.Add(ctx, AddTorrentParams{
		UploaderID:        user.ID,
		CategoryID:        category.ID,
		Title:             "Unique Title",
		OriginalInfoHash:  original,
		CanonicalInfoHash: canonical,
		Meta:              testMeta("title-2"),
	})
	assert.ErrorIs(t, err, ErrTorrentTitleAlreadyExists)
}

func TestTorrentStoreUpdates(t *testing.T) {
	_, users, categories, tags, torrents := setupStores(t)
	ctx := context.Background()

	user := createTestUser(t, users, "uploader")
	software := createTestCategory(t, categories, "software")
	games := createTestCategory(t, categories, "games")
	id, _, canonical := addTestTorrent(t, torrents, user.ID, software.ID, "Old Title", "upd")
	addTestTorrent(t, torrents, user.ID, software.ID, "Taken Title", "upd-other")

	require.NoError(t, torrents.UpdateTitle(ctx, id, "New Title"))
	assert.ErrorIs(t, torrents.UpdateTitle(ctx, id, "Taken Title"), ErrTorrentTitleAlreadyExists)
	assert.ErrorIs(t, torrents.UpdateTitle(ctx, 9999, "X"), ErrTorrentNotFound)

	require.NoError(t, torrents.UpdateDescription(ctx, id, "new words"))
	require.NoError(t, torrents.UpdateCategory(ctx, id, games.ID))
	assert.ErrorIs(t, torrents.UpdateCategory(ctx, id, 9999), ErrInvalidCategoryReference)

	iso, err := tags.Add(ctx, "iso")
	require.NoError(t, err)
	require.NoError(t, torrents.ReplaceTags(ctx, id, []int64{iso.ID}))

	got, err := torrents.GetByInfoHash(ctx, canonical)
	require.NoError(t, err)
	assert.Equal(t, "New Title", got.Title)
	assert.Equal(t, "new words", got.Description)
	assert.Equal(t, games.ID, got.CategoryID)
	require.Len(t, got.Tags, 1)
	assert.Equal(t, "iso", got.Tags[0].Name)
}

func TestTorrentStoreSearch(t *testing.T) {
	_, users, categories, tags, torrents := setupStores(t)
	ctx := context.Background()

	user := createTestUser(t, users, "uploader")
	software := createTestCategory(t, categories, "software")
	movies := createTestCategory(t, categories, "movies")
	linux, err := tags.Add(ctx, "linux")
	require.NoError(t, err)

	debianID, _, _ := addTestTorrent(t, torrents, user.ID, software.ID, "Debian netinst", "s-1")
	ubuntuID, _, _ := addTestTorrent(t, torrents, user.ID, software.ID, "Ubuntu desktop", "s-2")
	addTestTorrent(t, torrents, user.ID, movies.ID, "Big Buck Bunny", "s-3")

	require.NoError(t, torrents.ReplaceTags(ctx, debianID, []int64{linux.ID}))
	require.NoError(t, torrents.UpsertTrackerStats(ctx, debianID, "udp://t.example.com", 10, 2))
	require.NoError(t, torrents.UpsertTrackerStats(ctx, debianID, "http://b.example.com", 5, 1))
	require.NoError(t, torrents.UpsertTrackerStats(ctx, ubuntuID, "udp://t.example.com", 50, 7))

	base := SearchParams{Sort: "uploaded_desc", Limit: 10}

	total, all, err := torrents.Search(ctx, base)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, all, 3)

	// Title substring match, case folding via LIKE.
	p := base
	p.Search = "debian"
	total, results, err := torrents.Search(ctx, p)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, results, 1)
	assert.Equal(t, "Debian netinst", results[0].Title)
	// Seeders aggregate across tracker URLs.
	assert.EqualValues(t, 15, results[0].Seeders)
	assert.EqualValues(t, 3, results[0].Leechers)
	assert.Equal(t, "uploader", results[0].Uploader)
	assert.EqualValues(t, 2, results[0].FileCount)

	// Category filter.
	p = base
	p.CategoryIDs = []int64{movies.ID}
	total, results, err = torrents.Search(ctx, p)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, results, 1)
	assert.Equal(t, "movies", results[0].CategoryName)

	// Tag filter.
	p = base
	p.TagIDs = []int64{linux.ID}
	total, results, err = torrents.Search(ctx, p)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, results, 1)
	assert.Equal(t, debianID, results[0].ID)

	// Seeders sort.
	p = base
	p.Sort = "seeders_desc"
	_, results, err = torrents.Search(ctx, p)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, ubuntuID, results[0].ID)
	assert.Equal(t, debianID, results[1].ID)

	// Pagination keeps the total.
	p = base
	p.Sort = "name_asc"
	p.Limit = 2
	total, results, err = torrents.Search(ctx, p)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, results, 2)
	assert.Equal(t, "Big Buck Bunny", results[0].Title)

	p.Offset = 2
	_, results, err = torrents.Search(ctx, p)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Ubuntu desktop", results[0].Title)

	p.Sort = "bogus"
	_, _, err = torrents.Search(ctx, p)
	assert.ErrorIs(t, err, ErrInvalidSort)
}

func TestTorrentStoreStats(t *testing.T) {
	_, users, categories, _, torrents := setupStores(t)
	ctx := context.Background()

	user := createTestUser(t, users, "uploader")
	category := createTestCategory(t, categories, "software")
	id, _, canonical := addTestTorrent(t, torrents, user.ID, category.ID, "Stats Torrent", "stats")

	// Never-scraped torrents are stale regardless of cutoff.
	stale, err := torrents.StatsStaleBefore(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, id, stale[0].ID)
	assert.Equal(t, canonical, stale[0].InfoHash)

	require.NoError(t, torrents.UpsertTrackerStats(ctx, id, "udp://t.example.com", 3, 1))

	// Fresh stats drop it from the stale batch.
	stale, err = torrents.StatsStaleBefore(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, stale)

	// A future cutoff picks it up again.
	stale, err = torrents.StatsStaleBefore(ctx, time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, stale, 1)

	// Upsert overwrites the same (torrent, tracker) pair.
	require.NoError(t, torrents.UpsertTrackerStats(ctx, id, "udp://t.example.com", 8, 4))
	seeders, leechers, err := torrents.AggregatedStats(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 8, seeders)
	assert.EqualValues(t, 4, leechers)

	assert.ErrorIs(t, torrents.UpsertTrackerStats(ctx, 9999, "udp://t.example.com", 1, 1), ErrTorrentNotFound)
}

func TestTorrentStoreDelete(t *testing.T) {
	db, users, categories, _, torrents := setupStores(t)
	ctx := context.Background()

	user := createTestUser(t, users, "uploader")
	category := createTestCategory(t, categories, "software")
	id, _, canonical := addTestTorrent(t, torrents, user.ID, category.ID, "Doomed", "del")

	require.NoError(t, torrents.Delete(ctx, id))
	assert.ErrorIs(t, torrents.Delete(ctx, id), ErrTorrentNotFound)

	_, err := torrents.GetByInfoHash(ctx, canonical)
	assert.ErrorIs(t, err, ErrTorrentNotFound)

	var fileRows int64
	require.NoError(t, db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM torrent_files WHERE torrent_id = ?
	`, id).Scan(&fileRows))
	assert.Zero(t, fileRows)
}

func TestTorrentStoreGetListingByInfoHash(t *testing.T) {
	_, users, categories, _, torrents := setupStores(t)
	ctx := context.Background()

	user := createTestUser(t, users, "uploader")
	category := createTestCategory(t, categories, "software")
	id, original, _ := addTestTorrent(t, torrents, user.ID, category.ID, "Listed", "listing")
	require.NoError(t, torrents.UpsertTrackerStats(ctx, id, "udp://t.example.com", 2, 9))

	listing, err := torrents.GetListingByInfoHash(ctx, original)
	require.NoError(t, err)
	assert.Equal(t, id, listing.ID)
	assert.Equal(t, "Listed", listing.Title)
	assert.EqualValues(t, 2, listing.Seeders)
	assert.EqualValues(t, 9, listing.Leechers)

	_, err = torrents.GetListingByInfoHash(ctx, "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
	assert.ErrorIs(t, err, ErrTorrentNotFound)
}
