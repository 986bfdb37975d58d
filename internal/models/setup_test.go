// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"crypto/sha1"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitdex/bitdex/internal/database"
	"github.com/bitdex/bitdex/internal/metainfo"
	"github.com/bitdex/bitdex/internal/testdb"
)

func setupStores(t *testing.T) (*database.DB, *UserStore, *CategoryStore, *TagStore, *TorrentStore) {
	t.Helper()
	db := testdb.Setup(t)
	return db, NewUserStore(db), NewCategoryStore(db), NewTagStore(db), NewTorrentStore(db)
}

func createTestUser(t *testing.T, users *UserStore, username string) *User {
	t.Helper()
	user, err := users.Create(context.Background(), username, username+"@example.com", "hash", false, true)
	require.NoError(t, err)
	return user
}

func createTestCategory(t *testing.T, categories *CategoryStore, name string) *Category {
	t.Helper()
	category, err := categories.Add(context.Background(), name, "")
	require.NoError(t, err)
	return category
}

// testMeta builds a decoded multi-file torrent without going through bencode.
func testMeta(name string) *metainfo.Torrent {
	return &metainfo.Torrent{
		Announce: "udp://tracker.example.com:6969",
		AnnounceList: [][]string{
			{"udp://tracker.example.com:6969"},
			{"http://backup.example.com/announce"},
		},
		Comment:      "test fixture",
		CreatedBy:    "bitdex tests",
		CreationDate: 1700000000,
		HTTPSeeds:    []string{"http://seed.example.com/files/"},
		Nodes:        []metainfo.Node{{Host: "router.example.com", Port: 6881}},
		Info: metainfo.Info{
			Name:        name,
			PieceLength: 32768,
			Pieces:      make([]byte, 40),
			Files: []metainfo.File{
				{Path: []string{"sub", "a.bin"}, Length: 1024},
				{Path: []string{"b.bin"}, Length: 2048},
			},
		},
	}
}

// testHashes derives deterministic distinct original/canonical hex pairs.
func testHashes(seed string) (original, canonical string) {
	o := sha1.Sum([]byte("original:" + seed))
	c := sha1.Sum([]byte("canonical:" + seed))
	return fmt.Sprintf("%x", o), fmt.Sprintf("%x", c)
}

func addTestTorrent(t *testing.T, torrents *TorrentStore, uploaderID, categoryID int64, title, seed string) (int64, string, string) {
	t.Helper()
	original, canonical := testHashes(seed)
	id, err := torrents.Add(context.Background(), AddTorrentParams{
		UploaderID:        uploaderID,
		CategoryID:        categoryID,
		Title:             title,
		Description:       "a test torrent",
		OriginalInfoHash:  original,
		CanonicalInfoHash: canonical,
		Meta:              testMeta(title),
	})
	require.NoError(t, err)
	return id, original, canonical
}
