// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metainfo

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/bencode"
)

func encodeFixture(t *testing.T, info map[string]any) []byte {
	t.Helper()

	data, err := bencode.EncodeBytes(map[string]any{
		"announce": "udp://tracker.example.com:6969",
		"info":     info,
	})
	require.NoError(t, err)
	return data
}

func singleFileInfo() map[string]any {
	return map[string]any{
		"name":         "debian.iso",
		"piece length": int64(262144),
		"pieces":       bytes.Repeat([]byte{0xab}, 40),
		"length":       int64(524288),
	}
}

func TestDecode_SingleFile(t *testing.T) {
	t.Parallel()

	torrent, err := Decode(encodeFixture(t, singleFileInfo()))
	require.NoError(t, err)

	assert.Equal(t, "debian.iso", torrent.Info.Name)
	assert.Equal(t, int64(262144), torrent.Info.PieceLength)
	assert.Equal(t, int64(524288), torrent.Info.TotalSize())
	assert.False(t, torrent.Info.IsBEP30())
	assert.False(t, torrent.Info.IsPrivate())
}

func TestDecode_MultiFile(t *testing.T) {
	t.Parallel()

	info := map[string]any{
		"name":         "album",
		"piece length": int64(16384),
		"pieces":       bytes.Repeat([]byte{0x01}, 20),
		"files": []any{
			map[string]any{"path": []any{"cd1", "track1.flac"}, "length": int64(100)},
			map[string]any{"path": []any{"cd1", "track2.flac"}, "length": int64(200)},
		},
	}

	torrent, err := Decode(encodeFixture(t, info))
	require.NoError(t, err)

	require.Len(t, torrent.Info.Files, 2)
	assert.Equal(t, []string{"cd1", "track1.flac"}, torrent.Info.Files[0].Path)
	assert.Equal(t, int64(300), torrent.Info.TotalSize())
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{
			name:    "garbage",
			data:    []byte("this is not bencode"),
			wantErr: ErrInvalidBencode,
		},
		{
			name: "missing info",
			data: func() []byte {
				b, _ := bencode.EncodeBytes(map[string]any{"announce": "udp://t"})
				return b
			}(),
			wantErr: ErrMissingInfo,
		},
		{
			name: "pieces not multiple of 20",
			data: func() []byte {
				info := singleFileInfo()
				info["pieces"] = bytes.Repeat([]byte{0x01}, 21)
				b, _ := bencode.EncodeBytes(map[string]any{"info": info})
				return b
			}(),
			wantErr: ErrInvalidPiecesLength,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Decode(tt.data)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecode_BEP30RootHash(t *testing.T) {
	t.Parallel()

	info := map[string]any{
		"name":         "merkle.bin",
		"piece length": int64(65536),
		"root hash":    string(bytes.Repeat([]byte{0x7f}, 20)),
		"length":       int64(1024),
	}

	torrent, err := Decode(encodeFixture(t, info))
	require.NoError(t, err)

	assert.True(t, torrent.Info.IsBEP30())
	assert.Empty(t, torrent.Info.Pieces)
}

func TestEncode_RoundTrip(t *testing.T) {
	t.Parallel()

	original, err := Decode(encodeFixture(t, singleFileInfo()))
	require.NoError(t, err)

	encoded, err := original.Encode()
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)

	reencoded, err := decoded.Encode()
	require.NoError(t, err)
	assert.Equal(t, encoded, reencoded, "encoding must be deterministic")

	assert.Equal(t, original.Info, decoded.Info)
	assert.Equal(t, original.Announce, decoded.Announce)
}

func TestCanonicalInfoHash_IgnoresNonStandardKeys(t *testing.T) {
	t.Parallel()

	clean, err := Decode(encodeFixture(t, singleFileInfo()))
	require.NoError(t, err)

	polluted := singleFileInfo()
	polluted["custom"] = "injected by a bad client"
	polluted["uniqueId"] = int64(42)
	dirty, err := Decode(encodeFixture(t, polluted))
	require.NoError(t, err)

	cleanCanonical, err := clean.CanonicalInfoHash()
	require.NoError(t, err)
	dirtyCanonical, err := dirty.CanonicalInfoHash()
	require.NoError(t, err)
	assert.Equal(t, cleanCanonical, dirtyCanonical)

	cleanOriginal, err := clean.InfoHash()
	require.NoError(t, err)
	dirtyOriginal, err := dirty.InfoHash()
	require.NoError(t, err)
	assert.NotEqual(t, cleanOriginal, dirtyOriginal, "injected keys must change the original hash")
}

func TestInfoHash_CleanTorrentMatchesCanonical(t *testing.T) {
	t.Parallel()

	torrent, err := Decode(encodeFixture(t, singleFileInfo()))
	require.NoError(t, err)

	original, err := torrent.InfoHash()
	require.NoError(t, err)
	canonical, err := torrent.CanonicalInfoHash()
	require.NoError(t, err)

	assert.Equal(t, original, canonical)
	assert.Len(t, original.Hex(), 40)
}

func TestParseInfoHash(t *testing.T) {
	t.Parallel()

	h, err := ParseInfoHash("5452869be36f9f3350ccee6b4544e7e76caaadab")
	require.NoError(t, err)
	assert.Equal(t, "5452869be36f9f3350ccee6b4544e7e76caaadab", h.Hex())

	_, err = ParseInfoHash("tooshort")
	assert.Error(t, err)

	_, err = ParseInfoHash("zz52869be36f9f3350ccee6b4544e7e76caaadab")
	assert.Error(t, err)
}

func TestNode_RoundTrip(t *testing.T) {
	t.Parallel()

	info := singleFileInfo()
	data, err := bencode.EncodeBytes(map[string]any{
		"info":  info,
		"nodes": []any{[]any{"router.example.com", int64(6881)}},
	})
	require.NoError(t, err)

	torrent, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, torrent.Nodes, 1)
	assert.Equal(t, Node{Host: "router.example.com", Port: 6881}, torrent.Nodes[0])

	encoded, err := torrent.Encode()
	require.NoError(t, err)
	again, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, torrent.Nodes, again.Nodes)
}
