// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package metainfo decodes and encodes bencoded .torrent files and computes
// the two info-hashes the index cares about: the hash of the info dictionary
// exactly as uploaded, and the canonical hash after stripping non-standard
// keys that clients inject to fabricate duplicate swarms.
package metainfo

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"

	"github.com/zeebo/bencode"
)

var (
	ErrInvalidBencode      = errors.New("metainfo: invalid bencode")
	ErrMissingInfo         = errors.New("metainfo: missing info dictionary")
	ErrInvalidPiecesLength = errors.New("metainfo: pieces length is not a multiple of 20")
)

// InfoHash is a SHA-1 digest of a bencoded info dictionary.
type InfoHash [20]byte

// Hex returns the lowercase hex encoding used for storage and URLs.
func (h InfoHash) Hex() string {
	return hex.EncodeToString(h[:])
}

// ParseInfoHash parses a 40-char hex string into an InfoHash.
func ParseInfoHash(s string) (InfoHash, error) {
	var h InfoHash
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 20 {
		return h, errors.New("metainfo: invalid info-hash hex")
	}
	copy(h[:], b)
	return h, nil
}

// File is a single entry of a multi-file torrent.
type File struct {
	Path   []string `bencode:"path"`
	Length int64    `bencode:"length"`
	MD5Sum string   `bencode:"md5sum,omitempty"`
}

// Node is a DHT bootstrap node, bencoded as a [host, port] pair.
type Node struct {
	Host string
	Port int64
}

func (n Node) MarshalBencode() ([]byte, error) {
	return bencode.EncodeBytes([]any{n.Host, n.Port})
}

func (n *Node) UnmarshalBencode(b []byte) error {
	var pair []any
	if err := bencode.DecodeBytes(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return errors.New("metainfo: node is not a [host, port] pair")
	}
	host, ok := pair[0].(string)
	if !ok {
		return errors.New("metainfo: node host is not a string")
	}
	port, ok := pair[1].(int64)
	if !ok {
		return errors.New("metainfo: node port is not an integer")
	}
	n.Host = host
	n.Port = port
	return nil
}

// Info holds the standard keys of the info dictionary. Decoding into this
// struct drops any non-standard keys, so re-encoding it yields the canonical
// bencoding.
type Info struct {
	Name        string `bencode:"name"`
	PieceLength int64  `bencode:"piece length"`
	Pieces      []byte `bencode:"pieces,omitempty"`
	RootHash    string `bencode:"root hash,omitempty"`
	Length      int64  `bencode:"length,omitempty"`
	Files       []File `bencode:"files,omitempty"`
	MD5Sum      string `bencode:"md5sum,omitempty"`
	Private     *int64 `bencode:"private,omitempty"`
	Source      string `bencode:"source,omitempty"`
}

// IsBEP30 reports whether the torrent uses a Merkle root hash in place of a
// pieces string.
func (i *Info) IsBEP30() bool {
	return i.RootHash != ""
}

// IsPrivate reports the BEP-27 private flag.
func (i *Info) IsPrivate() bool {
	return i.Private != nil && *i.Private == 1
}

// TotalSize sums the file lengths, or returns the single-file length.
func (i *Info) TotalSize() int64 {
	if len(i.Files) == 0 {
		return i.Length
	}
	var total int64
	for _, f := range i.Files {
		total += f.Length
	}
	return total
}

// Torrent is a decoded metainfo file.
type Torrent struct {
	Announce     string     `bencode:"announce,omitempty"`
	AnnounceList [][]string `bencode:"announce-list,omitempty"`
	Comment      string     `bencode:"comment,omitempty"`
	CreatedBy    string     `bencode:"created by,omitempty"`
	CreationDate int64      `bencode:"creation date,omitempty"`
	Encoding     string     `bencode:"encoding,omitempty"`
	HTTPSeeds    []string   `bencode:"httpseeds,omitempty"`
	Nodes        []Node     `bencode:"nodes,omitempty"`
	Info         Info       `bencode:"info"`

	// rawInfo is the info dictionary exactly as uploaded, retained for the
	// original info-hash. Nil when the torrent was reconstructed from storage.
	rawInfo bencode.RawMessage
}

// envelope mirrors Torrent but keeps info raw so the original bytes survive
// the round trip through the typed struct.
type envelope struct {
	Announce     string             `bencode:"announce,omitempty"`
	AnnounceList [][]string         `bencode:"announce-list,omitempty"`
	Comment      string             `bencode:"comment,omitempty"`
	CreatedBy    string             `bencode:"created by,omitempty"`
	CreationDate int64              `bencode:"creation date,omitempty"`
	Encoding     string             `bencode:"encoding,omitempty"`
	HTTPSeeds    []string           `bencode:"httpseeds,omitempty"`
	Nodes        []Node             `bencode:"nodes,omitempty"`
	Info         bencode.RawMessage `bencode:"info,omitempty"`
}

// Decode parses a bencoded metainfo file.
func Decode(data []byte) (*Torrent, error) {
	var env envelope
	if err := bencode.DecodeBytes(data, &env); err != nil {
		return nil, ErrInvalidBencode
	}
	if len(env.Info) == 0 {
		return nil, ErrMissingInfo
	}

	var info Info
	if err := bencode.DecodeBytes(env.Info, &info); err != nil {
		return nil, ErrInvalidBencode
	}

	if info.RootHash == "" && len(info.Pieces)%20 != 0 {
		return nil, ErrInvalidPiecesLength
	}

	return &Torrent{
		Announce:     env.Announce,
		AnnounceList: env.AnnounceList,
		Comment:      env.Comment,
		CreatedBy:    env.CreatedBy,
		CreationDate: env.CreationDate,
		Encoding:     env.Encoding,
		HTTPSeeds:    env.HTTPSeeds,
		Nodes:        env.Nodes,
		Info:         info,
		rawInfo:      env.Info,
	}, nil
}

// Encode produces a deterministic bencoding of the torrent. Dictionary keys
// are sorted by the encoder, so equal values always encode to equal bytes.
func (t *Torrent) Encode() ([]byte, error) {
	return bencode.EncodeBytes(t)
}

// InfoHash returns the SHA-1 of the info dictionary as uploaded. For
// torrents reconstructed from storage it equals the canonical hash.
func (t *Torrent) InfoHash() (InfoHash, error) {
	if len(t.rawInfo) > 0 {
		return sha1.Sum(t.rawInfo), nil
	}
	return t.CanonicalInfoHash()
}

// CanonicalInfoHash returns the SHA-1 of the info dictionary after stripping
// non-standard keys. Two uploads that differ only in injected info keys
// share a canonical hash.
func (t *Torrent) CanonicalInfoHash() (InfoHash, error) {
	encoded, err := bencode.EncodeBytes(&t.Info)
	if err != nil {
		return InfoHash{}, err
	}
	return sha1.Sum(encoded), nil
}
