// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"

	"github.com/bitdex/bitdex/internal/dbinterface"
)

var ErrInfoHashNotFound = errors.New("info-hash not found")

// InfoHashGroupStore maps every observed info-hash to the canonical
// info-hash of its content group. Every stored torrent has at least one row
// mapping its canonical hash to itself.
type InfoHashGroupStore struct {
	db dbinterface.Querier
}

func NewInfoHashGroupStore(db dbinterface.Querier) *InfoHashGroupStore {
	return &InfoHashGroupStore{db: db}
}

// FindCanonical resolves any observed hash to its canonical hash.
func (s *InfoHashGroupStore) FindCanonical(ctx context.Context, infoHash string) (string, error) {
	var canonical string
	err := s.db.QueryRowContext(ctx, `
		SELECT canonical_info_hash FROM torrent_info_hashes WHERE info_hash = ?
	`, infoHash).Scan(&canonical)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrInfoHashNotFound
		}
		return "", err
	}
	return canonical, nil
}

// AddMapping records original -> canonical. Idempotent on the original hash:
// a mapping that already exists is left untouched, except that
// original_is_known is promoted to true once the original bytes are seen.
func (s *InfoHashGroupStore) AddMapping(ctx context.Context, q dbinterface.Querier, original, canonical string, originalIsKnown bool) error {
	if q == nil {
		q = s.db
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO torrent_info_hashes (info_hash, canonical_info_hash, original_is_known)
		VALUES (?, ?, ?)
		ON CONFLICT (info_hash) DO UPDATE SET
			original_is_known = original_is_known OR excluded.original_is_known
	`, original, canonical, originalIsKnown)
	return err
}

// GroupOf lists every original hash recorded for a canonical hash.
func (s *InfoHashGroupStore) GroupOf(ctx context.Context, canonical string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT info_hash FROM torrent_info_hashes
		WHERE canonical_info_hash = ?
		ORDER BY info_hash ASC
	`, canonical)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}

	return hashes, rows.Err()
}
