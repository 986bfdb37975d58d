// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"

	"github.com/bitdex/bitdex/internal/dbinterface"
)

var ErrTrackerKeyNotFound = errors.New("tracker key not found")

// TrackerKey is a per-user announce key issued by the remote tracker.
// Keys are append-only; the newest non-expired one wins.
type TrackerKey struct {
	ID         int64  `json:"-"`
	UserID     int64  `json:"-"`
	Key        string `json:"key"`
	ValidUntil int64  `json:"valid_until"`
}

type TrackerKeyStore struct {
	db dbinterface.Querier
}

func NewTrackerKeyStore(db dbinterface.Querier) *TrackerKeyStore {
	return &TrackerKeyStore{db: db}
}

func (s *TrackerKeyStore) Add(ctx context.Context, userID int64, key string, validUntil int64) (*TrackerKey, error) {
	tk := &TrackerKey{UserID: userID, Key: key, ValidUntil: validUntil}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tracker_keys (user_id, tracker_key, date_expiry)
		VALUES (?, ?, ?) RETURNING id
	`, userID, key, validUntil).Scan(&tk.ID)
	if err != nil {
		if isForeignKeyConstraintError(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return tk, nil
}

// LatestValid returns the newest key for the user that is still valid past
// the cutoff (unix seconds), or ErrTrackerKeyNotFound.
func (s *TrackerKeyStore) LatestValid(ctx context.Context, userID, cutoff int64) (*TrackerKey, error) {
	tk := &TrackerKey{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, tracker_key, date_expiry
		FROM tracker_keys
		WHERE user_id = ? AND date_expiry > ?
		ORDER BY id DESC
		LIMIT 1
	`, userID, cutoff).Scan(&tk.ID, &tk.UserID, &tk.Key, &tk.ValidUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTrackerKeyNotFound
		}
		return nil, err
	}
	return tk, nil
}
