// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"errors"
	"strings"

	"github.com/bitdex/bitdex/internal/dbinterface"
)

var (
	ErrTagNotFound      = errors.New("tag not found")
	ErrTagAlreadyExists = errors.New("tag already exists")
	ErrTagNameEmpty     = errors.New("tag name is empty")
)

type Tag struct {
	ID   int64  `json:"tag_id"`
	Name string `json:"name"`
}

type TagStore struct {
	db dbinterface.Querier
}

func NewTagStore(db dbinterface.Querier) *TagStore {
	return &TagStore{db: db}
}

func (s *TagStore) Add(ctx context.Context, name string) (*Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrTagNameEmpty
	}

	tag := &Tag{Name: name}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO torrent_tags (name) VALUES (?) RETURNING id
	`, name).Scan(&tag.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrTagAlreadyExists
		}
		return nil, err
	}

	return tag, nil
}

func (s *TagStore) List(ctx context.Context) ([]*Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM torrent_tags ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []*Tag
	for rows.Next() {
		tag := &Tag{}
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}

	return tags, rows.Err()
}

// Delete removes a tag by id; link rows cascade.
func (s *TagStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM torrent_tags WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRowsAffected(result, ErrTagNotFound)
}

// ResolveNames maps tag names to tags, silently dropping unknown names.
// Used by the search filter so arbitrary client input never reaches SQL.
func (s *TagStore) ResolveNames(ctx context.Context, names []string) ([]*Tag, error) {
	if len(names) == 0 {
		return nil, nil
	}

	byName := make(map[string]struct{}, len(names))
	for _, name := range names {
		byName[name] = struct{}{}
	}

	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	var resolved []*Tag
	for _, tag := range all {
		if _, ok := byName[tag.Name]; ok {
			resolved = append(resolved, tag)
		}
	}
	return resolved, nil
}

// ResolveIDs verifies that every id exists, returning ErrTagNotFound otherwise.
func (s *TagStore) ResolveIDs(ctx context.Context, ids []int64) ([]*Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*Tag, len(all))
	for _, tag := range all {
		byID[tag.ID] = tag
	}

	resolved := make([]*Tag, 0, len(ids))
	for _, id := range ids {
		tag, ok := byID[id]
		if !ok {
			return nil, ErrTagNotFound
		}
		resolved = append(resolved, tag)
	}
	return resolved, nil
}
