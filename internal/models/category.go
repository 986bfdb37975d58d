// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/bitdex/bitdex/internal/dbinterface"
)

var (
	ErrCategoryNotFound      = errors.New("category not found")
	ErrCategoryAlreadyExists = errors.New("category already exists")
	ErrCategoryNameEmpty     = errors.New("category name is empty")
	ErrCategoryInUse         = errors.New("category is referenced by torrents")
)

type Category struct {
	ID   int64  `json:"category_id"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
	// NumTorrents is only populated by List.
	NumTorrents int64 `json:"num_torrents"`
}

type CategoryStore struct {
	db dbinterface.Querier
}

func NewCategoryStore(db dbinterface.Querier) *CategoryStore {
	return &CategoryStore{db: db}
}

func (s *CategoryStore) Add(ctx context.Context, name, icon string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrCategoryNameEmpty
	}

	var iconValue any
	if icon != "" {
		iconValue = icon
	}

	category := &Category{Name: name, Icon: icon}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO categories (name, icon) VALUES (?, ?) RETURNING id
	`, name, iconValue).Scan(&category.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrCategoryAlreadyExists
		}
		return nil, err
	}

	return category, nil
}

func (s *CategoryStore) GetByName(ctx context.Context, name string) (*Category, error) {
	category := &Category{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(icon, '') FROM categories WHERE name = ?
	`, name).Scan(&category.ID, &category.Name, &category.Icon)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return category, nil
}

func (s *CategoryStore) GetByID(ctx context.Context, id int64) (*Category, error) {
	category := &Category{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(icon, '') FROM categories WHERE id = ?
	`, id).Scan(&category.ID, &category.Name, &category.Icon)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return category, nil
}

func (s *CategoryStore) List(ctx context.Context) ([]*Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, COALESCE(c.icon, ''), COUNT(t.id)
		FROM categories c
		LEFT JOIN torrents t ON t.category_id = c.id
		GROUP BY c.id
		ORDER BY c.name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []*Category
	for rows.Next() {
		category := &Category{}
		if err := rows.Scan(&category.ID, &category.Name, &category.Icon, &category.NumTorrents); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}

	return categories, rows.Err()
}

// Delete removes a category by name. Deletion is rejected while torrents
// still reference it.
func (s *CategoryStore) Delete(ctx context.Context, name string) error {
	var referenced int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM torrents t
		JOIN categories c ON c.id = t.category_id
		WHERE c.name = ?
	`, name).Scan(&referenced)
	if err != nil {
		return err
	}
	if referenced > 0 {
		return ErrCategoryInUse
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE name = ?`, name)
	if err != nil {
		if isForeignKeyConstraintError(err) {
			return ErrCategoryInUse
		}
		return err
	}
	return requireRowsAffected(result, ErrCategoryNotFound)
}
