// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package testdb creates throwaway migrated databases for tests.
package testdb

import (
	"path/filepath"
	"testing"

	"github.com/bitdex/bitdex/internal/database"
)

// Setup opens a fresh migrated database in the test's temp directory and
// closes it when the test finishes.
func Setup(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "bitdex-test.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close test database: %v", err)
		}
	})

	return db
}
