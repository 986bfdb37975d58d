// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}

	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code() == sqlitelib.SQLITE_CONSTRAINT_UNIQUE ||
			sqlErr.Code() == sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY
	}

	return false
}

// isUniqueConstraintOn reports whether err is a unique violation on the given
// column, e.g. "user_profiles.username". SQLite embeds the qualified column
// name in the error message; there is no structured accessor for it.
func isUniqueConstraintOn(err error, column string) bool {
	if !isUniqueConstraintError(err) {
		return false
	}
	return strings.Contains(err.Error(), column)
}

func isForeignKeyConstraintError(err error) bool {
	if err == nil {
		return false
	}

	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code() == sqlitelib.SQLITE_CONSTRAINT_FOREIGNKEY ||
			sqlErr.Code() == sqlitelib.SQLITE_CONSTRAINT_TRIGGER
	}

	return false
}
