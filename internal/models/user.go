// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bitdex/bitdex/internal/dbinterface"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrEmailTaken      = errors.New("email already in use")
	ErrUsernameInvalid = errors.New("username is invalid")
)

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,20}$`)

// User is the identity row plus its profile. The password hash lives in a
// separate table and is only loaded on demand.
type User struct {
	ID             int64     `json:"user_id"`
	DateRegistered time.Time `json:"date_registered"`
	Administrator  bool      `json:"administrator"`
	Username       string    `json:"username"`
	Email          string    `json:"email,omitempty"`
	EmailVerified  bool      `json:"email_verified"`
	Bio            string    `json:"bio,omitempty"`
	Avatar         string    `json:"avatar,omitempty"`
}

// Ban disables privileged operations for a user until it expires.
type Ban struct {
	UserID     int64     `json:"user_id"`
	Reason     string    `json:"reason"`
	DateExpiry time.Time `json:"date_expiry"`
}

type UserStore struct {
	db dbinterface.TxBeginner
}

func NewUserStore(db dbinterface.TxBeginner) *UserStore {
	return &UserStore{db: db}
}

// ValidateUsername enforces the 1-20 char [A-Za-z0-9_-] rule.
func ValidateUsername(username string) error {
	if !usernameRe.MatchString(username) {
		return ErrUsernameInvalid
	}
	return nil
}

// Create inserts the identity, profile and authentication rows atomically.
func (s *UserStore) Create(ctx context.Context, username, email, passwordHash string, administrator, emailVerified bool) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var user User
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (administrator) VALUES (?)
		RETURNING id, date_registered, administrator
	`, administrator).Scan(&user.ID, &user.DateRegistered, &user.Administrator)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	var emailValue any
	if email != "" {
		emailValue = email
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_profiles (user_id, username, email, email_verified)
		VALUES (?, ?, ?, ?)
	`, user.ID, username, emailValue, emailVerified)
	if err != nil {
		switch {
		case isUniqueConstraintOn(err, "user_profiles.username"):
			return nil, ErrUsernameTaken
		case isUniqueConstraintError(err):
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert profile: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_authentication (user_id, password_hash) VALUES (?, ?)
	`, user.ID, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("insert authentication: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	user.Username = username
	user.Email = email
	user.EmailVerified = emailVerified
	return &user, nil
}

const userColumns = `
	u.id, u.date_registered, u.administrator,
	p.username, COALESCE(p.email, ''), p.email_verified,
	COALESCE(p.bio, ''), COALESCE(p.avatar, '')
`

func (s *UserStore) scanUser(row *sql.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.DateRegistered,
		&user.Administrator,
		&user.Username,
		&user.Email,
		&user.EmailVerified,
		&user.Bio,
		&user.Avatar,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users u JOIN user_profiles p ON p.user_id = u.id
		WHERE u.id = ?
	`, id))
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users u JOIN user_profiles p ON p.user_id = u.id
		WHERE p.username = ?
	`, username))
}

// GetByLogin resolves a username or email address to a user.
func (s *UserStore) GetByLogin(ctx context.Context, login string) (*User, error) {
	if strings.Contains(login, "@") {
		user, err := s.scanUser(s.db.QueryRowContext(ctx, `
			SELECT `+userColumns+`
			FROM users u JOIN user_profiles p ON p.user_id = u.id
			WHERE p.email = ?
		`, login))
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
	}
	return s.GetByUsername(ctx, login)
}

func (s *UserStore) PasswordHash(ctx context.Context, userID int64) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `
		SELECT password_hash FROM user_authentication WHERE user_id = ?
	`, userID).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	return hash, nil
}

func (s *UserStore) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE user_authentication SET password_hash = ? WHERE user_id = ?
	`, hash, userID)
	if err != nil {
		return err
	}
	return requireRowsAffected(result, ErrUserNotFound)
}

func (s *UserStore) MarkEmailVerified(ctx context.Context, userID int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE user_profiles SET email_verified = 1 WHERE user_id = ?
	`, userID)
	if err != nil {
		return err
	}
	return requireRowsAffected(result, ErrUserNotFound)
}

func (s *UserStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// Delete removes the user; profile, authentication, bans, tracker keys and
// uploaded torrents cascade through foreign keys.
func (s *UserStore) Delete(ctx context.Context, userID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	if err != nil {
		return err
	}
	return requireRowsAffected(result, ErrUserNotFound)
}

func (s *UserStore) BanUser(ctx context.Context, userID int64, reason string, expiry time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_bans (user_id, reason, date_expiry) VALUES (?, ?, ?)
	`, userID, reason, expiry)
	if isForeignKeyConstraintError(err) {
		return ErrUserNotFound
	}
	return err
}

// IsBanned reports whether the user has an unexpired ban.
func (s *UserStore) IsBanned(ctx context.Context, userID int64) (bool, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_bans WHERE user_id = ? AND date_expiry > ?
	`, userID, time.Now().UTC()).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func requireRowsAffected(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
