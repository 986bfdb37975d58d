// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitdex/bitdex/internal/models"
	"github.com/bitdex/bitdex/internal/testdb"
)

type captureMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *captureMailer) Send(_ context.Context, to, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
	return nil
}

func setupService(t *testing.T, cfg Config) (*Service, *models.UserStore, *captureMailer) {
	t.Helper()
	db := testdb.Setup(t)
	users := models.NewUserStore(db)
	mail := &captureMailer{}
	svc := NewService(zerolog.Nop(), users, NewTokenSigner([]byte("test-secret")), mail, cfg)
	svc.params = fastParams
	return svc, users, mail
}

func defaultConfig() Config {
	return Config{
		EmailOnSignup:     EmailOnSignupOptional,
		MinPasswordLength: 6,
		MaxPasswordLength: 64,
		SiteBaseURL:       "http://localhost:3000",
	}
}

func TestServiceRegisterAndLogin(t *testing.T) {
	svc, _, _ := setupService(t, defaultConfig())
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "alice@example.com", "hunter22", "hunter22")
	require.NoError(t, err)
	assert.False(t, user.Administrator)
	assert.True(t, user.EmailVerified)

	token, got, err := svc.Login(ctx, "alice", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, got.ID)

	// Login by email works too.
	_, _, err = svc.Login(ctx, "alice@example.com", "hunter22")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "alice", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "nobody", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestServiceRegisterValidation(t *testing.T) {
	svc, _, _ := setupService(t, Config{
		EmailOnSignup:     EmailOnSignupRequired,
		MinPasswordLength: 6,
		MaxPasswordLength: 10,
	})
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "", "hunter22", "hunter22")
	assert.ErrorIs(t, err, ErrEmailRequired)

	_, err = svc.Register(ctx, "alice", "a@example.com", "short", "short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	_, err = svc.Register(ctx, "alice", "a@example.com", "wayyyy too long", "wayyyy too long")
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	_, err = svc.Register(ctx, "alice", "a@example.com", "hunter22", "hunter23")
	assert.ErrorIs(t, err, ErrPasswordConfirmation)

	_, err = svc.Register(ctx, "bad name!", "a@example.com", "hunter22", "hunter22")
	assert.ErrorIs(t, err, models.ErrUsernameInvalid)
}

func TestServiceRegisterDropsEmailWhenDisabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.EmailOnSignup = EmailOnSignupNone
	svc, users, _ := setupService(t, cfg)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "alice@example.com", "hunter22", "hunter22")
	require.NoError(t, err)

	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Email)
}

func TestServiceEmailVerificationFlow(t *testing.T) {
	cfg := defaultConfig()
	cfg.EmailVerificationEnabled = true
	svc, _, mail := setupService(t, cfg)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "alice@example.com", "hunter22", "hunter22")
	require.NoError(t, err)
	assert.False(t, user.EmailVerified)
	assert.Equal(t, []string{"alice@example.com"}, mail.sent)

	_, _, err = svc.Login(ctx, "alice", "hunter22")
	assert.ErrorIs(t, err, ErrEmailNotVerified)

	token, err := svc.signer.SignEmailVerification(user.ID, user.Email)
	require.NoError(t, err)
	require.NoError(t, svc.VerifyEmail(ctx, token))

	_, _, err = svc.Login(ctx, "alice", "hunter22")
	require.NoError(t, err)
}

func TestServiceLoginBanned(t *testing.T) {
	svc, users, _ := setupService(t, defaultConfig())
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "", "hunter22", "hunter22")
	require.NoError(t, err)
	require.NoError(t, users.BanUser(ctx, user.ID, "spam", time.Now().UTC().Add(time.Hour)))

	_, _, err = svc.Login(ctx, "alice", "hunter22")
	assert.ErrorIs(t, err, ErrUserBanned)
	assert.ErrorIs(t, svc.RequireUnbanned(ctx, user.ID), ErrUserBanned)
}

func TestServiceLoginUpgradesLegacyHash(t *testing.T) {
	svc, users, _ := setupService(t, defaultConfig())
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "", "hunter22", "hunter22")
	require.NoError(t, err)

	// Plant a legacy hash and log in with its password.
	legacy := legacyPBKDF2Hash(t, "old password")
	require.NoError(t, users.UpdatePasswordHash(ctx, user.ID, legacy))

	_, _, err = svc.Login(ctx, "alice", "old password")
	require.NoError(t, err)

	upgraded, err := users.PasswordHash(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, NeedsRehash(upgraded))
	require.NoError(t, VerifyPassword("old password", upgraded))
}

func TestServiceChangePassword(t *testing.T) {
	svc, _, _ := setupService(t, defaultConfig())
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "", "hunter22", "hunter22")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ChangePassword(ctx, user.ID, "wrong", "newpass1", "newpass1"), ErrInvalidCredentials)
	assert.ErrorIs(t, svc.ChangePassword(ctx, user.ID, "hunter22", "newpass1", "other"), ErrPasswordConfirmation)
	require.NoError(t, svc.ChangePassword(ctx, user.ID, "hunter22", "newpass1", "newpass1"))

	_, _, err = svc.Login(ctx, "alice", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "alice", "newpass1")
	require.NoError(t, err)
}

func TestServiceCreateAdmin(t *testing.T) {
	cfg := defaultConfig()
	cfg.EmailVerificationEnabled = true
	svc, _, mail := setupService(t, cfg)
	ctx := context.Background()

	admin, err := svc.CreateAdmin(ctx, "root", "root@example.com", "hunter22")
	require.NoError(t, err)
	assert.True(t, admin.Administrator)
	assert.True(t, admin.EmailVerified)
	assert.Empty(t, mail.sent)

	_, _, err = svc.Login(ctx, "root", "hunter22")
	require.NoError(t, err)
}
