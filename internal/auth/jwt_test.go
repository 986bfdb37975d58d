// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSigner(secret string) *TokenSigner {
	return NewTokenSigner([]byte(secret))
}

func TestTokenSignAndVerify(t *testing.T) {
	signer := testSigner("test-secret")

	token, err := signer.Sign(TokenUser{UserID: 42, Username: "alice", Administrator: true})
	require.NoError(t, err)

	user, err := signer.Verify(token)
	require.NoError(t, err)
	assert.EqualValues(t, 42, user.UserID)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, user.Administrator)
}

func TestTokenVerifyRejectsBadTokens(t *testing.T) {
	signer := testSigner("test-secret")

	token, err := signer.Sign(TokenUser{UserID: 1, Username: "alice"})
	require.NoError(t, err)

	_, err = signer.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// Wrong secret.
	_, err = testSigner("other-secret").Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// Expired.
	expired := testSigner("test-secret")
	expired.now = func() time.Time { return time.Now().Add(-2 * TokenLifetime) }
	old, err := expired.Sign(TokenUser{UserID: 1, Username: "alice"})
	require.NoError(t, err)
	_, err = signer.Verify(old)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenRenew(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	signer := testSigner("test-secret")
	signer.now = func() time.Time { return base }

	token, err := signer.Sign(TokenUser{UserID: 7, Username: "bob"})
	require.NoError(t, err)

	// More than seven days left: the same token comes back.
	signer.now = func() time.Time { return base.Add(24 * time.Hour) }
	same, user, err := signer.Renew(token)
	require.NoError(t, err)
	assert.Equal(t, token, same)
	assert.EqualValues(t, 7, user.UserID)

	// Under seven days left: a fresh token is issued.
	signer.now = func() time.Time { return base.Add(10 * 24 * time.Hour) }
	fresh, user, err := signer.Renew(token)
	require.NoError(t, err)
	assert.NotEqual(t, token, fresh)
	assert.EqualValues(t, 7, user.UserID)

	// The fresh token outlives the original.
	signer.now = func() time.Time { return base.Add(20 * 24 * time.Hour) }
	_, err = signer.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	_, err = signer.Verify(fresh)
	require.NoError(t, err)
}

func TestEmailVerificationToken(t *testing.T) {
	signer := testSigner("test-secret")

	token, err := signer.SignEmailVerification(11, "alice@example.com")
	require.NoError(t, err)

	userID, err := signer.VerifyEmailVerification(token)
	require.NoError(t, err)
	assert.EqualValues(t, 11, userID)

	// A session token is not accepted as a verification token.
	session, err := signer.Sign(TokenUser{UserID: 11, Username: "alice"})
	require.NoError(t, err)
	_, err = signer.VerifyEmailVerification(session)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
