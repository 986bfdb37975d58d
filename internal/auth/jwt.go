// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenInvalid = errors.New("auth: token is invalid")
	ErrTokenExpired = errors.New("auth: token has expired")
)

const (
	// TokenLifetime is how long a freshly signed token stays valid.
	TokenLifetime = 14 * 24 * time.Hour
	// renewalThreshold is the remaining lifetime below which Renew signs a
	// fresh token instead of handing the old one back.
	renewalThreshold = 7 * 24 * time.Hour
)

// TokenUser is the identity embedded in a session token.
type TokenUser struct {
	UserID        int64  `json:"user_id"`
	Username      string `json:"username"`
	Administrator bool   `json:"administrator"`
}

type tokenClaims struct {
	User TokenUser `json:"user"`
	jwt.RegisteredClaims
}

// TokenSigner signs and verifies HMAC-SHA-256 session tokens.
type TokenSigner struct {
	secret []byte
	now    func() time.Time
}

func NewTokenSigner(secret []byte) *TokenSigner {
	return &TokenSigner{secret: secret, now: time.Now}
}

// Sign issues a token for the user expiring TokenLifetime from now.
func (s *TokenSigner) Sign(user TokenUser) (string, error) {
	claims := tokenClaims{
		User: user,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(s.now().Add(TokenLifetime)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify parses and validates a token, returning the embedded identity.
func (s *TokenSigner) Verify(token string) (TokenUser, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenUser{}, ErrTokenExpired
		}
		return TokenUser{}, ErrTokenInvalid
	}
	if !parsed.Valid {
		return TokenUser{}, ErrTokenInvalid
	}
	return claims.User, nil
}

// SignEmailVerification issues a single-purpose token for the email
// verification link.
func (s *TokenSigner) SignEmailVerification(userID int64, email string) (string, error) {
	claims := jwt.MapClaims{
		"sub":     "email-verification",
		"user_id": userID,
		"email":   email,
		"exp":     jwt.NewNumericDate(s.now().Add(TokenLifetime)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// VerifyEmailVerification validates a verification token and returns the
// user it was issued for.
func (s *TokenSigner) VerifyEmailVerification(token string) (int64, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, ErrTokenInvalid
	}
	if !parsed.Valid {
		return 0, ErrTokenInvalid
	}
	if sub, _ := claims["sub"].(string); sub != "email-verification" {
		return 0, ErrTokenInvalid
	}
	userID, ok := claims["user_id"].(float64)
	if !ok {
		return 0, ErrTokenInvalid
	}
	return int64(userID), nil
}

// Renew returns the same token while more than half its lifetime remains,
// and a freshly signed one once it gets close to expiry.
func (s *TokenSigner) Renew(token string) (string, TokenUser, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", TokenUser{}, ErrTokenExpired
		}
		return "", TokenUser{}, ErrTokenInvalid
	}
	if !parsed.Valid || claims.ExpiresAt == nil {
		return "", TokenUser{}, ErrTokenInvalid
	}

	if claims.ExpiresAt.Sub(s.now()) > renewalThreshold {
		return token, claims.User, nil
	}

	fresh, err := s.Sign(claims.User)
	if err != nil {
		return "", TokenUser{}, err
	}
	return fresh, claims.User, nil
}
