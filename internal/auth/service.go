// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bitdex/bitdex/internal/mailer"
	"github.com/bitdex/bitdex/internal/models"
)

var (
	ErrEmailRequired        = errors.New("auth: email address is required")
	ErrPasswordTooShort     = errors.New("auth: password is too short")
	ErrPasswordTooLong      = errors.New("auth: password is too long")
	ErrPasswordConfirmation = errors.New("auth: password confirmation does not match")
	ErrInvalidCredentials   = errors.New("auth: invalid credentials")
	ErrUserBanned           = errors.New("auth: user is banned")
	ErrEmailNotVerified     = errors.New("auth: email address is not verified")
)

// Signup modes for Config.EmailOnSignup.
const (
	EmailOnSignupRequired = "required"
	EmailOnSignupOptional = "optional"
	EmailOnSignupNone     = "none"
)

type Config struct {
	EmailOnSignup            string
	EmailVerificationEnabled bool
	MinPasswordLength        int
	MaxPasswordLength        int
	SiteBaseURL              string
}

type Service struct {
	log    zerolog.Logger
	users  *models.UserStore
	signer *TokenSigner
	mail   mailer.Sender
	cfg    Config
	params Argon2Params
}

func NewService(log zerolog.Logger, users *models.UserStore, signer *TokenSigner, mail mailer.Sender, cfg Config) *Service {
	return &Service{
		log:    log.With().Str("module", "auth").Logger(),
		users:  users,
		signer: signer,
		mail:   mail,
		cfg:    cfg,
		params: DefaultArgon2Params,
	}
}

func (s *Service) validatePassword(password, confirmation string) error {
	if password != confirmation {
		return ErrPasswordConfirmation
	}
	if len(password) < s.cfg.MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > s.cfg.MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

// Register creates a regular account. When email verification is enabled the
// account starts unverified and a verification link goes out by mail.
func (s *Service) Register(ctx context.Context, username, email, password, confirmation string) (*models.User, error) {
	if email == "" && s.cfg.EmailOnSignup == EmailOnSignupRequired {
		return nil, ErrEmailRequired
	}
	if s.cfg.EmailOnSignup == EmailOnSignupNone {
		email = ""
	}
	if err := s.validatePassword(password, confirmation); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password, s.params)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	verificationPending := s.cfg.EmailVerificationEnabled && email != ""
	user, err := s.users.Create(ctx, username, email, hash, false, !verificationPending)
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("userId", user.ID).Str("username", username).Msg("user registered")

	if verificationPending {
		if err := s.sendVerificationMail(ctx, user.ID, email); err != nil {
			s.log.Error().Err(err).Int64("userId", user.ID).Msg("failed to send verification mail")
		}
	}

	return user, nil
}

// CreateAdmin creates an administrator account. Admins skip email
// verification regardless of configuration.
func (s *Service) CreateAdmin(ctx context.Context, username, email, password string) (*models.User, error) {
	if err := s.validatePassword(password, password); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password, s.params)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	return s.users.Create(ctx, username, email, hash, true, true)
}

func (s *Service) sendVerificationMail(ctx context.Context, userID int64, email string) error {
	token, err := s.signer.SignEmailVerification(userID, email)
	if err != nil {
		return err
	}
	link := s.cfg.SiteBaseURL + "/user/email/verify/" + token
	body := "Welcome! Please click the link below to verify your email address:\n\n" + link + "\n"
	return s.mail.Send(ctx, email, "Verify your email address", body)
}

// Login checks credentials and issues a session token. Stored hashes using a
// superseded scheme are transparently upgraded on success.
func (s *Service) Login(ctx context.Context, login, password string) (string, *models.User, error) {
	user, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	hash, err := s.users.PasswordHash(ctx, user.ID)
	if err != nil {
		return "", nil, err
	}

	if err := VerifyPassword(password, hash); err != nil {
		if errors.Is(err, ErrPasswordMismatch) || errors.Is(err, ErrInvalidHash) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if s.cfg.EmailVerificationEnabled && user.Email != "" && !user.EmailVerified {
		return "", nil, ErrEmailNotVerified
	}

	banned, err := s.users.IsBanned(ctx, user.ID)
	if err != nil {
		return "", nil, err
	}
	if banned {
		return "", nil, ErrUserBanned
	}

	if NeedsRehash(hash) {
		if fresh, err := HashPassword(password, s.params); err == nil {
			if err := s.users.UpdatePasswordHash(ctx, user.ID, fresh); err != nil {
				s.log.Error().Err(err).Int64("userId", user.ID).Msg("failed to upgrade password hash")
			}
		}
	}

	token, err := s.signer.Sign(TokenUser{
		UserID:        user.ID,
		Username:      user.Username,
		Administrator: user.Administrator,
	})
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	return token, user, nil
}

// Verify checks a session token and returns its claims.
func (s *Service) Verify(token string) (TokenUser, error) {
	return s.signer.Verify(token)
}

// Renew refreshes a session token that is close to expiry.
func (s *Service) Renew(ctx context.Context, token string) (string, *models.User, error) {
	fresh, tokenUser, err := s.signer.Renew(token)
	if err != nil {
		return "", nil, err
	}

	user, err := s.users.GetByID(ctx, tokenUser.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return "", nil, ErrTokenInvalid
		}
		return "", nil, err
	}

	return fresh, user, nil
}

// VerifyEmail consumes a verification token and marks the account verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	userID, err := s.signer.VerifyEmailVerification(token)
	if err != nil {
		return err
	}
	return s.users.MarkEmailVerified(ctx, userID)
}

// ChangePassword rotates the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, password, confirmation string) error {
	hash, err := s.users.PasswordHash(ctx, userID)
	if err != nil {
		return err
	}
	if err := VerifyPassword(current, hash); err != nil {
		if errors.Is(err, ErrPasswordMismatch) || errors.Is(err, ErrInvalidHash) {
			return ErrInvalidCredentials
		}
		return err
	}
	if err := s.validatePassword(password, confirmation); err != nil {
		return err
	}

	fresh, err := HashPassword(password, s.params)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.UpdatePasswordHash(ctx, userID, fresh)
}

// RequireUnbanned gates privileged operations on ban status.
func (s *Service) RequireUnbanned(ctx context.Context, userID int64) error {
	banned, err := s.users.IsBanned(ctx, userID)
	if err != nil {
		return err
	}
	if banned {
		return ErrUserBanned
	}
	return nil
}
