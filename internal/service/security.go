package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tagboxapp/tagbox-server/internal/auth"
	"github.com/tagboxapp/tagbox-server/internal/domain"
	domainerrors "github.com/tagboxapp/tagbox-server/internal/errors"
	"github.com/tagboxapp/tagbox-server/internal/mail"
	"github.com/tagboxapp/tagbox-server/internal/store"
	"github.com/tagboxapp/tagbox-server/internal/validation"
)

// Responses of the security flows. The email-driven ones never reveal
// whether an account exists.
const (
	MsgVerificationSent = "If a matching account exists, a verification email has been sent."
	MsgResetSent        = "If a matching account exists, a password reset email has been sent."
	MsgEmailVerified    = "Email verified. You can now log in."
	MsgPasswordReset    = "Password updated. You can now log in."
)

// TokenRequest carries an emailed token.
type TokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// EmailRequest names the account an email flow is for.
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest sets a new password using a reset token.
type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=5,max=256"`
}

// SecurityService runs the email verification and password reset flows.
type SecurityService struct {
	store     *store.Store
	notifier  *Notifier
	tokenTTL  time.Duration
	validator *validation.Validator
	logger    *slog.Logger
}

// NewSecurityService creates a new security service.
func NewSecurityService(st *store.Store, notifier *Notifier, tokenTTL time.Duration, logger *slog.Logger) *SecurityService {
	return &SecurityService{
		store:     st,
		notifier:  notifier,
		tokenTTL:  tokenTTL,
		validator: validation.New(),
		logger:    logger,
	}
}

var errInvalidToken = domainerrors.Unauthorized("invalid or expired token")

// VerifyEmail marks the token's user as verified and consumes the token.
func (s *SecurityService) VerifyEmail(ctx context.Context, req TokenRequest) (string, error) {
	if err := s.validator.Validate(req); err != nil {
		return "", err
	}

	var userID string
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		t, err := findToken(tx, s.store, req.Token, domain.TokenVerification)
		if err != nil {
			return err
		}
		if t.IsExpired(time.Now()) {
			return errInvalidToken
		}

		user, err := s.store.Users.Get(tx, t.UserID)
		if err != nil {
			return err
		}
		if !user.IsVerified {
			user.IsVerified = true
			user.Touch()
			if err := s.store.Users.Put(tx, user.ID, user); err != nil {
				return err
			}
		}
		userID = user.ID

		_, err = s.store.DeleteUserTokens(tx, user.ID, domain.TokenVerification)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return "", errInvalidToken
	}
	if err != nil {
		return "", translateErr(err, "token not found")
	}

	s.logger.Info("email verified", "user_id", userID)
	return MsgEmailVerified, nil
}

// ResendVerification replaces an unverified user's verification token and
// mails the new one. A verified user is told they can log in.
func (s *SecurityService) ResendVerification(ctx context.Context, req EmailRequest) (string, error) {
	if err := s.validator.Validate(req); err != nil {
		return "", err
	}

	var (
		user   *domain.User
		secret string
	)
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		user, err = s.store.UserByEmail(tx, req.Email)
		if err != nil || user.IsVerified {
			return err
		}
		if _, err := s.store.DeleteUserTokens(tx, user.ID, domain.TokenVerification); err != nil {
			return err
		}
		secret, err = issueToken(tx, s.store, user.ID, domain.TokenVerification, s.tokenTTL)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Debug("verification requested for unknown email")
		return MsgVerificationSent, nil
	}
	if err != nil {
		return "", translateErr(err, "user not found")
	}

	if user.IsVerified {
		s.notifier.send(ctx, "already_verified", func(c *mail.Composer) (mail.Message, error) {
			return c.AlreadyVerified(user.Email)
		})
		return MsgVerificationSent, nil
	}

	s.notifier.send(ctx, "verification", func(c *mail.Composer) (mail.Message, error) {
		return c.Verification(user.Email, user.Name, secret, s.tokenTTL)
	})
	return MsgVerificationSent, nil
}

// RequestPasswordReset mails a reset token to a verified user. An unverified
// user is asked to verify first.
func (s *SecurityService) RequestPasswordReset(ctx context.Context, req EmailRequest) (string, error) {
	if err := s.validator.Validate(req); err != nil {
		return "", err
	}

	var (
		user   *domain.User
		secret string
	)
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		user, err = s.store.UserByEmail(tx, req.Email)
		if err != nil || !user.IsVerified {
			return err
		}
		if _, err := s.store.DeleteUserTokens(tx, user.ID, domain.TokenReset); err != nil {
			return err
		}
		secret, err = issueToken(tx, s.store, user.ID, domain.TokenReset, s.tokenTTL)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Debug("password reset requested for unknown email")
		return MsgResetSent, nil
	}
	if err != nil {
		return "", translateErr(err, "user not found")
	}

	if !user.IsVerified {
		s.notifier.send(ctx, "verify_before_reset", func(c *mail.Composer) (mail.Message, error) {
			return c.VerifyBeforeReset(user.Email)
		})
		return MsgResetSent, nil
	}

	s.logger.Info("password reset requested", "user_id", user.ID)
	s.notifier.send(ctx, "password_reset", func(c *mail.Composer) (mail.Message, error) {
		return c.PasswordReset(user.Email, user.Name, secret, s.tokenTTL)
	})
	return MsgResetSent, nil
}

// ResetPassword sets a new password, consumes the reset token and signs the
// user out everywhere by revoking their refresh tokens.
func (s *SecurityService) ResetPassword(ctx context.Context, req ResetPasswordRequest) (string, error) {
	if err := s.validator.Validate(req); err != nil {
		return "", err
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	var (
		userID  string
		revoked int
	)
	err = s.store.Update(ctx, func(tx *store.Tx) error {
		t, err := findToken(tx, s.store, req.Token, domain.TokenReset)
		if err != nil {
			return err
		}
		if t.IsExpired(time.Now()) {
			return errInvalidToken
		}

		user, err := s.store.Users.Get(tx, t.UserID)
		if err != nil {
			return err
		}
		user.PasswordHash = passwordHash
		user.Touch()
		if err := s.store.Users.Put(tx, user.ID, user); err != nil {
			return err
		}
		userID = user.ID

		if _, err := s.store.DeleteUserTokens(tx, user.ID, domain.TokenReset); err != nil {
			return err
		}
		revoked, err = s.store.DeleteUserTokens(tx, user.ID, domain.TokenRefresh)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return "", errInvalidToken
	}
	if err != nil {
		return "", translateErr(err, "token not found")
	}

	s.logger.Info("password reset", "user_id", userID, "sessions_revoked", revoked)
	return MsgPasswordReset, nil
}
