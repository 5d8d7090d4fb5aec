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
	"github.com/tagboxapp/tagbox-server/internal/store"
	"github.com/tagboxapp/tagbox-server/internal/validation"
)

// LoginRequest contains user credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=256"`
}

// RefreshRequest carries the refresh token to exchange.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthResponse contains authentication tokens and user data.
type AuthResponse struct {
	User         *domain.User
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int // access token lifetime in seconds
}

// AuthService handles login, token refresh and logout.
type AuthService struct {
	store        *store.Store
	tokenService *auth.TokenService
	validator    *validation.Validator
	logger       *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(st *store.Store, tokenService *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{
		store:        st,
		tokenService: tokenService,
		validator:    validation.New(),
		logger:       logger,
	}
}

// Login authenticates a verified user and starts a new refresh token chain.
// Any earlier refresh token the user held stops working.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var user *domain.User
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		user, err = s.store.UserByEmail(tx, req.Email)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		// Don't leak whether the email exists
		return nil, domainerrors.InvalidCredentials("invalid email or password")
	}
	if err != nil {
		return nil, translateErr(err, "user not found")
	}

	valid, err := auth.VerifyPassword(user.PasswordHash, req.Password)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return nil, domainerrors.InvalidCredentials("invalid email or password")
	}
	if !user.IsVerified {
		return nil, domainerrors.Forbidden("email not verified")
	}

	var refresh string
	err = s.store.Update(ctx, func(tx *store.Tx) error {
		u, err := s.store.Users.Get(tx, user.ID)
		if err != nil {
			return err
		}
		u.LastLoginAt = time.Now()
		u.Touch()
		if err := s.store.Users.Put(tx, u.ID, u); err != nil {
			return err
		}
		user = u

		if _, err := s.store.DeleteUserTokens(tx, u.ID, domain.TokenRefresh); err != nil {
			return err
		}
		refresh, err = issueToken(tx, s.store, u.ID, domain.TokenRefresh, s.tokenService.RefreshTokenDuration())
		return err
	})
	if err != nil {
		return nil, translateErr(err, "user not found")
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return s.respond(user, refresh)
}

// Refresh exchanges a refresh token for a new access token and a new
// refresh token. The presented token is consumed.
func (s *AuthService) Refresh(ctx context.Context, req RefreshRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var (
		user    *domain.User
		refresh string
		expired bool
	)
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		t, err := findToken(tx, s.store, req.RefreshToken, domain.TokenRefresh)
		if err != nil {
			return err
		}
		if err := s.store.Tokens.Delete(tx, t.ID); err != nil {
			return err
		}
		if t.IsExpired(time.Now()) {
			// Commit the delete, then report expiry.
			expired = true
			return nil
		}

		user, err = s.store.Users.Get(tx, t.UserID)
		if err != nil {
			return err
		}
		refresh, err = issueToken(tx, s.store, user.ID, domain.TokenRefresh, s.tokenService.RefreshTokenDuration())
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.Unauthorized("invalid refresh token")
	}
	if err != nil {
		return nil, translateErr(err, "user not found")
	}
	if expired {
		return nil, domainerrors.TokenExpired("refresh token expired")
	}

	s.logger.Debug("refresh token rotated", "user_id", user.ID)
	return s.respond(user, refresh)
}

// Logout revokes a refresh token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, req RefreshRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}

	err := s.store.Update(ctx, func(tx *store.Tx) error {
		t, err := findToken(tx, s.store, req.RefreshToken, domain.TokenRefresh)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return s.store.Tokens.Delete(tx, t.ID)
	})
	return translateErr(err, "token not found")
}

// Authenticate validates an access token and returns its user.
// Used by the HTTP layer to resolve the owner of a request.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*domain.User, *auth.AccessClaims, error) {
	claims, err := s.tokenService.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, nil, domainerrors.Unauthorized("invalid or expired access token").WithCause(err)
	}

	var user *domain.User
	err = s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		user, err = s.store.Users.Get(tx, claims.UserID)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, domainerrors.Unauthorized("user no longer exists")
	}
	if err != nil {
		return nil, nil, translateErr(err, "user not found")
	}
	return user, claims, nil
}

func (s *AuthService) respond(user *domain.User, refresh string) (*AuthResponse, error) {
	access, err := s.tokenService.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	return &AuthResponse{
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tokenService.AccessTokenDuration().Seconds()),
	}, nil
}
