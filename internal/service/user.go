package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tagboxapp/tagbox-server/internal/auth"
	"github.com/tagboxapp/tagbox-server/internal/domain"
	domainerrors "github.com/tagboxapp/tagbox-server/internal/errors"
	"github.com/tagboxapp/tagbox-server/internal/id"
	"github.com/tagboxapp/tagbox-server/internal/mail"
	"github.com/tagboxapp/tagbox-server/internal/store"
	"github.com/tagboxapp/tagbox-server/internal/validation"
)

// MsgRegistered is returned by Register whether or not the email was new.
const MsgRegistered = "Registration received. Check your email for a verification token."

// RegisterRequest contains the data for a new account.
type RegisterRequest struct {
	Name     string `json:"name" validate:"notblank,min=2,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=5,max=256"`
}

// UserService manages accounts.
type UserService struct {
	store     *store.Store
	notifier  *Notifier
	tokenTTL  time.Duration
	validator *validation.Validator
	logger    *slog.Logger
}

// NewUserService creates a new user service. tokenTTL is the lifetime of
// emailed verification tokens.
func NewUserService(st *store.Store, notifier *Notifier, tokenTTL time.Duration, logger *slog.Logger) *UserService {
	return &UserService{
		store:     st,
		notifier:  notifier,
		tokenTTL:  tokenTTL,
		validator: validation.New(),
		logger:    logger,
	}
}

// Register creates an unverified account and mails a verification token.
// If the email is taken, the holder is told someone tried to register instead.
// The result is the same either way.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (string, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Validate(req); err != nil {
		return "", err
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	var (
		user   *domain.User
		secret string
		taken  bool
	)
	err = s.store.Update(ctx, func(tx *store.Tx) error {
		_, err := s.store.UserByEmail(tx, req.Email)
		if err == nil {
			taken = true
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		userID, err := id.Generate(id.PrefixUser)
		if err != nil {
			return err
		}
		user = &domain.User{
			Record:       domain.Record{ID: userID},
			Name:         req.Name,
			Email:        req.Email,
			PasswordHash: passwordHash,
		}
		user.InitTimestamps()

		if err := s.store.Users.Create(tx, userID, user); err != nil {
			return err
		}
		secret, err = issueToken(tx, s.store, userID, domain.TokenVerification, s.tokenTTL)
		return err
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		taken, err = true, nil
	}
	if err != nil {
		return "", translateErr(err, "user not found")
	}

	if taken {
		s.logger.Info("registration for existing email", "email", domain.NormalizeEmail(req.Email))
		s.notifier.send(ctx, "already_registered", func(c *mail.Composer) (mail.Message, error) {
			return c.AlreadyRegistered(req.Email)
		})
		return MsgRegistered, nil
	}

	s.logger.Info("user registered", "user_id", user.ID)
	s.notifier.send(ctx, "verification", func(c *mail.Composer) (mail.Message, error) {
		return c.Verification(user.Email, user.Name, secret, s.tokenTTL)
	})
	return MsgRegistered, nil
}

// Me returns the account behind an authenticated request.
func (s *UserService) Me(ctx context.Context, userID string) (*domain.User, error) {
	var user *domain.User
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		user, err = s.store.Users.Get(tx, userID)
		return err
	})
	if err != nil {
		return nil, translateErr(err, "user not found")
	}
	return user, nil
}

// List returns every account. Only admins may call it.
func (s *UserService) List(ctx context.Context, actorID string) ([]*domain.User, error) {
	var users []*domain.User
	err := s.store.View(ctx, func(tx *store.Tx) error {
		actor, err := s.store.Users.Get(tx, actorID)
		if err != nil {
			return notFound(err, "user not found")
		}
		if !actor.IsAdmin {
			return domainerrors.Forbidden("admin access required")
		}
		users, err = s.store.ListUsers(tx)
		return err
	})
	if err != nil {
		return nil, translateErr(err, "user not found")
	}
	return users, nil
}

// EnsureAdmin makes the account with req.Email a verified admin, creating it
// when it does not exist. An existing account keeps its password.
func (s *UserService) EnsureAdmin(ctx context.Context, req RegisterRequest) (*domain.User, bool, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Validate(req); err != nil {
		return nil, false, err
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, false, fmt.Errorf("hash password: %w", err)
	}

	var (
		user    *domain.User
		created bool
	)
	err = s.store.Update(ctx, func(tx *store.Tx) error {
		existing, err := s.store.UserByEmail(tx, req.Email)
		switch {
		case err == nil:
			existing.IsAdmin = true
			existing.IsVerified = true
			existing.Touch()
			user = existing
			return s.store.Users.Put(tx, existing.ID, existing)
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		userID, err := id.Generate(id.PrefixUser)
		if err != nil {
			return err
		}
		user = &domain.User{
			Record:       domain.Record{ID: userID},
			Name:         req.Name,
			Email:        req.Email,
			PasswordHash: passwordHash,
			IsVerified:   true,
			IsAdmin:      true,
		}
		user.InitTimestamps()
		created = true
		return s.store.Users.Create(tx, userID, user)
	})
	if err != nil {
		return nil, false, translateErr(err, "user not found")
	}

	s.logger.Info("admin ensured", "user_id", user.ID, "created", created)
	return user, created, nil
}
