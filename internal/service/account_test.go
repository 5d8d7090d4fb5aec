package service

import (
	"context"
	"crypto/rand"
	"log/slog"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagboxapp/tagbox-server/internal/auth"
	"github.com/tagboxapp/tagbox-server/internal/domain"
	domainerrors "github.com/tagboxapp/tagbox-server/internal/errors"
	"github.com/tagboxapp/tagbox-server/internal/mail"
	"github.com/tagboxapp/tagbox-server/internal/store"
)

type captureMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (m *captureMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMailer) last(t *testing.T) mail.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

var mailedToken = regexp.MustCompile(`<b>([A-Za-z0-9_-]+)</b>`)

func (m *captureMailer) token(t *testing.T) string {
	t.Helper()
	match := mailedToken.FindStringSubmatch(m.last(t).HTML)
	require.Len(t, match, 2, "no token in mail")
	return match[1]
}

type accountEnv struct {
	store    *store.Store
	mailer   *captureMailer
	users    *UserService
	auth     *AuthService
	security *SecurityService
}

func setupAccountEnv(t *testing.T) *accountEnv {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	key := make([]byte, 32)
	_, err = rand.Read(key)
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, 15*time.Minute, time.Hour)
	require.NoError(t, err)

	logger := slog.New(slog.DiscardHandler)
	mailer := &captureMailer{}
	notifier := NewNotifier(mailer, mail.NewComposer("Tagbox"), logger)

	return &accountEnv{
		store:    st,
		mailer:   mailer,
		users:    NewUserService(st, notifier, 30*time.Minute, logger),
		auth:     NewAuthService(st, tokens, logger),
		security: NewSecurityService(st, notifier, 30*time.Minute, logger),
	}
}

// registerVerified registers and verifies an account, returning its ID.
func (e *accountEnv) registerVerified(t *testing.T, email, password string) string {
	t.Helper()
	ctx := context.Background()

	_, err := e.users.Register(ctx, RegisterRequest{Name: "Ada", Email: email, Password: password})
	require.NoError(t, err)
	_, err = e.security.VerifyEmail(ctx, TokenRequest{Token: e.mailer.token(t)})
	require.NoError(t, err)

	var user *domain.User
	require.NoError(t, e.store.View(ctx, func(tx *store.Tx) error {
		var err error
		user, err = e.store.UserByEmail(tx, email)
		return err
	}))
	return user.ID
}

func TestRegister_DoesNotRevealExistingAccounts(t *testing.T) {
	env := setupAccountEnv(t)
	ctx := context.Background()
	req := RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "secret1"}

	first, err := env.users.Register(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "Verify your email address", env.mailer.last(t).Subject)

	req.Email = "ADA@example.com"
	second, err := env.users.Register(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "Registration attempt", env.mailer.last(t).Subject)

	var users []*domain.User
	require.NoError(t, env.store.View(ctx, func(tx *store.Tx) error {
		var err error
		users, err = env.store.ListUsers(tx)
		return err
	}))
	assert.Len(t, users, 1)
}

func TestRegister_Validation(t *testing.T) {
	env := setupAccountEnv(t)

	_, err := env.users.Register(context.Background(), RegisterRequest{Name: "A", Email: "ada@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = env.users.Register(context.Background(), RegisterRequest{Name: "Ada", Email: "nope", Password: "secret1"})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = env.users.Register(context.Background(), RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "1234"})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestLogin_RequiresVerification(t *testing.T) {
	env := setupAccountEnv(t)
	ctx := context.Background()

	_, err := env.users.Register(ctx, RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = env.auth.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	_, err = env.auth.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)

	_, err = env.auth.Login(ctx, LoginRequest{Email: "bob@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
}

func TestLoginRefreshLogout(t *testing.T) {
	env := setupAccountEnv(t)
	ctx := context.Background()
	userID := env.registerVerified(t, "ada@example.com", "secret1")

	login, err := env.auth.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, userID, login.User.ID)
	assert.Equal(t, "Bearer", login.TokenType)
	assert.Equal(t, 900, login.ExpiresIn)

	user, claims, err := env.auth.Authenticate(ctx, login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)
	assert.Equal(t, userID, claims.UserID)

	refreshed, err := env.auth.Refresh(ctx, RefreshRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The old refresh token was consumed.
	_, err = env.auth.Refresh(ctx, RefreshRequest{RefreshToken: login.RefreshToken})
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	require.NoError(t, env.auth.Logout(ctx, RefreshRequest{RefreshToken: refreshed.RefreshToken}))
	require.NoError(t, env.auth.Logout(ctx, RefreshRequest{RefreshToken: refreshed.RefreshToken}))

	_, err = env.auth.Refresh(ctx, RefreshRequest{RefreshToken: refreshed.RefreshToken})
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	_, _, err = env.auth.Authenticate(ctx, "v4.local.garbage")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}

func TestLogin_RotatesRefreshTokens(t *testing.T) {
	env := setupAccountEnv(t)
	ctx := context.Background()
	env.registerVerified(t, "ada@example.com", "secret1")

	first, err := env.auth.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = env.auth.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = env.auth.Refresh(ctx, RefreshRequest{RefreshToken: first.RefreshToken})
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}

func TestRefresh_ExpiredTokenIsDeleted(t *testing.T) {
	env := setupAccountEnv(t)
	ctx := context.Background()
	userID := env.registerVerified(t, "ada@example.com", "secret1")

	secret, err := auth.GenerateOpaqueToken()
	require.NoError(t, err)
	require.NoError(t, env.store.Update(ctx, func(tx *store.Tx) error {
		return env.store.Tokens.Create(tx, "tok-expired", &domain.Token{
			ID:        "tok-expired",
			UserID:    userID,
			Type:      domain.TokenRefresh,
			Hash:      auth.HashToken(secret),
			ExpiresAt: time.Now().Add(-time.Minute),
			CreatedAt: time.Now().Add(-time.Hour),
		})
	}))

	_, err = env.auth.Refresh(ctx, RefreshRequest{RefreshToken: secret})
	assert.ErrorIs(t, err, domainerrors.ErrTokenExpired)

	_, err = env.auth.Refresh(ctx, RefreshRequest{RefreshToken: secret})
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}

func TestVerifyEmail_InvalidToken(t *testing.T) {
	env := setupAccountEnv(t)

	_, err := env.security.VerifyEmail(context.Background(), TokenRequest{Token: "nope"})
	require.ErrorIs(t, err, domainerrors.ErrUnauthorized)
	assert.Equal(t, "invalid or expired token", err.Error())
}

func TestResendVerification(t *testing.T) {
	env := setupAccountEnv(t)
	ctx := context.Background()

	msg, err := env.security.ResendVerification(ctx, EmailRequest{Email: "ghost@example.com"})
	require.NoError(t, err)
	assert.Equal(t, MsgVerificationSent, msg)
	assert.Empty(t, env.mailer.sent)

	_, err = env.users.Register(ctx, RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	stale := env.mailer.token(t)

	_, err = env.security.ResendVerification(ctx, EmailRequest{Email: "ada@example.com"})
	require.NoError(t, err)
	fresh := env.mailer.token(t)
	assert.NotEqual(t, stale, fresh)

	_, err = env.security.VerifyEmail(ctx, TokenRequest{Token: stale})
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
	_, err = env.security.VerifyEmail(ctx, TokenRequest{Token: fresh})
	require.NoError(t, err)

	_, err = env.security.ResendVerification(ctx, EmailRequest{Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Welcome", env.mailer.last(t).Subject)
}

func TestPasswordReset(t *testing.T) {
	env := setupAccountEnv(t)
	ctx := context.Background()
	env.registerVerified(t, "ada@example.com", "secret1")

	login, err := env.auth.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)

	msg, err := env.security.RequestPasswordReset(ctx, EmailRequest{Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, MsgResetSent, msg)
	assert.Equal(t, "Password reset", env.mailer.last(t).Subject)
	resetToken := env.mailer.token(t)

	_, err = env.security.ResetPassword(ctx, ResetPasswordRequest{Token: resetToken, Password: "newsecret"})
	require.NoError(t, err)

	// Single use.
	_, err = env.security.ResetPassword(ctx, ResetPasswordRequest{Token: resetToken, Password: "another"})
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	// Existing sessions are revoked.
	_, err = env.auth.Refresh(ctx, RefreshRequest{RefreshToken: login.RefreshToken})
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	_, err = env.auth.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
	_, err = env.auth.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "newsecret"})
	assert.NoError(t, err)
}

func TestPasswordReset_UnverifiedIsAskedToVerify(t *testing.T) {
	env := setupAccountEnv(t)
	ctx := context.Background()

	_, err := env.users.Register(ctx, RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)

	msg, err := env.security.RequestPasswordReset(ctx, EmailRequest{Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, MsgResetSent, msg)
	assert.NotContains(t, env.mailer.last(t).HTML, "<b>")
}

func TestUserService_ListIsAdminOnly(t *testing.T) {
	env := setupAccountEnv(t)
	ctx := context.Background()
	userID := env.registerVerified(t, "ada@example.com", "secret1")

	_, err := env.users.List(ctx, userID)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	require.NoError(t, env.store.Update(ctx, func(tx *store.Tx) error {
		u, err := env.store.Users.Get(tx, userID)
		if err != nil {
			return err
		}
		u.IsAdmin = true
		return env.store.Users.Put(tx, u.ID, u)
	}))

	users, err := env.users.List(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	me, err := env.users.Me(ctx, userID)
	require.NoError(t, err)
	assert.True(t, me.IsVerified)
}

func TestUserService_EnsureAdmin(t *testing.T) {
	env := setupAccountEnv(t)
	ctx := context.Background()

	admin, created, err := env.users.EnsureAdmin(ctx, RegisterRequest{Name: "Root", Email: "root@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, admin.IsAdmin)
	assert.True(t, admin.IsVerified)

	_, err = env.auth.Login(ctx, LoginRequest{Email: "root@example.com", Password: "secret1"})
	require.NoError(t, err)

	// An existing account is promoted and keeps its password.
	userID := env.registerVerified(t, "ada@example.com", "secret1")
	promoted, created, err := env.users.EnsureAdmin(ctx, RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "other-pass"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, userID, promoted.ID)

	_, err = env.auth.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)

	users, err := env.users.List(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
