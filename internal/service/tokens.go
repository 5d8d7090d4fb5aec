package service

import (
	"time"

	"github.com/tagboxapp/tagbox-server/internal/auth"
	"github.com/tagboxapp/tagbox-server/internal/domain"
	"github.com/tagboxapp/tagbox-server/internal/id"
	"github.com/tagboxapp/tagbox-server/internal/store"
)

// issueToken stores a new single-purpose token for userID and returns the
// plaintext secret. Only its hash is persisted.
func issueToken(tx *store.Tx, st *store.Store, userID string, typ domain.TokenType, ttl time.Duration) (string, error) {
	secret, err := auth.GenerateOpaqueToken()
	if err != nil {
		return "", err
	}
	tokenID, err := id.Generate(id.PrefixToken)
	if err != nil {
		return "", err
	}

	now := time.Now()
	t := &domain.Token{
		ID:        tokenID,
		UserID:    userID,
		Type:      typ,
		Hash:      auth.HashToken(secret),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := st.Tokens.Create(tx, tokenID, t); err != nil {
		return "", err
	}
	return secret, nil
}

// findToken resolves a plaintext secret to its stored token of type typ.
// A token of another type is reported as missing.
func findToken(tx *store.Tx, st *store.Store, secret string, typ domain.TokenType) (*domain.Token, error) {
	t, err := st.TokenByHash(tx, auth.HashToken(secret))
	if err != nil {
		return nil, err
	}
	if t.Type != typ {
		return nil, store.ErrNotFound
	}
	return t, nil
}
