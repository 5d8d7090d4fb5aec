package store

import (
	"github.com/tagboxapp/tagbox-server/internal/domain"
)

// initTokens initializes the Tokens entity on the store.
// Tokens are found by the hash of their secret, never by the secret itself.
func (s *Store) initTokens() {
	s.Tokens = NewEntity[domain.Token]("token:").
		WithIndex("hash", func(t *domain.Token) []string {
			return []string{t.Hash}
		}).
		WithMultiIndex("user", func(t *domain.Token) []string {
			return []string{t.UserID}
		})
}

// TokenByHash returns the token whose secret hashes to hash.
func (s *Store) TokenByHash(tx *Tx, hash string) (*domain.Token, error) {
	return s.Tokens.GetByIndex(tx, "hash", hash)
}

// DeleteUserTokens removes the user's tokens of the given type and reports how many went.
func (s *Store) DeleteUserTokens(tx *Tx, userID string, typ domain.TokenType) (int, error) {
	tokens, err := s.Tokens.ListByIndex(tx, "user", userID)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, t := range tokens {
		if t.Type != typ {
			continue
		}
		if err := s.Tokens.Delete(tx, t.ID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
