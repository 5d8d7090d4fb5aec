package store

import (
	"github.com/tagboxapp/tagbox-server/internal/domain"
)

// initUsers initializes the Users entity on the store.
// Uses case-insensitive email indexing via domain.NormalizeEmail.
func (s *Store) initUsers() {
	s.Users = NewEntity[domain.User]("user:").
		WithIndexTransform("email",
			func(u *domain.User) []string {
				return []string{domain.NormalizeEmail(u.Email)}
			},
			domain.NormalizeEmail, // Transform lookups to be case-insensitive
		)
}

// UserByEmail looks a user up by email, ignoring case and surrounding space.
func (s *Store) UserByEmail(tx *Tx, email string) (*domain.User, error) {
	return s.Users.GetByIndex(tx, "email", email)
}

// ListUsers returns all users.
func (s *Store) ListUsers(tx *Tx) ([]*domain.User, error) {
	var users []*domain.User
	for u, err := range s.Users.List(tx) {
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}
