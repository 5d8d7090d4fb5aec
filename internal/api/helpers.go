package api

import (
	"context"
	"strings"

	"github.com/tagboxapp/tagbox-server/internal/domain"
	domainerrors "github.com/tagboxapp/tagbox-server/internal/errors"
)

// authenticateRequest validates the Authorization header and returns the user.
// The returned user's ID is the owner for every item and tag operation.
func (s *Server) authenticateRequest(ctx context.Context, authHeader string) (*domain.User, error) {
	if authHeader == "" {
		return nil, domainerrors.Unauthorized("missing authorization header")
	}

	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || scheme != "Bearer" || token == "" {
		return nil, domainerrors.Unauthorized("invalid authorization header format")
	}

	user, _, err := s.services.Auth.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	return user, nil
}
