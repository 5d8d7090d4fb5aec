package api

import (
	"github.com/tagboxapp/tagbox-server/internal/service"
)

// Services groups the business logic services used by the API server.
type Services struct {
	Auth     *service.AuthService
	User     *service.UserService
	Security *service.SecurityService
	Item     *service.ItemService
	Tag      *service.TagService
	Tagging  *service.TaggingService
	Search   *service.SearchService
}
