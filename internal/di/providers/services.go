package providers

import (
	"github.com/samber/do/v2"

	"github.com/tagboxapp/tagbox-server/internal/auth"
	"github.com/tagboxapp/tagbox-server/internal/config"
	"github.com/tagboxapp/tagbox-server/internal/logger"
	"github.com/tagboxapp/tagbox-server/internal/service"
)

// ProvideAuthService provides the authentication service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuthService(storeHandle.Store, tokenService, log.Logger), nil
}

// ProvideUserService provides the registration and account service.
func ProvideUserService(i do.Injector) (*service.UserService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	notifier := do.MustInvoke[*service.Notifier](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewUserService(storeHandle.Store, notifier, cfg.Auth.EmailTokenDuration, log.Logger), nil
}

// ProvideSecurityService provides the email verification and password reset service.
func ProvideSecurityService(i do.Injector) (*service.SecurityService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	notifier := do.MustInvoke[*service.Notifier](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSecurityService(storeHandle.Store, notifier, cfg.Auth.EmailTokenDuration, log.Logger), nil
}

// ProvideTaggingService provides the tag consistency service.
func ProvideTaggingService(i do.Injector) (*service.TaggingService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewTaggingService(storeHandle.Store, searchService, log.Logger), nil
}

// ProvideItemService provides the item service.
func ProvideItemService(i do.Injector) (*service.ItemService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tagging := do.MustInvoke[*service.TaggingService](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewItemService(storeHandle.Store, tagging, searchService, log.Logger), nil
}

// ProvideTagService provides the tag query service.
func ProvideTagService(i do.Injector) (*service.TagService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewTagService(storeHandle.Store, log.Logger), nil
}
