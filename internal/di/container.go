// Package di provides dependency injection configuration for the Tagbox server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/tagboxapp/tagbox-server/internal/auth"
	"github.com/tagboxapp/tagbox-server/internal/config"
	"github.com/tagboxapp/tagbox-server/internal/di/providers"
	"github.com/tagboxapp/tagbox-server/internal/logger"
	"github.com/tagboxapp/tagbox-server/internal/mail"
	"github.com/tagboxapp/tagbox-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)

	// Database layer
	do.Provide(injector, providers.ProvideStore)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideSearchService)

	// Auth and mail
	do.Provide(injector, providers.ProvideTokenService)
	do.Provide(injector, providers.ProvideMailer)
	do.Provide(injector, providers.ProvideNotifier)

	// Business services
	do.Provide(injector, providers.ProvideAuthService)
	do.Provide(injector, providers.ProvideUserService)
	do.Provide(injector, providers.ProvideSecurityService)
	do.Provide(injector, providers.ProvideTaggingService)
	do.Provide(injector, providers.ProvideItemService)
	do.Provide(injector, providers.ProvideTagService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	// Invoke core services to trigger initialization
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*service.SearchService](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)
	_ = do.MustInvoke[mail.Mailer](injector)
	_ = do.MustInvoke[*service.Notifier](injector)

	// Business services
	_ = do.MustInvoke[*service.AuthService](injector)
	_ = do.MustInvoke[*service.UserService](injector)
	_ = do.MustInvoke[*service.SecurityService](injector)
	_ = do.MustInvoke[*service.TaggingService](injector)
	_ = do.MustInvoke[*service.ItemService](injector)
	_ = do.MustInvoke[*service.TagService](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	// Fill a new search index from the store
	providers.TriggerSearchRebuildIfNeeded(injector)

	return nil
}
