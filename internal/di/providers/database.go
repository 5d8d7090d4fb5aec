package providers

import (
	"github.com/samber/do/v2"

	"github.com/tagboxapp/tagbox-server/internal/config"
	"github.com/tagboxapp/tagbox-server/internal/logger"
	"github.com/tagboxapp/tagbox-server/internal/store"
)

// StoreHandle wraps the store. It is closed by main after the HTTP server
// has drained, not by the injector.
type StoreHandle struct {
	*store.Store
}

// ProvideStore provides the database store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := cfg.Data.DBPath()
	db, err := store.New(dbPath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", dbPath)

	return &StoreHandle{Store: db}, nil
}
