package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/tagboxapp/tagbox-server/internal/config"
	"github.com/tagboxapp/tagbox-server/internal/logger"
	"github.com/tagboxapp/tagbox-server/internal/search"
	"github.com/tagboxapp/tagbox-server/internal/service"
)

// SearchIndexHandle wraps the search index. Like StoreHandle it is closed by main.
type SearchIndexHandle struct {
	*search.SearchIndex
}

// ProvideSearchIndex provides the Bleve search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewSearchIndex(search.Options{
		DataPath: cfg.Data.BasePath,
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount, "fresh", index.Fresh())

	return &SearchIndexHandle{SearchIndex: index}, nil
}

// ProvideSearchService provides the search service.
func ProvideSearchService(i do.Injector) (*service.SearchService, error) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSearchService(indexHandle.SearchIndex, storeHandle.Store, log.Logger), nil
}

// TriggerSearchRebuildIfNeeded fills a freshly created index from the store
// in the background. Should be called after all services are wired.
func TriggerSearchRebuildIfNeeded(i do.Injector) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	if !indexHandle.Fresh() {
		return
	}

	searchService := do.MustInvoke[*service.SearchService](i)
	log := do.MustInvoke[*logger.Logger](i)

	log.Info("Search index is new, rebuilding from store")

	go func() {
		n, err := searchService.RebuildAll(context.Background())
		if err != nil {
			log.Error("Search index rebuild failed", "error", err)
			return
		}
		log.Info("Search index rebuild completed", "items", n)
	}()
}
