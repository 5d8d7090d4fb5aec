package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tagboxapp/tagbox-server/internal/domain"
	domainerrors "github.com/tagboxapp/tagbox-server/internal/errors"
	"github.com/tagboxapp/tagbox-server/internal/search"
	"github.com/tagboxapp/tagbox-server/internal/store"
)

// SearchService bridges the search index and the store. It keeps item
// documents in step with committed changes and resolves hits back to items.
// Index maintenance runs after commit and never fails the request.
// A nil *SearchService indexes nothing.
type SearchService struct {
	index  *search.SearchIndex
	store  *store.Store
	logger *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(index *search.SearchIndex, st *store.Store, logger *slog.Logger) *SearchService {
	return &SearchService{index: index, store: st, logger: logger}
}

// Reindex re-reads the given items and replaces their documents.
// Items that no longer exist are removed from the index.
func (s *SearchService) Reindex(ctx context.Context, itemIDs ...string) {
	if s == nil || len(itemIDs) == 0 {
		return
	}

	var docs []*search.ItemDocument
	var gone []string
	err := s.store.View(ctx, func(tx *store.Tx) error {
		for _, itemID := range itemIDs {
			item, err := s.store.Items.Get(tx, itemID)
			if errors.Is(err, store.ErrNotFound) {
				gone = append(gone, itemID)
				continue
			}
			if err != nil {
				return err
			}
			doc, err := s.document(tx, item)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("failed to load items for search index", "item_ids", itemIDs, "error", err)
		return
	}

	if err := s.index.IndexItems(docs); err != nil {
		s.logger.Warn("failed to index items", "item_ids", itemIDs, "error", err)
	}
	for _, itemID := range gone {
		s.Remove(itemID)
	}
}

// Remove drops an item's document.
func (s *SearchService) Remove(itemID string) {
	if s == nil {
		return
	}
	if err := s.index.DeleteItem(itemID); err != nil {
		s.logger.Warn("failed to remove item from search index", "item_id", itemID, "error", err)
	}
}

// DocumentCount reports how many items are indexed.
func (s *SearchService) DocumentCount() (uint64, error) {
	return s.index.DocumentCount()
}

// RebuildAll indexes every stored item. Used when the index was created empty.
func (s *SearchService) RebuildAll(ctx context.Context) (int, error) {
	var docs []*search.ItemDocument
	err := s.store.View(ctx, func(tx *store.Tx) error {
		for item, err := range s.store.Items.List(tx) {
			if err != nil {
				return err
			}
			doc, err := s.document(tx, item)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := s.index.IndexItems(docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (s *SearchService) document(tx *store.Tx, item *domain.Item) (*search.ItemDocument, error) {
	names := make([]string, 0, item.Tags.Len())
	for _, tagID := range item.Tags {
		tag, err := s.store.Tags.Get(tx, tagID)
		if errors.Is(err, store.ErrNotFound) {
			// Reported by the request path; the document just omits it.
			continue
		}
		if err != nil {
			return nil, err
		}
		names = append(names, tag.Name)
	}
	return search.ItemToDocument(item, names), nil
}

// ItemHit is a search hit resolved to the owner's current item.
type ItemHit struct {
	Item       *domain.TaggedItem
	Score      float64
	Highlights map[string]string
}

// ItemSearchResult is the outcome of an item search.
type ItemSearchResult struct {
	Query  string
	Total  uint64
	TookMs int64
	Hits   []ItemHit
}

// SearchItems queries the owner's items. Hits are re-read with the owner
// guard, and hits whose item has gone since it was indexed are dropped.
func (s *SearchService) SearchItems(ctx context.Context, ownerID, q string, limit int) (*ItemSearchResult, error) {
	out := &ItemSearchResult{Query: q, Hits: []ItemHit{}}
	if s == nil {
		return out, nil
	}

	res, err := s.index.Search(ctx, search.SearchParams{OwnerID: ownerID, Query: q, Limit: limit})
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "search failed")
	}
	out.Total = res.Total
	out.TookMs = res.TookMs

	err = s.store.View(ctx, func(tx *store.Tx) error {
		for _, hit := range res.Hits {
			item, err := s.store.Items.GetOwned(tx, ownerID, hit.ID)
			if errors.Is(err, store.ErrNotFound) {
				s.logger.Debug("dropping stale search hit", "item_id", hit.ID)
				continue
			}
			if err != nil {
				return err
			}
			tagged, err := expandTags(tx, s.store, s.logger, item)
			if err != nil {
				return err
			}
			out.Hits = append(out.Hits, ItemHit{Item: tagged, Score: hit.Score, Highlights: hit.Highlights})
		}
		return nil
	})
	if err != nil {
		return nil, translateErr(err, "item not found")
	}
	return out, nil
}
