package service

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/tagboxapp/tagbox-server/internal/domain"
	domainerrors "github.com/tagboxapp/tagbox-server/internal/errors"
	"github.com/tagboxapp/tagbox-server/internal/id"
	"github.com/tagboxapp/tagbox-server/internal/search"
	"github.com/tagboxapp/tagbox-server/internal/store"
	"github.com/tagboxapp/tagbox-server/internal/validation"
)

// Item listing defaults.
const (
	DefaultPageSize = 10
	MaxPageSize     = 25
)

// CreateItemRequest is the input for creating an item.
type CreateItemRequest struct {
	Title       string  `json:"title" validate:"notblank,max=50"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
	ImageURL    *string `json:"image_url,omitempty" validate:"omitempty,http_url"`
}

// UpdateItemRequest is a partial update. Nil fields are left as they are;
// an empty description clears it. The image URL can be replaced, not removed.
type UpdateItemRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,notblank,max=50"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
	ImageURL    *string `json:"image_url,omitempty" validate:"omitempty,http_url"`
}

// ItemPage is one page of an owner's items, newest first.
type ItemPage struct {
	Items      []*domain.TaggedItem
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

// ItemService manages an owner's items.
type ItemService struct {
	store     *store.Store
	tagging   *TaggingService
	search    *SearchService
	validator *validation.Validator
	logger    *slog.Logger
}

// NewItemService creates a new item service.
func NewItemService(st *store.Store, tagging *TaggingService, search *SearchService, logger *slog.Logger) *ItemService {
	return &ItemService{
		store:     st,
		tagging:   tagging,
		search:    search,
		validator: validation.New(),
		logger:    logger,
	}
}

// Create stores a new untagged item for ownerID.
func (s *ItemService) Create(ctx context.Context, ownerID string, req CreateItemRequest) (*domain.TaggedItem, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	itemID, err := id.Generate(id.PrefixItem)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "internal error")
	}

	item := &domain.Item{
		Record:   domain.Record{ID: itemID},
		OwnerID:  ownerID,
		Title:    strings.TrimSpace(req.Title),
		ImageURL: req.ImageURL,
		Tags:     domain.IDSet{},
	}
	if req.Description != nil {
		item.SetDescription(*req.Description)
	}
	item.InitTimestamps()

	if err := s.store.Update(ctx, func(tx *store.Tx) error {
		return s.store.Items.Create(tx, itemID, item)
	}); err != nil {
		return nil, translateErr(err, "item not found")
	}

	s.logger.Info("item created", "item_id", itemID, "owner_id", ownerID)
	s.search.Reindex(ctx, itemID)

	return &domain.TaggedItem{Item: item, TagRefs: []domain.TagRef{}}, nil
}

// Get returns one of the owner's items with its tags expanded.
func (s *ItemService) Get(ctx context.Context, ownerID, itemID string) (*domain.TaggedItem, error) {
	if !id.Valid(id.PrefixItem, itemID) {
		return nil, domainerrors.NotFound("item not found")
	}

	var result *domain.TaggedItem
	err := s.store.View(ctx, func(tx *store.Tx) error {
		item, err := s.store.Items.GetOwned(tx, ownerID, itemID)
		if err != nil {
			return notFound(err, "item not found")
		}
		result, err = expandTags(tx, s.store, s.logger, item)
		return err
	})
	if err != nil {
		return nil, translateErr(err, "item not found")
	}
	return result, nil
}

// List returns a page of the owner's items. page and limit default when
// zero; limit is capped at MaxPageSize. A page past the end is NotFound,
// except that an owner with no items gets an empty first page.
func (s *ItemService) List(ctx context.Context, ownerID string, page, limit int) (*ItemPage, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)

	var result *ItemPage
	err := s.store.View(ctx, func(tx *store.Tx) error {
		items, err := s.store.ItemsByOwner(tx, ownerID)
		if err != nil {
			return err
		}

		slices.SortFunc(items, func(a, b *domain.Item) int {
			if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})

		total := len(items)
		totalPages := (total + limit - 1) / limit
		// An empty list still has a page 1.
		if page > max(totalPages, 1) {
			return domainerrors.NotFound("page not found")
		}

		start := (page - 1) * limit
		end := min(start+limit, total)

		result = &ItemPage{
			Items:      make([]*domain.TaggedItem, 0, end-start),
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
		}
		for _, item := range items[start:end] {
			tagged, err := expandTags(tx, s.store, s.logger, item)
			if err != nil {
				return err
			}
			result.Items = append(result.Items, tagged)
		}
		return nil
	})
	if err != nil {
		return nil, translateErr(err, "page not found")
	}
	return result, nil
}

// Update applies a partial update to one of the owner's items.
func (s *ItemService) Update(ctx context.Context, ownerID, itemID string, req UpdateItemRequest) (*domain.TaggedItem, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{"title": "is required"})
	}
	if !id.Valid(id.PrefixItem, itemID) {
		return nil, domainerrors.NotFound("item not found")
	}

	var result *domain.TaggedItem
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		item, err := s.store.Items.GetOwned(tx, ownerID, itemID)
		if err != nil {
			return notFound(err, "item not found")
		}

		if req.Title != nil {
			item.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			item.SetDescription(*req.Description)
		}
		if req.ImageURL != nil {
			item.ImageURL = req.ImageURL
		}
		item.Touch()

		if err := s.store.Items.Put(tx, item.ID, item); err != nil {
			return err
		}
		result, err = expandTags(tx, s.store, s.logger, item)
		return err
	})
	if err != nil {
		return nil, translateErr(err, "item not found")
	}

	s.logger.Info("item updated", "item_id", itemID)
	s.search.Reindex(ctx, itemID)
	return result, nil
}

// Delete removes one of the owner's items and takes it out of every tag it
// carried. Tags left without items are swept.
func (s *ItemService) Delete(ctx context.Context, ownerID, itemID string) error {
	if !id.Valid(id.PrefixItem, itemID) {
		return domainerrors.NotFound("item not found")
	}

	var swept int
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		swept = 0

		item, err := s.store.Items.GetOwned(tx, ownerID, itemID)
		if err != nil {
			return notFound(err, "item not found")
		}
		if err := s.store.Items.Delete(tx, item.ID); err != nil {
			return err
		}

		for _, tagID := range item.Tags {
			tag, err := s.store.Tags.GetOwned(tx, ownerID, tagID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					s.logger.Error("item references missing tag", "item_id", itemID, "tag_id", tagID)
					return domainerrors.Internal("internal error")
				}
				return err
			}
			tag.Items.Remove(itemID)

			deleted, err := s.tagging.sweepOrphan(tx, tag)
			if err != nil {
				return err
			}
			if deleted {
				swept++
			}
		}
		return nil
	})
	if err != nil {
		return translateErr(err, "item not found")
	}

	s.logger.Info("item deleted", "item_id", itemID, "tags_swept", swept)
	s.search.Remove(itemID)
	return nil
}

// Search runs a full-text search over the owner's items.
func (s *ItemService) Search(ctx context.Context, ownerID, q string, limit int) (*ItemSearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, domainerrors.Validation("query is required")
	}
	if limit <= 0 {
		limit = search.DefaultLimit
	}
	return s.search.SearchItems(ctx, ownerID, q, min(limit, search.MaxLimit))
}
