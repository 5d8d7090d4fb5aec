package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tagboxapp/tagbox-server/internal/domain"
	domainerrors "github.com/tagboxapp/tagbox-server/internal/errors"
	"github.com/tagboxapp/tagbox-server/internal/id"
	"github.com/tagboxapp/tagbox-server/internal/store"
	"github.com/tagboxapp/tagbox-server/internal/validation"
)

// maxUpsertAttempts bounds how often TagItem reruns its unit of work after
// losing a race to create the same (owner, name) tag.
const maxUpsertAttempts = 3

// TagItemRequest is the body of a tag-an-item call.
type TagItemRequest struct {
	Name string `json:"name" validate:"notblank,max=20"`
}

// TaggingService keeps items and tags consistent with each other.
// Every operation is one unit of work: both sides change together or not at all.
type TaggingService struct {
	store     *store.Store
	search    *SearchService
	validator *validation.Validator
	logger    *slog.Logger

	// afterUpsert runs inside TagItem's unit of work between the tag upsert
	// and the item update. Tests use it to inject failures.
	afterUpsert func() error
}

// NewTaggingService creates a new tagging service.
func NewTaggingService(st *store.Store, search *SearchService, logger *slog.Logger) *TaggingService {
	return &TaggingService{
		store:     st,
		search:    search,
		validator: validation.New(),
		logger:    logger,
	}
}

// TagItem attaches the owner's tag called tagName to the item, creating the tag
// if the owner has none by that name. Tagging twice is a no-op.
func (s *TaggingService) TagItem(ctx context.Context, ownerID, itemID, tagName string) (*domain.TaggedItem, error) {
	req := TagItemRequest{Name: domain.NormalizeTagName(tagName)}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if !id.Valid(id.PrefixItem, itemID) {
		return nil, domainerrors.NotFound("item not found")
	}

	var (
		result  *domain.TaggedItem
		created bool
		err     error
	)
	for attempt := 1; attempt <= maxUpsertAttempts; attempt++ {
		err = s.store.Update(ctx, func(tx *store.Tx) error {
			tag, isNew, err := s.resolveTag(tx, ownerID, req.Name, itemID)
			if err != nil {
				return err
			}
			created = isNew

			if s.afterUpsert != nil {
				if err := s.afterUpsert(); err != nil {
					return err
				}
			}

			item, err := s.store.Items.GetOwned(tx, ownerID, itemID)
			if err != nil {
				return notFound(err, "item not found")
			}
			if item.Tags.Add(tag.ID) {
				item.Touch()
				if err := s.store.Items.Put(tx, item.ID, item); err != nil {
					return err
				}
			}

			result, err = s.expandTags(tx, item)
			return err
		})
		if !errors.Is(err, store.ErrConflict) {
			break
		}
		s.logger.Debug("tag upsert conflict, retrying",
			"owner_id", ownerID,
			"tag_name", req.Name,
			"attempt", attempt,
		)
	}
	if err != nil {
		return nil, translateErr(err, "item not found")
	}

	if created {
		s.logger.Info("tag created", "owner_id", ownerID, "tag_name", req.Name)
	}
	s.logger.Info("item tagged", "item_id", itemID, "tag_name", req.Name)

	s.search.Reindex(ctx, itemID)
	return result, nil
}

// resolveTag finds the owner's tag by exact name or creates it, with itemID
// added to its items either way.
func (s *TaggingService) resolveTag(tx *store.Tx, ownerID, name, itemID string) (*domain.Tag, bool, error) {
	return s.store.UpsertTag(tx, ownerID, name, itemID)
}

// UntagItem detaches a tag from an item. A tag left with no items is deleted.
func (s *TaggingService) UntagItem(ctx context.Context, ownerID, itemID, tagID string) error {
	if !id.Valid(id.PrefixItem, itemID) {
		return domainerrors.NotFound("item not found")
	}
	if !id.Valid(id.PrefixTag, tagID) {
		return domainerrors.NotFound("tag not found")
	}

	var swept bool
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		item, err := s.store.Items.GetOwned(tx, ownerID, itemID)
		if err != nil {
			return notFound(err, "item not found")
		}
		if item.Tags.Remove(tagID) {
			item.Touch()
			if err := s.store.Items.Put(tx, item.ID, item); err != nil {
				return err
			}
		}

		tag, err := s.store.Tags.GetOwned(tx, ownerID, tagID)
		if err != nil {
			return notFound(err, "tag not found")
		}
		tag.Items.Remove(itemID)

		swept, err = s.sweepOrphan(tx, tag)
		return err
	})
	if err != nil {
		return translateErr(err, "tag not found")
	}

	s.logger.Info("item untagged", "item_id", itemID, "tag_id", tagID)
	if swept {
		s.logger.Info("orphan tag removed", "tag_id", tagID)
	}

	s.search.Reindex(ctx, itemID)
	return nil
}

// sweepOrphan persists tag, or deletes it when no item references it any more.
func (s *TaggingService) sweepOrphan(tx *store.Tx, tag *domain.Tag) (bool, error) {
	if tag.IsOrphan() {
		return true, s.store.Tags.Delete(tx, tag.ID)
	}
	tag.Touch()
	return false, s.store.Tags.Put(tx, tag.ID, tag)
}

// DeleteTag removes the owner's tag and strips it from every one of the
// owner's items. Other owners' items are left alone.
func (s *TaggingService) DeleteTag(ctx context.Context, ownerID, tagID string) error {
	if !id.Valid(id.PrefixTag, tagID) {
		return domainerrors.NotFound("tag not found")
	}

	var affected []string
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		affected = affected[:0]

		tag, err := s.store.Tags.GetOwned(tx, ownerID, tagID)
		if err != nil {
			return notFound(err, "tag not found")
		}
		if err := s.store.Tags.Delete(tx, tag.ID); err != nil {
			return err
		}

		itemIDs, err := s.store.ItemIDsByTag(tx, tagID)
		if err != nil {
			return err
		}
		for _, itemID := range itemIDs {
			item, err := s.store.Items.Get(tx, itemID)
			if errors.Is(err, store.ErrNotFound) {
				s.logger.Error("tag index references missing item", "tag_id", tagID, "item_id", itemID)
				return domainerrors.Internal("internal error")
			}
			if err != nil {
				return err
			}
			if item.OwnerID != ownerID {
				continue
			}
			if !item.Tags.Remove(tagID) {
				continue
			}
			item.Touch()
			if err := s.store.Items.Put(tx, item.ID, item); err != nil {
				return err
			}
			affected = append(affected, item.ID)
		}
		return nil
	})
	if err != nil {
		return translateErr(err, "tag not found")
	}

	s.logger.Info("tag deleted", "tag_id", tagID, "items_updated", len(affected))

	s.search.Reindex(ctx, affected...)
	return nil
}

// expandTags resolves an item's tag IDs to {id, name} pairs within tx.
// A dangling reference means the item/tag invariant is broken.
func (s *TaggingService) expandTags(tx *store.Tx, item *domain.Item) (*domain.TaggedItem, error) {
	return expandTags(tx, s.store, s.logger, item)
}

func expandTags(tx *store.Tx, st *store.Store, logger *slog.Logger, item *domain.Item) (*domain.TaggedItem, error) {
	refs := make([]domain.TagRef, 0, item.Tags.Len())
	for _, tagID := range item.Tags {
		tag, err := st.Tags.Get(tx, tagID)
		if errors.Is(err, store.ErrNotFound) {
			logger.Error("item references missing tag", "item_id", item.ID, "tag_id", tagID)
			return nil, domainerrors.Internal("internal error")
		}
		if err != nil {
			return nil, err
		}
		refs = append(refs, tag.Ref())
	}
	return &domain.TaggedItem{Item: item, TagRefs: refs}, nil
}
