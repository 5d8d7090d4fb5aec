package service

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/tagboxapp/tagbox-server/internal/domain"
	domainerrors "github.com/tagboxapp/tagbox-server/internal/errors"
	"github.com/tagboxapp/tagbox-server/internal/id"
	"github.com/tagboxapp/tagbox-server/internal/store"
)

// TagSummary is a tag with the number of items carrying it.
type TagSummary struct {
	*domain.Tag
	ItemCount int
}

// TagService answers read queries over an owner's tags.
// Tags are created and removed only through TaggingService.
type TagService struct {
	store  *store.Store
	logger *slog.Logger
}

// NewTagService creates a new tag service.
func NewTagService(st *store.Store, logger *slog.Logger) *TagService {
	return &TagService{
		store:  st,
		logger: logger,
	}
}

// List returns the owner's tags ordered by name, ignoring case.
func (s *TagService) List(ctx context.Context, ownerID string) ([]TagSummary, error) {
	var tags []*domain.Tag
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		tags, err = s.store.TagsByOwner(tx, ownerID)
		return err
	})
	if err != nil {
		return nil, translateErr(err, "tag not found")
	}

	// A collator is not safe for concurrent use.
	c := collate.New(language.Und, collate.IgnoreCase)
	slices.SortFunc(tags, func(a, b *domain.Tag) int {
		if r := c.CompareString(a.Name, b.Name); r != 0 {
			return r
		}
		if r := cmp.Compare(a.Name, b.Name); r != 0 {
			return r
		}
		return cmp.Compare(a.ID, b.ID)
	})

	out := make([]TagSummary, 0, len(tags))
	for _, t := range tags {
		out = append(out, TagSummary{Tag: t, ItemCount: t.Items.Len()})
	}
	return out, nil
}

// Get returns one of the owner's tags.
func (s *TagService) Get(ctx context.Context, ownerID, tagID string) (*TagSummary, error) {
	if !id.Valid(id.PrefixTag, tagID) {
		return nil, domainerrors.NotFound("tag not found")
	}

	var tag *domain.Tag
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		tag, err = s.store.Tags.GetOwned(tx, ownerID, tagID)
		return err
	})
	if err != nil {
		return nil, translateErr(err, "tag not found")
	}
	return &TagSummary{Tag: tag, ItemCount: tag.Items.Len()}, nil
}
