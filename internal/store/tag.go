package store

import (
	"errors"
	"fmt"

	"github.com/tagboxapp/tagbox-server/internal/domain"
	"github.com/tagboxapp/tagbox-server/internal/id"
)

// Tag index names.
const (
	tagOwnerNameIndex = "owner_name" // tag:idx:owner_name:{owner}:{name} → tagID (unique)
	tagOwnerIndex     = "owner"      // tag:idx:owner:{owner}:{tagID} → empty
)

// initTags initializes the Tags entity on the store.
// The owner_name index is the (owner, name) uniqueness constraint.
func (s *Store) initTags() {
	s.Tags = NewEntity[domain.Tag]("tag:").
		WithOwner(func(t *domain.Tag) string { return t.OwnerID }).
		WithIndex(tagOwnerNameIndex, func(t *domain.Tag) []string {
			return []string{t.OwnerID + ":" + t.Name}
		}).
		WithMultiIndex(tagOwnerIndex, func(t *domain.Tag) []string {
			return []string{t.OwnerID}
		})
}

// TagByName returns the owner's tag with exactly this name.
func (s *Store) TagByName(tx *Tx, ownerID, name string) (*domain.Tag, error) {
	return s.Tags.GetByIndex(tx, tagOwnerNameIndex, ownerID+":"+name)
}

// TagsByOwner returns every tag the owner has, in key order.
func (s *Store) TagsByOwner(tx *Tx, ownerID string) ([]*domain.Tag, error) {
	return s.Tags.ListByIndex(tx, tagOwnerIndex, ownerID)
}

// UpsertTag finds the owner's tag named name, or creates it, and adds itemID
// to its items. The name of an existing tag is never rewritten.
// Returns (tag, created, error) where created is true if a new tag was made.
//
// Two transactions that both create the same (owner, name) write the same
// unique index key; the later commit fails with ErrConflict.
func (s *Store) UpsertTag(tx *Tx, ownerID, name, itemID string) (*domain.Tag, bool, error) {
	existing, err := s.TagByName(tx, ownerID, name)
	switch {
	case err == nil:
		if existing.Items.Add(itemID) {
			existing.Touch()
			if err := s.Tags.Put(tx, existing.ID, existing); err != nil {
				return nil, false, fmt.Errorf("add item to tag %s: %w", existing.ID, err)
			}
		}
		return existing, false, nil
	case !errors.Is(err, ErrNotFound):
		return nil, false, err
	}

	tagID, err := id.Generate(id.PrefixTag)
	if err != nil {
		return nil, false, err
	}

	t := &domain.Tag{
		Record:  domain.Record{ID: tagID},
		OwnerID: ownerID,
		Name:    name,
		Items:   domain.IDSet{itemID},
	}
	t.InitTimestamps()

	if err := s.Tags.Create(tx, tagID, t); err != nil {
		return nil, false, fmt.Errorf("create tag %q: %w", name, err)
	}
	return t, true, nil
}
