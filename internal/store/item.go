package store

import (
	"slices"

	"github.com/tagboxapp/tagbox-server/internal/domain"
)

// Item index names.
const (
	itemOwnerIndex = "owner" // item:idx:owner:{owner}:{itemID} → empty
	itemTagIndex   = "tag"   // item:idx:tag:{tagID}:{itemID} → empty
)

// initItems initializes the Items entity on the store.
// The tag index lets a tag's removal find every item that references it.
func (s *Store) initItems() {
	s.Items = NewEntity[domain.Item]("item:").
		WithOwner(func(i *domain.Item) string { return i.OwnerID }).
		WithMultiIndex(itemOwnerIndex, func(i *domain.Item) []string {
			return []string{i.OwnerID}
		}).
		WithMultiIndex(itemTagIndex, func(i *domain.Item) []string {
			return slices.Clone(i.Tags)
		})
}

// ItemsByOwner returns every item the owner has, in key order.
func (s *Store) ItemsByOwner(tx *Tx, ownerID string) ([]*domain.Item, error) {
	return s.Items.ListByIndex(tx, itemOwnerIndex, ownerID)
}

// ItemIDsByTag returns the IDs of items whose tags contain tagID, whatever their owner.
func (s *Store) ItemIDsByTag(tx *Tx, tagID string) ([]string, error) {
	return s.Items.IDsByIndex(tx, itemTagIndex, tagID)
}
