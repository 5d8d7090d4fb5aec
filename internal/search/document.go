// Package search provides full-text search over items using Bleve.
// Every document carries its owner so queries never cross accounts.
package search

import (
	"github.com/tagboxapp/tagbox-server/internal/domain"
)

// ItemDocument is the indexed form of an item.
//
// Tag names are denormalized onto the item so a single query matches an item
// by the words in its title, its description or any of its tags.
type ItemDocument struct {
	ID          string   `json:"id"`
	OwnerID     string   `json:"owner_id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	CreatedAt int64 `json:"created_at"` // Unix millis
	UpdatedAt int64 `json:"updated_at"` // Unix millis
}

// ToMap converts the document to a map keyed by the mapping's field names.
func (d *ItemDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"owner_id":   d.OwnerID,
		"title":      d.Title,
		"created_at": d.CreatedAt,
		"updated_at": d.UpdatedAt,
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}
	return m
}

// ItemToDocument converts an item and the names of its tags.
// The caller resolves tag names so this package stays independent of the store.
func ItemToDocument(item *domain.Item, tagNames []string) *ItemDocument {
	doc := &ItemDocument{
		ID:        item.ID,
		OwnerID:   item.OwnerID,
		Title:     item.Title,
		Tags:      tagNames,
		CreatedAt: item.CreatedAt.UnixMilli(),
		UpdatedAt: item.UpdatedAt.UnixMilli(),
	}
	if item.Description != nil {
		doc.Description = *item.Description
	}
	return doc
}
