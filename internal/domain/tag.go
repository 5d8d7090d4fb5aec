package domain

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MaxTagNameLength is the longest tag name accepted, counted in characters.
const MaxTagNameLength = 20

// Tag is a label scoped to one owner. Names are unique per owner.
// A tag with no items is an orphan and is never kept.
type Tag struct {
	Record
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
	Items   IDSet  `json:"items"`
}

// IsOrphan reports whether no item references the tag.
func (t *Tag) IsOrphan() bool {
	return t.Items.Len() == 0
}

// Ref returns the {id, name} form used when expanding an item's tags.
func (t *Tag) Ref() TagRef {
	return TagRef{ID: t.ID, Name: t.Name}
}

// NormalizeTagName trims surrounding space and composes the name to NFC,
// so visually identical names collide on the (owner, name) constraint.
func NormalizeTagName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
