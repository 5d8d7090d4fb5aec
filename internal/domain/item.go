package domain

import "strings"

// Item limits.
const (
	MaxItemTitleLength       = 50
	MaxItemDescriptionLength = 1000
)

// Item is a user-owned entry that can carry any number of the owner's tags.
type Item struct {
	Record
	OwnerID     string  `json:"owner_id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
	Tags        IDSet   `json:"tags"`
}

// SetDescription trims desc and stores it, clearing the field when nothing is left.
func (i *Item) SetDescription(desc string) {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		i.Description = nil
		return
	}
	i.Description = &desc
}

// TagRef is the {id, name} pair an item's tags expand to in responses.
type TagRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TaggedItem is an item together with its expanded tags.
type TaggedItem struct {
	*Item
	TagRefs []TagRef
}
