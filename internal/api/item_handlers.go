package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tagboxapp/tagbox-server/internal/domain"
	"github.com/tagboxapp/tagbox-server/internal/service"
)

func (s *Server) registerItemRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listItems",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/items",
		Summary:     "List items",
		Description: "Returns a page of the current user's items, newest first",
		Tags:        []string{"Items"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListItems)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchItems",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/items/search",
		Summary:     "Search items",
		Description: "Full-text search over the current user's item titles, descriptions, and tag names",
		Tags:        []string{"Items"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSearchItems)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createItem",
		Method:        http.MethodPost,
		Path:          apiPrefix + "/items",
		Summary:       "Create item",
		Description:   "Creates an untagged item",
		Tags:          []string{"Items"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "getItem",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/items/{id}",
		Summary:     "Get item",
		Description: "Returns an item with its tags",
		Tags:        []string{"Items"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateItem",
		Method:      http.MethodPatch,
		Path:        apiPrefix + "/items/{id}",
		Summary:     "Update item",
		Description: "Updates the fields present in the body",
		Tags:        []string{"Items"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateItem)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteItem",
		Method:        http.MethodDelete,
		Path:          apiPrefix + "/items/{id}",
		Summary:       "Delete item",
		Description:   "Deletes an item and removes it from its tags. Tags left without items are deleted.",
		Tags:          []string{"Items"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "tagItem",
		Method:      http.MethodPost,
		Path:        apiPrefix + "/items/{id}/tags",
		Summary:     "Tag item",
		Description: "Adds a tag by name, creating the tag if the user has none with that name",
		Tags:        []string{"Items"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleTagItem)

	huma.Register(s.api, huma.Operation{
		OperationID:   "untagItem",
		Method:        http.MethodDelete,
		Path:          apiPrefix + "/items/{id}/tags/{tagId}",
		Summary:       "Untag item",
		Description:   "Removes a tag from an item. A tag left without items is deleted.",
		Tags:          []string{"Items"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusNoContent,
	}, s.handleUntagItem)
}

// === DTOs ===

// TagRefResponse is a tag as it appears on an item.
type TagRefResponse struct {
	ID   string `json:"id" doc:"Tag ID"`
	Name string `json:"name" doc:"Tag name"`
}

// ItemResponse is an item with its tags expanded.
type ItemResponse struct {
	ID          string           `json:"id" doc:"Item ID"`
	Title       string           `json:"title" doc:"Item title"`
	Description *string          `json:"description,omitempty" doc:"Item description"`
	ImageURL    *string          `json:"image_url,omitempty" doc:"Image URL"`
	Tags        []TagRefResponse `json:"tags" doc:"Tags on this item"`
	CreatedAt   time.Time        `json:"created_at" doc:"Creation timestamp"`
	UpdatedAt   time.Time        `json:"updated_at" doc:"Last update timestamp"`
	Links       Links            `json:"_links" doc:"Related actions"`
}

// ItemOutput wraps an item for Huma.
type ItemOutput struct {
	Body ItemResponse
}

// CreateItemRequest is the request body for creating an item.
type CreateItemRequest struct {
	Title       string  `json:"title" maxLength:"50" doc:"Item title"`
	Description *string `json:"description,omitempty" maxLength:"1000" doc:"Item description"`
	ImageURL    *string `json:"image_url,omitempty" format:"uri" doc:"Image URL"`
}

// CreateItemInput wraps the create item request for Huma.
type CreateItemInput struct {
	Authorization string `header:"Authorization"`
	Body          CreateItemRequest
}

// CreateItemOutput returns the new item and where to find it.
type CreateItemOutput struct {
	Location string `header:"Location"`
	Body     ItemResponse
}

// ItemIDInput identifies one of the user's items.
type ItemIDInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Item ID"`
}

// UpdateItemRequest is the request body for updating an item.
type UpdateItemRequest struct {
	Title       *string `json:"title,omitempty" maxLength:"50" doc:"New title"`
	Description *string `json:"description,omitempty" maxLength:"1000" doc:"New description; empty clears it"`
	ImageURL    *string `json:"image_url,omitempty" format:"uri" doc:"New image URL"`
}

// UpdateItemInput wraps the update item request for Huma.
type UpdateItemInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Item ID"`
	Body          UpdateItemRequest
}

// ListItemsInput contains parameters for listing items.
type ListItemsInput struct {
	Authorization string `header:"Authorization"`
	Page          int    `query:"page" default:"1" minimum:"1" doc:"Page number"`
	Limit         int    `query:"limit" default:"10" minimum:"1" doc:"Items per page (capped at 25)"`
}

// ItemPageResponse is one page of items.
type ItemPageResponse struct {
	Items      []ItemResponse `json:"items" doc:"Items on this page"`
	Page       int            `json:"page" doc:"Page number"`
	Limit      int            `json:"limit" doc:"Items per page"`
	Total      int            `json:"total" doc:"Total number of items"`
	TotalPages int            `json:"total_pages" doc:"Total number of pages"`
	Links      Links          `json:"_links" doc:"Page navigation"`
}

// ListItemsOutput wraps the item page for Huma.
type ListItemsOutput struct {
	Body ItemPageResponse
}

// SearchItemsInput contains parameters for searching items.
type SearchItemsInput struct {
	Authorization string `header:"Authorization"`
	Query         string `query:"q" doc:"Search query"`
	Limit         int    `query:"limit" default:"10" minimum:"1" doc:"Max results (capped at 25)"`
}

// SearchHitResponse is one matching item.
type SearchHitResponse struct {
	Item       ItemResponse      `json:"item" doc:"Matching item"`
	Score      float64           `json:"score" doc:"Relevance score"`
	Highlights map[string]string `json:"highlights,omitempty" doc:"Highlighted fragments by field"`
}

// SearchItemsResponse contains search results.
type SearchItemsResponse struct {
	Query  string              `json:"query" doc:"Query as searched"`
	Total  uint64              `json:"total" doc:"Total number of matches"`
	TookMs int64               `json:"took_ms" doc:"Search time in milliseconds"`
	Hits   []SearchHitResponse `json:"hits" doc:"Matching items"`
}

// SearchItemsOutput wraps search results for Huma.
type SearchItemsOutput struct {
	Body SearchItemsResponse
}

// TagItemInput names the tag to add.
type TagItemInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Item ID"`
	Body          struct {
		Name string `json:"name" doc:"Tag name"`
	}
}

// UntagItemInput identifies the tag to remove from an item.
type UntagItemInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Item ID"`
	TagID         string `path:"tagId" doc:"Tag ID"`
}

// === Handlers ===

func (s *Server) handleListItems(ctx context.Context, input *ListItemsInput) (*ListItemsOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	page, err := s.services.Item.List(ctx, user.ID, input.Page, input.Limit)
	if err != nil {
		return nil, err
	}

	items := make([]ItemResponse, len(page.Items))
	for i, item := range page.Items {
		items[i] = mapItemResponse(item)
	}

	return &ListItemsOutput{
		Body: ItemPageResponse{
			Items:      items,
			Page:       page.Page,
			Limit:      page.Limit,
			Total:      page.Total,
			TotalPages: page.TotalPages,
			Links:      pageLinks(apiPrefix+"/items", page.Page, page.Limit, page.TotalPages),
		},
	}, nil
}

func (s *Server) handleSearchItems(ctx context.Context, input *SearchItemsInput) (*SearchItemsOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	res, err := s.services.Item.Search(ctx, user.ID, input.Query, input.Limit)
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHitResponse, len(res.Hits))
	for i, hit := range res.Hits {
		hits[i] = SearchHitResponse{
			Item:       mapItemResponse(hit.Item),
			Score:      hit.Score,
			Highlights: hit.Highlights,
		}
	}

	return &SearchItemsOutput{
		Body: SearchItemsResponse{
			Query:  res.Query,
			Total:  res.Total,
			TookMs: res.TookMs,
			Hits:   hits,
		},
	}, nil
}

func (s *Server) handleCreateItem(ctx context.Context, input *CreateItemInput) (*CreateItemOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	item, err := s.services.Item.Create(ctx, user.ID, service.CreateItemRequest{
		Title:       input.Body.Title,
		Description: input.Body.Description,
		ImageURL:    input.Body.ImageURL,
	})
	if err != nil {
		return nil, err
	}

	return &CreateItemOutput{
		Location: itemPath(item.ID),
		Body:     mapItemResponse(item),
	}, nil
}

func (s *Server) handleGetItem(ctx context.Context, input *ItemIDInput) (*ItemOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	item, err := s.services.Item.Get(ctx, user.ID, input.ID)
	if err != nil {
		return nil, err
	}
	return &ItemOutput{Body: mapItemResponse(item)}, nil
}

func (s *Server) handleUpdateItem(ctx context.Context, input *UpdateItemInput) (*ItemOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	item, err := s.services.Item.Update(ctx, user.ID, input.ID, service.UpdateItemRequest{
		Title:       input.Body.Title,
		Description: input.Body.Description,
		ImageURL:    input.Body.ImageURL,
	})
	if err != nil {
		return nil, err
	}
	return &ItemOutput{Body: mapItemResponse(item)}, nil
}

func (s *Server) handleDeleteItem(ctx context.Context, input *ItemIDInput) (*struct{}, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.services.Item.Delete(ctx, user.ID, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleTagItem(ctx context.Context, input *TagItemInput) (*ItemOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	item, err := s.services.Tagging.TagItem(ctx, user.ID, input.ID, input.Body.Name)
	if err != nil {
		return nil, err
	}
	return &ItemOutput{Body: mapItemResponse(item)}, nil
}

func (s *Server) handleUntagItem(ctx context.Context, input *UntagItemInput) (*struct{}, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.services.Tagging.UntagItem(ctx, user.ID, input.ID, input.TagID); err != nil {
		return nil, err
	}
	return nil, nil
}

// === Mappers ===

func mapItemResponse(item *domain.TaggedItem) ItemResponse {
	tags := make([]TagRefResponse, len(item.TagRefs))
	for i, ref := range item.TagRefs {
		tags[i] = TagRefResponse{ID: ref.ID, Name: ref.Name}
	}
	return ItemResponse{
		ID:          item.ID,
		Title:       item.Title,
		Description: item.Description,
		ImageURL:    item.ImageURL,
		Tags:        tags,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
		Links:       itemLinks(item.ID),
	}
}
