package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tagboxapp/tagbox-server/internal/service"
)

func (s *Server) registerTagRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listTags",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/tags",
		Summary:     "List tags",
		Description: "Returns all tags for the current user, ordered by name",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTag",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/tags/{id}",
		Summary:     "Get tag",
		Description: "Returns a tag by ID",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetTag)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteTag",
		Method:        http.MethodDelete,
		Path:          apiPrefix + "/tags/{id}",
		Summary:       "Delete tag",
		Description:   "Deletes a tag and removes it from every item that carries it",
		Tags:          []string{"Tags"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteTag)
}

// === DTOs ===

// ListTagsInput contains parameters for listing tags.
type ListTagsInput struct {
	Authorization string `header:"Authorization"`
}

// TagResponse contains tag data in API responses.
type TagResponse struct {
	ID        string    `json:"id" doc:"Tag ID"`
	Name      string    `json:"name" doc:"Tag name"`
	ItemCount int       `json:"item_count" doc:"Number of items with this tag"`
	CreatedAt time.Time `json:"created_at" doc:"Creation timestamp"`
	UpdatedAt time.Time `json:"updated_at" doc:"Last update timestamp"`
	Links     Links     `json:"_links" doc:"Related actions"`
}

// ListTagsResponse contains a list of tags.
type ListTagsResponse struct {
	Tags  []TagResponse `json:"tags" doc:"List of tags"`
	Links Links         `json:"_links" doc:"Related actions"`
}

// ListTagsOutput wraps the list tags response for Huma.
type ListTagsOutput struct {
	Body ListTagsResponse
}

// TagIDInput identifies one of the user's tags.
type TagIDInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Tag ID"`
}

// TagOutput wraps a tag response for Huma.
type TagOutput struct {
	Body TagResponse
}

// === Handlers ===

func (s *Server) handleListTags(ctx context.Context, input *ListTagsInput) (*ListTagsOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	tags, err := s.services.Tag.List(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	resp := make([]TagResponse, len(tags))
	for i := range tags {
		resp[i] = mapTagResponse(&tags[i])
	}

	return &ListTagsOutput{
		Body: ListTagsResponse{
			Tags: resp,
			Links: Links{
				"self": {Href: apiPrefix + "/tags", Method: http.MethodGet},
			},
		},
	}, nil
}

func (s *Server) handleGetTag(ctx context.Context, input *TagIDInput) (*TagOutput, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	tag, err := s.services.Tag.Get(ctx, user.ID, input.ID)
	if err != nil {
		return nil, err
	}
	return &TagOutput{Body: mapTagResponse(tag)}, nil
}

func (s *Server) handleDeleteTag(ctx context.Context, input *TagIDInput) (*struct{}, error) {
	user, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.services.Tagging.DeleteTag(ctx, user.ID, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

// === Mappers ===

func mapTagResponse(t *service.TagSummary) TagResponse {
	return TagResponse{
		ID:        t.ID,
		Name:      t.Name,
		ItemCount: t.ItemCount,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
		Links:     tagLinks(t.ID),
	}
}
