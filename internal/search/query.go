package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Default and maximum number of hits per search.
const (
	DefaultLimit = 10
	MaxLimit     = 25
)

// SearchParams configures an item search.
type SearchParams struct {
	OwnerID string // Required; only this owner's items match
	Query   string

	Limit  int
	Offset int
}

// SearchResult holds one page of hits ordered by relevance.
type SearchResult struct {
	Query  string      `json:"query"`
	Total  uint64      `json:"total"`
	TookMs int64       `json:"took_ms"`
	Hits   []SearchHit `json:"hits"`
}

// SearchHit is a matching item ID with its score and highlighted fragments.
type SearchHit struct {
	ID         string            `json:"id"`
	Score      float64           `json:"score"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// Search runs params against the index. An empty OwnerID is rejected
// rather than searching every account.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if params.OwnerID == "" {
		return nil, fmt.Errorf("search without owner")
	}
	if params.Limit <= 0 {
		params.Limit = DefaultLimit
	}
	params.Limit = min(params.Limit, MaxLimit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(buildSearchQuery(params), params.Limit, params.Offset, false)
	req.SortBy([]string{"-_score", "-created_at"})
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField("title")
	req.Highlight.AddField("tags")

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(res.Hits)),
	}

	for _, hit := range res.Hits {
		h := SearchHit{ID: hit.ID, Score: hit.Score}
		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}
		result.Hits = append(result.Hits, h)
	}

	return result, nil
}

// buildSearchQuery ANDs the owner filter with a disjunction over the text fields.
// Title matches weigh most, then tag names, then the description.
func buildSearchQuery(params SearchParams) query.Query {
	owner := bleve.NewTermQuery(params.OwnerID)
	owner.SetField("owner_id")

	q := strings.TrimSpace(params.Query)
	if q == "" {
		return owner
	}

	titleMatch := bleve.NewMatchQuery(q)
	titleMatch.SetField("title")
	titleMatch.SetBoost(3.0)

	tagMatch := bleve.NewMatchQuery(q)
	tagMatch.SetField("tags")
	tagMatch.SetBoost(2.0)

	descMatch := bleve.NewMatchQuery(q)
	descMatch.SetField("description")

	// Typo tolerance on titles
	fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
	fuzzy.SetFuzziness(1)
	fuzzy.SetField("title")
	fuzzy.SetBoost(0.8)

	text := []query.Query{titleMatch, tagMatch, descMatch, fuzzy}

	// Prefix for type-ahead (minimum 2 chars)
	if len(q) >= 2 {
		prefix := bleve.NewPrefixQuery(strings.ToLower(q))
		prefix.SetField("title")
		prefix.SetBoost(0.5)
		text = append(text, prefix)
	}

	return bleve.NewConjunctionQuery(owner, bleve.NewDisjunctionQuery(text...))
}
