package api

import (
	"net/http"
	"net/url"
	"strconv"
)

// Link is one hypermedia control on a response.
type Link struct {
	Href   string `json:"href" doc:"Target URL"`
	Method string `json:"method" doc:"HTTP method to use"`
}

// Links maps a relation name to its link.
type Links map[string]Link

func itemPath(id string) string {
	return apiPrefix + "/items/" + url.PathEscape(id)
}

func tagPath(id string) string {
	return apiPrefix + "/tags/" + url.PathEscape(id)
}

func itemLinks(id string) Links {
	self := itemPath(id)
	return Links{
		"self":       {Href: self, Method: http.MethodGet},
		"update":     {Href: self, Method: http.MethodPatch},
		"delete":     {Href: self, Method: http.MethodDelete},
		"tags":       {Href: self + "/tags", Method: http.MethodPost},
		"collection": {Href: apiPrefix + "/items", Method: http.MethodGet},
	}
}

func tagLinks(id string) Links {
	self := tagPath(id)
	return Links{
		"self":       {Href: self, Method: http.MethodGet},
		"delete":     {Href: self, Method: http.MethodDelete},
		"collection": {Href: apiPrefix + "/tags", Method: http.MethodGet},
	}
}

// pageLinks builds navigation for a paged collection. next and prev are
// present only when that page exists.
func pageLinks(base string, page, limit, totalPages int) Links {
	at := func(p int) Link {
		q := url.Values{}
		q.Set("page", strconv.Itoa(p))
		q.Set("limit", strconv.Itoa(limit))
		return Link{Href: base + "?" + q.Encode(), Method: http.MethodGet}
	}

	last := max(totalPages, 1)
	links := Links{
		"self":  at(page),
		"first": at(1),
		"last":  at(last),
	}
	if page < totalPages {
		links["next"] = at(page + 1)
	}
	if page > 1 {
		links["prev"] = at(page - 1)
	}
	return links
}
