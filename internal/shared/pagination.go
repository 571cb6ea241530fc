package shared

import (
	"math"
	"net/http"
	"net/url"
	"strconv"
)

// Page size limits for list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest is the page window requested by a client.
type PageRequest struct {
	Page int
	Size int
}

// Offset returns the row offset of the requested page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Size
}

// ParsePageRequest reads the page and page_size query parameters.
func ParsePageRequest(r *http.Request) PageRequest {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return PageRequest{Page: page, Size: size}
}

// Page is the envelope returned by paginated list endpoints.
type Page[T any] struct {
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Count    int     `json:"count"`
	Pages    int     `json:"pages"`
	Results  []T     `json:"results"`
}

// NewPage builds the envelope, deriving next and previous links from the
// request URL.
func NewPage[T any](r *http.Request, req PageRequest, total int, results []T) Page[T] {
	if results == nil {
		results = []T{}
	}
	pages := int(math.Ceil(float64(total) / float64(req.Size)))
	if pages == 0 {
		pages = 1
	}
	page := Page[T]{Count: total, Pages: pages, Results: results}
	if req.Page < pages {
		link := pageLink(r, req.Page+1)
		page.Next = &link
	}
	if req.Page > 1 {
		link := pageLink(r, req.Page-1)
		page.Previous = &link
	}
	return page
}

func pageLink(r *http.Request, page int) string {
	u := url.URL{Path: r.URL.Path}
	q := r.URL.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}
