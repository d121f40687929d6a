// Package pagination reads search and paging parameters from a request and
// shapes paged list responses.
package pagination

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
	// MaxTermLength bounds the free-text search term.
	MaxTermLength = 100
)

// Query is a search term with a page window.
type Query struct {
	Term   string
	Limit  int
	Offset int
}

// Parse reads ?q=, ?limit= and ?offset=. Missing values take defaults and
// limit is clamped to MaxLimit; values that are not numbers are a 400.
func Parse(c echo.Context) (Query, error) {
	q := Query{Term: strings.TrimSpace(c.QueryParam("q")), Limit: DefaultLimit}
	if len(q.Term) > MaxTermLength {
		return Query{}, echo.NewHTTPError(http.StatusBadRequest, "search term is too long")
	}

	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return Query{}, echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		q.Limit = min(n, MaxLimit)
	}
	if s := c.QueryParam("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return Query{}, echo.NewHTTPError(http.StatusBadRequest, "offset must be a non-negative integer")
		}
		q.Offset = n
	}
	return q, nil
}

// Page is one window of a result set.
type Page[T any] struct {
	Items      []T  `json:"items"`
	Total      int  `json:"total"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	NextOffset *int `json:"next_offset,omitempty"`
}

// NewPage wraps items; a nil slice is returned as an empty list.
func NewPage[T any](items []T, total int, q Query) Page[T] {
	if items == nil {
		items = []T{}
	}
	p := Page[T]{Items: items, Total: total, Limit: q.Limit, Offset: q.Offset}
	if next := q.Offset + q.Limit; next < total {
		p.NextOffset = &next
	}
	return p
}
