package catalog

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultLimit is used when a query asks for a non-positive page size.
	DefaultLimit = 10
	// MaxLimit caps the page size.
	MaxLimit = 100
)

// Query selects one page of the catalog. Page is zero-based. CategoryID 0
// means all categories.
type Query struct {
	Keyword    string
	CategoryID int64
	Page       int
	Limit      int
}

// Normalize trims the keyword and clamps page and limit into range.
func (q Query) Normalize() Query {
	q.Keyword = strings.TrimSpace(q.Keyword)
	if q.CategoryID < 0 {
		q.CategoryID = 0
	}
	if q.Page < 0 {
		q.Page = 0
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	return q
}

// Key returns the canonical cache key of the normalized query:
//
//	q=<query-escaped keyword>:c=<categoryID>:p=<page>:l=<limit>
//
// Escaping keeps ':' inside keywords from colliding with the separator.
func (q Query) Key() string {
	n := q.Normalize()
	var b strings.Builder
	b.Grow(32 + len(n.Keyword))
	b.WriteString("q=")
	b.WriteString(url.QueryEscape(n.Keyword))
	b.WriteString(":c=")
	b.WriteString(strconv.FormatInt(n.CategoryID, 10))
	b.WriteString(":p=")
	b.WriteString(strconv.Itoa(n.Page))
	b.WriteString(":l=")
	b.WriteString(strconv.Itoa(n.Limit))
	return b.String()
}

// Offset is the number of rows skipped before this page.
func (q Query) Offset() int {
	n := q.Normalize()
	return n.Page * n.Limit
}

// TotalPages returns ceil(total/limit) for the normalized query.
func (q Query) TotalPages(total int) int {
	if total <= 0 {
		return 0
	}
	limit := q.Normalize().Limit
	return (total + limit - 1) / limit
}

// ParseQuery reads keyword, category_id, page and limit from URL values.
// Missing numbers are zero; malformed ones are an error.
func ParseQuery(v url.Values) (Query, error) {
	q := Query{Keyword: v.Get("keyword")}
	var err error
	if q.CategoryID, err = parseInt64(v.Get("category_id")); err != nil {
		return Query{}, fmt.Errorf("category_id: %w", err)
	}
	page, err := parseInt64(v.Get("page"))
	if err != nil {
		return Query{}, fmt.Errorf("page: %w", err)
	}
	limit, err := parseInt64(v.Get("limit"))
	if err != nil {
		return Query{}, fmt.Errorf("limit: %w", err)
	}
	q.Page, q.Limit = int(page), int(limit)
	return q.Normalize(), nil
}

func parseInt64(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 32)
}
