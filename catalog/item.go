package catalog

import (
	"context"
	"time"
)

// Item is a product snapshot as served to readers. TotalPages repeats the
// page count of the query that produced it.
type Item struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Thumbnail   string    `json:"thumbnail"`
	Description string    `json:"description"`
	CategoryID  int64     `json:"category_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	TotalPages  int       `json:"total_pages"`
}

// Page is one page of items plus the total page count for its query.
type Page struct {
	Items      []Item `json:"items"`
	TotalPages int    `json:"total_pages"`
}

// Loader reads one page from the authoritative source. Implementations
// report the true page count for q in TotalPages.
type Loader func(ctx context.Context, q Query) (Page, error)

// Stamp returns a copy of p with TotalPages set on every item.
func (p Page) Stamp() Page {
	out := p.Clone()
	for i := range out.Items {
		out.Items[i].TotalPages = out.TotalPages
	}
	return out
}

// Clone returns a copy of p that shares no backing array with it.
func (p Page) Clone() Page {
	out := Page{TotalPages: p.TotalPages}
	if p.Items != nil {
		out.Items = make([]Item, len(p.Items))
		copy(out.Items, p.Items)
	}
	return out
}
