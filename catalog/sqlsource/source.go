// Package sqlsource is the authoritative product source for the catalog:
// a bun-backed loader and writer over the products table.
package sqlsource

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/shopcore/catalog"
	"github.com/MrEthical07/shopcore/database"
	"github.com/uptrace/bun"
)

// ErrItemNotFound is returned by UpdateItem and DeleteItem for unknown ids.
var ErrItemNotFound = errors.New("catalog item not found")

type productRow struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID          int64     `bun:"id,pk,autoincrement"`
	Name        string    `bun:"name,notnull"`
	Price       float64   `bun:"price,notnull"`
	Thumbnail   string    `bun:"thumbnail,notnull"`
	Description string    `bun:"description,notnull"`
	CategoryID  int64     `bun:"category_id,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

func (r *productRow) toItem() catalog.Item {
	return catalog.Item{
		ID:          r.ID,
		Name:        r.Name,
		Price:       r.Price,
		Thumbnail:   r.Thumbnail,
		Description: r.Description,
		CategoryID:  r.CategoryID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// Source reads and writes products.
type Source struct {
	db  bun.IDB
	now func() time.Time
}

// New returns a Source over db.
func New(db bun.IDB) *Source {
	return &Source{db: db, now: time.Now}
}

// CreateSchema creates the products table when it does not exist.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	return database.CreateTables(ctx, db, (*productRow)(nil))
}

// Load returns one page of products matching q, ordered by id. It has the
// catalog.Loader signature.
func (s *Source) Load(ctx context.Context, q catalog.Query) (catalog.Page, error) {
	q = q.Normalize()

	var rows []productRow
	sel := s.db.NewSelect().Model(&rows)
	if q.Keyword != "" {
		pattern := "%" + escapeLike(strings.ToLower(q.Keyword)) + "%"
		sel = sel.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.
				Where("LOWER(p.name) LIKE ? ESCAPE '!'", pattern).
				WhereOr("LOWER(p.description) LIKE ? ESCAPE '!'", pattern)
		})
	}
	if q.CategoryID > 0 {
		sel = sel.Where("p.category_id = ?", q.CategoryID)
	}

	total, err := sel.
		Order("p.id ASC").
		Offset(q.Offset()).
		Limit(q.Limit).
		ScanAndCount(ctx)
	if err != nil {
		return catalog.Page{}, fmt.Errorf("load products: %w", err)
	}

	items := make([]catalog.Item, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].toItem())
	}
	return catalog.Page{Items: items, TotalPages: q.TotalPages(total)}, nil
}

// CreateItem inserts item and sets its ID and timestamps.
func (s *Source) CreateItem(ctx context.Context, item *catalog.Item) error {
	now := s.now().UTC()
	row := &productRow{
		Name:        item.Name,
		Price:       item.Price,
		Thumbnail:   item.Thumbnail,
		Description: item.Description,
		CategoryID:  item.CategoryID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.db.NewInsert().Model(row).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	item.ID = row.ID
	item.CreatedAt = row.CreatedAt
	item.UpdatedAt = row.UpdatedAt
	return nil
}

// UpdateItem overwrites the mutable fields of item.ID.
func (s *Source) UpdateItem(ctx context.Context, item *catalog.Item) error {
	now := s.now().UTC()
	res, err := s.db.NewUpdate().
		Model((*productRow)(nil)).
		Set("name = ?", item.Name).
		Set("price = ?", item.Price).
		Set("thumbnail = ?", item.Thumbnail).
		Set("description = ?", item.Description).
		Set("category_id = ?", item.CategoryID).
		Set("updated_at = ?", now).
		Where("id = ?", item.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("update product: %w", err)
	} else if n == 0 {
		return ErrItemNotFound
	}
	item.UpdatedAt = now
	return nil
}

// DeleteItem removes product id.
func (s *Source) DeleteItem(ctx context.Context, id int64) error {
	res, err := s.db.NewDelete().
		Model((*productRow)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("delete product: %w", err)
	} else if n == 0 {
		return ErrItemNotFound
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)
	return r.Replace(s)
}

var _ catalog.Writer = (*Source)(nil)
