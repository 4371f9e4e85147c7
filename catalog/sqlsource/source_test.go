package sqlsource

import (
	"context"
	"fmt"
	"testing"

	"github.com/MrEthical07/shopcore/catalog"
	"github.com/MrEthical07/shopcore/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSource(t *testing.T) *Source {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, CreateSchema(ctx, db))
	return New(db)
}

func seed(t *testing.T, src *Source, n int) []catalog.Item {
	t.Helper()
	items := make([]catalog.Item, 0, n)
	for i := 1; i <= n; i++ {
		item := catalog.Item{
			Name:        fmt.Sprintf("Lamp %d", i),
			Price:       float64(i),
			Description: "warm light",
			CategoryID:  int64(1 + i%2),
		}
		if i%5 == 0 {
			item.Name = fmt.Sprintf("Chair %d", i)
			item.Description = "oak seat"
		}
		require.NoError(t, src.CreateItem(context.Background(), &item))
		require.NotZero(t, item.ID)
		items = append(items, item)
	}
	return items
}

func TestSource_Load(t *testing.T) {
	src := setupSource(t)
	seed(t, src, 25)
	ctx := context.Background()

	tests := []struct {
		name       string
		q          catalog.Query
		wantItems  int
		wantPages  int
		wantFirstI int64
	}{
		{"first page all", catalog.Query{Limit: 10}, 10, 3, 1},
		{"last page all", catalog.Query{Page: 2, Limit: 10}, 5, 3, 21},
		{"past the end", catalog.Query{Page: 9, Limit: 10}, 0, 3, 0},
		{"default limit", catalog.Query{}, 10, 3, 1},
		{"category filter", catalog.Query{CategoryID: 2, Limit: 5}, 5, 3, 1},
		{"keyword name", catalog.Query{Keyword: "chair", Limit: 10}, 5, 1, 5},
		{"keyword description", catalog.Query{Keyword: "OAK", Limit: 2}, 2, 3, 5},
		{"keyword and category", catalog.Query{Keyword: "chair", CategoryID: 1, Limit: 10}, 2, 1, 10},
		{"wildcards are literal", catalog.Query{Keyword: "%", Limit: 10}, 0, 0, 0},
		{"no match", catalog.Query{Keyword: "sofa"}, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := src.Load(ctx, tt.q)
			require.NoError(t, err)
			assert.Len(t, page.Items, tt.wantItems)
			assert.Equal(t, tt.wantPages, page.TotalPages)
			if tt.wantFirstI > 0 {
				require.NotEmpty(t, page.Items)
				assert.Equal(t, tt.wantFirstI, page.Items[0].ID)
			}
			for i := 1; i < len(page.Items); i++ {
				assert.Less(t, page.Items[i-1].ID, page.Items[i].ID)
			}
		})
	}
}

func TestSource_Writes(t *testing.T) {
	src := setupSource(t)
	ctx := context.Background()
	items := seed(t, src, 3)

	t.Run("update", func(t *testing.T) {
		item := items[0]
		item.Name = "Desk Lamp"
		item.Price = 42
		require.NoError(t, src.UpdateItem(ctx, &item))

		page, err := src.Load(ctx, catalog.Query{Keyword: "desk"})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, item.ID, page.Items[0].ID)
		assert.Equal(t, 42.0, page.Items[0].Price)
	})

	t.Run("update unknown", func(t *testing.T) {
		assert.ErrorIs(t, src.UpdateItem(ctx, &catalog.Item{ID: 999, Name: "ghost"}), ErrItemNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, src.DeleteItem(ctx, items[1].ID))
		assert.ErrorIs(t, src.DeleteItem(ctx, items[1].ID), ErrItemNotFound)

		page, err := src.Load(ctx, catalog.Query{})
		require.NoError(t, err)
		assert.Len(t, page.Items, 2)
	})
}

func TestSource_BehindCoordinator(t *testing.T) {
	src := setupSource(t)
	ctx := context.Background()
	seed(t, src, 4)

	cache, err := catalog.NewLRUCache(16)
	require.NoError(t, err)
	coord := catalog.NewCoordinator(cache, catalog.Options{})
	writer := catalog.NewInvalidatingWriter(src, catalog.NewTrigger(coord, nil))

	page, err := coord.GetOrLoad(ctx, catalog.Query{}, src.Load)
	require.NoError(t, err)
	require.Len(t, page.Items, 4)
	for _, it := range page.Items {
		assert.Equal(t, 1, it.TotalPages)
	}

	require.NoError(t, writer.CreateItem(ctx, &catalog.Item{Name: "Rug", CategoryID: 1}))
	assert.Equal(t, 0, cache.Len())

	page, err = coord.GetOrLoad(ctx, catalog.Query{}, src.Load)
	require.NoError(t, err)
	assert.Len(t, page.Items, 5)
}
