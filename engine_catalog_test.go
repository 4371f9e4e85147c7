package shopcore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/shopcore/catalog"
)

func TestGetOrLoadServesSecondReadFromCache(t *testing.T) {
	te := newTestEngine(t, func(b *Builder) { b.WithMetricsEnabled(true) })
	ctx := context.Background()

	var calls atomic.Int32
	loader := func(context.Context, catalog.Query) (catalog.Page, error) {
		calls.Add(1)
		return catalog.Page{
			Items:      []catalog.Item{{ID: 1, Name: "Lamp"}, {ID: 2, Name: "Chair"}},
			TotalPages: 1,
		}, nil
	}
	q := catalog.Query{Keyword: "lamp", Page: 0, Limit: 10}

	first, err := te.GetOrLoad(ctx, q, loader)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	second, err := te.GetOrLoad(ctx, q, loader)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one loader call, got %d", calls.Load())
	}
	if len(first.Items) != 2 || len(second.Items) != 2 || second.Items[1].Name != "Chair" {
		t.Fatalf("unexpected pages: %+v / %+v", first, second)
	}

	snap := te.MetricsSnapshot()
	if snap.Counters[MetricCatalogMiss] != 1 || snap.Counters[MetricCatalogHit] != 1 {
		t.Fatalf("hit/miss = %d/%d", snap.Counters[MetricCatalogHit], snap.Counters[MetricCatalogMiss])
	}
}

func TestGetOrLoadSurvivesRedisOutage(t *testing.T) {
	te := newTestEngine(t, nil)
	te.mr.SetError("LOADING")

	page, err := te.GetOrLoad(context.Background(), catalog.Query{}, func(context.Context, catalog.Query) (catalog.Page, error) {
		return catalog.Page{Items: []catalog.Item{{ID: 1}}, TotalPages: 1}, nil
	})
	if err != nil {
		t.Fatalf("cache outage must not fail reads: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestGetOrLoadPropagatesLoaderError(t *testing.T) {
	te := newTestEngine(t, nil)
	boom := errors.New("db down")

	_, err := te.GetOrLoad(context.Background(), catalog.Query{}, func(context.Context, catalog.Query) (catalog.Page, error) {
		return catalog.Page{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
}

func TestCatalogWriterInvalidatesProducts(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	w := te.CatalogWriter()
	if w == nil {
		t.Fatal("expected writer with a configured source")
	}

	for _, name := range []string{"Lamp", "Chair"} {
		if err := w.CreateItem(ctx, &catalog.Item{Name: name}); err != nil {
			t.Fatalf("CreateItem: %v", err)
		}
	}

	page, err := te.Products(ctx, catalog.Query{})
	if err != nil {
		t.Fatalf("Products: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page.Items))
	}
	loads := te.source.loads.Load()
	if _, err := te.Products(ctx, catalog.Query{}); err != nil {
		t.Fatalf("Products: %v", err)
	}
	if te.source.loads.Load() != loads {
		t.Fatal("expected cached read")
	}

	if err := w.DeleteItem(ctx, 1); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	page, err = te.Products(ctx, catalog.Query{})
	if err != nil {
		t.Fatalf("Products: %v", err)
	}
	if te.source.loads.Load() != loads+1 {
		t.Fatal("expected a load after the write")
	}
	if len(page.Items) != 1 || page.Items[0].Name != "Chair" {
		t.Fatalf("stale page after delete: %+v", page.Items)
	}
}

func TestWrapCatalogWriterAndClear(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	other := &memSource{}
	w := te.WrapCatalogWriter(other)

	var calls atomic.Int32
	loader := func(ctx context.Context, q catalog.Query) (catalog.Page, error) {
		calls.Add(1)
		return other.Load(ctx, q)
	}

	if _, err := te.GetOrLoad(ctx, catalog.Query{}, loader); err != nil {
		t.Fatalf("warm: %v", err)
	}
	if err := w.CreateItem(ctx, &catalog.Item{Name: "Rug"}); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	page, err := te.GetOrLoad(ctx, catalog.Query{}, loader)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if calls.Load() != 2 || len(page.Items) != 1 {
		t.Fatalf("calls=%d items=%d", calls.Load(), len(page.Items))
	}

	if err := te.ClearCatalog(ctx); err != nil {
		t.Fatalf("ClearCatalog: %v", err)
	}
	if _, err := te.GetOrLoad(ctx, catalog.Query{}, loader); err != nil {
		t.Fatalf("read: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected reload after ClearCatalog, calls=%d", calls.Load())
	}
}

func TestClearCatalogReportsCacheFailure(t *testing.T) {
	te := newTestEngine(t, func(b *Builder) { b.WithMetricsEnabled(true) })
	te.mr.SetError("LOADING")

	err := te.ClearCatalog(context.Background())
	if !errors.Is(err, ErrCacheUnavailable) {
		t.Fatalf("expected ErrCacheUnavailable, got %v", err)
	}
	if KindOf(err) != KindUnavailable {
		t.Fatalf("kind = %v", KindOf(err))
	}
	if got := te.MetricsSnapshot().Counters[MetricCatalogInvalidationFailure]; got != 1 {
		t.Fatalf("invalidation failures = %d", got)
	}
}

func TestConcurrentMissesShareOneLoad(t *testing.T) {
	te := newTestEngine(t, nil)
	release := make(chan struct{})
	var calls atomic.Int32
	loader := func(context.Context, catalog.Query) (catalog.Page, error) {
		calls.Add(1)
		<-release
		return catalog.Page{Items: []catalog.Item{{ID: 1}}, TotalPages: 1}, nil
	}

	const readers = 8
	var wg sync.WaitGroup
	wg.Add(readers)
	for i := 0; i < readers; i++ {
		go func() {
			defer wg.Done()
			if _, err := te.GetOrLoad(context.Background(), catalog.Query{}, loader); err != nil {
				t.Errorf("read: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected one shared load, got %d", calls.Load())
	}
}

func TestClearCatalogFailureDoesNotServeStalePages(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	name := "before"
	var calls atomic.Int32
	loader := func(context.Context, catalog.Query) (catalog.Page, error) {
		calls.Add(1)
		return catalog.Page{Items: []catalog.Item{{ID: 1, Name: name}}, TotalPages: 1}, nil
	}

	if _, err := te.GetOrLoad(ctx, catalog.Query{}, loader); err != nil {
		t.Fatalf("warm: %v", err)
	}
	te.mr.SetError("LOADING")
	if err := te.ClearCatalog(ctx); err == nil {
		t.Fatal("expected clear to fail while redis is down")
	}
	te.mr.SetError("")
	name = "after"

	page, err := te.GetOrLoad(ctx, catalog.Query{}, loader)
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	if page.Items[0].Name != "after" || calls.Load() != 2 {
		t.Fatalf("served a page cached before the failed clear: %+v calls=%d", page, calls.Load())
	}
	if _, err := te.GetOrLoad(ctx, catalog.Query{}, loader); err != nil || calls.Load() != 2 {
		t.Fatalf("expected the fresh page cached, calls=%d err=%v", calls.Load(), err)
	}
}
