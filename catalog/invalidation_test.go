package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

type memWriter struct {
	mu     sync.Mutex
	items  map[int64]Item
	nextID int64
	fail   error
}

func newMemWriter() *memWriter {
	return &memWriter{items: make(map[int64]Item)}
}

func (w *memWriter) CreateItem(_ context.Context, item *Item) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail != nil {
		return w.fail
	}
	w.nextID++
	item.ID = w.nextID
	w.items[item.ID] = *item
	return nil
}

func (w *memWriter) UpdateItem(_ context.Context, item *Item) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail != nil {
		return w.fail
	}
	w.items[item.ID] = *item
	return nil
}

func (w *memWriter) DeleteItem(_ context.Context, id int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail != nil {
		return w.fail
	}
	delete(w.items, id)
	return nil
}

func (w *memWriter) load(_ context.Context, q Query) (Page, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	items := make([]Item, 0, len(w.items))
	for id := int64(1); id <= w.nextID; id++ {
		if it, ok := w.items[id]; ok {
			items = append(items, it)
		}
	}
	return Page{Items: items, TotalPages: q.TotalPages(len(items))}, nil
}

func TestWriteTriggersMiss(t *testing.T) {
	ctx := context.Background()
	c, _ := newLRUCoordinator(t, Options{})
	store := newMemWriter()
	writer := NewInvalidatingWriter(store, NewTrigger(c, nil))

	var calls atomic.Int32
	loader := func(ctx context.Context, q Query) (Page, error) {
		calls.Add(1)
		return store.load(ctx, q)
	}

	item := &Item{Name: "lamp"}
	if err := writer.CreateItem(ctx, item); err != nil {
		t.Fatalf("create: %v", err)
	}

	steps := []struct {
		name  string
		write func() error
	}{
		{"update", func() error { item.Name = "desk lamp"; return writer.UpdateItem(ctx, item) }},
		{"create", func() error { return writer.CreateItem(ctx, &Item{Name: "chair"}) }},
		{"delete", func() error { return writer.DeleteItem(ctx, item.ID) }},
	}

	if _, err := c.GetOrLoad(ctx, Query{}, loader); err != nil {
		t.Fatalf("warm: %v", err)
	}
	for _, step := range steps {
		before := calls.Load()
		if _, err := c.GetOrLoad(ctx, Query{}, loader); err != nil {
			t.Fatalf("%s: cached read: %v", step.name, err)
		}
		if calls.Load() != before {
			t.Fatalf("%s: expected cache hit before write", step.name)
		}
		if err := step.write(); err != nil {
			t.Fatalf("%s: write: %v", step.name, err)
		}
		page, err := c.GetOrLoad(ctx, Query{}, loader)
		if err != nil {
			t.Fatalf("%s: read after write: %v", step.name, err)
		}
		if calls.Load() != before+1 {
			t.Fatalf("%s: expected loader after write", step.name)
		}
		fresh, _ := store.load(ctx, Query{})
		if len(page.Items) != len(fresh.Items) {
			t.Fatalf("%s: stale page served: %d items, store has %d", step.name, len(page.Items), len(fresh.Items))
		}
	}
}

func TestFailedWriteDoesNotInvalidate(t *testing.T) {
	ctx := context.Background()
	c, cache := newLRUCoordinator(t, Options{})
	store := newMemWriter()
	var fired atomic.Int32
	trigger := NewTrigger(c, nil)
	trigger.OnFire = func(WriteEvent, error) { fired.Add(1) }
	writer := NewInvalidatingWriter(store, trigger)

	if _, err := c.GetOrLoad(ctx, Query{}, store.load); err != nil {
		t.Fatalf("warm: %v", err)
	}
	store.fail = errors.New("constraint violation")

	if err := writer.CreateItem(ctx, &Item{Name: "x"}); err == nil {
		t.Fatal("expected write error")
	}
	if err := writer.DeleteItem(ctx, 1); err == nil {
		t.Fatal("expected write error")
	}
	if fired.Load() != 0 {
		t.Fatalf("failed writes must not fire invalidation, fired %d", fired.Load())
	}
	if cache.Len() != 1 {
		t.Fatal("cache must survive failed writes")
	}
}

func TestInvalidationFailureDoesNotFailWrite(t *testing.T) {
	var warned atomic.Int32
	var seen []WriteEvent
	trigger := NewTrigger(NewCoordinator(failingCache{err: ErrCacheUnavailable}, Options{}), func(string, ...any) {
		warned.Add(1)
	})
	trigger.OnFire = func(ev WriteEvent, err error) {
		if !errors.Is(err, ErrCacheUnavailable) {
			t.Errorf("expected clear error, got %v", err)
		}
		seen = append(seen, ev)
	}
	writer := NewInvalidatingWriter(newMemWriter(), trigger)

	item := &Item{Name: "rug"}
	if err := writer.CreateItem(context.Background(), item); err != nil {
		t.Fatalf("committed write must succeed despite cache outage: %v", err)
	}
	if warned.Load() != 1 {
		t.Fatalf("expected invalidation failure logged once, got %d", warned.Load())
	}
	if len(seen) != 1 || seen[0].Op != OpCreate || seen[0].ItemID != item.ID {
		t.Fatalf("unexpected events: %+v", seen)
	}
}
