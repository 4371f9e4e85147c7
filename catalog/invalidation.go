package catalog

import "context"

// WriteOp names a catalog mutation.
type WriteOp string

const (
	OpCreate WriteOp = "create"
	OpUpdate WriteOp = "update"
	OpDelete WriteOp = "delete"
	// OpManual marks an explicit purge not tied to an item.
	OpManual WriteOp = "manual"
)

// WriteEvent describes a committed catalog mutation.
type WriteEvent struct {
	Op     WriteOp
	ItemID int64
}

// Invalidator clears a cache namespace. *Coordinator satisfies it.
type Invalidator interface {
	Clear(ctx context.Context) error
}

// Trigger clears the catalog cache in response to write events.
type Trigger struct {
	target Invalidator
	warn   func(string, ...any)
	// OnFire, when set, observes every event and the clear result.
	OnFire func(ev WriteEvent, err error)
}

// NewTrigger returns a Trigger clearing target. warn may be nil.
func NewTrigger(target Invalidator, warn func(string, ...any)) *Trigger {
	return &Trigger{target: target, warn: warn}
}

// Fire clears the namespace synchronously and returns the clear error.
func (t *Trigger) Fire(ctx context.Context, ev WriteEvent) error {
	err := t.target.Clear(ctx)
	if err != nil && t.warn != nil {
		t.warn("shopcore: catalog invalidation after %s of item %d failed: %v", ev.Op, ev.ItemID, err)
	}
	if t.OnFire != nil {
		t.OnFire(ev, err)
	}
	return err
}

// Writer persists catalog items.
type Writer interface {
	CreateItem(ctx context.Context, item *Item) error
	UpdateItem(ctx context.Context, item *Item) error
	DeleteItem(ctx context.Context, id int64) error
}

// InvalidatingWriter fires its Trigger after each successful write of the
// wrapped Writer. Failed writes leave the cache untouched. A failed
// invalidation does not fail the already committed write.
type InvalidatingWriter struct {
	next    Writer
	trigger *Trigger
}

// NewInvalidatingWriter wraps next.
func NewInvalidatingWriter(next Writer, trigger *Trigger) *InvalidatingWriter {
	return &InvalidatingWriter{next: next, trigger: trigger}
}

func (w *InvalidatingWriter) CreateItem(ctx context.Context, item *Item) error {
	if err := w.next.CreateItem(ctx, item); err != nil {
		return err
	}
	_ = w.trigger.Fire(ctx, WriteEvent{Op: OpCreate, ItemID: item.ID})
	return nil
}

func (w *InvalidatingWriter) UpdateItem(ctx context.Context, item *Item) error {
	if err := w.next.UpdateItem(ctx, item); err != nil {
		return err
	}
	_ = w.trigger.Fire(ctx, WriteEvent{Op: OpUpdate, ItemID: item.ID})
	return nil
}

func (w *InvalidatingWriter) DeleteItem(ctx context.Context, id int64) error {
	if err := w.next.DeleteItem(ctx, id); err != nil {
		return err
	}
	_ = w.trigger.Fire(ctx, WriteEvent{Op: OpDelete, ItemID: id})
	return nil
}
