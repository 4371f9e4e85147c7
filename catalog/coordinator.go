package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Hooks observe the read path. Every field is optional.
type Hooks struct {
	Hit         func()
	Miss        func()
	LoadFailed  func(err error)
	LoadLatency func(time.Duration)
	CacheError  func(op string, err error)
	Cleared     func()
}

// Options configures a Coordinator.
type Options struct {
	// Timeout bounds each cache Get, Set and Delete. A cache slower than
	// this is treated as unavailable and the read falls back to the loader.
	// Zero disables it.
	Timeout time.Duration
	// ClearTimeout bounds a namespace purge. Zero leaves it to the caller's
	// context.
	ClearTimeout time.Duration
	// LoadTimeout bounds a shared loader call. The load is detached from the
	// cancellation of the caller that started it. Zero disables it.
	LoadTimeout time.Duration
	Warn        func(string, ...any)
	Hooks       Hooks
}

// Coordinator implements cache-aside reads over a Cache.
//
// Concurrent misses for the same key share one loader call; a caller that
// gives up stops waiting without failing the others. Clear bumps a
// generation counter so that a load started before a Clear never
// repopulates the cache after it: the page is written only if the
// generation is unchanged, and deleted again if a Clear begins while the
// write is in flight.
//
// A purge that fails leaves the cache stale. Until a purge for the current
// generation succeeds, reads retry it first and bypass the cache when the
// retry fails too. If the delete that follows a racing Clear also fails,
// the page survives until the next successful purge.
type Coordinator struct {
	cache      Cache
	opts       Options
	group      singleflight.Group
	generation atomic.Uint64
	cleared    atomic.Uint64 // highest generation whose purge succeeded
}

// NewCoordinator returns a Coordinator over cache.
func NewCoordinator(cache Cache, opts Options) *Coordinator {
	return &Coordinator{cache: cache, opts: opts}
}

// GetOrLoad returns the page for q from cache, or from loader on a miss.
//
// Cache errors are logged and absorbed. Loader errors are returned.
func (c *Coordinator) GetOrLoad(ctx context.Context, q Query, loader Loader) (Page, error) {
	if loader == nil {
		return Page{}, errors.New("catalog: nil loader")
	}
	q = q.Normalize()
	key := q.Key()

	if c.current(ctx) {
		if page, ok := c.cacheGet(ctx, key); ok {
			if c.opts.Hooks.Hit != nil {
				c.opts.Hooks.Hit()
			}
			return page, nil
		}
	}
	if c.opts.Hooks.Miss != nil {
		c.opts.Hooks.Miss()
	}

	gen := c.generation.Load()
	flightKey := strconv.FormatUint(gen, 10) + "|" + key
	ch := c.group.DoChan(flightKey, func() (interface{}, error) {
		lctx, cancel := c.detach(ctx, c.opts.LoadTimeout)
		defer cancel()

		start := time.Now()
		page, err := loader(lctx, q)
		if c.opts.Hooks.LoadLatency != nil {
			c.opts.Hooks.LoadLatency(time.Since(start))
		}
		if err != nil {
			return nil, err
		}
		page = page.Stamp()
		c.store(lctx, gen, key, page)
		return page, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		res = singleflight.Result{Err: ctx.Err()}
	}
	if res.Err != nil {
		if c.opts.Hooks.LoadFailed != nil {
			c.opts.Hooks.LoadFailed(res.Err)
		}
		return Page{}, fmt.Errorf("catalog: load %s: %w", key, res.Err)
	}
	return res.Val.(Page).Clone(), nil
}

// Clear purges the whole cache namespace. On failure the purge is retried
// by subsequent reads.
func (c *Coordinator) Clear(ctx context.Context) error {
	gen := c.generation.Add(1)
	return c.purge(ctx, gen)
}

// current reports whether every Clear so far has purged the cache,
// retrying the latest purge if not. Concurrent retries share one purge.
func (c *Coordinator) current(ctx context.Context) bool {
	gen := c.generation.Load()
	if c.cleared.Load() >= gen {
		return true
	}
	ch := c.group.DoChan("purge|"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		pctx, cancel := c.detach(ctx, 0)
		defer cancel()
		return nil, c.purge(pctx, gen)
	})
	select {
	case res := <-ch:
		return res.Err == nil
	case <-ctx.Done():
		return false
	}
}

func (c *Coordinator) purge(ctx context.Context, gen uint64) error {
	if c.opts.ClearTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.ClearTimeout)
		defer cancel()
	}
	if err := c.cache.Clear(ctx); err != nil {
		c.cacheFailed("clear", err)
		return err
	}
	for {
		done := c.cleared.Load()
		if done >= gen || c.cleared.CompareAndSwap(done, gen) {
			break
		}
	}
	if c.opts.Hooks.Cleared != nil {
		c.opts.Hooks.Cleared()
	}
	return nil
}

// store writes a freshly loaded page unless a Clear has begun since gen
// or an earlier purge is still outstanding.
func (c *Coordinator) store(ctx context.Context, gen uint64, key string, page Page) {
	if c.generation.Load() != gen || c.cleared.Load() < gen {
		return
	}
	c.cacheSet(ctx, key, page)
	if c.generation.Load() == gen {
		return
	}
	cctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := c.cache.Delete(cctx, key); err != nil {
		c.cacheFailed("delete", err)
	}
}

func (c *Coordinator) cacheGet(ctx context.Context, key string) (Page, bool) {
	cctx, cancel := c.withTimeout(ctx)
	defer cancel()
	page, ok, err := c.cache.Get(cctx, key)
	if err != nil {
		c.cacheFailed("get", err)
		return Page{}, false
	}
	return page, ok
}

func (c *Coordinator) cacheSet(ctx context.Context, key string, page Page) {
	cctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := c.cache.Set(cctx, key, page); err != nil {
		c.cacheFailed("set", err)
	}
}

func (c *Coordinator) cacheFailed(op string, err error) {
	if c.opts.Warn != nil {
		c.opts.Warn("shopcore: catalog cache %s failed: %v", op, err)
	}
	if c.opts.Hooks.CacheError != nil {
		c.opts.Hooks.CacheError(op, err)
	}
}

func (c *Coordinator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.opts.Timeout)
}

// detach returns a context that keeps ctx's values but not its
// cancellation, bounded by timeout when positive.
func (c *Coordinator) detach(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
