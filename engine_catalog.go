package shopcore

import (
	"context"
	"strconv"

	"github.com/MrEthical07/shopcore/catalog"
)

// GetOrLoad serves q from the catalog cache, calling loader on a miss.
// Cache failures never fail the read.
func (e *Engine) GetOrLoad(ctx context.Context, q catalog.Query, loader catalog.Loader) (catalog.Page, error) {
	if e == nil || e.catalog == nil {
		return catalog.Page{}, ErrEngineNotReady
	}
	return e.catalog.GetOrLoad(ctx, q, loader)
}

// Products serves q through the cache from the configured CatalogSource.
func (e *Engine) Products(ctx context.Context, q catalog.Query) (catalog.Page, error) {
	if e == nil || e.catalog == nil || e.catalogSource == nil {
		return catalog.Page{}, ErrEngineNotReady
	}
	return e.catalog.GetOrLoad(ctx, q, e.catalogSource.Load)
}

// CatalogWriter returns the configured CatalogSource wrapped so that every
// successful write clears the catalog cache. It is nil without a source.
func (e *Engine) CatalogWriter() catalog.Writer {
	if e == nil || e.catalogWriter == nil {
		return nil
	}
	return e.catalogWriter
}

// WrapCatalogWriter wraps any Writer with the engine's invalidation trigger.
func (e *Engine) WrapCatalogWriter(w catalog.Writer) catalog.Writer {
	return catalog.NewInvalidatingWriter(w, e.trigger)
}

// ClearCatalog purges every cached catalog page. Unlike reads, it reports
// cache failures.
func (e *Engine) ClearCatalog(ctx context.Context) error {
	if e == nil || e.trigger == nil {
		return ErrEngineNotReady
	}
	return e.trigger.Fire(ctx, catalog.WriteEvent{Op: catalog.OpManual})
}

func (e *Engine) onCatalogInvalidated(ev catalog.WriteEvent, err error) {
	ctx := context.Background()
	meta := func() map[string]string {
		return map[string]string{
			"op":      string(ev.Op),
			"item_id": strconv.FormatInt(ev.ItemID, 10),
		}
	}
	if err != nil {
		e.metricInc(MetricCatalogInvalidationFailure)
		e.emitAudit(ctx, auditEventCatalogInvalidated, false, 0, "", err, meta)
		return
	}
	e.metricInc(MetricCatalogInvalidation)
	e.emitAudit(ctx, auditEventCatalogInvalidated, true, 0, "", nil, meta)
}
