package internaldefs

import (
	shopcore "github.com/MrEthical07/shopcore"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   shopcore.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for export.
type HistogramDef struct {
	ID   shopcore.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: shopcore.MetricLoginSuccess, Name: "shopcore_login_success_total", Help: "Successful login attempts."},
	{ID: shopcore.MetricLoginFailure, Name: "shopcore_login_failure_total", Help: "Failed login attempts."},
	{ID: shopcore.MetricLoginThrottled, Name: "shopcore_login_throttled_total", Help: "Logins refused by the failed-attempt throttle."},
	{ID: shopcore.MetricRefreshSuccess, Name: "shopcore_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: shopcore.MetricRefreshFailure, Name: "shopcore_refresh_failure_total", Help: "Failed refresh attempts of any kind."},
	{ID: shopcore.MetricRefreshConflict, Name: "shopcore_refresh_conflict_total", Help: "Refreshes that lost a concurrent rotation."},
	{ID: shopcore.MetricRefreshExpired, Name: "shopcore_refresh_expired_total", Help: "Refreshes rejected after the refresh window closed."},
	{ID: shopcore.MetricRefreshRevoked, Name: "shopcore_refresh_revoked_total", Help: "Refreshes rejected for revoked sessions."},
	{ID: shopcore.MetricAuthenticateFailure, Name: "shopcore_authenticate_failure_total", Help: "Rejected bearer tokens."},
	{ID: shopcore.MetricSessionCreated, Name: "shopcore_session_created_total", Help: "Created sessions."},
	{ID: shopcore.MetricSessionRevoked, Name: "shopcore_session_revoked_total", Help: "Revoked sessions."},
	{ID: shopcore.MetricLogout, Name: "shopcore_logout_total", Help: "Single-session logout operations."},
	{ID: shopcore.MetricLogoutAll, Name: "shopcore_logout_all_total", Help: "Logout-all operations."},
	{ID: shopcore.MetricCatalogHit, Name: "shopcore_catalog_hit_total", Help: "Catalog reads served from cache."},
	{ID: shopcore.MetricCatalogMiss, Name: "shopcore_catalog_miss_total", Help: "Catalog reads that missed the cache."},
	{ID: shopcore.MetricCatalogLoadFailure, Name: "shopcore_catalog_load_failure_total", Help: "Failed catalog loads from the source."},
	{ID: shopcore.MetricCatalogCacheError, Name: "shopcore_catalog_cache_error_total", Help: "Catalog cache failures absorbed by reads."},
	{ID: shopcore.MetricCatalogInvalidation, Name: "shopcore_catalog_invalidation_total", Help: "Catalog cache clears after writes."},
	{ID: shopcore.MetricCatalogInvalidationFailure, Name: "shopcore_catalog_invalidation_failure_total", Help: "Catalog cache clears that failed."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: shopcore.MetricRefreshLatency, Name: "shopcore_refresh_latency_seconds", Help: "Refresh rotation latency."},
	{ID: shopcore.MetricCatalogLoadLatency, Name: "shopcore_catalog_load_latency_seconds", Help: "Catalog source load latency."},
}

// HistogramBounds are the upper bounds of the engine's eight latency
// buckets, in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are metric-name-safe forms of HistogramBounds.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, padding
// with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
