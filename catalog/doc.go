// Package catalog serves paginated product listings through a cache-aside
// read path and invalidates the whole cache namespace on every write.
//
// A [Query] canonicalizes to one cache key regardless of how the caller
// built it. [Coordinator.GetOrLoad] serves hits unchanged; on a miss it runs
// the supplied [Loader], stamps the page count onto every item, and
// populates the cache best-effort. Cache failures never fail a read.
//
// Writes go through an [InvalidatingWriter], which fires a [Trigger] after
// the underlying write commits. The trigger clears the namespace; there is
// no per-key invalidation. A clear that fails is retried by the next read,
// and reads bypass the cache until one succeeds.
package catalog
