// Package shopcore issues and rotates session credentials and serves a
// paginated product catalog through a read-through cache.
//
// An [Engine] is assembled by a [Builder] from injected collaborators: a
// session store (Redis by default, or any [session.Store]), a catalog
// cache (Redis or an in-process LRU), an optional [CatalogSource] and an
// optional [IdentityProvider]. Engine methods are safe for concurrent use.
//
// # Sessions
//
// [Engine.AddToken] persists a bearer token with a fresh opaque refresh
// token. [Engine.RefreshToken] rotates both in place with a
// compare-and-swap on the stored refresh value, so two concurrent
// refreshes of one token produce exactly one winner; the loser gets
// [ErrConflict]. Expired refresh tokens delete their session.
//
// # Login
//
// [Engine.Login] resolves a phone number through the [IdentityProvider],
// checks the password hash and opens a session. With a Redis client,
// repeated wrong passwords for one number lock it out with
// [ErrRateLimited] for [LoginConfig] Cooldown.
//
// # Catalog
//
// [Engine.GetOrLoad] and [Engine.Products] read through the cache. Cache
// failures degrade to direct loads. Writes made through
// [Engine.CatalogWriter] clear the cache after they commit.
//
// # Errors
//
// Every returned error maps to one [ErrorKind] via [KindOf].
package shopcore
