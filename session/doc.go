// Package session persists login sessions: one record per login holding the
// bearer token, the rotating refresh token and both expiries.
//
// # Rotation
//
// [Store.Rotate] is a compare-and-swap on the stored refresh value. The
// previous refresh token stops resolving in the same atomic step that
// installs the new one, so a replayed refresh token reports [ErrNotFound]
// and a concurrent loser reports [ErrConflict].
//
// # Backends
//
// [RedisStore] keeps each record in a HASH with lookup indexes for the
// bearer and refresh values; rotation runs as a Lua script. A SQL backend
// lives in the sqlstore subpackage.
//
// # What this package must NOT do
//
//   - Import shopcore or jwt (no upward imports).
//   - Decide whether a refresh window has elapsed; callers compare expiries.
package session
