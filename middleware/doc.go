// Package middleware adapts shopcore.Engine bearer checks to net/http.
//
//   - [Guard] requires a live session: the token must verify and still be
//     the current bearer of an unrevoked session.
//   - [RequireJWTOnly] checks signature and expiry only, with no store
//     round trip.
//   - [RequireRole] narrows a guarded route to identities holding a role.
//   - [ClientIP] copies the caller address into the request context so
//     audit events carry it.
//
// Rejections are plain 401 or 403 responses; the engine error is not echoed.
package middleware
