// Package jwt signs and verifies bearer tokens for shopcore sessions.
//
// Verification failures collapse into two sentinels: [ErrTokenExpired]
// when only the time window fails and [ErrTokenInvalid] otherwise.
package jwt
