// Package password hashes and verifies account credentials.
//
// New hashes are Argon2id PHC strings. Verify also accepts bcrypt hashes so
// accounts migrated from older stores keep working; callers may rehash on
// the next successful login when [Argon2.NeedsUpgrade] reports true.
//
// The package never stores credentials and never logs plaintext.
package password
