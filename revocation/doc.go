// Package revocation records revoked token identifiers and per-subject
// revocation watermarks.
//
// A [Record] marks a single token (by jti) as unusable until its natural
// expiry. A [Watermark] marks every token of a subject issued before
// ValidSince as unusable, which is how revoke-all is expressed without
// enumerating issued tokens.
//
// # Implementations
//
//   - [MemoryStore]: process-local, for tests and single-node tools.
//   - [RedisStore]: Redis keys with TTLs, per-subject sets and an expiry index.
//   - sqlstore.RevocationStore: relational tables via gorm (postgres, mysql, sqlite).
//
// # What this package must NOT do
//
//   - Parse or verify tokens.
//   - Read the wall clock for purge decisions; callers pass "now".
package revocation
