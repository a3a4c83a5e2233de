// Package goToken issues, verifies, rotates and revokes signed access and
// refresh tokens.
//
// Tokens are stateless JWTs. Revocation state lives in a [RevocationStore]:
// one record per revoked token id, plus a per-subject cut-off written by
// [Engine.RevokeAllForSubject] that invalidates every token issued to the
// subject before a given second. Verification consults both.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build]. The store is the only shared mutable state.
//
// # Packages
//
//   - jwt encodes and decodes claims (HS256 or Ed25519, optional kid rotation).
//   - revocation defines the store contract with Redis and in-memory backends.
//   - sqlstore provides gorm-backed revocation and principal storage.
//   - cleanup schedules periodic purges of expired revocation records.
//   - middleware guards net/http handlers with Verify.
//   - metrics/export exposes engine counters to Prometheus and OpenTelemetry.
//
// Flow orchestration, rate limiting and audit dispatch live under internal/.
package goToken
