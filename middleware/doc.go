// Package middleware adapts goToken verification to net/http.
//
// # Guards
//
//   - [Guard] verifies the bearer token against an expected type.
//   - [RequireAccess] and [RequireRefresh] are Guard with a fixed type.
//   - [RequireFresh] and [RequireAdmin] run after a guard and check the
//     claims it stored in the request context.
//   - [ClientIP] records the caller address for login throttling.
//
// Rejections are written as a small JSON body carrying goToken.PublicCode,
// so clients never learn why a token failed beyond that code.
//
// This package does not parse tokens or touch the revocation store; every
// decision is delegated to the engine.
package middleware
