// Package jwt encodes and decodes signed access and refresh token claims.
//
// Decode failures are classified into exactly one of ErrMalformed,
// ErrSignatureInvalid or ErrExpired so callers can map them to public error
// codes without inspecting library internals.
package jwt
