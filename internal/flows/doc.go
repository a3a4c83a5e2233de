// Package flows contains pure-function orchestrators for the token lifecycle:
// issuance, verification, refresh rotation and revocation.
//
// Each flow function (RunIssue, RunVerify, RunRotate, RunRevokeClaims, ...)
// accepts a typed dependency struct and returns a result carrying a failure
// kind. The root Engine maps failure kinds to public sentinel errors, metrics
// and audit events.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goToken (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency interfaces.
package flows
