// Package password hashes and verifies passwords with Argon2id.
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters so the
// caller can re-hash after the next successful login. Plaintext is bounded by
// Config.MinPasswordBytes and Config.MaxPasswordBytes; the upper bound stops
// oversized inputs from being fed to the KDF.
package password
