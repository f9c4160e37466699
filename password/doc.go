// Package password implements password hashing, verification and strength
// checks.
//
// # Storage format
//
// Hashes are Argon2id keys. The key and its salt are returned as two separate
// base64 strings (standard alphabet, no padding) so storage backends can keep
// them in distinct columns:
//
//	hash, salt, err := hasher.Hash(plain)
//	ok := hasher.Verify(plain, hash, salt)
//
// Verify never returns an error: malformed stored values simply fail to match.
//
// # Architecture boundaries
//
// This package owns hashing and policy evaluation only. Deciding when a policy
// applies (registration, reset, change) is the Engine's job.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords - callers supply plaintext and receive hashes.
//   - Import any other goSession package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
