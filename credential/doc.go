// Package credential generates and digests the secrets the engine hands out:
// session identifiers, verification/reset tokens and user ids. It also owns
// email normalization, which every storage lookup goes through.
package credential
