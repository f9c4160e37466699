// Package storage defines the persistence contract the engine depends on:
// users, sessions and optional rate-limit counters.
//
// Backends live in subpackages (memory, sqlite) and are checked against the
// shared suite in storagetest. The engine never branches on backend identity.
//
// # Token consumption
//
// Verification and reset tokens are consumed through UserStore.Update with a
// TokenGuard. The guard and the write happen in one backend call, so a token
// can authorize its side effect at most once.
package storage
