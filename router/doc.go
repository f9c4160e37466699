// Package router matches (method, path) pairs to handlers.
//
// Patterns use ":name" for one-segment parameters and a final "*" for a
// suffix wildcard. Static segments outrank parameters, which outrank the
// wildcard. Duplicate method+pattern registrations are rejected.
package router
