// Package middleware mounts a goSession.Engine on net/http.
//
// # Adapters
//
//   - [Handler] translates *http.Request into goSession.Request, calls
//     Engine.Handle, and writes the goSession.Response back.
//   - [RequireSession] guards application routes with the session cookie and
//     injects the resolved user and session into the request context.
//   - [WriteResponse] renders a goSession.Response, for hosts with their own
//     adapters.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself; every decision is delegated to the
// Engine.
package middleware
