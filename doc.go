// Package goSession provides a framework-agnostic session-authentication
// engine: email/password sign-up and sign-in, server-side sessions carried by
// an opaque cookie, email verification, password reset, rate limiting,
// account lockout and lifecycle events.
//
// Hosts build an [Engine] once through [Builder] and hand it normalized
// requests with [Engine.Handle]; the returned [Response] carries the status,
// a JSON-serializable body and the Set-Cookie directive to apply. Every
// operation is also available procedurally (Engine.Register, Engine.Login,
// Engine.GetSession, ...), taking the raw cookie value where a session is
// needed.
//
// # Architecture boundaries
//
// Persistence is consumed through [storage.Store]; the engine never assumes a
// particular backend. Rate-limit counters live in a [kv.Store] when one is
// configured, in the storage backend when it implements
// [storage.RateLimitStore], and in process memory otherwise.
//
// The session cookie is never trusted on its own: every lookup re-reads the
// session record and checks that its owner matches the cookie.
//
// # Extension points
//
// Domain events (user:created, auth:login, ...) are published on
// [Engine.Events]. Endpoint hooks ("<pattern>:before", "<pattern>:after") are
// published on [Engine.Hooks]. [Plugin] implementations add routes, hooks and
// named extensions during Build.
//
// Engine methods are safe for concurrent use after Build.
package goSession
