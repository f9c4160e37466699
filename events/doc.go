// Package events is the publish/subscribe hub behind lifecycle events and
// per-endpoint before/after hooks.
//
// # Topics
//
//   - exact: "user:created"
//   - one level: "user:*" matches "user:created" but not "user" or "user:a:b"
//   - global: "*"
//
// Handlers run sequentially in registration order. A failing or panicking
// handler is reported through the configured ErrorHandler and never stops
// its siblings or reaches the emitter.
//
// # Audit
//
// [Forwarder] subscribes to a dispatcher and relays [Record] values to a
// [Sink] on its own goroutine, so slow sinks never hold a request.
//
// # What this package must NOT do
//
//   - Decide which domain events exist. The engine owns the topic names.
//   - Import goSession or any sibling package.
package events
