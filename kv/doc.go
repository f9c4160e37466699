// Package kv defines the optional key-value store consumed by the rate
// limiter, with a Redis implementation and an in-process one.
package kv
