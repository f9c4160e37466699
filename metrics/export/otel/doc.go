// Package otel binds goSession metrics to OpenTelemetry observable
// instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per metric family
// and reports each outcome as an attribute set, matching the series of the
// prometheus package. Latency buckets are one gauge keyed by the "le"
// attribute. A single callback reads [goSession.Engine.MetricsSnapshot] on
// each collection cycle.
//
// Callers own the MeterProvider and supply the Meter.
package otel
