package otel

import (
	"context"
	"errors"
	"fmt"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrNilMeter is returned when no meter is supplied.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource is returned when no metrics source is supplied.
	ErrNilSource = errors.New("nil metrics source")
)

// MetricsSource is read on every collection cycle. *goSession.Engine
// implements it, along with the optional internaldefs.EventSource and
// internaldefs.LimiterSource.
type MetricsSource interface {
	MetricsSnapshot() goSession.MetricsSnapshot
	AuditDropped() uint64
}

type observedSeries struct {
	id    goSession.MetricID
	attrs metric.ObserveOption
}

type observedFamily struct {
	instrument metric.Int64ObservableCounter
	series     []observedSeries
}

type observedHistogram struct {
	id      goSession.MetricID
	buckets metric.Int64ObservableGauge
	bounds  [8]metric.ObserveOption
	count   metric.Int64ObservableGauge
}

// OTelExporter keeps the callback registration alive until Close.
type OTelExporter struct {
	source       MetricsSource
	registration metric.Registration
	families     []observedFamily
	histograms   []observedHistogram
	auditDropped metric.Int64ObservableCounter

	events        internaldefs.EventSource
	eventFailures metric.Int64ObservableCounter

	limiter      internaldefs.LimiterSource
	failOpens    metric.Int64ObservableCounter
	strategyInfo metric.Int64ObservableGauge
}

// NewOTelExporter registers instruments for engine on meter.
func NewOTelExporter(meter metric.Meter, engine *goSession.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource registers instruments reading from source.
// Event-failure and rate-limit instruments are registered only when source
// implements the matching internaldefs interface.
func NewOTelExporterFromSource(meter metric.Meter, source MetricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &OTelExporter{
		source:   source,
		families: make([]observedFamily, 0, len(internaldefs.CounterFamilies)),
	}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterFamilies {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		fam := observedFamily{instrument: ins, series: make([]observedSeries, 0, len(def.Series))}
		for _, s := range def.Series {
			fam.series = append(fam.series, observedSeries{id: s.ID, attrs: attributesOf(s.Labels)})
		}
		exporter.families = append(exporter.families, fam)
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h := observedHistogram{id: def.ID}
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket", metric.WithDescription("Cumulative "+def.Help))
		if err != nil {
			return nil, fmt.Errorf("create histogram bucket gauge %s: %w", def.Name, err)
		}
		h.buckets = buckets
		for i, le := range internaldefs.HistogramBounds {
			h.bounds[i] = metric.WithAttributes(attribute.String("le", le))
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription("Histogram total sample count."))
		if err != nil {
			return nil, fmt.Errorf("create histogram count gauge %s: %w", def.Name, err)
		}
		h.count = count
		exporter.histograms = append(exporter.histograms, h)
		observables = append(observables, buckets, count)
	}

	auditDropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName, metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	exporter.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	if ev, ok := source.(internaldefs.EventSource); ok {
		ins, err := meter.Int64ObservableCounter(internaldefs.EventFailuresName, metric.WithDescription(internaldefs.EventFailuresHelp))
		if err != nil {
			return nil, fmt.Errorf("create event failures counter: %w", err)
		}
		exporter.events = ev
		exporter.eventFailures = ins
		observables = append(observables, ins)
	}

	if lim, ok := source.(internaldefs.LimiterSource); ok {
		failOpens, err := meter.Int64ObservableCounter(internaldefs.RateLimitFailOpenName, metric.WithDescription(internaldefs.RateLimitFailOpenHelp))
		if err != nil {
			return nil, fmt.Errorf("create fail-open counter: %w", err)
		}
		info, err := meter.Int64ObservableGauge(internaldefs.RateLimitInfoName, metric.WithDescription(internaldefs.RateLimitInfoHelp))
		if err != nil {
			return nil, fmt.Errorf("create strategy gauge: %w", err)
		}
		exporter.limiter = lim
		exporter.failOpens = failOpens
		exporter.strategyInfo = info
		observables = append(observables, failOpens, info)
	}

	registration, err := meter.RegisterCallback(exporter.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	exporter.registration = registration
	return exporter, nil
}

func (e *OTelExporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, fam := range e.families {
		for _, s := range fam.series {
			observer.ObserveInt64(fam.instrument, int64(snapshot.Counters[s.id]), s.attrs)
		}
	}

	for _, h := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[h.id]))
		for i, bound := range h.bounds {
			observer.ObserveInt64(h.buckets, int64(cumulative[i]), bound)
		}
		observer.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}

	observer.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))

	if e.events != nil {
		observer.ObserveInt64(e.eventFailures, int64(e.events.EventFailures()))
	}
	if e.limiter != nil {
		observer.ObserveInt64(e.failOpens, int64(e.limiter.RateLimitFailOpens()))
		if strategy := e.limiter.RateLimitStrategy(); strategy != "" {
			observer.ObserveInt64(e.strategyInfo, 1, metric.WithAttributes(attribute.String("strategy", strategy)))
		}
	}
	return nil
}

func attributesOf(labels []internaldefs.Label) metric.ObserveOption {
	kvs := make([]attribute.KeyValue, 0, len(labels))
	for _, l := range labels {
		kvs = append(kvs, attribute.String(l.Key, l.Value))
	}
	return metric.WithAttributeSet(attribute.NewSet(kvs...))
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
