package otel

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/events"
	"github.com/MrEthical07/goSession/storage/memory"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goSession.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goSession.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goSession.MetricsSnapshot{
		Counters:   make(map[goSession.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[goSession.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	return rm
}

// findInt64 returns the data point of name whose attributes equal attrs.
func findInt64(rm metricdata.ResourceMetrics, name string, attrs ...attribute.KeyValue) (int64, bool) {
	want := attribute.NewSet(attrs...)
	match := func(points []metricdata.DataPoint[int64]) (int64, bool) {
		for _, p := range points {
			if p.Attributes.Equals(&want) {
				return p.Value, true
			}
		}
		return 0, false
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				return match(data.DataPoints)
			case metricdata.Gauge[int64]:
				return match(data.DataPoints)
			}
		}
	}
	return 0, false
}

func hasMetric(rm metricdata.ResourceMetrics, name string) bool {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return true
			}
		}
	}
	return false
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newTestMeter()

	src := &fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{
				goSession.MetricLoginSuccess:         3,
				goSession.MetricSessionLookupHit:     9,
				goSession.MetricPasswordResetFailure: 2,
				goSession.MetricLogout:               4,
			},
			Histograms: map[goSession.MetricID][]uint64{
				goSession.MetricHandleLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewOTelExporterFromSource(provider.Meter("gosession-test"), src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	rm := collect(t, reader)

	checks := []struct {
		name  string
		attrs []attribute.KeyValue
		want  int64
	}{
		{"gosession_sign_in_total", []attribute.KeyValue{attribute.String("outcome", "success")}, 3},
		{"gosession_sign_in_total", []attribute.KeyValue{attribute.String("outcome", "failure")}, 0},
		{"gosession_session_lookups_total", []attribute.KeyValue{attribute.String("outcome", "hit")}, 9},
		{"gosession_password_reset_total", []attribute.KeyValue{attribute.String("outcome", "failed")}, 2},
		{"gosession_sign_out_total", nil, 4},
		{"gosession_handle_latency_seconds_bucket", []attribute.KeyValue{attribute.String("le", "0.005")}, 1},
		{"gosession_handle_latency_seconds_bucket", []attribute.KeyValue{attribute.String("le", "+Inf")}, 8},
		{"gosession_handle_latency_seconds_count", nil, 8},
		{"gosession_audit_dropped_total", nil, 1},
	}
	for _, c := range checks {
		got, ok := findInt64(rm, c.name, c.attrs...)
		if !ok {
			t.Fatalf("metric %s %v not collected", c.name, c.attrs)
		}
		if got != c.want {
			t.Fatalf("%s %v = %d, want %d", c.name, c.attrs, got, c.want)
		}
	}

	if hasMetric(rm, "gosession_rate_limit_fail_open_total") || hasMetric(rm, "gosession_event_handler_failures_total") {
		t.Fatal("optional instruments need a source implementing them")
	}
}

func TestExporterReadsEngine(t *testing.T) {
	reader, provider := newTestMeter()

	cfg := goSession.DefaultConfig()
	enabled := true
	cfg.RateLimit.Enabled = &enabled

	engine, err := goSession.New().
		WithConfig(cfg).
		WithStore(memory.New()).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()

	exp, err := NewOTelExporter(provider.Meter("gosession-test"), engine)
	if err != nil {
		t.Fatalf("NewOTelExporter failed: %v", err)
	}
	defer exp.Close()

	engine.Events().On("billing:*", events.Listener(func(context.Context, events.Message) {
		panic("handler bug")
	}))
	engine.Events().Emit(context.Background(), "billing:failed", nil)
	_, _ = engine.Login(context.Background(), goSession.LoginInput{Email: "nobody@x.com", Password: "Secur3!Pass"})

	rm := collect(t, reader)
	if got, ok := findInt64(rm, "gosession_sign_in_total", attribute.String("outcome", "failure")); !ok || got != 1 {
		t.Fatalf("expected one sign-in failure, got %d (%v)", got, ok)
	}
	if got, ok := findInt64(rm, "gosession_event_handler_failures_total"); !ok || got != 1 {
		t.Fatalf("expected one handler failure, got %d (%v)", got, ok)
	}
	if got, ok := findInt64(rm, "gosession_rate_limit_strategy_info", attribute.String("strategy", "storage")); !ok || got != 1 {
		t.Fatalf("expected storage strategy info, got %d (%v)", got, ok)
	}
}

func TestExporterOmitsStrategyWhenLimiterDisabled(t *testing.T) {
	reader, provider := newTestMeter()

	engine, err := goSession.New().
		WithConfig(goSession.DefaultConfig()).
		WithStore(memory.New()).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()

	exp, err := NewOTelExporter(provider.Meter("gosession-test"), engine)
	if err != nil {
		t.Fatalf("NewOTelExporter failed: %v", err)
	}
	defer exp.Close()

	rm := collect(t, reader)
	if got, ok := findInt64(rm, "gosession_rate_limit_fail_open_total"); !ok || got != 0 {
		t.Fatalf("expected zero fail-opens, got %d (%v)", got, ok)
	}
	if _, ok := findInt64(rm, "gosession_rate_limit_strategy_info", attribute.String("strategy", "storage")); ok {
		t.Fatal("strategy info must be absent while limiting is disabled")
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newTestMeter()
	meter := provider.Meter("gosession-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewOTelExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newTestMeter()

	src := &fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{
				goSession.MetricLoginSuccess: 1,
			},
			Histograms: map[goSession.MetricID][]uint64{
				goSession.MetricHandleLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(provider.Meter("gosession-test"), src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goSession.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
