package events

import (
	"context"
	"testing"
)

func BenchmarkEmitWildcard(b *testing.B) {
	d := New(Config{})
	d.On("user:*", Listener(func(context.Context, Message) {}))
	d.On(Wildcard, Listener(func(context.Context, Message) {}))

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			d.Emit(context.Background(), "user:created", nil)
		}
	})
}

// BenchmarkEmitToAuditForwarder measures the cost an audited event adds to
// the emitting request when the sink keeps up.
func BenchmarkEmitToAuditForwarder(b *testing.B) {
	d := New(Config{})
	f := NewForwarder(ForwarderConfig{BufferSize: 1024, DropIfFull: true}, NoOpSink{})
	f.Attach(d)
	b.Cleanup(f.Close)
	payload := loginPayload{userID: "u1", ip: "203.0.113.9"}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.Emit(context.Background(), "auth:login", payload)
	}
}
