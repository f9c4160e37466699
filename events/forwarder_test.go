package events

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

type loginPayload struct {
	userID string
	ip     string
	token  string
}

func (p loginPayload) AuditRecord() Record {
	return Record{UserID: p.userID, IP: p.ip, Success: true}
}

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, Record) { <-s.gate }

func TestForwarderRelaysAuditableRecords(t *testing.T) {
	d := New(Config{})
	sink := NewChannelSink(4)
	f := NewForwarder(ForwarderConfig{BufferSize: 4}, sink)
	f.Attach(d)
	defer f.Close()

	d.Emit(context.Background(), "auth:login", loginPayload{userID: "u1", ip: "203.0.113.9", token: "secret"})
	d.Emit(context.Background(), "custom:thing", map[string]string{"x": "y"})

	select {
	case rec := <-sink.Records():
		if rec.Topic != "auth:login" || rec.UserID != "u1" || rec.IP != "203.0.113.9" || !rec.Success {
			t.Fatalf("unexpected record: %+v", rec)
		}
		if rec.Timestamp.IsZero() {
			t.Fatal("expected timestamp to be set")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first record")
	}

	select {
	case rec := <-sink.Records():
		if rec.Topic != "custom:thing" || rec.UserID != "" {
			t.Fatalf("unexpected record: %+v", rec)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for second record")
	}
}

func TestForwarderTopicFilter(t *testing.T) {
	d := New(Config{})
	sink := NewChannelSink(4)
	f := NewForwarder(ForwarderConfig{BufferSize: 4, Topic: "auth:*"}, sink)
	f.Attach(d)

	d.Emit(context.Background(), "user:created", nil)
	d.Emit(context.Background(), "auth:logout", nil)
	f.Close()

	if got := len(sink.Records()); got != 1 {
		t.Fatalf("expected exactly one forwarded record, got %d", got)
	}
	rec := <-sink.Records()
	if rec.Topic != "auth:logout" {
		t.Fatalf("expected auth:logout, got %q", rec.Topic)
	}
}

func TestForwarderDropIfFull(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	f := NewForwarder(ForwarderConfig{BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 20; i++ {
		f.Forward(context.Background(), Record{Topic: "x"})
	}
	if f.Dropped() == 0 {
		t.Fatal("expected dropped records when buffer is full")
	}

	close(sink.gate)
	f.Close()
}

func TestForwarderBlockingRespectsContext(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	f := NewForwarder(ForwarderConfig{BufferSize: 1}, sink)
	defer func() {
		close(sink.gate)
		f.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			f.Forward(ctx, Record{Topic: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Forward did not return after context deadline")
	}
	if f.Dropped() != 0 {
		t.Fatalf("blocking mode must not count drops, got %d", f.Dropped())
	}
}

func TestForwarderCloseDetachesAndIsIdempotent(t *testing.T) {
	d := New(Config{})
	f := NewForwarder(ForwarderConfig{}, nil)
	f.Attach(d)
	if d.ListenersFor("anything") != 1 {
		t.Fatal("expected forwarder subscription")
	}

	f.Close()
	f.Close()
	if d.ListenersFor("anything") != 0 {
		t.Fatal("expected forwarder to unsubscribe on close")
	}
	f.Forward(context.Background(), Record{Topic: "late"})
}

func TestForwarderCloseWithUndrainedChannelSink(t *testing.T) {
	sink := NewChannelSink(1)
	f := NewForwarder(ForwarderConfig{BufferSize: 8}, sink)
	for i := 0; i < 5; i++ {
		f.Forward(context.Background(), Record{Topic: "auth:login"})
	}

	closed := make(chan struct{})
	go func() {
		f.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on a full channel sink")
	}

	if got := len(sink.Records()); got != 1 {
		t.Fatalf("expected one buffered record, got %d", got)
	}
	if got := sink.Dropped(); got != 4 {
		t.Fatalf("expected four dropped records, got %d", got)
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Record{Topic: "auth:login", UserID: "u1", Success: true})
	sink.Emit(context.Background(), Record{Topic: "auth:login_failed", Error: "invalid credentials"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	var rec Record
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatalf("invalid json line: %v", err)
	}
	if rec.Topic != "auth:login_failed" || rec.Error != "invalid credentials" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	var nilSink *JSONWriterSink
	nilSink.Emit(context.Background(), Record{})
}
