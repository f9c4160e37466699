package events

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Record is the audit representation of an emitted domain event.
type Record struct {
	Timestamp time.Time         `json:"timestamp"`
	Topic     string            `json:"topic"`
	UserID    string            `json:"user_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Auditable is implemented by payloads that know their audit shape.
// Secrets such as raw tokens must be left out of the record.
type Auditable interface {
	AuditRecord() Record
}

// Sink receives audit records.
type Sink interface {
	Emit(ctx context.Context, rec Record)
}

// NoOpSink drops audit records.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Record) {}

// ChannelSink writes records into a buffered channel. Emit never blocks:
// records arriving while the buffer is full are counted and dropped.
type ChannelSink struct {
	records chan Record
	dropped atomic.Uint64
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{records: make(chan Record, buffer)}
}

func (s *ChannelSink) Emit(_ context.Context, rec Record) {
	select {
	case s.records <- rec:
	default:
		s.dropped.Add(1)
	}
}

func (s *ChannelSink) Records() <-chan Record {
	return s.records
}

// Dropped returns how many records found the channel full.
func (s *ChannelSink) Dropped() uint64 {
	return s.dropped.Load()
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Emit(_ context.Context, rec Record) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(data)
}

func recordOf(msg Message, now time.Time) Record {
	var rec Record
	if a, ok := msg.Payload.(Auditable); ok {
		rec = a.AuditRecord()
	} else {
		rec.Success = true
	}
	rec.Topic = msg.Topic
	if rec.Timestamp.IsZero() {
		rec.Timestamp = now
	}
	return rec
}
