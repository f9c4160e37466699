package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// ForwarderConfig controls buffering between the dispatcher and a sink.
type ForwarderConfig struct {
	BufferSize int
	// DropIfFull drops records instead of blocking the emitting request when
	// the buffer is full. Dropped records are counted.
	DropIfFull bool
	// Topic selects which events are forwarded; defaults to "*".
	Topic string
}

// Forwarder relays emitted events to a Sink on a background goroutine.
type Forwarder struct {
	cfg       ForwarderConfig
	sink      Sink
	ch        chan Record
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
	now       func() time.Time

	dispatcher *Dispatcher
	sub        Subscription
}

// NewForwarder starts a forwarder. Call Attach to connect it to a
// dispatcher and Close to flush and stop it.
func NewForwarder(cfg ForwarderConfig, sink Sink) *Forwarder {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.Topic == "" {
		cfg.Topic = Wildcard
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	f := &Forwarder{
		cfg:  cfg,
		sink: sink,
		ch:   make(chan Record, cfg.BufferSize),
		done: make(chan struct{}),
		now:  time.Now,
	}
	f.wg.Add(1)
	go f.run()
	return f
}

// Attach subscribes the forwarder to d. A forwarder attaches to at most one
// dispatcher.
func (f *Forwarder) Attach(d *Dispatcher) Subscription {
	if f == nil || d == nil || f.dispatcher != nil {
		return Subscription{}
	}
	f.dispatcher = d
	f.sub = d.On(f.cfg.Topic, Listener(func(ctx context.Context, msg Message) {
		f.Forward(ctx, recordOf(msg, f.now()))
	}))
	return f.sub
}

func (f *Forwarder) run() {
	defer f.wg.Done()

	for {
		select {
		case rec := <-f.ch:
			f.sink.Emit(context.Background(), rec)
		case <-f.done:
			for {
				select {
				case rec := <-f.ch:
					f.sink.Emit(context.Background(), rec)
				default:
					return
				}
			}
		}
	}
}

// Forward enqueues one record.
func (f *Forwarder) Forward(ctx context.Context, rec Record) {
	if f == nil || f.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if f.cfg.DropIfFull {
		select {
		case f.ch <- rec:
		case <-f.done:
		default:
			f.dropped.Add(1)
		}
		return
	}

	select {
	case f.ch <- rec:
	case <-ctx.Done():
	case <-f.done:
	}
}

// Close detaches from the dispatcher, drains buffered records and stops
// the worker.
func (f *Forwarder) Close() {
	if f == nil {
		return
	}
	f.closeOnce.Do(func() {
		if f.dispatcher != nil {
			f.dispatcher.Off(f.sub)
		}
		f.closed.Store(true)
		close(f.done)
		f.wg.Wait()
	})
}

// Dropped returns how many records were discarded because the buffer was full.
func (f *Forwarder) Dropped() uint64 {
	if f == nil {
		return 0
	}
	return f.dropped.Load()
}
