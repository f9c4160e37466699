package events

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
)

// Wildcard matches every topic.
const Wildcard = "*"

// Message is what a handler receives for one emitted topic.
type Message struct {
	Topic   string
	Payload any
}

// Handler reacts to a message. The returned value is only observed by
// Collect; Emit discards it. Errors never reach the emitter.
type Handler func(ctx context.Context, msg Message) (any, error)

// Listener adapts a handler that returns nothing.
func Listener(fn func(ctx context.Context, msg Message)) Handler {
	return func(ctx context.Context, msg Message) (any, error) {
		fn(ctx, msg)
		return nil, nil
	}
}

// ErrorHandler receives handler failures, including recovered panics.
type ErrorHandler func(ctx context.Context, topic string, err error)

// Subscription identifies one On registration. Pass it to Off to remove it.
type Subscription struct {
	id    uint64
	topic string
}

// Topic returns the pattern the subscription was registered under.
func (s Subscription) Topic() string { return s.topic }

type subscription struct {
	id      uint64
	pattern string
	handler Handler
}

// Config configures a Dispatcher.
type Config struct {
	Logger  *slog.Logger
	OnError ErrorHandler
}

// Dispatcher is a topic publish/subscribe hub. Subscriptions run
// sequentially in registration order; concurrent emits are independent.
type Dispatcher struct {
	mu       sync.RWMutex
	subs     []*subscription
	nextID   uint64
	logger   *slog.Logger
	onError  ErrorHandler
	failures atomic.Uint64
}

// New returns an empty dispatcher.
func New(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{logger: logger, onError: cfg.OnError}
	if d.onError == nil {
		d.onError = d.logError
	}
	return d
}

// On subscribes handler to topic. Topic may be exact, "prefix:*" or "*".
func (d *Dispatcher) On(topic string, handler Handler) Subscription {
	if d == nil || handler == nil {
		return Subscription{}
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	d.subs = append(d.subs, &subscription{id: d.nextID, pattern: topic, handler: handler})
	return Subscription{id: d.nextID, topic: topic}
}

// Off removes a subscription. It reports whether anything was removed.
func (d *Dispatcher) Off(sub Subscription) bool {
	if d == nil || sub.id == 0 {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, s := range d.subs {
		if s.id == sub.id {
			next := make([]*subscription, 0, len(d.subs)-1)
			next = append(next, d.subs[:i]...)
			next = append(next, d.subs[i+1:]...)
			d.subs = next
			return true
		}
	}
	return false
}

// Emit runs every matching handler and waits for all of them.
func (d *Dispatcher) Emit(ctx context.Context, topic string, payload any) {
	d.dispatch(ctx, topic, payload, nil)
}

// Collect runs every matching handler like Emit and returns the non-nil
// values they produced, in invocation order.
func (d *Dispatcher) Collect(ctx context.Context, topic string, payload any) []any {
	var out []any
	d.dispatch(ctx, topic, payload, func(v any) { out = append(out, v) })
	return out
}

// List returns the distinct subscribed patterns in first-registration order.
func (d *Dispatcher) List() []string {
	if d == nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	seen := make(map[string]struct{}, len(d.subs))
	out := make([]string, 0, len(d.subs))
	for _, s := range d.subs {
		if _, ok := seen[s.pattern]; ok {
			continue
		}
		seen[s.pattern] = struct{}{}
		out = append(out, s.pattern)
	}
	return out
}

// ListenersFor returns how many subscriptions an Emit of topic would invoke.
func (d *Dispatcher) ListenersFor(topic string) int {
	return len(d.matching(topic))
}

// Failures returns the number of handler errors and panics observed.
func (d *Dispatcher) Failures() uint64 {
	if d == nil {
		return 0
	}
	return d.failures.Load()
}

func (d *Dispatcher) matching(topic string) []*subscription {
	if d == nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []*subscription
	for _, s := range d.subs {
		if Matches(s.pattern, topic) {
			out = append(out, s)
		}
	}
	return out
}

func (d *Dispatcher) dispatch(ctx context.Context, topic string, payload any, collect func(any)) {
	subs := d.matching(topic)
	if len(subs) == 0 {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	msg := Message{Topic: topic, Payload: payload}
	for _, s := range subs {
		v, err := d.invoke(ctx, s.handler, msg)
		if err != nil {
			d.failures.Add(1)
			d.reportError(ctx, topic, err)
			continue
		}
		if collect != nil && v != nil {
			collect(v)
		}
	}
}

func (d *Dispatcher) invoke(ctx context.Context, h Handler, msg Message) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event handler panic: %v\n%s", r, debug.Stack())
		}
	}()
	return h(ctx, msg)
}

func (d *Dispatcher) reportError(ctx context.Context, topic string, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event error handler panicked", "topic", topic, "panic", r)
		}
	}()
	d.onError(ctx, topic, err)
}

func (d *Dispatcher) logError(ctx context.Context, topic string, err error) {
	d.logger.ErrorContext(ctx, "event handler failed", "topic", topic, "err", err)
}

// Matches reports whether pattern selects topic. "*" matches everything and
// "prefix:*" matches exactly one further level below prefix.
func Matches(pattern, topic string) bool {
	if pattern == Wildcard || pattern == topic {
		return true
	}
	prefix, ok := strings.CutSuffix(pattern, ":*")
	if !ok {
		return false
	}
	rest, ok := strings.CutPrefix(topic, prefix+":")
	return ok && rest != "" && !strings.Contains(rest, ":")
}
