package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(log *[]string, name string) Handler {
	return Listener(func(_ context.Context, msg Message) {
		*log = append(*log, name+"@"+msg.Topic)
	})
}

func TestWildcardSubscriptionInEmissionOrder(t *testing.T) {
	d := New(Config{})
	var got []string
	d.On("user:*", record(&got, "h"))

	d.Emit(context.Background(), "user:created", nil)
	d.Emit(context.Background(), "user:updated", nil)
	d.Emit(context.Background(), "session:created", nil)

	assert.Equal(t, []string{"h@user:created", "h@user:updated"}, got)
}

func TestMatches(t *testing.T) {
	cases := []struct {
		pattern, topic string
		want           bool
	}{
		{"user:created", "user:created", true},
		{"user:created", "user:updated", false},
		{"user:*", "user:created", true},
		{"user:*", "user", false},
		{"user:*", "user:", false},
		{"user:*", "user:a:b", false},
		{"user:*", "users:created", false},
		{"*", "anything:at:all", true},
		{"/sign-in/email:before", "/sign-in/email:before", true},
		{"/sign-in/email:*", "/sign-in/email:after", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Matches(tc.pattern, tc.topic), "%s vs %s", tc.pattern, tc.topic)
	}
}

func TestRegistrationOrderAcrossPatterns(t *testing.T) {
	d := New(Config{})
	var got []string
	d.On("*", record(&got, "global"))
	d.On("user:created", record(&got, "exact"))
	d.On("user:*", record(&got, "prefix"))

	d.Emit(context.Background(), "user:created", nil)
	assert.Equal(t, []string{"global@user:created", "exact@user:created", "prefix@user:created"}, got)
	assert.Equal(t, 3, d.ListenersFor("user:created"))
	assert.Equal(t, 1, d.ListenersFor("session:created"))
}

func TestHandlerErrorsAndPanicsAreIsolated(t *testing.T) {
	var reported []string
	d := New(Config{OnError: func(_ context.Context, topic string, err error) {
		reported = append(reported, topic+": "+err.Error())
	}})

	var ran []string
	d.On("user:created", func(context.Context, Message) (any, error) {
		return nil, errors.New("boom")
	})
	d.On("user:created", func(context.Context, Message) (any, error) {
		panic("kaboom")
	})
	d.On("user:created", record(&ran, "after"))

	require.NotPanics(t, func() {
		d.Emit(context.Background(), "user:created", nil)
	})
	assert.Equal(t, []string{"after@user:created"}, ran)
	require.Len(t, reported, 2)
	assert.Equal(t, "user:created: boom", reported[0])
	assert.Contains(t, reported[1], "kaboom")
	assert.Equal(t, uint64(2), d.Failures())
}

func TestPanickingErrorHandlerIsContained(t *testing.T) {
	d := New(Config{OnError: func(context.Context, string, error) { panic("bad reporter") }})
	d.On("x", func(context.Context, Message) (any, error) { return nil, errors.New("fail") })

	assert.NotPanics(t, func() { d.Emit(context.Background(), "x", nil) })
}

func TestOff(t *testing.T) {
	d := New(Config{})
	var got []string
	a := d.On("user:*", record(&got, "a"))
	d.On("user:*", record(&got, "b"))

	assert.True(t, d.Off(a))
	assert.False(t, d.Off(a), "second removal is a no-op")
	assert.False(t, d.Off(Subscription{}))

	d.Emit(context.Background(), "user:deleted", nil)
	assert.Equal(t, []string{"b@user:deleted"}, got)
	assert.Equal(t, "user:*", a.Topic())
}

func TestCollect(t *testing.T) {
	d := New(Config{})
	d.On("hook", func(context.Context, Message) (any, error) { return nil, nil })
	d.On("hook", func(_ context.Context, msg Message) (any, error) { return msg.Payload, nil })
	d.On("hook", func(context.Context, Message) (any, error) { return "ignored", errors.New("x") })
	d.On("hook", func(context.Context, Message) (any, error) { return 42, nil })

	assert.Equal(t, []any{"payload", 42}, d.Collect(context.Background(), "hook", "payload"))
	assert.Nil(t, d.Collect(context.Background(), "nothing", nil))
}

func TestList(t *testing.T) {
	d := New(Config{})
	d.On("user:*", Listener(func(context.Context, Message) {}))
	d.On("*", Listener(func(context.Context, Message) {}))
	d.On("user:*", Listener(func(context.Context, Message) {}))

	assert.Equal(t, []string{"user:*", "*"}, d.List())
}

func TestNilDispatcherIsSafe(t *testing.T) {
	var d *Dispatcher
	assert.NotPanics(t, func() {
		d.Emit(context.Background(), "x", nil)
		assert.Equal(t, Subscription{}, d.On("x", Listener(func(context.Context, Message) {})))
		assert.False(t, d.Off(Subscription{id: 1}))
		assert.Nil(t, d.List())
		assert.Zero(t, d.ListenersFor("x"))
	})
}

func TestConcurrentEmitAndSubscribe(t *testing.T) {
	d := New(Config{})
	var calls atomic.Int64
	d.On("tick", Listener(func(context.Context, Message) { calls.Add(1) }))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				d.Emit(context.Background(), "tick", nil)
			}
		}()
		go func() {
			defer wg.Done()
			sub := d.On("other", Listener(func(context.Context, Message) {}))
			d.Off(sub)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1600), calls.Load())
}
