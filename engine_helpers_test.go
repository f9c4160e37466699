package goSession

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/events"
	"github.com/MrEthical07/goSession/storage/memory"
)

const testPassword = "Secur3!Pass"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	engine *Engine
	store  *memory.Store
	clock  *testClock
}

// fastConfig keeps argon2 cheap enough for unit tests.
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.SaltLength = 16
	cfg.Password.KeyLength = 16
	return cfg
}

func newTestEnv(t *testing.T, mutate func(*Config), plugins ...Plugin) *testEnv {
	t.Helper()

	cfg := fastConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	clock := newTestClock()
	store := memory.New()
	store.SetClock(clock.Now)

	engine, err := New().
		WithConfig(cfg).
		WithStore(store).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithMetricsEnabled(true).
		WithPlugins(plugins...).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	engine.now = clock.Now
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, store: store, clock: clock}
}

type call struct {
	method  string
	path    string
	body    any
	cookie  string
	headers map[string]string
}

func (env *testEnv) do(t *testing.T, c call) *Response {
	t.Helper()

	headers := MapHeader{}
	for k, v := range c.headers {
		headers[k] = v
	}
	if c.cookie != "" {
		headers["Cookie"] = env.engine.CookieName() + "=" + c.cookie
	}

	req := &Request{Method: c.method, Path: c.path, Headers: headers}
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		req.Body = raw
	}

	resp := env.engine.Handle(context.Background(), req)
	if resp == nil {
		t.Fatalf("%s %s: nil response", c.method, c.path)
	}
	return resp
}

// register signs a user up through the procedural API and returns the
// result with its cookie value.
func (env *testEnv) register(t *testing.T, email string) (*AuthResult, string) {
	t.Helper()
	res, err := env.engine.Register(context.Background(), RegisterInput{Email: email, Password: testPassword})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return res, res.Cookie.Value
}

func (env *testEnv) login(t *testing.T, email string) (*AuthResult, string) {
	t.Helper()
	res, err := env.engine.Login(context.Background(), LoginInput{Email: email, Password: testPassword})
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return res, res.Cookie.Value
}

// recorder captures domain events matching a pattern.
type recorder struct {
	mu   sync.Mutex
	msgs []events.Message
}

func record(d *events.Dispatcher, pattern string) *recorder {
	r := &recorder{}
	d.On(pattern, events.Listener(func(_ context.Context, msg events.Message) {
		r.mu.Lock()
		r.msgs = append(r.msgs, msg)
		r.mu.Unlock()
	}))
	return r
}

func (r *recorder) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.Topic)
	}
	return out
}

func (r *recorder) last(topic string) (events.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.msgs) - 1; i >= 0; i-- {
		if r.msgs[i].Topic == topic {
			return r.msgs[i], true
		}
	}
	return events.Message{}, false
}

func setCookieValue(t *testing.T, header string) string {
	t.Helper()
	c, err := http.ParseSetCookie(header)
	if err != nil {
		t.Fatalf("parse Set-Cookie %q: %v", header, err)
	}
	return c.Value
}

func apiErrorOf(t *testing.T, resp *Response) ErrorBody {
	t.Helper()
	body, ok := resp.Body.(ErrorBody)
	if !ok {
		t.Fatalf("expected ErrorBody, got %T (%+v)", resp.Body, resp.Body)
	}
	return body
}

func boolPtr(v bool) *bool { return &v }

func strPtr(v string) *string { return &v }
