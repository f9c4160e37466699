package goSession

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/events"
	"github.com/MrEthical07/goSession/storage"
	"github.com/MrEthical07/goSession/storage/memory"
)

func TestHandleUnknownRouteAndMethod(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, call{method: http.MethodGet, path: "/api/auth/nope"})
	if resp.Status != http.StatusNotFound {
		t.Fatalf("unknown route: expected 404, got %d", resp.Status)
	}

	resp = env.do(t, call{method: http.MethodGet, path: "/elsewhere/ok"})
	if resp.Status != http.StatusNotFound {
		t.Fatalf("outside base path: expected 404, got %d", resp.Status)
	}

	resp = env.do(t, call{method: http.MethodGet, path: "/api/auth/sign-out"})
	if resp.Status != http.StatusMethodNotAllowed {
		t.Fatalf("wrong method: expected 405, got %d", resp.Status)
	}
	if resp.Headers["Allow"] != http.MethodPost {
		t.Fatalf("expected Allow: POST, got %q", resp.Headers["Allow"])
	}
}

func TestHandleOKAndQueryString(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, call{method: http.MethodGet, path: "/api/auth/ok?probe=1"})
	if resp.Status != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	if body := resp.Body.(map[string]bool); !body["ok"] {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestHandleLeavesCallerRequestUntouched(t *testing.T) {
	env := newTestEnv(t, nil)

	req := &Request{Method: http.MethodGet, Path: "/api/auth/session"}
	if resp := env.engine.Handle(context.Background(), req); resp.Status != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	if req.Headers != nil {
		t.Fatalf("Handle must not assign headers on the caller's request, got %#v", req.Headers)
	}
}

func TestHandleCustomBasePath(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.BasePath = "/auth/" })

	if resp := env.do(t, call{method: http.MethodGet, path: "/auth/ok"}); resp.Status != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	if resp := env.do(t, call{method: http.MethodGet, path: "/api/auth/ok"}); resp.Status != http.StatusNotFound {
		t.Fatalf("expected 404 under old base path, got %d", resp.Status)
	}
}

func TestHandleRejectsMalformedBody(t *testing.T) {
	env := newTestEnv(t, nil)

	req := &Request{
		Method:  http.MethodPost,
		Path:    "/api/auth/sign-in/email",
		Headers: MapHeader{},
		Body:    []byte(`{"email":`),
	}
	resp := env.engine.Handle(context.Background(), req)
	if resp.Status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Status)
	}
	if body := apiErrorOf(t, resp); body.Code != "INVALID_REQUEST" {
		t.Fatalf("unexpected code %q", body.Code)
	}

	req.Body = nil
	if resp := env.engine.Handle(context.Background(), req); resp.Status != http.StatusBadRequest {
		t.Fatalf("empty body: expected 400, got %d", resp.Status)
	}
}

func TestHandleRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.RateLimit.Enabled = boolPtr(true) })

	signIn := func(ip string) *Response {
		return env.do(t, call{
			method:  http.MethodPost,
			path:    "/api/auth/sign-in/email",
			body:    map[string]string{"email": "a@x.com", "password": "Wr0ng!Pass"},
			headers: map[string]string{"X-Forwarded-For": ip},
		})
	}

	for i := 1; i <= 3; i++ {
		resp := signIn("198.51.100.1")
		if resp.Status != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i, resp.Status)
		}
		if resp.Headers["X-RateLimit-Limit"] != "3" {
			t.Fatalf("attempt %d: expected X-RateLimit-Limit 3, got %q", i, resp.Headers["X-RateLimit-Limit"])
		}
	}

	resp := signIn("198.51.100.1")
	if resp.Status != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Status)
	}
	if resp.Headers["Retry-After"] == "" {
		t.Fatal("429 must carry Retry-After")
	}
	if body := apiErrorOf(t, resp); body.Code != "RATE_LIMITED" {
		t.Fatalf("unexpected code %q", body.Code)
	}

	if resp := signIn("198.51.100.2"); resp.Status != http.StatusUnauthorized {
		t.Fatalf("other client should not be limited, got %d", resp.Status)
	}

	env.clock.Advance(11 * time.Second)
	if resp := signIn("198.51.100.1"); resp.Status != http.StatusUnauthorized {
		t.Fatalf("window should have reset, got %d", resp.Status)
	}

	if got := env.engine.MetricsSnapshot().Counters[MetricRateLimitHit]; got != 1 {
		t.Fatalf("expected one rate-limit metric, got %d", got)
	}
}

func TestBeforeHookShortCircuits(t *testing.T) {
	env := newTestEnv(t, nil)

	var seen string
	env.engine.Hooks().On("/sign-up/email:before", func(_ context.Context, msg events.Message) (any, error) {
		hc := msg.Payload.(*HookContext)
		seen = hc.Request.Pattern
		return JSON(http.StatusForbidden, StatusBody{Message: "closed"}), nil
	})

	resp := env.do(t, call{
		method: http.MethodPost,
		path:   "/api/auth/sign-up/email",
		body:   map[string]string{"email": "a@x.com", "password": testPassword},
	})
	if resp.Status != http.StatusForbidden {
		t.Fatalf("expected hook response 403, got %d", resp.Status)
	}
	if seen != "/sign-up/email" {
		t.Fatalf("hook saw pattern %q", seen)
	}
	if _, err := env.store.Users().FindByEmail(context.Background(), "a@x.com"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatal("handler must not run after a short-circuit")
	}
}

func TestBeforeHookErrorDoesNotBlock(t *testing.T) {
	env := newTestEnv(t, nil)
	env.engine.Hooks().On("/ok:before", func(context.Context, events.Message) (any, error) {
		return nil, errors.New("hook failed")
	})

	if resp := env.do(t, call{method: http.MethodGet, path: "/api/auth/ok"}); resp.Status != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
}

func TestAfterHookReplacesResponse(t *testing.T) {
	env := newTestEnv(t, nil)

	var status int
	env.engine.Hooks().On("/sessions/:id:after", func(_ context.Context, msg events.Message) (any, error) {
		hc := msg.Payload.(*HookContext)
		status = hc.Response.Status
		if hc.Err == nil {
			t.Error("expected the handler error in the hook context")
		}
		return JSON(http.StatusTeapot, nil), nil
	})

	resp := env.do(t, call{method: http.MethodDelete, path: "/api/auth/sessions/abc"})
	if status != http.StatusUnauthorized {
		t.Fatalf("after hook saw status %d", status)
	}
	if resp.Status != http.StatusTeapot {
		t.Fatalf("expected replaced status 418, got %d", resp.Status)
	}
}

func TestAuditSinkReceivesDomainEvents(t *testing.T) {
	cfg := fastConfig()
	sink := NewChannelSink(64)
	engine, err := New().
		WithConfig(cfg).
		WithStore(memory.New()).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	res, err := engine.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: testPassword})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	engine.Handle(context.Background(), &Request{Method: http.MethodGet, Path: "/api/auth/ok"})
	engine.Close()

	var topics []string
	for {
		select {
		case rec := <-sink.Records():
			topics = append(topics, rec.Topic)
			if rec.UserID != res.User.ID {
				t.Fatalf("record %s has user %q", rec.Topic, rec.UserID)
			}
			continue
		default:
		}
		break
	}

	want := []string{TopicUserCreated, TopicSessionCreated}
	if strings.Join(topics, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, topics)
	}
}

type failingUsers struct {
	storage.UserStore
}

func (failingUsers) FindByEmail(context.Context, string) (*storage.User, error) {
	return nil, errors.New("connection reset")
}

type failingStore struct {
	*memory.Store
}

func (s failingStore) Users() storage.UserStore { return failingUsers{s.Store.Users()} }

func TestHandleHidesInternalErrors(t *testing.T) {
	engine, err := New().
		WithConfig(fastConfig()).
		WithStore(failingStore{memory.New()}).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()

	resp := engine.Handle(context.Background(), &Request{
		Method: http.MethodPost,
		Path:   "/api/auth/sign-in/email",
		Body:   []byte(`{"email":"a@x.com","password":"Secur3!Pass"}`),
	})
	if resp.Status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Status)
	}
	body := apiErrorOf(t, resp)
	if strings.Contains(body.Message, "connection reset") {
		t.Fatalf("internal error leaked: %q", body.Message)
	}
	if got := engine.MetricsSnapshot().Counters[MetricInternalError]; got != 1 {
		t.Fatalf("expected one internal error metric, got %d", got)
	}
}

func TestHandleRecordsLatency(t *testing.T) {
	engine, err := New().
		WithConfig(fastConfig()).
		WithStore(memory.New()).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()

	engine.Handle(context.Background(), &Request{Method: http.MethodGet, Path: "/api/auth/ok"})

	var total uint64
	for _, n := range engine.MetricsSnapshot().Histograms[MetricHandleLatency] {
		total += n
	}
	if total != 1 {
		t.Fatalf("expected one latency observation, got %d", total)
	}
}

func TestBuilderRejectsReuseAndMissingStore(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Fatal("expected error without a store")
	}

	b := New().WithConfig(fastConfig()).WithStore(memory.New())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected error on second Build")
	}
}

func TestRoutesListing(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.PasswordReset.Enabled = false })

	var paths []string
	for _, ep := range env.engine.Routes() {
		paths = append(paths, ep.Method+" "+ep.Path)
	}
	joined := strings.Join(paths, "\n")
	for _, want := range []string{"POST /sign-in/email", "DELETE /sessions/:id", "GET /verification/verify"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing %q in %v", want, paths)
		}
	}
	if strings.Contains(joined, "/password/forgot") {
		t.Fatal("reset routes should be absent when reset is disabled")
	}
}
