package goSession

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/cookie"
	"github.com/MrEthical07/goSession/events"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/ratelimit"
	"github.com/MrEthical07/goSession/router"
	"github.com/MrEthical07/goSession/storage"
)

// Engine defines a public type used by goSession APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config   Config
	basePath string

	store    storage.Store
	users    storage.UserStore
	sessions storage.SessionStore

	hasher  *password.Argon2
	cookies *cookie.Codec
	limiter *ratelimit.Limiter
	router  *router.Router[HandlerFunc]
	events  *events.Dispatcher
	hooks   *events.Dispatcher
	audit   *events.Forwarder
	metrics *Metrics
	logger  *slog.Logger

	plugins    []string
	extMu      sync.RWMutex
	extensions map[string]any

	now func() time.Time
}

// Close stops the audit forwarder after flushing buffered records.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// RateLimitFailOpens counts requests admitted because the limiter backend
// failed.
func (e *Engine) RateLimitFailOpens() uint64 {
	if e == nil || e.limiter == nil {
		return 0
	}
	return e.limiter.FailOpens()
}

// RateLimitStrategy names the limiter's counting backend, or "" when rate
// limiting is disabled.
func (e *Engine) RateLimitStrategy() string {
	if e == nil || !e.limiter.Enabled() {
		return ""
	}
	return e.limiter.Strategy()
}

// EventFailures counts domain-event and hook handlers that returned an
// error or panicked.
func (e *Engine) EventFailures() uint64 {
	if e == nil {
		return 0
	}
	return e.events.Failures() + e.hooks.Failures()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Events returns the domain event dispatcher.
func (e *Engine) Events() *events.Dispatcher { return e.events }

// Hooks returns the endpoint hook dispatcher. Topics are the route pattern
// plus ":before" or ":after", e.g. "/sign-in/email:before".
func (e *Engine) Hooks() *events.Dispatcher { return e.hooks }

// RateLimiter returns the engine's limiter, for hosts scheduling Cleanup.
func (e *Engine) RateLimiter() *ratelimit.Limiter { return e.limiter }

// Routes lists registered endpoints relative to the base path.
func (e *Engine) Routes() []router.Endpoint { return e.router.List() }

// CookieName returns the session cookie name.
func (e *Engine) CookieName() string { return e.cookies.Name() }

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config { return cloneConfig(e.config) }

// Plugins returns the IDs of initialized plugins in order.
func (e *Engine) Plugins() []string { return append([]string(nil), e.plugins...) }

// CleanupExpired deletes expired sessions and rate-limit counters. Hosts
// call it periodically; it is safe to run alongside request handling.
func (e *Engine) CleanupExpired(ctx context.Context) (sessions int, counters int, err error) {
	sessions, err = e.sessions.DeleteExpired(ctx, e.now())
	if err != nil {
		return 0, 0, err
	}
	counters, err = e.limiter.Cleanup(ctx)
	if err != nil {
		return sessions, 0, err
	}
	return sessions, counters, nil
}

/*
====================================
REQUEST HANDLING
====================================
*/

// Handle routes one normalized request and always returns a response.
//
// Order: base path strip, route match (404/405), rate limit (429),
// "<pattern>:before" hooks (the first *Response returned short-circuits),
// handler, "<pattern>:after" hooks (a returned *Response replaces the
// result), error mapping.
func (e *Engine) Handle(ctx context.Context, req *Request) *Response {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	resp := e.handle(ctx, req)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricHandleLatency, time.Since(start))
	}
	return resp
}

func (e *Engine) handle(ctx context.Context, req *Request) *Response {
	if req == nil {
		return e.errorResponse(ctx, ErrInvalidRequest)
	}
	if req.Headers == nil {
		local := *req
		local.Headers = MapHeader{}
		req = &local
	}

	path, ok := e.relativePath(req.Path)
	if !ok {
		return e.errorResponse(ctx, ErrRouteNotFound)
	}
	method := strings.ToUpper(req.Method)

	m, ok := e.router.Match(method, path)
	if !ok {
		if allowed := e.router.Allowed(path); len(allowed) > 0 {
			resp := e.errorResponse(ctx, ErrMethodNotAllowed)
			resp.SetHeader("Allow", strings.Join(allowed, ", "))
			return resp
		}
		return e.errorResponse(ctx, ErrRouteNotFound)
	}

	decision := e.limiter.Check(ctx, ratelimit.RequestInfo{Method: method, Path: path, Headers: req.Headers})
	if !decision.Allowed {
		e.metricInc(MetricRateLimitHit)
		apiErr := newAPIError(ErrRateLimited)
		apiErr.RetryAfter = decision.RetryAfterSeconds()
		resp := e.errorResponse(ctx, apiErr)
		setRateLimitHeaders(resp, decision)
		return resp
	}

	ctx = e.withClientMetadata(ctx, req)

	rc := &RequestContext{
		Request:    req,
		Path:       path,
		Pattern:    m.Pattern,
		Params:     m.Params,
		cookieName: e.cookies.Name(),
	}
	hc := &HookContext{Request: rc}

	if resp := firstResponse(e.hooks.Collect(ctx, m.Pattern+":before", hc)); resp != nil {
		e.metricInc(MetricHookShortCircuit)
		return resp
	}

	resp, err := m.Handler(ctx, rc)
	if err != nil {
		resp = e.errorResponse(ctx, err)
	} else if resp == nil {
		resp = &Response{Status: http.StatusNoContent}
	}

	hc.Response = resp
	hc.Err = err
	if replaced := lastResponse(e.hooks.Collect(ctx, m.Pattern+":after", hc)); replaced != nil {
		resp = replaced
	}

	if decision.Limit > 0 {
		setRateLimitHeaders(resp, decision)
	}
	return resp
}

func (e *Engine) relativePath(p string) (string, bool) {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		p = "/"
	}
	if e.basePath == "" {
		return p, true
	}
	if p == e.basePath || p == e.basePath+"/" {
		return "/", true
	}
	rest, ok := strings.CutPrefix(p, e.basePath+"/")
	if !ok {
		return "", false
	}
	return "/" + rest, true
}

func normalizeBasePath(p string) string {
	p = strings.TrimRight(strings.TrimSpace(p), "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func (e *Engine) withClientMetadata(ctx context.Context, req *Request) context.Context {
	if clientIPFromContext(ctx) == "" {
		if id := e.limiter.Identify(req.Headers); id != ratelimit.UnknownIdentifier {
			ctx = WithClientIP(ctx, id)
		}
	}
	if userAgentFromContext(ctx) == "" {
		if ua := req.Header("User-Agent"); ua != "" {
			ctx = WithUserAgent(ctx, ua)
		}
	}
	return ctx
}

func (e *Engine) errorResponse(ctx context.Context, err error) *Response {
	apiErr := AsAPIError(err)
	if apiErr.Kind == KindInternal {
		e.metricInc(MetricInternalError)
		e.logger.ErrorContext(ctx, "request failed", "err", errors.Unwrap(apiErr))
	}
	resp := &Response{Status: apiErr.Status, Body: apiErr.Body()}
	if apiErr.RetryAfter > 0 {
		resp.SetHeader("Retry-After", strconv.Itoa(apiErr.RetryAfter))
	}
	return resp
}

func setRateLimitHeaders(resp *Response, d ratelimit.Decision) {
	resp.SetHeader("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	resp.SetHeader("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if !d.ResetAt.IsZero() {
		resp.SetHeader("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	}
	if !d.Allowed {
		resp.SetHeader("Retry-After", strconv.Itoa(d.RetryAfterSeconds()))
	}
}

func firstResponse(values []any) *Response {
	for _, v := range values {
		if r, ok := v.(*Response); ok && r != nil {
			return r
		}
	}
	return nil
}

func lastResponse(values []any) *Response {
	var out *Response
	for _, v := range values {
		if r, ok := v.(*Response); ok && r != nil {
			out = r
		}
	}
	return out
}

// clientMeta returns IP and user agent attached to ctx.
func clientMeta(ctx context.Context) (ip, userAgent string) {
	return clientIPFromContext(ctx), userAgentFromContext(ctx)
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
