package goSession

import (
	"context"
	"encoding/json"
	"io"
	"iter"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/MrEthical07/goSession/cookie"
	"github.com/MrEthical07/goSession/events"
	"github.com/MrEthical07/goSession/storage"
)

// HeaderSource is the case-insensitive header view every host adapter
// provides. Get joins repeated headers with ", ".
type HeaderSource interface {
	Get(name string) (string, bool)
	Entries() iter.Seq2[string, string]
}

// HTTPHeader adapts net/http headers.
type HTTPHeader http.Header

// Get describes the get operation and its observable behavior.
//
// Get may return an error when input validation, dependency calls, or security checks fail.
// Get does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (h HTTPHeader) Get(name string) (string, bool) {
	vs := http.Header(h).Values(name)
	if len(vs) == 0 {
		return "", false
	}
	return strings.Join(vs, ", "), true
}

// Entries yields canonical header names in sorted order.
func (h HTTPHeader) Entries() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		keys := make([]string, 0, len(h))
		for k := range h {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !yield(k, strings.Join(h[k], ", ")) {
				return
			}
		}
	}
}

// MapHeader is a plain map with case-insensitive lookup, for hosts and
// tests that do not carry net/http headers.
type MapHeader map[string]string

// Get describes the get operation and its observable behavior.
//
// Get may return an error when input validation, dependency calls, or security checks fail.
// Get does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (h MapHeader) Get(name string) (string, bool) {
	if v, ok := h[name]; ok {
		return v, true
	}
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// Entries yields keys in sorted order.
func (h MapHeader) Entries() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		keys := make([]string, 0, len(h))
		for k := range h {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !yield(k, h[k]) {
				return
			}
		}
	}
}

// Request is the normalized request a host adapter hands to [Engine.Handle].
type Request struct {
	Method  string
	Path    string
	Headers HeaderSource
	Query   url.Values
	Body    json.RawMessage
}

// Header returns a header value or "".
func (r *Request) Header(name string) string {
	if r == nil || r.Headers == nil {
		return ""
	}
	v, _ := r.Headers.Get(name)
	return v
}

// Response is what the host adapter writes back. SetCookie and ClearCookie
// are complete Set-Cookie header values.
type Response struct {
	Status      int
	Body        any
	SetCookie   string
	ClearCookie string
	Headers     map[string]string
}

// SetHeader sets a response header, allocating the map on first use.
func (r *Response) SetHeader(name, value string) {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[name] = value
}

// JSON builds a response with a JSON-serializable body.
func JSON(status int, body any) *Response {
	return &Response{Status: status, Body: body}
}

// HandlerFunc serves one routed request. A returned error is mapped to a
// response through [AsAPIError].
type HandlerFunc func(ctx context.Context, rc *RequestContext) (*Response, error)

// RequestContext is the routed view of a request handed to handlers and
// hooks.
type RequestContext struct {
	Request *Request
	// Path is the request path relative to the engine's base path.
	Path string
	// Pattern is the matched route pattern, e.g. "/sessions/:id".
	Pattern string
	Params  map[string]string

	cookieName string
}

// Param returns a bound route parameter or "".
func (rc *RequestContext) Param(name string) string {
	return rc.Params[name]
}

// Query returns the first query value for name.
func (rc *RequestContext) Query(name string) string {
	if rc.Request == nil || rc.Request.Query == nil {
		return ""
	}
	return rc.Request.Query.Get(name)
}

// Header returns a request header value or "".
func (rc *RequestContext) Header(name string) string {
	return rc.Request.Header(name)
}

// SessionCookie returns the raw session cookie value sent with the request.
func (rc *RequestContext) SessionCookie() string {
	return cookie.FromHeader(rc.Header("Cookie"), rc.cookieName)
}

// Decode unmarshals the JSON body into v. Unknown fields are ignored.
func (rc *RequestContext) Decode(v any) error {
	if rc.Request == nil || len(rc.Request.Body) == 0 {
		return validationError(ErrInvalidRequest, []string{"request body is required"})
	}
	dec := json.NewDecoder(strings.NewReader(string(rc.Request.Body)))
	if err := dec.Decode(v); err != nil {
		return validationError(ErrInvalidRequest, []string{"request body is not valid JSON"})
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return validationError(ErrInvalidRequest, []string{"request body must be a single JSON object"})
	}
	return nil
}

// HookContext is the payload of "<pattern>:before" and "<pattern>:after"
// hooks. Response and Err are set for after hooks only.
type HookContext struct {
	Request  *RequestContext
	Response *Response
	Err      error
}

// AuthResult pairs a user with a session. Cookie carries the Set-Cookie
// directive when the operation issued a session.
type AuthResult struct {
	User    *storage.User    `json:"user"`
	Session *storage.Session `json:"session,omitempty"`
	Cookie  cookie.Directive `json:"-"`
}

// SessionInfo is one entry of a session listing.
type SessionInfo struct {
	*storage.Session
	IsCurrent bool `json:"isCurrent"`
}

// StatusBody is the generic success body.
type StatusBody struct {
	Status  bool   `json:"status"`
	Message string `json:"message,omitempty"`
}

// RegisterInput defines a public type used by goSession APIs.
//
// RegisterInput instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RegisterInput struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     *string `json:"name,omitempty"`
	Image    *string `json:"image,omitempty"`
}

// LoginInput defines a public type used by goSession APIs.
//
// LoginInput instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileUpdate defines a public type used by goSession APIs.
//
// ProfileUpdate instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ProfileUpdate struct {
	Name  *string `json:"name,omitempty"`
	Image *string `json:"image,omitempty"`
}

// ChangePasswordInput defines a public type used by goSession APIs.
//
// ChangePasswordInput instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ChangePasswordInput struct {
	CurrentPassword     string `json:"currentPassword"`
	NewPassword         string `json:"newPassword"`
	RevokeOtherSessions bool   `json:"revokeOtherSessions"`
}

// AuditRecord is the audit shape of a domain event.
type AuditRecord = events.Record

// AuditSink receives audit records forwarded from domain events.
type AuditSink = events.Sink

// NoOpSink discards audit records.
type NoOpSink = events.NoOpSink

// ChannelSink buffers audit records in a channel.
type ChannelSink = events.ChannelSink

// JSONWriterSink writes audit records as JSON lines.
type JSONWriterSink = events.JSONWriterSink

// NewChannelSink describes the newchannelsink operation and its observable behavior.
//
// NewChannelSink may return an error when input validation, dependency calls, or security checks fail.
// NewChannelSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewChannelSink(buffer int) *ChannelSink {
	return events.NewChannelSink(buffer)
}

// NewJSONWriterSink describes the newjsonwritersink operation and its observable behavior.
//
// NewJSONWriterSink may return an error when input validation, dependency calls, or security checks fail.
// NewJSONWriterSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return events.NewJSONWriterSink(w)
}
