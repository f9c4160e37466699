package router

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// WildcardParam is the parameter name bound to the suffix matched by a
// trailing "*" segment.
const WildcardParam = "*"

var (
	// ErrDuplicateRoute is returned when a method+path pair is already registered.
	// Paths that differ only in parameter names are duplicates.
	ErrDuplicateRoute = errors.New("duplicate route")
	// ErrInvalidRoute is returned for malformed methods or path patterns.
	ErrInvalidRoute = errors.New("invalid route")
)

type segmentKind uint8

// Lower kinds win during matching.
const (
	kindStatic segmentKind = iota
	kindParam
	kindWildcard
)

type segment struct {
	kind  segmentKind
	value string
}

type route[H any] struct {
	method   string
	pattern  string
	shape    string
	segments []segment
	handler  H
	order    int
}

// Endpoint describes a registered route.
type Endpoint struct {
	Method string
	Path   string
}

// Match is the result of a successful lookup.
type Match[H any] struct {
	Handler H
	Pattern string
	Params  map[string]string
}

// Param returns a bound parameter, or "" when absent.
func (m *Match[H]) Param(name string) string {
	if m == nil {
		return ""
	}
	return m.Params[name]
}

// Router resolves (method, path) pairs to handlers of type H. It is safe for
// concurrent use; registration normally happens before serving.
type Router[H any] struct {
	mu     sync.RWMutex
	routes map[string][]*route[H]
	shapes map[string]struct{}
	seq    int
}

// New returns an empty router.
func New[H any]() *Router[H] {
	return &Router[H]{
		routes: make(map[string][]*route[H]),
		shapes: make(map[string]struct{}),
	}
}

// Register adds handler for method and path. Path segments of the form
// ":name" bind a single segment; a final "*" binds any remaining suffix.
func (r *Router[H]) Register(method, path string, handler H) error {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return fmt.Errorf("%w: empty method", ErrInvalidRoute)
	}

	segs, err := parsePattern(path)
	if err != nil {
		return err
	}

	shape := method + " " + shapeOf(segs)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.shapes[shape]; exists {
		return fmt.Errorf("%w: %s %s", ErrDuplicateRoute, method, path)
	}
	r.shapes[shape] = struct{}{}
	r.seq++
	r.routes[method] = append(r.routes[method], &route[H]{
		method:   method,
		pattern:  canonical(segs),
		shape:    shape,
		segments: segs,
		handler:  handler,
		order:    r.seq,
	})
	return nil
}

// Match resolves method and path. When several routes match, the one whose
// segments rank higher from left to right wins: static, then parameter, then
// wildcard.
func (r *Router[H]) Match(method, path string) (*Match[H], bool) {
	method = strings.ToUpper(method)
	parts := splitPath(path)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		best   *route[H]
		params map[string]string
	)
	for _, rt := range r.routes[method] {
		bound, ok := rt.match(parts)
		if !ok {
			continue
		}
		if best == nil || rt.beats(best) {
			best = rt
			params = bound
		}
	}
	if best == nil {
		return nil, false
	}
	return &Match[H]{Handler: best.handler, Pattern: best.pattern, Params: params}, true
}

// Allowed returns the methods registered for path, sorted. Hosts use it to
// tell 404 from 405.
func (r *Router[H]) Allowed(path string) []string {
	parts := splitPath(path)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var methods []string
	for method, routes := range r.routes {
		for _, rt := range routes {
			if _, ok := rt.match(parts); ok {
				methods = append(methods, method)
				break
			}
		}
	}
	sort.Strings(methods)
	return methods
}

// List returns every registered endpoint sorted by path then method.
func (r *Router[H]) List() []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Endpoint, 0, len(r.shapes))
	for _, routes := range r.routes {
		for _, rt := range routes {
			out = append(out, Endpoint{Method: rt.method, Path: rt.pattern})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}

func (rt *route[H]) match(parts []string) (map[string]string, bool) {
	var params map[string]string
	bind := func(k, v string) {
		if params == nil {
			params = make(map[string]string, 2)
		}
		params[k] = v
	}

	for i, seg := range rt.segments {
		switch seg.kind {
		case kindWildcard:
			bind(WildcardParam, strings.Join(parts[i:], "/"))
			return params, true
		case kindParam:
			if i >= len(parts) {
				return nil, false
			}
			bind(seg.value, parts[i])
		default:
			if i >= len(parts) || parts[i] != seg.value {
				return nil, false
			}
		}
	}
	if len(parts) != len(rt.segments) {
		return nil, false
	}
	return params, true
}

func (rt *route[H]) beats(other *route[H]) bool {
	n := len(rt.segments)
	if len(other.segments) < n {
		n = len(other.segments)
	}
	for i := 0; i < n; i++ {
		a, b := rt.segments[i].kind, other.segments[i].kind
		if a != b {
			return a < b
		}
	}
	// Only a trailing wildcard can match with an extra segment.
	if len(rt.segments) != len(other.segments) {
		return len(rt.segments) < len(other.segments)
	}
	return rt.order < other.order
}

func parsePattern(path string) ([]segment, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("%w: path %q must start with /", ErrInvalidRoute, path)
	}

	parts := splitPath(path)
	segs := make([]segment, 0, len(parts))
	names := make(map[string]struct{})
	for i, p := range parts {
		switch {
		case p == "*":
			if i != len(parts)-1 {
				return nil, fmt.Errorf("%w: wildcard must be the last segment in %q", ErrInvalidRoute, path)
			}
			segs = append(segs, segment{kind: kindWildcard})
		case strings.HasPrefix(p, ":"):
			name := p[1:]
			if name == "" {
				return nil, fmt.Errorf("%w: empty parameter name in %q", ErrInvalidRoute, path)
			}
			if _, dup := names[name]; dup {
				return nil, fmt.Errorf("%w: parameter %q repeated in %q", ErrInvalidRoute, name, path)
			}
			names[name] = struct{}{}
			segs = append(segs, segment{kind: kindParam, value: name})
		case strings.Contains(p, "*"):
			return nil, fmt.Errorf("%w: wildcard must be a whole segment in %q", ErrInvalidRoute, path)
		default:
			segs = append(segs, segment{kind: kindStatic, value: p})
		}
	}
	return segs, nil
}

func splitPath(path string) []string {
	raw := strings.Split(path, "/")
	out := raw[:0]
	for _, p := range raw {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func canonical(segs []segment) string {
	if len(segs) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, s := range segs {
		b.WriteByte('/')
		switch s.kind {
		case kindWildcard:
			b.WriteByte('*')
		case kindParam:
			b.WriteByte(':')
			b.WriteString(s.value)
		default:
			b.WriteString(s.value)
		}
	}
	return b.String()
}

func shapeOf(segs []segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteByte('/')
		switch s.kind {
		case kindWildcard:
			b.WriteByte('*')
		case kindParam:
			b.WriteByte(':')
		default:
			b.WriteString(s.value)
		}
	}
	return b.String()
}
