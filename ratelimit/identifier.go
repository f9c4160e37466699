package ratelimit

import "strings"

// UnknownIdentifier is used when no configured header carries a value.
const UnknownIdentifier = "unknown"

// Headers is the read side of a case-insensitive header source.
type Headers interface {
	Get(name string) (string, bool)
}

// Identify returns the first non-empty value among names, in order. A
// comma-separated value contributes only its first entry.
func Identify(h Headers, names []string) string {
	if h == nil {
		return UnknownIdentifier
	}
	for _, name := range names {
		v, ok := h.Get(name)
		if !ok {
			continue
		}
		if i := strings.IndexByte(v, ','); i >= 0 {
			v = v[:i]
		}
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return UnknownIdentifier
}
