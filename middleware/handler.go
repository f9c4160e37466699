package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
)

const defaultMaxBodyBytes = 1 << 20

// Options tunes [Handler].
type Options struct {
	// MaxBodyBytes caps request bodies. Zero means 1 MiB.
	MaxBodyBytes int64
	// RemoteAddrIP attaches the connection's remote address as the client IP.
	// Leave it off behind a proxy so forwarding headers decide.
	RemoteAddrIP bool
}

// Handler serves every endpoint of engine. Mount it on the engine's base
// path without stripping the prefix:
//
//	mux.Handle("/api/auth/", middleware.Handler(engine, middleware.Options{}))
func Handler(engine *goSession.Engine, opts Options) http.Handler {
	limit := opts.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			writeError(w, http.StatusServiceUnavailable, "INTERNAL_ERROR", "auth engine unavailable")
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "INVALID_REQUEST", "request body too large")
				return
			}
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "request body could not be read")
			return
		}

		ctx := r.Context()
		if opts.RemoteAddrIP {
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				ctx = goSession.WithClientIP(ctx, host)
			}
		}

		req := &goSession.Request{
			Method:  r.Method,
			Path:    r.URL.Path,
			Headers: goSession.HTTPHeader(r.Header),
			Query:   r.URL.Query(),
			Body:    body,
		}
		WriteResponse(w, engine.Handle(ctx, req))
	})
}

// WriteResponse writes resp to w. A nil body on a non-204 status is
// rendered as JSON null.
func WriteResponse(w http.ResponseWriter, resp *goSession.Response) {
	if resp == nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h := w.Header()
	for k, v := range resp.Headers {
		h.Set(k, v)
	}
	if resp.SetCookie != "" {
		h.Add("Set-Cookie", resp.SetCookie)
	}
	if resp.ClearCookie != "" {
		h.Add("Set-Cookie", resp.ClearCookie)
	}
	h.Set("Cache-Control", "no-store")

	if resp.Status == http.StatusNoContent {
		w.WriteHeader(resp.Status)
		return
	}

	h.Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_ = json.NewEncoder(w).Encode(resp.Body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	WriteResponse(w, &goSession.Response{
		Status: status,
		Body:   goSession.ErrorBody{Code: code, Message: message},
	})
}
