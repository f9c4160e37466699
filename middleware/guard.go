package middleware

import (
	"context"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
)

type authResultContextKey struct{}

// SessionFromContext returns the user and session attached by
// [RequireSession] or [OptionalSession].
func SessionFromContext(ctx context.Context) (*goSession.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*goSession.AuthResult)
	return res, ok && res != nil
}

// RequireSession rejects requests without a live session with 401.
func RequireSession(engine *goSession.Engine) func(http.Handler) http.Handler {
	return guard(engine, true)
}

// OptionalSession attaches the session when one is present and always
// calls next.
func OptionalSession(engine *goSession.Engine) func(http.Handler) http.Handler {
	return guard(engine, false)
}

func guard(engine *goSession.Engine, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeAPIError(w, goSession.ErrUnauthenticated)
				return
			}

			var res *goSession.AuthResult
			if c, err := r.Cookie(engine.CookieName()); err == nil && c.Value != "" {
				ctx := goSession.WithUserAgent(r.Context(), r.UserAgent())
				res, err = engine.GetSession(ctx, c.Value)
				if err != nil {
					writeAPIError(w, err)
					return
				}
			}

			if res == nil {
				if required {
					writeAPIError(w, goSession.ErrUnauthenticated)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAPIError(w http.ResponseWriter, err error) {
	apiErr := goSession.AsAPIError(err)
	WriteResponse(w, &goSession.Response{Status: apiErr.Status, Body: apiErr.Body()})
}
