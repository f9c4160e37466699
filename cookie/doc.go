// Package cookie encodes the minimal session identity ({userId, sessionId})
// into a cookie value and builds Set-Cookie directives for it.
//
// # Modes
//
// Opaque (default): the value is percent-encoded JSON. It is not tamper
// evident; the engine's storage re-validation is what makes it safe.
//
// Signed (Options.Secret set): the value is an HS256 JWS. Values not signed
// with the configured secret, or past their max age, decode to nil.
//
// # What this package must NOT do
//
//   - Carry roles, permissions or any other authorization claim in the payload.
//   - Panic or return errors from Decode. A bad cookie is an absent cookie.
package cookie
