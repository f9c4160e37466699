package goSession

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidRequest is an exported constant or variable used by the authentication engine.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidEmail is an exported constant or variable used by the authentication engine.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrWeakPassword is an exported constant or variable used by the authentication engine.
	ErrWeakPassword = errors.New("password does not meet policy")
	// ErrInvalidPassword is an exported constant or variable used by the authentication engine.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrPasswordReuse is an exported constant or variable used by the authentication engine.
	ErrPasswordReuse = errors.New("new password must differ from the current one")
	// ErrInvalidToken is an exported constant or variable used by the authentication engine.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrEmailExists is an exported constant or variable used by the authentication engine.
	ErrEmailExists = errors.New("email already registered")
	// ErrInvalidCredentials is an exported constant or variable used by the authentication engine.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnauthenticated is an exported constant or variable used by the authentication engine.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrEmailNotVerified is an exported constant or variable used by the authentication engine.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrSignUpDisabled is an exported constant or variable used by the authentication engine.
	ErrSignUpDisabled = errors.New("sign up disabled")
	// ErrEmailVerificationDisabled is an exported constant or variable used by the authentication engine.
	ErrEmailVerificationDisabled = errors.New("email verification disabled")
	// ErrPasswordResetDisabled is an exported constant or variable used by the authentication engine.
	ErrPasswordResetDisabled = errors.New("password reset disabled")
	// ErrSessionNotFound is an exported constant or variable used by the authentication engine.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRouteNotFound is an exported constant or variable used by the authentication engine.
	ErrRouteNotFound = errors.New("route not found")
	// ErrMethodNotAllowed is an exported constant or variable used by the authentication engine.
	ErrMethodNotAllowed = errors.New("method not allowed")
	// ErrAccountLocked is an exported constant or variable used by the authentication engine.
	ErrAccountLocked = errors.New("account temporarily locked")
	// ErrRateLimited is an exported constant or variable used by the authentication engine.
	ErrRateLimited = errors.New("too many requests")
	// ErrExtensionExists is an exported constant or variable used by the authentication engine.
	ErrExtensionExists = errors.New("extension already registered")
	// ErrDuplicatePlugin is an exported constant or variable used by the authentication engine.
	ErrDuplicatePlugin = errors.New("duplicate plugin id")
)

// ErrorKind classifies failures for status mapping.
type ErrorKind string

const (
	KindInvalidInput    ErrorKind = "invalid_input"
	KindUnauthenticated ErrorKind = "unauthenticated"
	KindForbidden       ErrorKind = "forbidden"
	KindNotFound        ErrorKind = "not_found"
	KindConflict        ErrorKind = "conflict"
	KindLocked          ErrorKind = "locked"
	KindRateLimited     ErrorKind = "rate_limited"
	KindInternal        ErrorKind = "internal"
)

var kindStatus = map[ErrorKind]int{
	KindInvalidInput:    http.StatusBadRequest,
	KindUnauthenticated: http.StatusUnauthorized,
	KindForbidden:       http.StatusForbidden,
	KindNotFound:        http.StatusNotFound,
	KindConflict:        http.StatusConflict,
	KindLocked:          http.StatusLocked,
	KindRateLimited:     http.StatusTooManyRequests,
	KindInternal:        http.StatusInternalServerError,
}

// APIError is the structured failure every engine operation returns. It
// unwraps to the sentinel it was built from, so errors.Is works on it.
type APIError struct {
	Kind    ErrorKind
	Status  int
	Code    string
	Message string
	// Issues lists every violated validation rule.
	Issues []string
	// RetryAfter is in whole seconds; zero when not applicable.
	RetryAfter int

	cause error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// ErrorBody is the JSON body of an error response.
type ErrorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Issues  []string `json:"issues,omitempty"`
}

// Body returns the client-facing representation of e.
func (e *APIError) Body() ErrorBody {
	return ErrorBody{Code: e.Code, Message: e.Message, Issues: e.Issues}
}

type errorMapping struct {
	err  error
	kind ErrorKind
	code string
	// status overrides the kind's default status.
	status int
}

var errorTable = []errorMapping{
	{ErrInvalidRequest, KindInvalidInput, "INVALID_REQUEST", 0},
	{ErrInvalidEmail, KindInvalidInput, "INVALID_EMAIL", 0},
	{ErrWeakPassword, KindInvalidInput, "WEAK_PASSWORD", 0},
	{ErrInvalidPassword, KindInvalidInput, "INVALID_PASSWORD", 0},
	{ErrPasswordReuse, KindInvalidInput, "PASSWORD_REUSE", 0},
	{ErrInvalidToken, KindInvalidInput, "INVALID_TOKEN", 0},
	{ErrInvalidCredentials, KindUnauthenticated, "INVALID_CREDENTIALS", 0},
	{ErrUnauthenticated, KindUnauthenticated, "UNAUTHENTICATED", 0},
	{ErrEmailNotVerified, KindForbidden, "EMAIL_NOT_VERIFIED", 0},
	{ErrSignUpDisabled, KindForbidden, "SIGN_UP_DISABLED", 0},
	{ErrEmailVerificationDisabled, KindForbidden, "EMAIL_VERIFICATION_DISABLED", 0},
	{ErrPasswordResetDisabled, KindForbidden, "PASSWORD_RESET_DISABLED", 0},
	{ErrSessionNotFound, KindNotFound, "SESSION_NOT_FOUND", 0},
	{ErrRouteNotFound, KindNotFound, "NOT_FOUND", 0},
	{ErrMethodNotAllowed, KindNotFound, "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed},
	{ErrEmailExists, KindConflict, "EMAIL_EXISTS", 0},
	{ErrAccountLocked, KindLocked, "ACCOUNT_LOCKED", 0},
	{ErrRateLimited, KindRateLimited, "RATE_LIMITED", 0},
}

// newAPIError builds the APIError for a known sentinel.
func newAPIError(sentinel error) *APIError {
	for _, m := range errorTable {
		if m.err == sentinel {
			status := m.status
			if status == 0 {
				status = kindStatus[m.kind]
			}
			return &APIError{
				Kind:    m.kind,
				Status:  status,
				Code:    m.code,
				Message: sentinel.Error(),
				cause:   sentinel,
			}
		}
	}
	return internalError(sentinel)
}

func internalError(cause error) *APIError {
	return &APIError{
		Kind:    KindInternal,
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: "internal server error",
		cause:   cause,
	}
}

func validationError(sentinel error, issues []string) *APIError {
	e := newAPIError(sentinel)
	e.Issues = issues
	return e
}

// AsAPIError converts any error returned by the engine to an APIError.
// Unknown errors, storage failures included, become KindInternal and keep
// the original as their cause.
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			e := newAPIError(m.err)
			e.cause = err
			return e
		}
	}
	return internalError(err)
}
