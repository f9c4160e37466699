package goSession

import (
	"context"
	"net/http"

	"github.com/MrEthical07/goSession/storage"
)

const (
	msgVerificationSent = "If the account exists and is unverified, a verification email has been sent."
	msgResetSent        = "If the account exists, a password reset email has been sent."
)

type routeDef struct {
	method  string
	path    string
	handler HandlerFunc
}

// registerRoutes installs the built-in endpoints. Endpoints of a disabled
// feature are not registered at all.
func (e *Engine) registerRoutes() error {
	defs := []routeDef{
		{http.MethodPost, "/sign-up/email", e.handleSignUp},
		{http.MethodPost, "/sign-in/email", e.handleSignIn},
		{http.MethodPost, "/sign-out", e.handleSignOut},
		{http.MethodGet, "/session", e.handleGetSession},
		{http.MethodGet, "/sessions", e.handleListSessions},
		{http.MethodDelete, "/sessions/:id", e.handleRevokeSession},
		{http.MethodPost, "/sessions/revoke-others", e.handleRevokeOthers},
		{http.MethodPost, "/password/change", e.handleChangePassword},
		{http.MethodPost, "/user/update", e.handleUpdateUser},
		{http.MethodPost, "/user/delete", e.handleDeleteUser},
		{http.MethodGet, "/ok", handleOK},
	}
	if e.config.EmailVerification.Enabled {
		defs = append(defs,
			routeDef{http.MethodPost, "/verification/request", e.handleRequestVerification},
			routeDef{http.MethodGet, "/verification/verify", e.handleVerifyEmail},
		)
	}
	if e.config.PasswordReset.Enabled {
		defs = append(defs,
			routeDef{http.MethodPost, "/password/forgot", e.handleForgotPassword},
			routeDef{http.MethodPost, "/password/reset", e.handleResetPassword},
		)
	}
	if !e.config.Account.SignUpEnabled {
		defs = defs[1:]
	}

	for _, d := range defs {
		if err := e.router.Register(d.method, d.path, d.handler); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) handleSignUp(ctx context.Context, rc *RequestContext) (*Response, error) {
	var in RegisterInput
	if err := rc.Decode(&in); err != nil {
		return nil, err
	}
	res, err := e.Register(ctx, in)
	if err != nil {
		return nil, err
	}
	resp := JSON(http.StatusCreated, res)
	if res.Session != nil {
		resp.SetCookie = res.Cookie.String()
	}
	return resp, nil
}

func (e *Engine) handleSignIn(ctx context.Context, rc *RequestContext) (*Response, error) {
	var in LoginInput
	if err := rc.Decode(&in); err != nil {
		return nil, err
	}
	res, err := e.Login(ctx, in)
	if err != nil {
		return nil, err
	}
	resp := JSON(http.StatusOK, res)
	resp.SetCookie = res.Cookie.String()
	return resp, nil
}

func (e *Engine) handleSignOut(ctx context.Context, rc *RequestContext) (*Response, error) {
	if err := e.Logout(ctx, rc.SessionCookie()); err != nil {
		return nil, err
	}
	resp := JSON(http.StatusOK, StatusBody{Status: true})
	resp.ClearCookie = e.cookies.Clear().String()
	return resp, nil
}

// handleGetSession answers 200 with a null body when nothing resolves. A
// stale cookie is cleared on the way out.
func (e *Engine) handleGetSession(ctx context.Context, rc *RequestContext) (*Response, error) {
	raw := rc.SessionCookie()
	res, err := e.GetSession(ctx, raw)
	if err != nil {
		return nil, err
	}
	if res == nil {
		resp := JSON(http.StatusOK, nil)
		if raw != "" {
			resp.ClearCookie = e.cookies.Clear().String()
		}
		return resp, nil
	}
	return JSON(http.StatusOK, res), nil
}

func (e *Engine) handleListSessions(ctx context.Context, rc *RequestContext) (*Response, error) {
	list, err := e.ListSessions(ctx, rc.SessionCookie())
	if err != nil {
		return nil, err
	}
	return JSON(http.StatusOK, list), nil
}

func (e *Engine) handleRevokeSession(ctx context.Context, rc *RequestContext) (*Response, error) {
	current, err := e.RevokeSession(ctx, rc.SessionCookie(), rc.Param("id"))
	if err != nil {
		return nil, err
	}
	resp := JSON(http.StatusOK, StatusBody{Status: true})
	if current {
		resp.ClearCookie = e.cookies.Clear().String()
	}
	return resp, nil
}

func (e *Engine) handleRevokeOthers(ctx context.Context, rc *RequestContext) (*Response, error) {
	n, err := e.RevokeOtherSessions(ctx, rc.SessionCookie())
	if err != nil {
		return nil, err
	}
	return JSON(http.StatusOK, map[string]int{"revoked": n}), nil
}

func (e *Engine) handleRequestVerification(ctx context.Context, rc *RequestContext) (*Response, error) {
	var in struct {
		Email string `json:"email"`
	}
	if err := rc.Decode(&in); err != nil {
		return nil, err
	}
	if err := e.RequestEmailVerification(ctx, in.Email); err != nil {
		return nil, err
	}
	return JSON(http.StatusOK, StatusBody{Status: true, Message: msgVerificationSent}), nil
}

func (e *Engine) handleVerifyEmail(ctx context.Context, rc *RequestContext) (*Response, error) {
	user, err := e.VerifyEmail(ctx, rc.Query("token"))
	if err != nil {
		return nil, err
	}
	return JSON(http.StatusOK, struct {
		Status bool          `json:"status"`
		User   *storage.User `json:"user"`
	}{true, user}), nil
}

func (e *Engine) handleForgotPassword(ctx context.Context, rc *RequestContext) (*Response, error) {
	var in struct {
		Email string `json:"email"`
	}
	if err := rc.Decode(&in); err != nil {
		return nil, err
	}
	if err := e.RequestPasswordReset(ctx, in.Email); err != nil {
		return nil, err
	}
	return JSON(http.StatusOK, StatusBody{Status: true, Message: msgResetSent}), nil
}

func (e *Engine) handleResetPassword(ctx context.Context, rc *RequestContext) (*Response, error) {
	var in struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := rc.Decode(&in); err != nil {
		return nil, err
	}
	if _, err := e.ResetPassword(ctx, in.Token, in.NewPassword); err != nil {
		return nil, err
	}
	return JSON(http.StatusOK, StatusBody{Status: true}), nil
}

func (e *Engine) handleChangePassword(ctx context.Context, rc *RequestContext) (*Response, error) {
	var in ChangePasswordInput
	if err := rc.Decode(&in); err != nil {
		return nil, err
	}
	revoked, err := e.ChangePassword(ctx, rc.SessionCookie(), in)
	if err != nil {
		return nil, err
	}
	return JSON(http.StatusOK, struct {
		Status  bool `json:"status"`
		Revoked int  `json:"revoked"`
	}{true, revoked}), nil
}

func (e *Engine) handleUpdateUser(ctx context.Context, rc *RequestContext) (*Response, error) {
	var in ProfileUpdate
	if err := rc.Decode(&in); err != nil {
		return nil, err
	}
	user, err := e.UpdateUser(ctx, rc.SessionCookie(), in)
	if err != nil {
		return nil, err
	}
	return JSON(http.StatusOK, struct {
		User *storage.User `json:"user"`
	}{user}), nil
}

func (e *Engine) handleDeleteUser(ctx context.Context, rc *RequestContext) (*Response, error) {
	var in struct {
		Password string `json:"password"`
	}
	if rc.Request != nil && len(rc.Request.Body) > 0 {
		if err := rc.Decode(&in); err != nil {
			return nil, err
		}
	}
	if err := e.DeleteAccount(ctx, rc.SessionCookie(), in.Password); err != nil {
		return nil, err
	}
	resp := JSON(http.StatusOK, StatusBody{Status: true})
	resp.ClearCookie = e.cookies.Clear().String()
	return resp, nil
}

func handleOK(context.Context, *RequestContext) (*Response, error) {
	return JSON(http.StatusOK, map[string]bool{"ok": true}), nil
}
