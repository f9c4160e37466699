package goSession

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/MrEthical07/goSession/cookie"
	"github.com/MrEthical07/goSession/events"
	"github.com/MrEthical07/goSession/storage/memory"
)

func TestSignedCookieRejectsUnsignedForgery(t *testing.T) {
	secret := []byte(strings.Repeat("k", 32))
	env := newTestEnv(t, func(c *Config) { c.Cookie.Secret = secret })
	res, value := env.register(t, "a@x.com")

	if got, _ := env.engine.GetSession(context.Background(), value); got == nil {
		t.Fatal("signed cookie should resolve")
	}

	plain, err := cookie.New(cookie.Options{Name: env.engine.CookieName(), Path: "/"})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	forged, err := plain.Encode(cookie.Payload{UserID: res.User.ID, SessionID: res.Session.ID})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got, _ := env.engine.GetSession(context.Background(), forged.Value); got != nil {
		t.Fatal("unsigned value must not resolve when cookies are signed")
	}

	other, err := cookie.New(cookie.Options{Name: env.engine.CookieName(), Path: "/", Secret: []byte(strings.Repeat("x", 32))})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	forged, err = other.Encode(cookie.Payload{UserID: res.User.ID, SessionID: res.Session.ID})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got, _ := env.engine.GetSession(context.Background(), forged.Value); got != nil {
		t.Fatal("value signed with another secret must not resolve")
	}
}

func TestDeletedSessionRecordInvalidatesCookie(t *testing.T) {
	env := newTestEnv(t, nil)
	res, value := env.register(t, "a@x.com")

	if err := env.store.Sessions().Delete(context.Background(), res.Session.ID); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if got, err := env.engine.GetSession(context.Background(), value); err != nil || got != nil {
		t.Fatalf("expected nil session, got %+v (%v)", got, err)
	}
}

func TestSessionCookieAttributes(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Cookie.Secure = true })

	resp := env.do(t, call{
		method: http.MethodPost,
		path:   "/api/auth/sign-up/email",
		body:   map[string]string{"email": "a@x.com", "password": testPassword},
	})
	if resp.Status != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%+v)", resp.Status, resp.Body)
	}
	c, err := http.ParseSetCookie(resp.SetCookie)
	if err != nil {
		t.Fatalf("parse Set-Cookie: %v", err)
	}
	if !c.HttpOnly || !c.Secure {
		t.Fatalf("session cookie must be HttpOnly and Secure: %q", resp.SetCookie)
	}
	if c.MaxAge <= 0 {
		t.Fatalf("session cookie must carry Max-Age: %q", resp.SetCookie)
	}
}

func TestAuditOutputCarriesNoSecrets(t *testing.T) {
	var buf bytes.Buffer
	engine, err := New().
		WithConfig(fastConfig()).
		WithStore(memory.New()).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithAuditSink(NewJSONWriterSink(&buf)).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ctx := context.Background()

	var tokens []string
	engine.Events().On(TopicPasswordResetRequest, events.Listener(func(_ context.Context, msg events.Message) {
		tokens = append(tokens, msg.Payload.(TokenEvent).Token)
	}))

	res, err := engine.Register(ctx, RegisterInput{Email: "a@x.com", Password: testPassword})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	engine.Login(ctx, LoginInput{Email: "a@x.com", Password: "Wr0ng!Pass"})
	if err := engine.RequestPasswordReset(ctx, "a@x.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	if len(tokens) != 1 {
		t.Fatalf("expected one reset token, got %d", len(tokens))
	}
	if _, err := engine.ResetPassword(ctx, tokens[0], "N3w!Passw0rd"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	engine.Close()

	out := buf.String()
	if out == "" {
		t.Fatal("expected audit output")
	}
	for _, secret := range []string{testPassword, "Wr0ng!Pass", "N3w!Passw0rd", tokens[0], res.Cookie.Value} {
		if strings.Contains(out, secret) {
			t.Fatalf("audit output leaked %q", secret)
		}
	}
}

func TestInternalErrorsAreNotExposed(t *testing.T) {
	apiErr := AsAPIError(io.ErrUnexpectedEOF)
	if apiErr.Status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", apiErr.Status)
	}
	if body := apiErr.Body(); strings.Contains(body.Message, "unexpected EOF") {
		t.Fatalf("internal message leaked: %q", body.Message)
	}
}
