package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRegister(t *testing.T, r *Router[string], method, path, name string) {
	t.Helper()
	require.NoError(t, r.Register(method, path, name))
}

func TestMatchStaticAndParams(t *testing.T) {
	r := New[string]()
	mustRegister(t, r, "GET", "/session", "get-session")
	mustRegister(t, r, "DELETE", "/sessions/:id", "revoke")
	mustRegister(t, r, "GET", "/orgs/:org/members/:member", "member")

	m, ok := r.Match("GET", "/session")
	require.True(t, ok)
	assert.Equal(t, "get-session", m.Handler)
	assert.Empty(t, m.Params)

	m, ok = r.Match("delete", "/sessions/abc123")
	require.True(t, ok)
	assert.Equal(t, "revoke", m.Handler)
	assert.Equal(t, "abc123", m.Param("id"))
	assert.Equal(t, "/sessions/:id", m.Pattern)

	m, ok = r.Match("GET", "/orgs/acme/members/42")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"org": "acme", "member": "42"}, m.Params)

	_, ok = r.Match("GET", "/sessions/abc123")
	assert.False(t, ok, "method must match")
	_, ok = r.Match("DELETE", "/sessions")
	assert.False(t, ok, "param needs a segment")
	_, ok = r.Match("DELETE", "/sessions/a/b")
	assert.False(t, ok)
}

func TestStaticBeatsParamBeatsWildcard(t *testing.T) {
	r := New[string]()
	mustRegister(t, r, "GET", "/files/*", "wild")
	mustRegister(t, r, "GET", "/files/:name", "param")
	mustRegister(t, r, "GET", "/files/readme", "static")

	m, ok := r.Match("GET", "/files/readme")
	require.True(t, ok)
	assert.Equal(t, "static", m.Handler)

	m, ok = r.Match("GET", "/files/other")
	require.True(t, ok)
	assert.Equal(t, "param", m.Handler)

	m, ok = r.Match("GET", "/files/a/b/c")
	require.True(t, ok)
	assert.Equal(t, "wild", m.Handler)
	assert.Equal(t, "a/b/c", m.Param(WildcardParam))
}

func TestExactBeatsEmptyWildcardSuffix(t *testing.T) {
	r := New[string]()
	mustRegister(t, r, "GET", "/docs/*", "wild")
	mustRegister(t, r, "GET", "/docs", "exact")

	m, ok := r.Match("GET", "/docs")
	require.True(t, ok)
	assert.Equal(t, "exact", m.Handler)

	r2 := New[string]()
	mustRegister(t, r2, "GET", "/docs/*", "wild")
	m, ok = r2.Match("GET", "/docs")
	require.True(t, ok)
	assert.Equal(t, "", m.Param(WildcardParam))
}

func TestTrailingSlashIgnored(t *testing.T) {
	r := New[string]()
	mustRegister(t, r, "POST", "/sign-in/email", "login")

	m, ok := r.Match("POST", "/sign-in/email/")
	require.True(t, ok)
	assert.Equal(t, "login", m.Handler)
}

func TestSamePathDifferentMethods(t *testing.T) {
	r := New[string]()
	mustRegister(t, r, "GET", "/user", "read")
	mustRegister(t, r, "POST", "/user", "write")

	m, ok := r.Match("POST", "/user")
	require.True(t, ok)
	assert.Equal(t, "write", m.Handler)
	assert.Equal(t, []string{"GET", "POST"}, r.Allowed("/user"))
	assert.Empty(t, r.Allowed("/nope"))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := New[string]()
	mustRegister(t, r, "GET", "/sessions/:id", "a")

	err := r.Register("GET", "/sessions/:id", "b")
	assert.ErrorIs(t, err, ErrDuplicateRoute)

	err = r.Register("get", "/sessions/:other", "c")
	assert.ErrorIs(t, err, ErrDuplicateRoute, "param names do not disambiguate")

	m, ok := r.Match("GET", "/sessions/x")
	require.True(t, ok)
	assert.Equal(t, "a", m.Handler, "first registration is kept")
}

func TestRegisterRejectsMalformed(t *testing.T) {
	r := New[string]()
	cases := []struct{ method, path string }{
		{"", "/a"},
		{"GET", "a"},
		{"GET", "/a/*/b"},
		{"GET", "/a/:"},
		{"GET", "/a/:id/:id"},
		{"GET", "/a/b*"},
	}
	for _, tc := range cases {
		err := r.Register(tc.method, tc.path, "x")
		assert.ErrorIs(t, err, ErrInvalidRoute, "%s %s", tc.method, tc.path)
	}
	assert.Empty(t, r.List())
}

func TestList(t *testing.T) {
	r := New[string]()
	mustRegister(t, r, "POST", "/sign-out", "")
	mustRegister(t, r, "GET", "/session", "")
	mustRegister(t, r, "POST", "/session", "")
	mustRegister(t, r, "DELETE", "/sessions/:id", "")

	assert.Equal(t, []Endpoint{
		{Method: "GET", Path: "/session"},
		{Method: "POST", Path: "/session"},
		{Method: "DELETE", Path: "/sessions/:id"},
		{Method: "POST", Path: "/sign-out"},
	}, r.List())
}

func TestNilMatchParam(t *testing.T) {
	var m *Match[string]
	assert.Equal(t, "", m.Param("id"))
}
