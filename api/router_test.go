package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/minus-twelve/warden"
	"github.com/minus-twelve/warden/storage"
	"github.com/minus-twelve/warden/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/abtime"
	"golang.org/x/crypto/bcrypt"
)

const (
	testEmail    = "bob@hbtn.io"
	testPassword = "H0lbertonSchool98!"
)

var errNoUser = errors.New("no user")

type fakeUsers struct {
	byID map[string]*types.User
}

func newFakeUsers(t *testing.T) *fakeUsers {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	user := &types.User{ID: "u-1", Email: testEmail, HashedPassword: string(hashed), FirstName: "Bob"}
	return &fakeUsers{byID: map[string]*types.User{user.ID: user}}
}

func (f *fakeUsers) Get(_ context.Context, id string) (*types.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, errNoUser
}

func (f *fakeUsers) SearchByEmail(_ context.Context, email string) (*types.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, errNoUser
}

func (f *fakeUsers) Count(context.Context) (int, error) {
	return len(f.byID), nil
}

type apiFixture struct {
	router *gin.Engine
	clock  *abtime.ManualTime
	table  *storage.SessionTable
}

func newAPITest(t *testing.T, authType warden.AuthType, ttl time.Duration, rate types.RateConfig) apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := newFakeUsers(t)
	clock := abtime.NewManualAtTime(time.Unix(1500000000, 0).UTC())
	table := storage.NewSessionTable()
	t.Cleanup(table.Reset)

	var auth *warden.Authenticator
	exempt := warden.DefaultConfig().ExemptPaths
	switch {
	case authType == warden.AuthNone:
	case authType.UsesSessions():
		store := storage.NewExpiringStore(storage.NewMemoryStore(table, logr.Discard()), ttl, clock, logr.Discard())
		auth = warden.NewAuthenticator(authType, exempt, "", users, store, logr.Discard())
	default:
		auth = warden.NewAuthenticator(authType, exempt, "", users, nil, logr.Discard())
	}

	srv := NewServer(auth, users, rate, warden.NewRateLimiter(clock), logr.Discard())
	return apiFixture{router: srv.Router(), clock: clock, table: table}
}

type request struct {
	method  string
	path    string
	form    url.Values
	cookie  string
	headers map[string]string
}

func (f apiFixture) do(t *testing.T, r request) *httptest.ResponseRecorder {
	t.Helper()
	body := ""
	if r.form != nil {
		body = r.form.Encode()
	}
	req := httptest.NewRequest(r.method, r.path, strings.NewReader(body))
	req.RemoteAddr = "192.0.2.1:1234"
	if r.form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if r.cookie != "" {
		req.AddCookie(&http.Cookie{Name: warden.DefaultCookieName, Value: r.cookie})
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func body(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func login(t *testing.T, f apiFixture) string {
	t.Helper()
	w := f.do(t, request{
		method: http.MethodPost,
		path:   "/api/v1/auth_session/login",
		form:   url.Values{"email": {testEmail}, "password": {testPassword}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	for _, c := range w.Result().Cookies() {
		if c.Name == warden.DefaultCookieName {
			return c.Value
		}
	}
	t.Fatal("login did not set a session cookie")
	return ""
}

func TestOpenRoutes(t *testing.T) {
	f := newAPITest(t, warden.AuthNone, 0, types.RateConfig{})

	w := f.do(t, request{method: http.MethodGet, path: "/api/v1/status"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"status": "OK"}, body(t, w))

	w = f.do(t, request{method: http.MethodGet, path: "/api/v1/stats"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body(t, w)["users"])

	w = f.do(t, request{method: http.MethodGet, path: "/api/v1/nope"})
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, map[string]any{"error": "Not found"}, body(t, w))

	w = f.do(t, request{method: http.MethodGet, path: "/api/v1/unauthorized"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, map[string]any{"error": "Unauthorized"}, body(t, w))

	w = f.do(t, request{method: http.MethodGet, path: "/api/v1/forbidden"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, map[string]any{"error": "Forbidden"}, body(t, w))

	w = f.do(t, request{method: http.MethodGet, path: "/api/v1/users/u-1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testEmail, body(t, w)["email"])
}

func TestCORSHeaders(t *testing.T) {
	f := newAPITest(t, warden.AuthSession, 0, types.RateConfig{})

	w := f.do(t, request{
		method:  http.MethodGet,
		path:    "/api/v1/status",
		headers: map[string]string{"Origin": "http://example.com"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestTrailingSlashReachesHandlers(t *testing.T) {
	f := newAPITest(t, warden.AuthSession, 0, types.RateConfig{})

	for _, path := range []string{"/api/v1/status", "/api/v1/status/"} {
		w := f.do(t, request{method: http.MethodGet, path: path})
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, map[string]any{"status": "OK"}, body(t, w))
	}

	w := f.do(t, request{method: http.MethodGet, path: "/api/v1/stats/"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, request{method: http.MethodGet, path: "/api/v1/forbidden/"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	sessionID := login(t, f)
	w = f.do(t, request{method: http.MethodGet, path: "/api/v1/stats/", cookie: sessionID})
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, request{method: http.MethodDelete, path: "/api/v1/auth_session/logout/", cookie: sessionID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, f.table.Len())
}

func TestSessionLoginFlow(t *testing.T) {
	f := newAPITest(t, warden.AuthSession, 0, types.RateConfig{})

	w := f.do(t, request{method: http.MethodGet, path: "/api/v1/status/"})
	assert.Equal(t, http.StatusOK, w.Code, "status is exempt")

	w = f.do(t, request{method: http.MethodGet, path: "/api/v1/users/me"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, request{method: http.MethodGet, path: "/api/v1/users/me", cookie: "not-a-session"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	sessionID := login(t, f)

	w = f.do(t, request{method: http.MethodGet, path: "/api/v1/users/me", cookie: sessionID})
	require.Equal(t, http.StatusOK, w.Code)
	me := body(t, w)
	assert.Equal(t, "u-1", me["id"])
	assert.NotContains(t, me, "hashed_password")

	w = f.do(t, request{method: http.MethodDelete, path: "/api/v1/auth_session/logout", cookie: sessionID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{}, body(t, w))
	assert.Zero(t, f.table.Len())

	w = f.do(t, request{method: http.MethodGet, path: "/api/v1/users/me", cookie: sessionID})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLoginErrors(t *testing.T) {
	f := newAPITest(t, warden.AuthSession, 0, types.RateConfig{})
	const path = "/api/v1/auth_session/login"

	tests := []struct {
		name string
		form url.Values
		code int
		err  string
	}{
		{"email missing", url.Values{"password": {testPassword}}, http.StatusBadRequest, "email missing"},
		{"password missing", url.Values{"email": {testEmail}}, http.StatusBadRequest, "password missing"},
		{"unknown email", url.Values{"email": {"x@hbtn.io"}, "password": {testPassword}}, http.StatusNotFound, "no user found for this email"},
		{"wrong password", url.Values{"email": {testEmail}, "password": {"nope"}}, http.StatusUnauthorized, "wrong password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, request{method: http.MethodPost, path: path, form: tt.form})
			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, tt.err, body(t, w)["error"])
		})
	}
	assert.Zero(t, f.table.Len())
}

func TestSessionExpiresOverHTTP(t *testing.T) {
	f := newAPITest(t, warden.AuthSessionExp, time.Minute, types.RateConfig{})

	sessionID := login(t, f)
	w := f.do(t, request{method: http.MethodGet, path: "/api/v1/users/me", cookie: sessionID})
	require.Equal(t, http.StatusOK, w.Code)

	f.clock.Advance(2 * time.Minute)
	w = f.do(t, request{method: http.MethodGet, path: "/api/v1/users/me", cookie: sessionID})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBasicAuth(t *testing.T) {
	f := newAPITest(t, warden.AuthBasic, 0, types.RateConfig{})
	encode := func(s string) string { return "Basic " + base64.StdEncoding.EncodeToString([]byte(s)) }

	w := f.do(t, request{
		method:  http.MethodGet,
		path:    "/api/v1/users/me",
		headers: map[string]string{"Authorization": encode(testEmail + ":" + testPassword)},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testEmail, body(t, w)["email"])

	for _, header := range []string{encode(testEmail + ":wrong"), "Bearer abc", "Basic !!!", encode("no-colon")} {
		w = f.do(t, request{
			method:  http.MethodGet,
			path:    "/api/v1/users/me",
			headers: map[string]string{"Authorization": header},
		})
		assert.Equal(t, http.StatusForbidden, w.Code, header)
	}

	w = f.do(t, request{
		method: http.MethodPost,
		path:   "/api/v1/auth_session/login",
		form:   url.Values{"email": {testEmail}, "password": {testPassword}},
	})
	assert.Equal(t, http.StatusNotFound, w.Code, "basic auth has no sessions")
}

func TestLoginRateLimit(t *testing.T) {
	f := newAPITest(t, warden.AuthSession, 0, types.RateConfig{Limit: 2, Period: time.Minute})
	form := url.Values{"email": {testEmail}, "password": {"nope"}}

	for i := 0; i < 2; i++ {
		w := f.do(t, request{method: http.MethodPost, path: "/api/v1/auth_session/login", form: form})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := f.do(t, request{method: http.MethodPost, path: "/api/v1/auth_session/login", form: form})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	f.clock.Advance(time.Minute)
	w = f.do(t, request{method: http.MethodPost, path: "/api/v1/auth_session/login", form: form})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
