package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/ignite/onboarding/internal/config"
	"github.com/ignite/onboarding/internal/domain"
)

func testAuthConfig() *config.AuthConfig {
	return &config.AuthConfig{
		Enabled:       true,
		AllowedDomain: "example.com",
		CookieName:    "onboarding_session",
		CookieMaxAge:  3600,
		HREmails:      []string{"hr@example.com"},
	}
}

// fakeGoogle serves the token and userinfo endpoints.
func fakeGoogle(t *testing.T, user GoogleUserInfo) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "auth-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"access-123","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(user)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestManager(t *testing.T, cfg *config.AuthConfig, srv *httptest.Server) *AuthManager {
	am := NewAuthManager(cfg, "http://localhost:8080", NewMemorySessionStore())
	if srv != nil {
		am.oauth2Config.Endpoint = oauth2.Endpoint{
			AuthURL:   srv.URL + "/auth",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		}
		am.userInfoURL = srv.URL + "/userinfo"
	}
	return am
}

func callback(t *testing.T, am *AuthManager) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/auth/callback?state=xyz&code=auth-code", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "xyz"})
	rec := httptest.NewRecorder()
	am.HandleCallback(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name && c.Value != "" {
			return c
		}
	}
	return nil
}

func TestHandleLoginSetsStateAndDomainHint(t *testing.T) {
	am := newTestManager(t, testAuthConfig(), nil)
	rec := httptest.NewRecorder()
	am.HandleLogin(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "example.com", loc.Query().Get("hd"))
	assert.Equal(t, "http://localhost:8080/auth/callback", loc.Query().Get("redirect_uri"))

	state := sessionCookie(rec, stateCookie)
	require.NotNil(t, state)
	assert.Equal(t, state.Value, loc.Query().Get("state"))
}

func TestCallbackCreatesHRSession(t *testing.T) {
	srv := fakeGoogle(t, GoogleUserInfo{ID: "g-1", Email: "hr@example.com", VerifiedEmail: true, Name: "Hannah R", HD: "example.com"})
	am := newTestManager(t, testAuthConfig(), srv)

	rec := callback(t, am)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	cookie := sessionCookie(rec, "onboarding_session")
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodGet, "/auth/user", nil)
	req.AddCookie(cookie)
	s := am.GetSession(req)
	require.NotNil(t, s)
	assert.Equal(t, domain.RoleHR, s.Role)
	assert.True(t, s.Actor().IsHR())
}

func TestCallbackNonHRStaffIsEmployee(t *testing.T) {
	srv := fakeGoogle(t, GoogleUserInfo{ID: "g-2", Email: "dev@example.com", VerifiedEmail: true})
	am := newTestManager(t, testAuthConfig(), srv)

	cookie := sessionCookie(callback(t, am), "onboarding_session")
	require.NotNil(t, cookie)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	assert.False(t, am.GetSession(req).Actor().IsHR())
}

func TestCallbackRejectsOtherDomain(t *testing.T) {
	srv := fakeGoogle(t, GoogleUserInfo{ID: "g-3", Email: "someone@other.org", VerifiedEmail: true})
	am := newTestManager(t, testAuthConfig(), srv)

	rec := callback(t, am)
	assert.Equal(t, "/?error=domain_not_allowed", rec.Header().Get("Location"))
	assert.Nil(t, sessionCookie(rec, "onboarding_session"))
}

func TestCallbackStateMismatch(t *testing.T) {
	am := newTestManager(t, testAuthConfig(), nil)
	req := httptest.NewRequest(http.MethodGet, "/auth/callback?state=evil&code=x", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "xyz"})
	rec := httptest.NewRecorder()
	am.HandleCallback(rec, req)
	assert.Equal(t, "/?error=invalid_state", rec.Header().Get("Location"))
}

func TestAuthenticateAndRequireAuth(t *testing.T) {
	cfg := testAuthConfig()
	cfg.DevMode = true
	am := newTestManager(t, cfg, nil)

	var seen *domain.Actor
	h := am.Authenticate(RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ActorFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/applications/1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/applications/1", nil)
	req.Header.Set(DevEmailHeader, "hr@example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, domain.RoleHR, seen.Role)
}

func TestDevHeadersIgnoredOutsideDevMode(t *testing.T) {
	am := newTestManager(t, testAuthConfig(), nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(DevEmailHeader, "hr@example.com")
	assert.Nil(t, am.resolve(req))
}

func TestMemorySessionExpiry(t *testing.T) {
	store := NewMemorySessionStore()
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s1", &Session{UserID: "u", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, store.Save(ctx, "s2", &Session{UserID: "v", ExpiresAt: now.Add(-time.Minute)}))

	s, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u", s.UserID)
	assert.Equal(t, 1, store.Cleanup())

	now = now.Add(2 * time.Hour)
	s, err = store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestRedisSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store := NewRedisSessionStore(client)
	ctx := context.Background()

	in := &Session{UserID: "u-1", Email: "hr@example.com", Role: domain.RoleHR, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.Save(ctx, "abc", in))
	assert.True(t, mr.Exists("onboarding:session:abc"))
	assert.Greater(t, mr.TTL("onboarding:session:abc"), 59*time.Minute)

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "hr@example.com", got.Email)
	assert.Equal(t, domain.RoleHR, got.Role)

	require.NoError(t, store.Delete(ctx, "abc"))
	got, err = store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.Error(t, store.Save(ctx, "old", &Session{ExpiresAt: time.Now().Add(-time.Second)}))
}
