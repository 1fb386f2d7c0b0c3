package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchkit-dev/launchkit/internal/config"
	"github.com/launchkit-dev/launchkit/internal/models"
	"github.com/launchkit-dev/launchkit/internal/routes"
)

const testCookieName = "launchkit.session_token"

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		HTTP:     config.HTTPConfig{Address: ":0", AllowedOrigins: []string{"http://localhost:3000"}},
		Database: config.DatabaseConfig{URL: filepath.Join(t.TempDir(), "test.sqlite")},
		Session: config.SessionConfig{
			CookieName:  testCookieName,
			TTL:         time.Hour,
			LoginPath:   "/login",
			LandingPath: "/",
		},
		Site: config.SiteConfig{
			Name:        "Launchkit",
			Description: "Starter",
			BaseURL:     "https://example.com",
			Locale:      "en-GB",
			Author:      "Launchkit Team",
			Background:  "#1a1a1a",
		},
		Routes: routes.Default(),
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()

	srv, err := New(cfg, zerolog.Nop(), "test")
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(srv *Server, method, path string, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		if strings.HasPrefix(body, "{") {
			req.Header.Set("Content-Type", "application/json")
		} else {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, c := range w.Result().Cookies() {
		if c.Name == testCookieName && c.Value != "" {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func registerForm(name, email, password, confirm string) string {
	return url.Values{
		"name":             {name},
		"email":            {email},
		"password":         {password},
		"confirm_password": {confirm},
	}.Encode()
}

func TestDashboard_NoCookie_RedirectsToLogin(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t))

	w := doRequest(srv, http.MethodGet, "/dashboard", "")

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestRegisterThenDashboard(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t))

	w := doRequest(srv, http.MethodPost, "/register", registerForm("Ada", "ada@example.com", "analytical", "analytical"))
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	cookie := sessionCookie(t, w)
	assert.True(t, cookie.HttpOnly)

	w = doRequest(srv, http.MethodGet, "/dashboard", "", cookie)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Welcome, Ada!")

	// Signed-in users are bounced off the auth pages
	w = doRequest(srv, http.MethodGet, "/login", "", cookie)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestRegister_ValidationErrors(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t))

	tests := []struct {
		name    string
		form    string
		message string
	}{
		{"mismatch", registerForm("Ada", "ada@example.com", "analytical", "different"), "Passwords do not match"},
		{"short password", registerForm("Ada", "ada@example.com", "short", "short"), "at least 8 characters"},
		{"bad email", registerForm("Ada", "not-an-email", "analytical", "analytical"), "valid email"},
		{"blank name", registerForm("   ", "ada@example.com", "analytical", "analytical"), "your name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(srv, http.MethodPost, "/register", tt.form)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.message)
		})
	}
}

func TestDashboard_InvalidCookie_LayoutRedirects(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t))

	w := doRequest(srv, http.MethodGet, "/dashboard", "", &http.Cookie{Name: testCookieName, Value: "forged"})

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestLogin_RendersForVisitors(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t))

	w := doRequest(srv, http.MethodGet, "/login", "", &http.Cookie{Name: testCookieName, Value: "forged"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sign In")
}

func TestLogin_FormFlow(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t))

	w := doRequest(srv, http.MethodPost, "/register", registerForm("Ada", "ada@example.com", "analytical", "analytical"))
	require.Equal(t, http.StatusSeeOther, w.Code)

	w = doRequest(srv, http.MethodPost, "/login", url.Values{"email": {"ada@example.com"}, "password": {"wrong-pass"}}.Encode())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid email or password")

	w = doRequest(srv, http.MethodPost, "/login", url.Values{"email": {"ada@example.com"}, "password": {"analytical"}}.Encode())
	require.Equal(t, http.StatusSeeOther, w.Code)
	cookie := sessionCookie(t, w)

	w = doRequest(srv, http.MethodGet, "/dashboard", "", cookie)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAnonymousLoginAndLogout(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t))

	w := doRequest(srv, http.MethodPost, "/login/anonymous", "")
	require.Equal(t, http.StatusSeeOther, w.Code)
	cookie := sessionCookie(t, w)

	w = doRequest(srv, http.MethodGet, "/dashboard", "", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Welcome, Guest!")

	w = doRequest(srv, http.MethodPost, "/logout", "", cookie)
	assert.Equal(t, http.StatusSeeOther, w.Code)

	// The old cookie is still present client-side but no longer resolves
	w = doRequest(srv, http.MethodGet, "/dashboard", "", cookie)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestDashboard_ExpiredSessionRecord(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t))

	w := doRequest(srv, http.MethodPost, "/login/anonymous", "")
	cookie := sessionCookie(t, w)

	require.NoError(t, srv.db.Model(&models.Session{}).
		Where("1 = 1").
		Update("expires_at", time.Now().Add(-time.Minute).UTC()).Error)

	w = doRequest(srv, http.MethodGet, "/dashboard", "", cookie)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestDashboard_StoreUnavailable(t *testing.T) {
	t.Run("fail-closed", func(t *testing.T) {
		srv := newTestServer(t, newTestConfig(t))
		cookie := sessionCookie(t, doRequest(srv, http.MethodPost, "/login/anonymous", ""))

		sqlDB, err := srv.db.DB()
		require.NoError(t, err)
		require.NoError(t, sqlDB.Close())

		w := doRequest(srv, http.MethodGet, "/dashboard", "", cookie)
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
	})

	t.Run("fail-open", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Session.FailOpen = true
		srv := newTestServer(t, cfg)
		cookie := sessionCookie(t, doRequest(srv, http.MethodPost, "/login/anonymous", ""))

		sqlDB, err := srv.db.DB()
		require.NoError(t, err)
		require.NoError(t, sqlDB.Close())

		w := doRequest(srv, http.MethodGet, "/dashboard", "", cookie)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "could not be verified")
	})
}

func TestAPI_SessionLifecycle(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t))

	w := doRequest(srv, http.MethodGet, "/api/auth/session", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(srv, http.MethodPost, "/api/auth/sign-up", `{"name":"Ada","email":"ada@example.com","password":"analytical"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	cookie := sessionCookie(t, w)

	w = doRequest(srv, http.MethodPost, "/api/auth/sign-up", `{"name":"Ada","email":"ada@example.com","password":"analytical"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(srv, http.MethodGet, "/api/auth/session", "", cookie)
	require.Equal(t, http.StatusOK, w.Code)

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Ada", resp.User.Name)
	assert.Equal(t, "ada@example.com", resp.User.Email)

	w = doRequest(srv, http.MethodPost, "/api/auth/sign-out", "", cookie)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(srv, http.MethodGet, "/api/auth/session", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(srv, http.MethodPost, "/api/auth/sign-in", `{"email":"ada@example.com","password":"nope-nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(srv, http.MethodPost, "/api/auth/sign-in", `{"email":"ada@example.com","password":"analytical"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSecureCookie(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Session.CookieSecure = true
	srv := newTestServer(t, cfg)

	w := doRequest(srv, http.MethodPost, "/api/auth/sign-in/anonymous", "")
	require.Equal(t, http.StatusOK, w.Code)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "__Secure-"+testCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.Secure)

	w = doRequest(srv, http.MethodGet, "/dashboard", "", cookie)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionSecret_PersistedAcrossRestarts(t *testing.T) {
	cfg := newTestConfig(t)

	first, err := New(cfg, zerolog.Nop(), "test")
	require.NoError(t, err)
	cookie := sessionCookie(t, doRequest(first, http.MethodPost, "/login/anonymous", ""))
	first.Close()

	second := newTestServer(t, cfg)
	w := doRequest(second, http.MethodGet, "/dashboard", "", cookie)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPublicPagesAndSEO(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t))

	w := doRequest(srv, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<link rel="canonical" href="https://example.com/">`)
	assert.Contains(t, w.Body.String(), `"@type":"WebSite"`)

	w = doRequest(srv, http.MethodGet, "/sitemap.xml", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<loc>https://example.com/</loc>")

	w = doRequest(srv, http.MethodGet, "/manifest.webmanifest", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/manifest+json", w.Header().Get("Content-Type"))

	w = doRequest(srv, http.MethodGet, "/robots.txt", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Disallow: /dashboard")
	assert.Contains(t, w.Body.String(), "Disallow: /login")
	assert.Contains(t, w.Body.String(), "Sitemap: https://example.com/sitemap.xml")

	w = doRequest(srv, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestCustomLoginPath(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Session.LoginPath = "/signin"
	table, err := routes.DefaultFor("/signin")
	require.NoError(t, err)
	cfg.Routes = table
	srv := newTestServer(t, cfg)

	w := doRequest(srv, http.MethodGet, "/dashboard", "")
	require.Equal(t, http.StatusSeeOther, w.Code)
	location := w.Header().Get("Location")
	assert.Equal(t, "/signin", location)

	w = doRequest(srv, http.MethodGet, location, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `action="/signin"`)
	assert.Contains(t, w.Body.String(), `action="/signin/anonymous"`)

	w = doRequest(srv, http.MethodPost, "/signin/anonymous", "")
	require.Equal(t, http.StatusSeeOther, w.Code)
	cookie := sessionCookie(t, w)

	// Signed-in callers are bounced off the custom login page too
	w = doRequest(srv, http.MethodGet, "/signin", "", cookie)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = doRequest(srv, http.MethodGet, "/login", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNew_RejectsLoginPathOutsideTable(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Session.LoginPath = "/signin"

	_, err := New(cfg, zerolog.Nop(), "test")
	assert.ErrorContains(t, err, "LOGIN_PATH")
}

func TestAuthPagesStructuredData(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t))

	for _, page := range []string{"/login", "/register"} {
		w := doRequest(srv, http.MethodGet, page, "")
		require.Equal(t, http.StatusOK, w.Code, page)
		assert.Contains(t, w.Body.String(), `"@type":"BreadcrumbList"`, page)
		assert.Contains(t, w.Body.String(), `"item":"https://example.com/"`, page)
	}

	w := doRequest(srv, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<meta name="author" content="Launchkit Team">`)
	assert.Contains(t, w.Body.String(), `"author":{"@type":"Organization","name":"Launchkit Team"}`)
}

func TestSecureSettingTurnedOff_PlainCookieWins(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Session.CookieSecure = true

	secure, err := New(cfg, zerolog.Nop(), "test")
	require.NoError(t, err)
	w := doRequest(secure, http.MethodPost, "/api/auth/sign-in/anonymous", "")
	require.Equal(t, http.StatusOK, w.Code)

	var stale *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "__Secure-"+testCookieName {
			stale = c
		}
	}
	require.NotNil(t, stale)

	// Revoke the session behind the old cookie
	require.NoError(t, secure.db.Where("1 = 1").Delete(&models.Session{}).Error)
	secure.Close()

	cfg.Session.CookieSecure = false
	plain := newTestServer(t, cfg)
	fresh := sessionCookie(t, doRequest(plain, http.MethodPost, "/login/anonymous", ""))

	w = doRequest(plain, http.MethodGet, "/dashboard", "", stale, fresh)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Welcome, Guest!")
}
