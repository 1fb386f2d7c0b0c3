package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchkit-dev/launchkit/internal/routes"
)

func TestCookieNameFor(t *testing.T) {
	tests := []struct {
		appName string
		want    string
	}{
		{"Next SEO Starter", "next-seo-starter.session_token"},
		{"Launchkit", "launchkit.session_token"},
		{"  ACME & Co.  ", "acme-co.session_token"},
		{"!!!", "app.session_token"},
	}

	for _, tt := range tests {
		t.Run(tt.appName, func(t *testing.T) {
			assert.Equal(t, tt.want, CookieNameFor(tt.appName))
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_NAME", "Test App")
	t.Setenv("SESSION_COOKIE_NAME", "")
	t.Setenv("SESSION_FAILURE_POLICY", "")
	t.Setenv("SESSION_TTL", "")
	t.Setenv("ROUTES_FILE", "")
	t.Setenv("LOGIN_PATH", "")
	t.Setenv("LANDING_PATH", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-app.session_token", cfg.Session.CookieName)
	assert.Equal(t, "/login", cfg.Session.LoginPath)
	assert.Equal(t, "/", cfg.Session.LandingPath)
	assert.Equal(t, 7*24*time.Hour, cfg.Session.TTL)
	assert.False(t, cfg.Session.FailOpen)
	assert.Equal(t, routes.Protected, cfg.Routes.Classify("/dashboard"))
}

func TestLoad_FailurePolicy(t *testing.T) {
	t.Setenv("SESSION_FAILURE_POLICY", "fail-open")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Session.FailOpen)

	t.Setenv("SESSION_FAILURE_POLICY", "sometimes")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoad_InvalidTTL(t *testing.T) {
	t.Setenv("SESSION_TTL", "forever")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("SESSION_TTL", "-1h")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoad_LoginPath(t *testing.T) {
	t.Setenv("ROUTES_FILE", "")
	t.Setenv("LOGIN_PATH", "/signin")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/signin", cfg.Session.LoginPath)
	assert.Equal(t, routes.AuthOnly, cfg.Routes.Classify("/signin"))
	assert.Equal(t, routes.Public, cfg.Routes.Classify("/login"))
}

func TestLoad_LoginPathMustBeAuthOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("routes:\n  - prefix: /app\n    class: protected\n  - prefix: /login\n    class: authOnly\n"), 0644))
	t.Setenv("ROUTES_FILE", path)

	t.Setenv("LOGIN_PATH", "/login")
	_, err := Load()
	require.NoError(t, err)

	t.Setenv("LOGIN_PATH", "/signin")
	_, err = Load()
	assert.ErrorContains(t, err, "LOGIN_PATH")

	t.Setenv("LOGIN_PATH", "/app/login")
	_, err = Load()
	assert.ErrorContains(t, err, "LOGIN_PATH")
}
