package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/launchkit-dev/launchkit/internal/routes"
)

// Config holds all configuration for the application
type Config struct {
	// HTTP Configuration
	HTTP HTTPConfig

	// Database Configuration
	Database DatabaseConfig

	// Redis Configuration
	Redis RedisConfig

	// Logging Configuration
	Logging LoggingConfig

	// Session cookie and gating configuration
	Session SessionConfig

	// Site metadata used by pages and SEO endpoints
	Site SiteConfig

	// Route classification table shared by both gates
	Routes *routes.Table

	// Background worker configuration
	Worker WorkerConfig
}

// HTTPConfig holds HTTP listener configuration
type HTTPConfig struct {
	Address        string
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Address      string // Redis address (host:port)
	SessionCache bool   // Cache resolved sessions in Redis
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// SessionConfig holds the session cookie and redirect configuration
type SessionConfig struct {
	CookieName   string
	CookieDomain string
	CookieSecure bool
	Secret       string // Empty = generated on first boot and persisted
	TTL          time.Duration

	LoginPath   string
	LandingPath string

	// FailOpen renders protected pages without a session when the session
	// store is unavailable. Default is fail-closed (redirect to login).
	FailOpen bool
}

// SiteConfig holds the public site metadata
type SiteConfig struct {
	Name        string
	Description string
	BaseURL     string
	Locale      string
	Author      string
	ThemeColor  string
	Background  string
	Keywords    []string
}

// WorkerConfig holds background job configuration
type WorkerConfig struct {
	PurgeSchedule string // Cron expression for expired session purge
	Concurrency   int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	siteName := getEnv("APP_NAME", "Launchkit")

	ttl, err := time.ParseDuration(getEnv("SESSION_TTL", "168h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("invalid SESSION_TTL: must be positive")
	}

	concurrency, err := strconv.Atoi(getEnv("WORKER_CONCURRENCY", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}

	failOpen, err := parseFailurePolicy(getEnv("SESSION_FAILURE_POLICY", "fail-closed"))
	if err != nil {
		return nil, err
	}

	loginPath := getEnv("LOGIN_PATH", routes.DefaultLoginPath)

	// Route table - built-in defaults unless a YAML file is provided
	var table *routes.Table
	if path := os.Getenv("ROUTES_FILE"); path != "" {
		table, err = routes.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load routes file: %w", err)
		}
	} else {
		table, err = routes.DefaultFor(loginPath)
		if err != nil {
			return nil, fmt.Errorf("invalid LOGIN_PATH: %w", err)
		}
	}
	if err := ValidateLoginPath(table, loginPath); err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTP: HTTPConfig{
			Address:        getEnv("HTTP_ADDRESS", ":8080"),
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", "launchkit.sqlite"),
		},
		Redis: RedisConfig{
			Address:      getEnv("REDIS_ADDRESS", "localhost:6379"),
			SessionCache: getEnv("REDIS_SESSION_CACHE", "false") == "true",
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Session: SessionConfig{
			CookieName:   getEnv("SESSION_COOKIE_NAME", CookieNameFor(siteName)),
			CookieDomain: os.Getenv("SESSION_COOKIE_DOMAIN"),
			CookieSecure: getEnv("SESSION_COOKIE_SECURE", "false") == "true",
			Secret:       os.Getenv("SESSION_SECRET"),
			TTL:          ttl,
			LoginPath:    loginPath,
			LandingPath:  getEnv("LANDING_PATH", "/"),
			FailOpen:     failOpen,
		},
		Site: SiteConfig{
			Name:        siteName,
			Description: getEnv("APP_DESCRIPTION", "Ship SEO-ready sites faster with structured data, auth, and PWA defaults."),
			BaseURL:     strings.TrimSuffix(getEnv("SITE_URL", "http://localhost:8080"), "/"),
			Locale:      getEnv("APP_LOCALE", "en-GB"),
			Author:      getEnv("APP_AUTHOR", "Launchkit"),
			ThemeColor:  getEnv("THEME_PRIMARY", "#ad46ff"),
			Background:  getEnv("THEME_BACKGROUND", "#1a1a1a"),
			Keywords:    splitList(getEnv("APP_KEYWORDS", "seo starter,structured data,pwa starter")),
		},
		Routes: table,
		Worker: WorkerConfig{
			PurgeSchedule: getEnv("SESSION_PURGE_SCHEDULE", "0 * * * *"),
			Concurrency:   concurrency,
		},
	}

	return cfg, nil
}

// ValidateLoginPath checks that loginPath is an authOnly route of table.
// Both gates redirect there, so anything else loops or 404s.
func ValidateLoginPath(table *routes.Table, loginPath string) error {
	if !strings.HasPrefix(loginPath, "/") {
		return fmt.Errorf("invalid LOGIN_PATH %q: must start with /", loginPath)
	}
	if class := table.Classify(loginPath); class != routes.AuthOnly {
		return fmt.Errorf("invalid LOGIN_PATH %q: route table classifies it as %s, expected %s", loginPath, class, routes.AuthOnly)
	}
	return nil
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// CookieNameFor derives the session cookie name from the application name,
// e.g. "Next SEO Starter" -> "next-seo-starter.session_token".
func CookieNameFor(appName string) string {
	slug := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(appName), "-"), "-")
	if slug == "" {
		slug = "app"
	}
	return slug + ".session_token"
}

func parseFailurePolicy(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "fail-closed", "closed":
		return false, nil
	case "fail-open", "open":
		return true, nil
	default:
		return false, fmt.Errorf("invalid SESSION_FAILURE_POLICY %q: expected fail-closed or fail-open", value)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
