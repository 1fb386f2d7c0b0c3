// Package server wires the HTTP surface: marketing pages, auth pages, the
// protected dashboard, the JSON auth API and SEO endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/launchkit-dev/launchkit/internal/accounts"
	"github.com/launchkit-dev/launchkit/internal/auth"
	"github.com/launchkit-dev/launchkit/internal/config"
	"github.com/launchkit-dev/launchkit/internal/database"
	"github.com/launchkit-dev/launchkit/internal/gate"
	"github.com/launchkit-dev/launchkit/internal/models"
	"github.com/launchkit-dev/launchkit/internal/session"
)

// Server represents the HTTP server
type Server struct {
	router    *gin.Engine
	db        *gorm.DB
	redis     *redis.Client // nil unless the session cache is enabled
	config    *config.Config
	logger    zerolog.Logger
	validator *validator.Validate
	pages     map[string]*template.Template
	signer    *auth.TokenSigner
	oracle    session.Oracle
	gate      *gate.Gate
	accounts  *accounts.Service
	version   string
}

// New creates a new server instance
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	if err := config.ValidateLoginPath(cfg.Routes, cfg.Session.LoginPath); err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.Database.URL, zlog)
	if err != nil {
		return nil, err
	}

	// Run database migrations
	if err := models.AutoMigrate(db); err != nil {
		return nil, err
	}

	secret, err := ensureSessionSecret(db, cfg.Session.Secret, zlog)
	if err != nil {
		return nil, err
	}
	signer, err := auth.NewTokenSigner(secret)
	if err != nil {
		return nil, err
	}

	store := session.NewStore(db)

	var (
		lookup      session.Lookuper = store
		invalidator session.Invalidator
		redisClient *redis.Client
	)
	if cfg.Redis.SessionCache {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address})
		cache := session.NewRedisCache(redisClient, store, zlog)
		lookup, invalidator = cache, cache
		zlog.Info().Str("address", cfg.Redis.Address).Msg("Session cache enabled")
	}

	oracle := session.NewCookieOracle(cfg.Session.CookieName, signer, lookup, zlog)

	pages, err := loadPages()
	if err != nil {
		return nil, err
	}

	server := &Server{
		db:        db,
		redis:     redisClient,
		config:    cfg,
		logger:    zlog,
		validator: newValidator(),
		pages:     pages,
		signer:    signer,
		oracle:    oracle,
		gate: gate.New(cfg.Routes, oracle, gate.Policy{
			LoginPath:   cfg.Session.LoginPath,
			LandingPath: cfg.Session.LandingPath,
			FailOpen:    cfg.Session.FailOpen,
		}, zlog),
		accounts: accounts.NewService(db, store, invalidator, cfg.Session.TTL, zlog),
		version:  version,
	}

	server.setupRouter()

	return server, nil
}

// ensureSessionSecret returns the configured secret, or the secret persisted
// in the singleton config row, generating it on first boot.
func ensureSessionSecret(db *gorm.DB, configured string, zlog zerolog.Logger) (string, error) {
	if configured != "" {
		return configured, nil
	}

	var row models.Config
	err := db.First(&row).Error
	if err == nil {
		zlog.Debug().Msg("Loaded session secret from database")
		return row.SessionSecret, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("failed to load config: %w", err)
	}

	secret, err := auth.RandomHex(32)
	if err != nil {
		return "", err
	}
	if err := db.Create(&models.Config{SessionSecret: secret}).Error; err != nil {
		return "", fmt.Errorf("failed to persist session secret: %w", err)
	}

	zlog.Info().Msg("Generated session secret")
	return secret, nil
}

func newValidator() *validator.Validate {
	validate := validator.New()

	// Non-empty after trimming whitespace
	validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return validate
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())

	// Edge gate runs ahead of every route
	s.router.Use(s.gate.Edge())

	s.router.GET("/health", s.healthCheck)

	// SEO endpoints
	s.router.GET("/sitemap.xml", s.sitemap)
	s.router.GET("/manifest.webmanifest", s.manifest)
	s.router.GET("/robots.txt", s.robots)

	// Marketing pages
	marketing := s.router.Group("/")
	marketing.Use(s.gate.Layout())
	{
		marketing.GET("/", s.homePage)
		marketing.GET("/offline", s.offlinePage)
	}

	// Auth pages (authOnly)
	loginPath := s.config.Session.LoginPath
	authPages := s.router.Group("/")
	authPages.Use(s.gate.Layout())
	{
		authPages.GET(loginPath, s.loginPage)
		authPages.POST(loginPath, s.loginSubmit)
		authPages.POST(path.Join(loginPath, "anonymous"), s.loginAnonymousSubmit)
		authPages.GET("/register", s.registerPage)
		authPages.POST("/register", s.registerSubmit)
	}

	// Protected pages
	main := s.router.Group("/dashboard")
	main.Use(s.gate.Layout())
	{
		main.GET("", s.dashboardPage)
	}

	s.router.POST("/logout", s.logoutSubmit)

	// JSON auth API
	api := s.router.Group("/api")
	api.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.HTTP.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	{
		api.POST("/auth/sign-up", s.apiSignUp)
		api.POST("/auth/sign-in", s.apiSignIn)
		api.POST("/auth/sign-in/anonymous", s.apiSignInAnonymous)
		api.POST("/auth/sign-out", s.apiSignOut)
		api.GET("/auth/session", s.apiGetSession)
	}

	s.router.NoRoute(s.notFoundPage)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "launchkit",
		"version":   s.version,
	})
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until SIGINT/SIGTERM
func (s *Server) Start() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              s.config.HTTP.Address,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		s.logger.Info().Str("address", srv.Addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	<-sigChan
	s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	s.Close()
	s.logger.Info().Msg("Server shutdown complete")
	return nil
}

// Close releases the database and Redis connections
func (s *Server) Close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Error closing Redis client")
		}
	}

	// Close database connection to flush WAL writes
	if err := database.Close(s.db); err != nil {
		s.logger.Error().Err(err).Msg("Error closing database")
	}
}
