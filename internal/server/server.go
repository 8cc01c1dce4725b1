package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/taskdeck-dev/taskdeck/internal/auth"
	"github.com/taskdeck-dev/taskdeck/internal/config"
	"github.com/taskdeck-dev/taskdeck/internal/models"
	"github.com/taskdeck-dev/taskdeck/internal/validate"
)

// Server represents the auth gateway HTTP server
type Server struct {
	router      *gin.Engine
	db          *gorm.DB
	config      *config.Config
	logger      zerolog.Logger
	asynqClient *asynq.Client
	verifier    ProviderVerifier
	cron        *cron.Cron
	version     string
}

// New creates a new server instance
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	db, err := initDatabase(cfg, zlog)
	if err != nil {
		return nil, err
	}

	if err := models.AutoMigrate(db); err != nil {
		return nil, err
	}

	if err := initJWTSecret(db, zlog); err != nil {
		return nil, err
	}

	registerValidators()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: cfg.Redis.Address,
	})

	server := &Server{
		db:          db,
		config:      cfg,
		logger:      zlog,
		asynqClient: asynqClient,
		verifier:    NewTokenInfoVerifier(cfg.Auth.OAuthTokenInfoURL, cfg.Auth.OAuthAudience),
		cron:        cron.New(),
		version:     version,
	}

	server.setupRouter()
	server.setupCleanupJobs()

	return server, nil
}

// SetProviderVerifier overrides the OAuth verifier (used in tests)
func (s *Server) SetProviderVerifier(v ProviderVerifier) {
	s.verifier = v
}

// initJWTSecret loads the persisted signing secret, generating one on first
// start.
func initJWTSecret(db *gorm.DB, zlog zerolog.Logger) error {
	var setting models.Setting
	if err := db.First(&setting).Error; err == nil {
		auth.InitializeJWT(setting.JWTSecret)
		zlog.Debug().Msg("Loaded JWT secret from database")
		return nil
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("failed to generate JWT secret: %w", err)
	}

	setting = models.Setting{JWTSecret: hex.EncodeToString(secretBytes)}
	if err := db.Create(&setting).Error; err != nil {
		return fmt.Errorf("failed to persist JWT secret: %w", err)
	}

	auth.InitializeJWT(setting.JWTSecret)
	zlog.Info().Msg("Generated JWT secret on first start")
	return nil
}

// registerValidators installs the shared credential checks as binding
// validators so handlers enforce the same rules the client pre-checks.
func registerValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return validate.Password(fl.Field().String()) == nil
	})
	v.RegisterValidation("otpcode", func(fl validator.FieldLevel) bool {
		return validate.TwoFactorCode(fl.Field().String()) == nil
	})
}

// initDatabase initializes the database connection with production settings
func initDatabase(cfg *config.Config, zlog zerolog.Logger) (*gorm.DB, error) {
	const (
		maxOpenConns    = 8
		maxIdleConns    = 4
		connMaxLifetime = 300 * time.Second
		busyTimeout     = 5000
	)

	db, err := gorm.Open(sqlite.Open(cfg.Database.URL), &gorm.Config{
		Logger: gormlogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormlogger.Config{
				LogLevel:                  gormlogger.Error,
				IgnoreRecordNotFoundError: true,
				SlowThreshold:             200 * time.Millisecond,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL mode first for concurrency, then the rest.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout),
		"PRAGMA foreign_keys=1",
		"PRAGMA temp_store=2",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			zlog.Warn().Str("pragma", pragma).Err(err).Msg("Failed to apply pragma")
		}
	}

	return db, nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s.router.GET("/health", s.healthCheck)

	// Public auth endpoints
	s.router.POST("/api/auth/login", s.login)
	s.router.POST("/api/auth/login/2fa", s.verifyLogin2FA)
	s.router.POST("/api/auth/register", s.register)
	s.router.POST("/api/auth/oauth", s.oauthLogin)
	s.router.POST("/api/auth/password/forgot", s.forgotPassword)
	s.router.POST("/api/auth/password/reset", s.resetPassword)
	s.router.GET("/api/auth/password/verify-key", s.verifyResetKey)

	// Authenticated endpoints (JWT required)
	authed := s.router.Group("/api/auth")
	authed.Use(JWTAuthMiddleware(s.db, s.logger))
	{
		authed.GET("/profile", s.getProfile)
		authed.POST("/profile/complete", s.completeProfile)
		authed.POST("/logout", s.logout)
		authed.POST("/2fa/generate", s.generate2FA)
		authed.POST("/2fa/verify", s.verify2FA)
		authed.POST("/2fa/disable", s.disable2FA)
	}
}

// setupCleanupJobs schedules the purge of expired login challenges and
// reset keys.
func (s *Server) setupCleanupJobs() {
	_, err := s.cron.AddFunc("@every 10m", func() {
		now := time.Now()

		res := s.db.Where("expires_at <= ?", now).Delete(&models.LoginChallenge{})
		if res.Error != nil {
			s.logger.Error().Err(res.Error).Msg("Failed to purge expired login challenges")
		} else if res.RowsAffected > 0 {
			s.logger.Info().Int64("count", res.RowsAffected).Msg("Purged expired login challenges")
		}

		res = s.db.Where("expires_at <= ? OR used_at IS NOT NULL", now).Delete(&models.PasswordReset{})
		if res.Error != nil {
			s.logger.Error().Err(res.Error).Msg("Failed to purge expired reset keys")
		} else if res.RowsAffected > 0 {
			s.logger.Info().Int64("count", res.RowsAffected).Msg("Purged expired reset keys")
		}
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to schedule cleanup job")
	}
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "taskdeck-auth",
		"version":   s.version,
	})
}

// GetDB returns the database connection for use by workers
func (s *Server) GetDB() *gorm.DB {
	return s.db
}

// Router returns the configured handler (used in tests)
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until shutdown
func (s *Server) Start() error {
	port := ":8080"

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              port,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       300 * time.Second,
	}

	s.cron.Start()

	go func() {
		s.logger.Info().Str("port", port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	<-sigChan
	s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")

	cronCtx := s.cron.Stop()
	<-cronCtx.Done()

	if err := s.asynqClient.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Error closing Asynq client")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	// Close the database to flush WAL writes.
	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			s.logger.Error().Err(err).Msg("Error closing database")
		}
	}

	s.logger.Info().Msg("Server shutdown complete")
	return nil
}
