package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"carecoins/internal/config"
	"carecoins/internal/database"
	"carecoins/internal/handlers"
	"carecoins/internal/identity"
	"carecoins/internal/logging"
	"carecoins/internal/repository"
	"carecoins/internal/security"
	"carecoins/internal/service"
	"carecoins/internal/tracing"
	"carecoins/migrations"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, "carecoins", cfg.OTelEndpoint, cfg.OTelEnabled)
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.WithError(err).Warn("Failed to flush traces")
		}
	}()

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	log.WithField("type", cfg.DatabaseType).Info("Database connection established")

	// Run migrations
	applied, err := db.RunMigrations(ctx, migrationsFS(cfg))
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.WithField("applied", applied).Info("Migrations completed successfully")

	verifier, err := newVerifier(cfg)
	if err != nil {
		log.Fatalf("Failed to configure identity verification: %v", err)
	}
	if verifier == nil {
		log.Warn("IDENTITY_PROVIDER not set; authenticated routes will fail")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	familyRepo := repository.NewFamilyRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)

	notifier, err := service.NewEmailNotifier(ctx, service.EmailConfig{
		AWSRegion:  cfg.AWSRegion,
		FromEmail:  cfg.SESFromEmail,
		FromName:   cfg.SESFromName,
		AppBaseURL: cfg.AppBaseURL,
		Debug:      cfg.EmailDebug,
	}, log)
	if err != nil {
		log.Fatalf("Failed to initialize email notifier: %v", err)
	}

	// Initialize services
	identityService := service.NewIdentityService(userRepo)
	familyService := service.NewFamilyService(db, familyRepo, cfg.JoinPolicy, cfg.DefaultMonthlyBudget)
	activityService := service.NewActivityService(db, activityRepo, familyRepo, ledgerRepo, userRepo, service.ActivityServiceOptions{
		CoinsPerMinute: cfg.CoinsPerMinute,
		Notifier:       notifier,
		Logger:         log,
	})
	ledgerService := service.NewLedgerService(db, ledgerRepo, familyRepo)

	var limiter *security.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = security.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	// Initialize handlers
	middleware := handlers.NewMiddleware(verifier, identityService, limiter, log)
	handler := handlers.NewRouter(middleware,
		handlers.NewHealthHandler(db),
		handlers.NewFamilyHandler(familyService, ledgerService),
		handlers.NewActivityHandler(activityService),
	)

	// Start server
	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Server starting on http://localhost%s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	log.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}

// migrationsFS returns the embedded migrations unless MIGRATIONS_PATH points
// at a directory with the same layout
func migrationsFS(cfg *config.Config) fs.FS {
	if cfg.MigrationsPath != "" {
		return os.DirFS(cfg.MigrationsPath)
	}
	return migrations.FS
}

// newVerifier builds the identity verifier named by IDENTITY_PROVIDER.
// An empty provider returns a nil verifier.
func newVerifier(cfg *config.Config) (identity.Verifier, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.IdentityProvider)) {
	case "":
		return nil, nil
	case "jwt", "firebase":
		verifier, err := identity.NewJWTVerifier(identity.JWTConfig{
			Secret:            cfg.IdentityJWTSecret,
			JWKSURL:           cfg.IdentityJWKSURL,
			Issuer:            cfg.IdentityIssuer,
			Audience:          cfg.IdentityAudience,
			FirebaseProjectID: cfg.FirebaseProjectID,
		})
		if err != nil {
			return nil, err
		}
		return verifier, nil
	case "userinfo":
		if cfg.IdentityUserInfoURL == "" {
			return nil, errors.New("IDENTITY_USERINFO_URL is required for the userinfo provider")
		}
		return identity.NewUserInfoVerifier(cfg.IdentityUserInfoURL, nil), nil
	default:
		return nil, fmt.Errorf("unsupported IDENTITY_PROVIDER %q", cfg.IdentityProvider)
	}
}
