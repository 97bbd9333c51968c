package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Join policies
const (
	JoinPolicyOpen    = "open"
	JoinPolicyGuarded = "guarded"
)

// Config holds application configuration
type Config struct {
	ServerPort     string        `env:"PORT" envDefault:"8080"`
	DatabaseType   string        `env:"DB_TYPE" envDefault:"sqlite"`
	DatabasePath   string        `env:"DB_PATH" envDefault:"./carecoins.db"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	MigrationsPath string        `env:"MIGRATIONS_PATH"`
	TxTimeout      time.Duration `env:"TX_TIMEOUT" envDefault:"5s"`

	CoinsPerMinute       int64  `env:"COINS_PER_MINUTE" envDefault:"1"`
	DefaultMonthlyBudget int64  `env:"DEFAULT_MONTHLY_BUDGET" envDefault:"1000"`
	JoinPolicy           string `env:"JOIN_POLICY" envDefault:"open"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// Identity verification
	IdentityProvider    string `env:"IDENTITY_PROVIDER"`
	IdentityJWTSecret   string `env:"IDENTITY_JWT_SECRET"`
	IdentityJWKSURL     string `env:"IDENTITY_JWKS_URL"`
	IdentityIssuer      string `env:"IDENTITY_ISSUER"`
	IdentityAudience    string `env:"IDENTITY_AUDIENCE"`
	FirebaseProjectID   string `env:"FIREBASE_PROJECT_ID"`
	IdentityUserInfoURL string `env:"IDENTITY_USERINFO_URL"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`

	// Amazon SES notifications
	AWSRegion    string `env:"AWS_REGION" envDefault:"us-east-1"`
	SESFromEmail string `env:"SES_FROM_EMAIL"`
	SESFromName  string `env:"SES_FROM_NAME" envDefault:"CareCoins"`
	AppBaseURL   string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`
	EmailDebug   bool   `env:"EMAIL_DEBUG" envDefault:"false"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
}

// Load reads an optional .env file and then the environment
func Load() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that env tags cannot express
func (c *Config) Validate() error {
	if c.TxTimeout <= 0 {
		return fmt.Errorf("TX_TIMEOUT must be positive, got %s", c.TxTimeout)
	}
	if c.CoinsPerMinute < 0 {
		return fmt.Errorf("COINS_PER_MINUTE must not be negative")
	}
	if c.DefaultMonthlyBudget < 0 {
		return fmt.Errorf("DEFAULT_MONTHLY_BUDGET must not be negative")
	}
	switch c.JoinPolicy {
	case JoinPolicyOpen, JoinPolicyGuarded:
	default:
		return fmt.Errorf("unsupported JOIN_POLICY %q", c.JoinPolicy)
	}
	return nil
}
