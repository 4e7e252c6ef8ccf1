package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the whole application configuration.
// Core sections are read with getEnv helpers, integration sections with env struct tags.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	MinIO    MinIOConfig

	Onboarding   OnboardingConfig
	Registration RegistrationConfig
	Analytics    AnalyticsConfig
	IndexNow     IndexNowConfig
}

type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Port        string
	Version     string
	LogLevel    string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Host     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret             string
	SessionTokenExpiry int // hours
}

type MinIOConfig struct {
	Endpoint  string // localhost:9000
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// OnboardingConfig drives the wizard sessions hosted by the API.
type OnboardingConfig struct {
	// DraftStore selects the draft backend: redis, postgres, sqlite or memory.
	DraftStore  string        `env:"ONBOARDING_DRAFT_STORE" envDefault:"redis"`
	SQLitePath  string        `env:"ONBOARDING_SQLITE_PATH" envDefault:"onboarding_drafts.db"`
	Debounce    time.Duration `env:"ONBOARDING_CHECK_DEBOUNCE" envDefault:"400ms"`
	IdleTimeout time.Duration `env:"ONBOARDING_IDLE_TIMEOUT" envDefault:"30m"`
	LoginURL    string        `env:"ONBOARDING_LOGIN_URL" envDefault:"/login"`
	SiteURL     string        `env:"ONBOARDING_SITE_URL" envDefault:"http://localhost:3000"`
	Currency    string        `env:"ONBOARDING_CURRENCY" envDefault:"USD"`
	// PlatformFee is the display-only fee rate applied to the creator rate card.
	PlatformFee string `env:"ONBOARDING_PLATFORM_FEE" envDefault:"0.15"`
}

// RegistrationConfig points at the external registration/profile API.
type RegistrationConfig struct {
	BaseURL           string        `env:"REGISTRATION_BASE_URL" envDefault:"http://localhost:5000"`
	CreatorPath       string        `env:"REGISTRATION_CREATOR_PATH" envDefault:"/api/creators/register"`
	BrandPath         string        `env:"REGISTRATION_BRAND_PATH" envDefault:"/api/brands/register"`
	ProfilePath       string        `env:"REGISTRATION_PROFILE_PATH" envDefault:"/api/creators/profile"`
	CheckUsernamePath string        `env:"REGISTRATION_CHECK_USERNAME_PATH" envDefault:"/api/check-username"`
	CheckEmailPath    string        `env:"REGISTRATION_CHECK_EMAIL_PATH" envDefault:"/api/check-email"`
	Timeout           time.Duration `env:"REGISTRATION_TIMEOUT" envDefault:"30s"`
	CheckRPS          float64       `env:"REGISTRATION_CHECK_RPS" envDefault:"20"`
	CheckBurst        int           `env:"REGISTRATION_CHECK_BURST" envDefault:"5"`
}

// AnalyticsConfig targets the GA4 measurement protocol.
type AnalyticsConfig struct {
	Endpoint      string `env:"ANALYTICS_ENDPOINT" envDefault:"https://www.google-analytics.com/mp/collect"`
	MeasurementID string `env:"ANALYTICS_MEASUREMENT_ID"`
	APISecret     string `env:"ANALYTICS_API_SECRET"`
}

// IndexNowConfig targets the IndexNow search-indexing endpoint.
type IndexNowConfig struct {
	Endpoint    string `env:"INDEXNOW_ENDPOINT" envDefault:"https://api.indexnow.org/indexnow"`
	Key         string `env:"INDEXNOW_KEY"`
	KeyLocation string `env:"INDEXNOW_KEY_LOCATION"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Onboarding API"),
			Environment: getEnv("APP_ENV", "development"),
			Port:        getEnv("APP_PORT", "8080"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "onboarding"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 10),
			MinConns: getEnvInt("DB_MIN_CONNS", 2),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			SessionTokenExpiry: getEnvInt("JWT_SESSION_EXPIRY", 72),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    getEnv("MINIO_BUCKET", "onboarding"),
			UseSSL:    getEnv("MINIO_USE_SSL", "false") == "true",
		},
	}

	if err := env.Parse(&cfg.Onboarding); err != nil {
		return nil, fmt.Errorf("parse onboarding config: %w", err)
	}
	if err := env.Parse(&cfg.Registration); err != nil {
		return nil, fmt.Errorf("parse registration config: %w", err)
	}
	if err := env.Parse(&cfg.Analytics); err != nil {
		return nil, fmt.Errorf("parse analytics config: %w", err)
	}
	if err := env.Parse(&cfg.IndexNow); err != nil {
		return nil, fmt.Errorf("parse indexnow config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks settings that would otherwise fail late at runtime
func (c *Config) Validate() error {
	switch c.Onboarding.DraftStore {
	case "redis", "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("ONBOARDING_DRAFT_STORE must be one of redis, postgres, sqlite, memory (got %q)", c.Onboarding.DraftStore)
	}

	if c.Onboarding.Debounce < 400*time.Millisecond {
		return fmt.Errorf("ONBOARDING_CHECK_DEBOUNCE must be at least 400ms")
	}

	if c.Registration.BaseURL == "" {
		return fmt.Errorf("REGISTRATION_BASE_URL must be set")
	}

	if c.App.Environment == "production" {
		if c.JWT.Secret == "your-secret-key-change-in-production" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if c.Onboarding.DraftStore == "postgres" && c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD must be set in production")
		}

		if c.Analytics.MeasurementID == "" {
			fmt.Println("WARNING: ANALYTICS_MEASUREMENT_ID not set - analytics events will be dropped")
		}
		if c.IndexNow.Key == "" {
			fmt.Println("WARNING: INDEXNOW_KEY not set - search indexing notifications will be dropped")
		}
	}

	return nil
}

// IsDevelopment reports whether the app runs with development defaults
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// Helper functions
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
