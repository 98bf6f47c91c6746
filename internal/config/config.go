package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/pratik-mahalle/skuprice/internal/pkg/validator"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Azure    AzureConfig
	Pricing  PricingConfig
	Pipeline PipelineConfig
}

// ServerConfig contains admin HTTP server configuration
type ServerConfig struct {
	Enabled         bool
	Host            string
	Port            int `env:"SERVER_PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Driver          string `env:"DB_DRIVER" validate:"oneof=postgres sqlite"`
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// For SQLite
	Path string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL" validate:"oneof=debug info warn error fatal"`
	Format     string `env:"LOG_FORMAT" validate:"oneof=json console"`
	OutputPath string
}

// AzureConfig selects and configures the SKU metadata source
type AzureConfig struct {
	Source         string `env:"SKU_SOURCE" validate:"oneof=azure file"`
	TenantID       string
	ClientID       string
	ClientSecret   string
	SubscriptionID string `env:"AZURE_SUBSCRIPTION_ID" validate:"required_if=Source azure"`
	FixtureDir     string `env:"SKU_FIXTURE_DIR" validate:"required_if=Source file"`
}

// PricingConfig contains retail prices API configuration
type PricingConfig struct {
	BaseURL           string `env:"PRICING_BASE_URL" validate:"required,url"`
	APIVersion        string `env:"PRICING_API_VERSION" validate:"required"`
	Filter            string
	RetryDelay        time.Duration `env:"PRICING_RETRY_DELAY" validate:"min=0"`
	Timeout           time.Duration `env:"PRICING_TIMEOUT" validate:"gt=0"`
	RequestsPerSecond float64       `env:"PRICING_REQUESTS_PER_SECOND" validate:"gt=0"`
}

// PipelineConfig contains run scheduling and stage configuration
type PipelineConfig struct {
	Schedule           string `env:"PIPELINE_SCHEDULE" validate:"required"`
	RunOnStart         bool
	ExtractConcurrency int `env:"PIPELINE_EXTRACT_CONCURRENCY" validate:"min=1"`
	RateStageAttempts  int `env:"PIPELINE_RATE_STAGE_ATTEMPTS" validate:"min=1"`
	ResourceTypes      []string
}

// LookupFunc resolves a configuration key, reporting whether it was set
type LookupFunc func(key string) (string, bool)

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors as it's optional)
	_ = godotenv.Load()

	return LoadWith(os.LookupEnv)
}

// LoadWith loads configuration through the given lookup. The CLI uses this to
// layer its config file over the environment.
func LoadWith(lookup LookupFunc) (*Config, error) {
	e := env{lookup: lookup}

	cfg := &Config{
		Server: ServerConfig{
			Enabled:         e.bool("SERVER_ENABLED", true),
			Host:            e.str("SERVER_HOST", "0.0.0.0"),
			Port:            e.int("SERVER_PORT", 8080),
			ReadTimeout:     e.duration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    e.duration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: e.duration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  e.list("SERVER_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Driver:          e.str("DB_DRIVER", "sqlite"),
			Host:            e.str("DB_HOST", "localhost"),
			Port:            e.int("DB_PORT", 5432),
			Name:            e.str("DB_NAME", "skuprice"),
			User:            e.str("DB_USER", ""),
			Password:        e.str("DB_PASSWORD", ""),
			SSLMode:         e.str("DB_SSLMODE", "disable"),
			MaxOpenConns:    e.int("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    e.int("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: e.duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			Path:            e.str("DB_PATH", "./skuprice.db"),
		},
		Logging: LoggingConfig{
			Level:      e.str("LOG_LEVEL", "info"),
			Format:     e.str("LOG_FORMAT", "json"),
			OutputPath: e.str("LOG_OUTPUT", "stdout"),
		},
		Azure: AzureConfig{
			Source:         e.str("SKU_SOURCE", "azure"),
			TenantID:       e.str("AZURE_TENANT_ID", ""),
			ClientID:       e.str("AZURE_CLIENT_ID", ""),
			ClientSecret:   e.str("AZURE_CLIENT_SECRET", ""),
			SubscriptionID: e.str("AZURE_SUBSCRIPTION_ID", ""),
			FixtureDir:     e.str("SKU_FIXTURE_DIR", ""),
		},
		Pricing: PricingConfig{
			BaseURL:           e.str("PRICING_BASE_URL", "https://prices.azure.com/api/retail/prices"),
			APIVersion:        e.str("PRICING_API_VERSION", "2023-01-01-preview"),
			Filter:            e.str("PRICING_FILTER", ""),
			RetryDelay:        e.duration("PRICING_RETRY_DELAY", 5*time.Second),
			Timeout:           e.duration("PRICING_TIMEOUT", 60*time.Second),
			RequestsPerSecond: e.float("PRICING_REQUESTS_PER_SECOND", 2),
		},
		Pipeline: PipelineConfig{
			Schedule:           e.str("PIPELINE_SCHEDULE", "0 0 * * *"),
			RunOnStart:         e.bool("PIPELINE_RUN_ON_START", true),
			ExtractConcurrency: e.int("PIPELINE_EXTRACT_CONCURRENCY", 8),
			RateStageAttempts:  e.int("PIPELINE_RATE_STAGE_ATTEMPTS", 2),
			ResourceTypes:      e.list("PIPELINE_RESOURCE_TYPES", nil),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	v := validator.New()
	for _, section := range []interface{}{c.Server, c.Database, c.Logging, c.Azure, c.Pricing, c.Pipeline} {
		if errs := v.Validate(section); len(errs) > 0 {
			return fmt.Errorf("%s: %s", errs[0].Field, errs[0].Message)
		}
	}

	if _, err := cron.ParseStandard(c.Pipeline.Schedule); err != nil {
		return fmt.Errorf("invalid pipeline schedule %q: %w", c.Pipeline.Schedule, err)
	}

	return nil
}

// Helper functions

type env struct {
	lookup LookupFunc
}

func (e env) str(key, defaultValue string) string {
	if value, ok := e.lookup(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func (e env) int(key string, defaultValue int) int {
	value, err := strconv.Atoi(e.str(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func (e env) float(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(e.str(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func (e env) bool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(e.str(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func (e env) duration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(e.str(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func (e env) list(key string, defaultValue []string) []string {
	raw := e.str(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
