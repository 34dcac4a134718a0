package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	// Environment
	GoEnv    string `env:"GO_ENV" default:"development"`
	HTTPPort int    `env:"HTTP_PORT" default:"8080"`

	// Data gateway
	DatabaseURL   string `env:"DATABASE_URL"`
	GatewayDriver string `env:"GATEWAY_DRIVER" default:"postgres"`
	ChangeChannel string `env:"CHANGE_CHANNEL" default:"table_changes"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" default:"true"`

	// Sessions are minted by the identity provider; we only verify them
	JWTSecret string        `env:"JWT_SECRET" required:"true"`
	JWTIssuer string        `env:"JWT_ISSUER"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" default:"1h"`

	// Snapshot cache
	RedisURL         string        `env:"REDIS_URL"`
	RedisPassword    string        `env:"REDIS_PASSWORD"`
	SnapshotCacheTTL time.Duration `env:"SNAPSHOT_CACHE_TTL" default:"24h"`

	// Sync
	ResyncInterval time.Duration `env:"RESYNC_INTERVAL" default:"5s"`
	LoadTimeout    time.Duration `env:"LOAD_TIMEOUT" default:"30s"`

	// Circuit breaker around the gateway
	BreakerEnabled     bool          `env:"BREAKER_ENABLED" default:"true"`
	BreakerMinRequests int           `env:"BREAKER_MIN_REQUESTS" default:"10"`
	BreakerFailureRate float64       `env:"BREAKER_FAILURE_RATE" default:"0.6"`
	BreakerTimeout     time.Duration `env:"BREAKER_TIMEOUT" default:"30s"`

	// HTTP edge
	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" default:"120"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" default:"1m"`

	// Development
	LogLevel    string   `env:"LOG_LEVEL" default:"info"`
	LogFormat   string   `env:"LOG_FORMAT" default:"text"`
	CORSOrigins []string `env:"CORS_ORIGINS" default:"http://localhost:3000"`
}

// LoadConfig reads .env when present, then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		// system env vars still apply
		slog.Debug("env_file_not_loaded", "error", err)
	}

	config := &Config{}

	loadEnvString(&config.GoEnv, "GO_ENV", "development")
	if err := loadEnvInt(&config.HTTPPort, "HTTP_PORT", 8080); err != nil {
		return nil, err
	}

	// Data gateway
	loadEnvString(&config.DatabaseURL, "DATABASE_URL", "")
	loadEnvString(&config.GatewayDriver, "GATEWAY_DRIVER", DriverPostgres)
	loadEnvString(&config.ChangeChannel, "CHANGE_CHANNEL", "table_changes")
	if err := loadEnvBool(&config.RunMigrations, "RUN_MIGRATIONS", true); err != nil {
		return nil, err
	}

	// Sessions
	if err := loadEnvStringRequired(&config.JWTSecret, "JWT_SECRET"); err != nil {
		return nil, err
	}
	loadEnvString(&config.JWTIssuer, "JWT_ISSUER", "")
	if err := loadEnvDuration(&config.JWTExpiry, "JWT_EXPIRY", time.Hour); err != nil {
		return nil, err
	}

	// Snapshot cache
	loadEnvString(&config.RedisURL, "REDIS_URL", "")
	loadEnvString(&config.RedisPassword, "REDIS_PASSWORD", "")
	if err := loadEnvDuration(&config.SnapshotCacheTTL, "SNAPSHOT_CACHE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	// Sync
	if err := loadEnvDuration(&config.ResyncInterval, "RESYNC_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.LoadTimeout, "LOAD_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	// Circuit breaker
	if err := loadEnvBool(&config.BreakerEnabled, "BREAKER_ENABLED", true); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.BreakerMinRequests, "BREAKER_MIN_REQUESTS", 10); err != nil {
		return nil, err
	}
	if err := loadEnvFloat(&config.BreakerFailureRate, "BREAKER_FAILURE_RATE", 0.6); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.BreakerTimeout, "BREAKER_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	// HTTP edge
	if err := loadEnvInt(&config.RateLimitRequests, "RATE_LIMIT_REQUESTS", 120); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.RateLimitWindow, "RATE_LIMIT_WINDOW", time.Minute); err != nil {
		return nil, err
	}

	// Development
	loadEnvString(&config.LogLevel, "LOG_LEVEL", "info")
	loadEnvString(&config.LogFormat, "LOG_FORMAT", "text")
	loadEnvStringSlice(&config.CORSOrigins, "CORS_ORIGINS", []string{"http://localhost:3000"})

	return config, nil
}

func loadEnvString(target *string, key, defaultValue string) {
	if value := os.Getenv(key); value != "" {
		*target = value
		return
	}
	*target = defaultValue
}

func loadEnvStringRequired(target *string, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return fmt.Errorf("required environment variable %s is not set", key)
	}
	*target = value
	return nil
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	value := os.Getenv(key)
	if value == "" {
		*target = defaultValue
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer value for %s: %v", key, err)
	}
	*target = parsed
	return nil
}

func loadEnvFloat(target *float64, key string, defaultValue float64) error {
	value := os.Getenv(key)
	if value == "" {
		*target = defaultValue
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid float value for %s: %v", key, err)
	}
	*target = parsed
	return nil
}

func loadEnvBool(target *bool, key string, defaultValue bool) error {
	value := os.Getenv(key)
	if value == "" {
		*target = defaultValue
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid boolean value for %s: %v", key, err)
	}
	*target = parsed
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		*target = defaultValue
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration value for %s: %v", key, err)
	}
	*target = parsed
	return nil
}

func loadEnvStringSlice(target *[]string, key string, defaultValue []string) {
	value := os.Getenv(key)
	if value == "" {
		*target = defaultValue
		return
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*target = out
}

// Validate collects every configuration problem into one error.
func (c *Config) Validate() error {
	var errors []string

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errors = append(errors, "HTTP_PORT must be between 1 and 65535")
	}

	switch c.GatewayDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when GATEWAY_DRIVER=postgres")
		}
	case DriverMemory:
	default:
		errors = append(errors, fmt.Sprintf("GATEWAY_DRIVER must be one of: %s, %s", DriverPostgres, DriverMemory))
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}

	validLogFormats := []string{"text", "json"}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	// HS256 keys shorter than the hash output weaken the signature
	if len(c.JWTSecret) < 32 {
		errors = append(errors, "JWT_SECRET should be at least 32 characters long")
	}

	if c.ResyncInterval <= 0 {
		errors = append(errors, "RESYNC_INTERVAL must be positive")
	}
	if c.BreakerFailureRate <= 0 || c.BreakerFailureRate > 1 {
		errors = append(errors, "BREAKER_FAILURE_RATE must be in (0, 1]")
	}
	if c.BreakerMinRequests < 1 {
		errors = append(errors, "BREAKER_MIN_REQUESTS must be at least 1")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// SlogLevel maps LOG_LEVEL onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
