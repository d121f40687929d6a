package config

import (
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port               string        `mapstructure:"PORT"`
	Env                string        `mapstructure:"ENV"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32         `mapstructure:"DB_MIN_CONNS"`
	AuthSigningKey     string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer         string        `mapstructure:"AUTH_ISSUER"`
	AuthTokenTTL       time.Duration `mapstructure:"AUTH_TOKEN_TTL"`
	ClinicTimezone     string        `mapstructure:"CLINIC_TIMEZONE"`
	BookingWindowDays  int           `mapstructure:"BOOKING_WINDOW_DAYS"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS       float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int           `mapstructure:"RATE_LIMIT_BURST"`
	RedisURL           string        `mapstructure:"REDIS_URL"`
	KafkaBrokers       string        `mapstructure:"KAFKA_BROKERS"`
	OutboxPollInterval time.Duration `mapstructure:"OUTBOX_POLL_INTERVAL"`
	OutboxBatchSize    int           `mapstructure:"OUTBOX_BATCH_SIZE"`
	OTelEnabled        bool          `mapstructure:"OTEL_ENABLED"`
	OTelEndpoint       string        `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelSampleRatio    float64       `mapstructure:"OTEL_SAMPLING_RATIO"`
	RequestTimeout     time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	SeedAdminEmail     string        `mapstructure:"SEED_ADMIN_EMAIL"`
	SeedAdminPassword  string        `mapstructure:"SEED_ADMIN_PASSWORD"`
}

// devSigningKey is only accepted when ENV=development.
const devSigningKey = "686d732d646576656c6f706d656e742d7369676e696e672d6b65792d30303031"

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("AUTH_ISSUER", "hms")
	v.SetDefault("AUTH_TOKEN_TTL", "12h")
	v.SetDefault("CLINIC_TIMEZONE", "UTC")
	v.SetDefault("BOOKING_WINDOW_DAYS", 7)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("OUTBOX_POLL_INTERVAL", "2s")
	v.SetDefault("OUTBOX_BATCH_SIZE", 50)
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	v.SetDefault("OTEL_SAMPLING_RATIO", 1.0)
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("SEED_ADMIN_EMAIL", "admin@hms.com")
	v.SetDefault("SEED_ADMIN_PASSWORD", "admin123")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_TOKEN_TTL",
		"CLINIC_TIMEZONE", "BOOKING_WINDOW_DAYS", "CORS_ORIGINS",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REDIS_URL",
		"KAFKA_BROKERS", "OUTBOX_POLL_INTERVAL", "OUTBOX_BATCH_SIZE",
		"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_SAMPLING_RATIO",
		"REQUEST_TIMEOUT", "SEED_ADMIN_EMAIL", "SEED_ADMIN_PASSWORD",
	} {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		if cfg.AuthSigningKey == "" {
			cfg.AuthSigningKey = devSigningKey
		}
		log.Println("WARNING: server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: a built-in token signing key is used unless AUTH_SIGNING_KEY is set.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// SigningKey decodes AUTH_SIGNING_KEY.
func (c *Config) SigningKey() ([]byte, error) {
	key, err := hex.DecodeString(c.AuthSigningKey)
	if err != nil {
		return nil, fmt.Errorf("AUTH_SIGNING_KEY is not valid hex: %w", err)
	}
	return key, nil
}

// Location resolves CLINIC_TIMEZONE. "Today" for the booking window is the
// calendar date in this location.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return nil, fmt.Errorf("CLINIC_TIMEZONE %q: %w", c.ClinicTimezone, err)
	}
	return loc, nil
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required outside development (current ENV=%q)", c.Env)
	}
	key, err := c.SigningKey()
	if err != nil {
		return err
	}
	if len(key) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes (64 hex chars), got %d bytes", len(key))
	}
	if !c.IsDev() && c.AuthSigningKey == devSigningKey {
		return fmt.Errorf("the development signing key must not be used outside development")
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	if c.BookingWindowDays < 1 {
		return fmt.Errorf("BOOKING_WINDOW_DAYS must be at least 1, got %d", c.BookingWindowDays)
	}
	if c.AuthTokenTTL <= 0 {
		return fmt.Errorf("AUTH_TOKEN_TTL must be positive")
	}
	if c.OTelSampleRatio < 0 || c.OTelSampleRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLING_RATIO must be within [0,1], got %v", c.OTelSampleRatio)
	}
	return nil
}
