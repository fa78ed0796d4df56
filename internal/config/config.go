package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/shobha-cmd/vehicleSalesManagement-sub000/pkg/config"
)

// Config holds all configuration for the vehicle sales service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"vehiclesales"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"vehiclesales_secret"`
	PostgresDB   string `env:"POSTGRES_DB_NAME" envDefault:"vehiclesales_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Manufacturer API. Backorder notifications are skipped when unset.
	ManufacturerAPIURL string `env:"MANUFACTURER_API_URL" envDefault:""`

	// Authentication. Finance decision routes are open when unset.
	JWTSecret string `env:"JWT_SECRET" envDefault:""`

	// Saga await windows.
	FinanceInitTimeout     time.Duration `env:"SAGA_FINANCE_INIT_TIMEOUT" envDefault:"168h"`
	FinanceDecisionTimeout time.Duration `env:"SAGA_FINANCE_DECISION_TIMEOUT" envDefault:"168h"`
	DispatchInitTimeout    time.Duration `env:"SAGA_DISPATCH_INIT_TIMEOUT" envDefault:"168h"`
	DeliveryTimeout        time.Duration `env:"SAGA_DELIVERY_TIMEOUT" envDefault:"1h"`

	// Signal route rate limiting per client IP.
	SignalRateLimit int `env:"SIGNAL_RATE_LIMIT_RPS" envDefault:"10"`
	SignalRateBurst int `env:"SIGNAL_RATE_LIMIT_BURST" envDefault:"20"`

	// CORS
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load vehicle sales config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.PostgresUser == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	for name, d := range map[string]time.Duration{
		"SAGA_FINANCE_INIT_TIMEOUT":     c.FinanceInitTimeout,
		"SAGA_FINANCE_DECISION_TIMEOUT": c.FinanceDecisionTimeout,
		"SAGA_DISPATCH_INIT_TIMEOUT":    c.DispatchInitTimeout,
		"SAGA_DELIVERY_TIMEOUT":         c.DeliveryTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}
