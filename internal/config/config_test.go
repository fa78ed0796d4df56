package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "vehiclesales_db", cfg.PostgresDB)
	assert.Equal(t, 7*24*time.Hour, cfg.FinanceInitTimeout)
	assert.Equal(t, 7*24*time.Hour, cfg.FinanceDecisionTimeout)
	assert.Equal(t, 7*24*time.Hour, cfg.DispatchInitTimeout)
	assert.Equal(t, time.Hour, cfg.DeliveryTimeout)
	assert.Empty(t, cfg.ManufacturerAPIURL)
}

func TestLoad_InvalidHTTPPort(t *testing.T) {
	t.Setenv("HTTP_PORT", "0")

	cfg, err := Load()

	assert.Nil(t, cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port")
}

func TestLoad_InvalidOTELSampleRate(t *testing.T) {
	t.Setenv("OTEL_SAMPLE_RATE", "2.0")

	cfg, err := Load()

	assert.Nil(t, cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "OTEL_SAMPLE_RATE must be between 0.0 and 1.0")
}

func TestLoad_NonPositiveSagaTimeout(t *testing.T) {
	t.Setenv("SAGA_DELIVERY_TIMEOUT", "-5m")

	cfg, err := Load()

	assert.Nil(t, cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "SAGA_DELIVERY_TIMEOUT must be positive")
}

func TestLoad_CustomSagaTimeouts(t *testing.T) {
	t.Setenv("SAGA_FINANCE_DECISION_TIMEOUT", "48h")
	t.Setenv("SAGA_DELIVERY_TIMEOUT", "30m")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, cfg.FinanceDecisionTimeout)
	assert.Equal(t, 30*time.Minute, cfg.DeliveryTimeout)
}

func TestPostgresDSN(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	dsn := cfg.PostgresDSN()
	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "vehiclesales_db")
	assert.Contains(t, dsn, "sslmode=disable")
}
