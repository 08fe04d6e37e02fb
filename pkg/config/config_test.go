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

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "https://api-eu.dhl.com/track/shipments", cfg.DHLBaseURL)
	assert.Equal(t, 10*time.Second, cfg.DHLTimeout)
	assert.Equal(t, 24*time.Hour, cfg.OrderGenerationInterval)
	assert.Equal(t, 2*time.Hour, cfg.TrackingInterval)
	assert.Equal(t, 4, cfg.TrackingMaxConcurrent)
	assert.Equal(t, 10, cfg.TrackingNotFoundLimit)
	assert.Equal(t, 3, cfg.ReminderLeadDays)
	assert.Equal(t, 100, cfg.OutboxBatchSize)
	assert.Equal(t, 5, cfg.OutboxMaxRetries)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DHL_API_KEY", "test-key")
	t.Setenv("DHL_TIMEOUT", "5s")
	t.Setenv("TRACKING_MAX_CONCURRENT", "8")
	t.Setenv("TRACKING_NOT_FOUND_LIMIT", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.AppEnv)
	assert.Equal(t, "test-key", cfg.DHLAPIKey)
	assert.Equal(t, 5*time.Second, cfg.DHLTimeout)
	assert.Equal(t, 8, cfg.TrackingMaxConcurrent)
	assert.Equal(t, 3, cfg.TrackingNotFoundLimit)
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("TRACKING_BATCH_SIZE", "not-a-number")
	t.Setenv("TRACKING_INTERVAL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.TrackingBatchSize)
	assert.Equal(t, 2*time.Hour, cfg.TrackingInterval)
}

func TestIsDevelopment(t *testing.T) {
	cfg := &Config{AppEnv: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}
