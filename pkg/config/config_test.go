package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "DATABASE_PATH", "LOG_LEVEL", "RECONCILE_INTERVAL", "RATE_LIMIT_PER_MINUTE", "RATE_LIMIT_BURST"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "emiledger.db", cfg.DatabasePath)
	assert.Equal(t, time.Hour, cfg.ReconcileInterval)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_PATH", "/var/lib/emiledger/ledger.db")
	t.Setenv("RECONCILE_INTERVAL", "15m")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "30")
	t.Setenv("RATE_LIMIT_BURST", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "/var/lib/emiledger/ledger.db", cfg.DatabasePath)
	assert.Equal(t, 15*time.Minute, cfg.ReconcileInterval)
	assert.Equal(t, 30, cfg.RateLimitPerMinute)
	assert.Equal(t, 5, cfg.RateLimitBurst)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"RECONCILE_INTERVAL", "hourly"},
		{"RECONCILE_INTERVAL", "-1m"},
		{"RATE_LIMIT_PER_MINUTE", "lots"},
		{"RATE_LIMIT_BURST", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
