package config_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/karat/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.StorageDriver)
	assert.True(t, decimal.NewFromInt(10).Equal(cfg.Ledger.LowStockThreshold))
	assert.Equal(t, 5, cfg.Ledger.MaxSettleAttempts)
	assert.Equal(t, 5*time.Millisecond, cfg.Ledger.SettleBackoff)
	assert.Empty(t, cfg.Redis.Addr)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("LEDGER_LOW_STOCK_THRESHOLD", "2.5")
	t.Setenv("LEDGER_GOLD_RATE", "6120.75")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.StorageDriver)
	assert.True(t, decimal.RequireFromString("2.5").Equal(cfg.Ledger.LowStockThreshold))
	assert.True(t, decimal.RequireFromString("6120.75").Equal(cfg.Ledger.GoldRate))
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	type testCase struct {
		name string
		env  map[string]string
	}

	tests := []testCase{
		{name: "unknown storage driver", env: map[string]string{"STORAGE_DRIVER": "sqlite"}},
		{name: "negative threshold", env: map[string]string{"LEDGER_LOW_STOCK_THRESHOLD": "-1"}},
		{name: "malformed decimal", env: map[string]string{"LEDGER_SILVER_RATE": "abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}
