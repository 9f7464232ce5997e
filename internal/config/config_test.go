package config_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/hermosa/pos-api/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"REDIS_URL": "redis://localhost:6379",
	})
	require.NoError(t, err)
	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "pos", cfg.QueuePrefix)
	require.True(t, cfg.LowStockThreshold.Equal(decimal.NewFromInt(10)))
	require.Equal(t, time.Hour, cfg.LowStockInterval)
	require.Equal(t, 30, cfg.CheckoutRateMax)
}

func TestLoadRequiresRedisURL(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{
		"REDIS_URL": "",
	})
	require.Error(t, err)
}

func TestEmailEnabledRequiresAPIKey(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{
		"REDIS_URL":     "redis://localhost:6379",
		"EMAIL_ENABLED": "true",
		"BREVO_API_KEY": "",
	})
	require.Error(t, err)
}

func TestOverrides(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"REDIS_URL":            "redis://localhost:6379",
		"PORT":                 "9090",
		"CORS_ALLOWED_ORIGINS": "https://pos.hermosa.example, https://admin.hermosa.example",
		"LOW_STOCK_THRESHOLD":  "25",
	})
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, []string{"https://pos.hermosa.example", "https://admin.hermosa.example"}, cfg.CORSAllowedOrigins)
	require.True(t, cfg.LowStockThreshold.Equal(decimal.NewFromInt(25)))
}
