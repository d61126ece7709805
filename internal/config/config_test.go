package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flavio-cbz/logistix/internal/config"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LOGISTIX_SECRET_KEY", testKey)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "logistix.db", cfg.DBPath)
	assert.Len(t, cfg.SecretKey, 32)
	assert.Empty(t, cfg.MarketplaceBaseURL)
	assert.Equal(t, 30*time.Minute, cfg.KeepaliveInterval)
	assert.Equal(t, 3, cfg.MaxConcurrent)
	assert.Equal(t, 500*time.Millisecond, cfg.RequestSpacing)
	assert.Equal(t, 15*time.Minute, cfg.AnalysisTTL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LOGISTIX_SECRET_KEY", testKey)
	t.Setenv("LOGISTIX_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("LOGISTIX_DB_PATH", "/tmp/test.db")
	t.Setenv("LOGISTIX_MARKETPLACE_BASE_URL", "http://localhost:9999")
	t.Setenv("LOGISTIX_KEEPALIVE_INTERVAL", "5m")
	t.Setenv("LOGISTIX_MAX_CONCURRENT", "8")
	t.Setenv("LOGISTIX_REQUEST_SPACING", "1s")
	t.Setenv("LOGISTIX_ANALYSIS_TTL", "1h")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, "http://localhost:9999", cfg.MarketplaceBaseURL)
	assert.Equal(t, 5*time.Minute, cfg.KeepaliveInterval)
	assert.Equal(t, 8, cfg.MaxConcurrent)
	assert.Equal(t, time.Second, cfg.RequestSpacing)
	assert.Equal(t, time.Hour, cfg.AnalysisTTL)
}

func TestLoad_SecretKeyValidation(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		t.Setenv("LOGISTIX_SECRET_KEY", "")
		_, err := config.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "required")
	})

	t.Run("not hex", func(t *testing.T) {
		t.Setenv("LOGISTIX_SECRET_KEY", "zz")
		_, err := config.Load()
		require.Error(t, err)
	})

	t.Run("wrong length", func(t *testing.T) {
		t.Setenv("LOGISTIX_SECRET_KEY", strings.Repeat("ab", 16))
		_, err := config.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "32 bytes")
	})
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("LOGISTIX_SECRET_KEY", testKey)

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("LOGISTIX_KEEPALIVE_INTERVAL", "soon")
		_, err := config.Load()
		require.Error(t, err)
	})

	t.Run("bad concurrency", func(t *testing.T) {
		t.Setenv("LOGISTIX_MAX_CONCURRENT", "0")
		_, err := config.Load()
		require.Error(t, err)
	})
}
