// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr         string
	DBPath             string
	SecretKey          []byte
	MarketplaceBaseURL string
	KeepaliveInterval  time.Duration
	MaxConcurrent      int
	RequestSpacing     time.Duration
	AnalysisTTL        time.Duration
}

// Load reads configuration from environment variables and returns a validated
// Config. LOGISTIX_SECRET_KEY is required: 64 hex characters encoding the
// 32-byte credential encryption key. Optional variables with defaults:
// LOGISTIX_LISTEN_ADDR (127.0.0.1:8080), LOGISTIX_DB_PATH (logistix.db),
// LOGISTIX_MARKETPLACE_BASE_URL (marketplace production host),
// LOGISTIX_KEEPALIVE_INTERVAL (30m), LOGISTIX_MAX_CONCURRENT (3),
// LOGISTIX_REQUEST_SPACING (500ms), LOGISTIX_ANALYSIS_TTL (15m).
func Load() (*Config, error) {
	rawKey := os.Getenv("LOGISTIX_SECRET_KEY")
	if rawKey == "" {
		return nil, fmt.Errorf("LOGISTIX_SECRET_KEY is required")
	}
	key, err := hex.DecodeString(rawKey)
	if err != nil {
		return nil, fmt.Errorf("LOGISTIX_SECRET_KEY is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("LOGISTIX_SECRET_KEY must decode to 32 bytes, got %d", len(key))
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("LOGISTIX_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "logistix.db"
	if v, ok := os.LookupEnv("LOGISTIX_DB_PATH"); ok {
		dbPath = v
	}

	baseURL := ""
	if v, ok := os.LookupEnv("LOGISTIX_MARKETPLACE_BASE_URL"); ok {
		baseURL = v
	}

	keepalive, err := durationEnv("LOGISTIX_KEEPALIVE_INTERVAL", 30*time.Minute)
	if err != nil {
		return nil, err
	}

	spacing, err := durationEnv("LOGISTIX_REQUEST_SPACING", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}

	analysisTTL, err := durationEnv("LOGISTIX_ANALYSIS_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}

	maxConcurrent := 3
	if v, ok := os.LookupEnv("LOGISTIX_MAX_CONCURRENT"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("LOGISTIX_MAX_CONCURRENT has invalid value %q", v)
		}
		maxConcurrent = parsed
	}

	return &Config{
		ListenAddr:         listenAddr,
		DBPath:             dbPath,
		SecretKey:          key,
		MarketplaceBaseURL: baseURL,
		KeepaliveInterval:  keepalive,
		MaxConcurrent:      maxConcurrent,
		RequestSpacing:     spacing,
		AnalysisTTL:        analysisTTL,
	}, nil
}

func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", name, v, err)
	}
	return parsed, nil
}
