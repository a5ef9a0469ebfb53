// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// defaultLoginHost is the public-cloud Microsoft identity platform.
const defaultLoginHost = "https://login.microsoftonline.com"

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ClientID    string
	TenantID    string
	Authority   string
	RedirectURI string

	ListenAddr string
	DBPath     string
	SecretKey  []byte // nil when CREDWATCH_SECRET_KEY is unset

	RefreshInterval      time.Duration
	InteractiveTimeout   time.Duration
	DefaultThresholdDays int

	GraphBaseURL     string
	GraphMaxPages    int
	GraphConcurrency int
}

// HasSecretKey reports whether the token cache can be persisted encrypted.
func (c *Config) HasSecretKey() bool {
	return len(c.SecretKey) > 0
}

// Load reads configuration from environment variables and returns a validated
// Config. A .env file in the working directory is loaded first if present;
// variables already set in the environment take precedence over it.
//
// CREDWATCH_CLIENT_ID is required. The authority is CREDWATCH_AUTHORITY if set,
// otherwise derived from CREDWATCH_TENANT_ID, otherwise the multi-tenant
// "organizations" endpoint. Optional variables with defaults:
// CREDWATCH_REDIRECT_URI (http://localhost), CREDWATCH_LISTEN_ADDR
// (127.0.0.1:8080), CREDWATCH_DB_PATH (credwatch.db), CREDWATCH_REFRESH_INTERVAL
// (15m, 0 disables), CREDWATCH_INTERACTIVE_TIMEOUT (5m), CREDWATCH_DEFAULT_THRESHOLD_DAYS (30),
// CREDWATCH_GRAPH_MAX_PAGES (10, 0 unlimited), CREDWATCH_GRAPH_CONCURRENCY (8),
// CREDWATCH_GRAPH_BASE_URL (Graph v1.0).
func Load() (*Config, error) {
	_ = godotenv.Load()

	clientID := strings.TrimSpace(os.Getenv("CREDWATCH_CLIENT_ID"))
	if clientID == "" {
		return nil, errors.New("CREDWATCH_CLIENT_ID is required")
	}

	tenantID := strings.TrimSpace(os.Getenv("CREDWATCH_TENANT_ID"))

	authority := defaultLoginHost + "/organizations"
	if tenantID != "" {
		authority = defaultLoginHost + "/" + tenantID
	}
	if v, ok := os.LookupEnv("CREDWATCH_AUTHORITY"); ok && v != "" {
		u, err := url.Parse(v)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			return nil, fmt.Errorf("CREDWATCH_AUTHORITY must be an https URL, got %q", v)
		}
		authority = strings.TrimRight(v, "/")
	}

	redirectURI := "http://localhost"
	if v, ok := os.LookupEnv("CREDWATCH_REDIRECT_URI"); ok && v != "" {
		redirectURI = v
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("CREDWATCH_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "credwatch.db"
	if v, ok := os.LookupEnv("CREDWATCH_DB_PATH"); ok {
		dbPath = v
	}

	var secretKey []byte
	if v, ok := os.LookupEnv("CREDWATCH_SECRET_KEY"); ok && v != "" {
		key, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("CREDWATCH_SECRET_KEY must be hex encoded: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("CREDWATCH_SECRET_KEY must be 64 hex characters (32 bytes), got %d bytes", len(key))
		}
		secretKey = key
	}

	refreshInterval, err := lookupDuration("CREDWATCH_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, err
	}

	interactiveTimeout, err := lookupDuration("CREDWATCH_INTERACTIVE_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	if interactiveTimeout == 0 {
		return nil, errors.New("CREDWATCH_INTERACTIVE_TIMEOUT must be positive")
	}

	threshold, err := lookupInt("CREDWATCH_DEFAULT_THRESHOLD_DAYS", 30)
	if err != nil {
		return nil, err
	}

	maxPages, err := lookupInt("CREDWATCH_GRAPH_MAX_PAGES", 10)
	if err != nil {
		return nil, err
	}

	concurrency, err := lookupInt("CREDWATCH_GRAPH_CONCURRENCY", 8)
	if err != nil {
		return nil, err
	}

	graphBaseURL := "https://graph.microsoft.com/v1.0"
	if v, ok := os.LookupEnv("CREDWATCH_GRAPH_BASE_URL"); ok && v != "" {
		graphBaseURL = strings.TrimRight(v, "/")
	}

	return &Config{
		ClientID:             clientID,
		TenantID:             tenantID,
		Authority:            authority,
		RedirectURI:          redirectURI,
		ListenAddr:           listenAddr,
		DBPath:               dbPath,
		SecretKey:            secretKey,
		RefreshInterval:      refreshInterval,
		InteractiveTimeout:   interactiveTimeout,
		DefaultThresholdDays: threshold,
		GraphBaseURL:         graphBaseURL,
		GraphMaxPages:        maxPages,
		GraphConcurrency:     concurrency,
	}, nil
}

func lookupDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	if v == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", key, v)
	}
	return d, nil
}

// lookupInt parses a non-negative integer variable.
func lookupInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s has invalid integer %q: %w", key, v, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %d", key, n)
	}
	return n, nil
}
