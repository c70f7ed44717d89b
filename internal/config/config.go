// Package config handles loading and validation of service configuration.
// Supports development (env vars or CONFIG_FILE) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// Defaults applied when a setting is absent.
const (
	DefaultPort           = "8080"
	DefaultStorePath      = "storefront.db"
	DefaultRequestTimeout = 10 * time.Second
	DefaultFullFetchLimit = 1000
	DefaultCacheTTL       = 5 * time.Minute
	DefaultSecretID       = "storefront-sync"
	DefaultSessionIdle    = 30 * time.Minute
)

// Config holds all service configuration.
// Environment determines whether upstream credentials load from env vars
// (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string
	SecretID   string

	// StorePath is the bbolt file holding guest collections.
	StorePath string

	// MinClientVersion refuses storefront builds older than this semver.
	MinClientVersion string

	// SessionIdleTimeout evicts sessions unused for this long from memory.
	// Zero keeps every session.
	SessionIdleTimeout time.Duration

	Upstream UpstreamConfig
	Catalog  CatalogConfig
}

// UpstreamConfig describes the remote product/order API.
// In production the credentials are loaded from Secret Manager as JSON.
type UpstreamConfig struct {
	BaseURL        string        `json:"api_base_url" yaml:"api_base_url"`
	APIKey         string        `json:"api_key" yaml:"api_key"`
	RequestTimeout time.Duration `json:"-" yaml:"-"`
	ChromeTLS      bool          `json:"-" yaml:"-"`
}

// CatalogConfig tunes the filter resolution pipeline.
type CatalogConfig struct {
	FullFetchLimit int
	CacheTTL       time.Duration
	// RedisURL selects a shared snapshot cache. Empty means in-process.
	RedisURL string
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Port:             envOrDefault("PORT", DefaultPort),
		Environment:      envOrDefault("ENVIRONMENT", "development"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		GCPProject:       os.Getenv("GCP_PROJECT"),
		SecretID:         envOrDefault("SECRET_ID", DefaultSecretID),
		StorePath:        envOrDefault("STORE_PATH", DefaultStorePath),
		MinClientVersion: os.Getenv("MIN_CLIENT_VERSION"),
	}

	var err error
	if cfg.Upstream.RequestTimeout, err = envDuration("REQUEST_TIMEOUT", DefaultRequestTimeout); err != nil {
		return nil, err
	}
	if cfg.Upstream.ChromeTLS, err = envBool("CHROME_TLS", true); err != nil {
		return nil, err
	}
	if cfg.Catalog.FullFetchLimit, err = envInt("CATALOG_FULL_FETCH_LIMIT", DefaultFullFetchLimit); err != nil {
		return nil, err
	}
	if cfg.Catalog.CacheTTL, err = envDuration("CATALOG_CACHE_TTL", DefaultCacheTTL); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTimeout, err = envDuration("SESSION_IDLE_TIMEOUT", DefaultSessionIdle); err != nil {
		return nil, err
	}
	cfg.Catalog.RedisURL = os.Getenv("REDIS_URL")

	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading upstream config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fileConfig mirrors the CONFIG_FILE layout. Durations are strings ("10s").
type fileConfig struct {
	Port             string `json:"port" yaml:"port"`
	Environment      string `json:"environment" yaml:"environment"`
	LogLevel         string `json:"log_level" yaml:"log_level"`
	StorePath        string `json:"store_path" yaml:"store_path"`
	MinClientVersion string `json:"min_client_version" yaml:"min_client_version"`
	SessionIdle      string `json:"session_idle_timeout" yaml:"session_idle_timeout"`

	Upstream struct {
		BaseURL        string `json:"api_base_url" yaml:"api_base_url"`
		APIKey         string `json:"api_key" yaml:"api_key"`
		RequestTimeout string `json:"request_timeout" yaml:"request_timeout"`
		ChromeTLS      *bool  `json:"chrome_tls" yaml:"chrome_tls"`
	} `json:"upstream" yaml:"upstream"`

	Catalog struct {
		FullFetchLimit int    `json:"full_fetch_limit" yaml:"full_fetch_limit"`
		CacheTTL       string `json:"cache_ttl" yaml:"cache_ttl"`
		RedisURL       string `json:"redis_url" yaml:"redis_url"`
	} `json:"catalog" yaml:"catalog"`
}

// loadFromFile reads all configuration from a YAML or JSON file, chosen by
// extension. Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:             withDefault(fc.Port, DefaultPort),
		Environment:      withDefault(fc.Environment, "development"),
		LogLevel:         withDefault(fc.LogLevel, "info"),
		StorePath:        withDefault(fc.StorePath, DefaultStorePath),
		MinClientVersion: fc.MinClientVersion,
		Upstream: UpstreamConfig{
			BaseURL:   fc.Upstream.BaseURL,
			APIKey:    fc.Upstream.APIKey,
			ChromeTLS: true,
		},
		Catalog: CatalogConfig{
			FullFetchLimit: fc.Catalog.FullFetchLimit,
			RedisURL:       fc.Catalog.RedisURL,
		},
	}
	if fc.Upstream.ChromeTLS != nil {
		cfg.Upstream.ChromeTLS = *fc.Upstream.ChromeTLS
	}
	if cfg.Catalog.FullFetchLimit == 0 {
		cfg.Catalog.FullFetchLimit = DefaultFullFetchLimit
	}
	if cfg.Upstream.RequestTimeout, err = parseDuration("request_timeout", fc.Upstream.RequestTimeout, DefaultRequestTimeout); err != nil {
		return nil, err
	}
	if cfg.Catalog.CacheTTL, err = parseDuration("cache_ttl", fc.Catalog.CacheTTL, DefaultCacheTTL); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTimeout, err = parseDuration("session_idle_timeout", fc.SessionIdle, DefaultSessionIdle); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// loadFromSecretManager fetches upstream credentials from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{secret_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.SecretID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	return c.applySecret(result.Payload.Data)
}

// applySecret merges the secret JSON into the upstream settings, keeping
// the timeout and TLS options loaded from the environment.
func (c *Config) applySecret(data []byte) error {
	var secret UpstreamConfig
	if err := json.Unmarshal(data, &secret); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	c.Upstream.BaseURL = secret.BaseURL
	c.Upstream.APIKey = secret.APIKey
	return nil
}

// loadFromEnv reads upstream credentials from environment variables.
func (c *Config) loadFromEnv() {
	c.Upstream.BaseURL = os.Getenv("API_BASE_URL")
	c.Upstream.APIKey = os.Getenv("API_KEY")
}

// validate checks that all required configuration fields are present and sane.
func (c *Config) validate() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("api_base_url is required")
	}
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api_base_url %q", c.Upstream.BaseURL)
	}
	if c.Upstream.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.Catalog.FullFetchLimit <= 0 {
		return fmt.Errorf("catalog full fetch limit must be positive")
	}
	if c.Catalog.CacheTTL < 0 {
		return fmt.Errorf("catalog cache ttl must not be negative")
	}
	if c.SessionIdleTimeout < 0 {
		return fmt.Errorf("session idle timeout must not be negative")
	}
	if c.StorePath == "" {
		return fmt.Errorf("store_path is required")
	}
	if v := c.MinClientVersion; v != "" && !semver.IsValid(canonicalVersion(v)) {
		return fmt.Errorf("invalid min client version %q", v)
	}
	return nil
}

// canonicalVersion adds the "v" prefix semver expects.
func canonicalVersion(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	return parseDuration(key, os.Getenv(key), defaultVal)
}

func parseDuration(name, val string, defaultVal time.Duration) (time.Duration, error) {
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", name, err)
	}
	return d, nil
}

func envInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("parsing %s: %w", key, err)
	}
	return b, nil
}
