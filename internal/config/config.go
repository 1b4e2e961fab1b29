// Package config loads and validates configuration for the prospect
// discovery service. Configuration comes from a YAML file with
// environment variable overrides declared via `env` struct tags.
package config

import (
	"fmt"
	"time"

	"github.com/jonesrussell/prospect-discovery/internal/logger"
)

// Config holds all configuration for the prospect discovery service.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Websets   WebsetsConfig   `yaml:"websets"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Cache     CacheConfig     `yaml:"cache"`
	Quota     QuotaConfig     `yaml:"quota"`
	Logging   logger.Config   `yaml:"logging"`
	CORS      CORSConfig      `yaml:"cors"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name            string        `yaml:"name"`
	Version         string        `yaml:"version"`
	Port            int           `yaml:"port" env:"DISCOVERY_PORT"`
	Debug           bool          `yaml:"debug" env:"DISCOVERY_DEBUG"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// WebsetsConfig holds remote search provider configuration.
type WebsetsConfig struct {
	BaseURL   string        `yaml:"base_url" env:"WEBSETS_BASE_URL"`
	APIKey    string        `yaml:"api_key" env:"WEBSETS_API_KEY"`
	Timeout   time.Duration `yaml:"timeout"`
	PageLimit int           `yaml:"page_limit"`
}

// DiscoveryConfig holds poll-and-merge engine configuration.
type DiscoveryConfig struct {
	PollInterval        time.Duration `yaml:"poll_interval" env:"DISCOVERY_POLL_INTERVAL"`
	MaxTicks            int           `yaml:"max_ticks" env:"DISCOVERY_MAX_TICKS"`
	MaxConsecutiveFails int           `yaml:"max_consecutive_fails"`
	MinTargetCount      int           `yaml:"min_target_count"`
	MaxTargetCount      int           `yaml:"max_target_count"`
	MaxCriteria         int           `yaml:"max_criteria"`
	MaxEnrichments      int           `yaml:"max_enrichments"`
}

// CacheConfig holds fingerprint cache configuration.
type CacheConfig struct {
	// Backend selects the cache store: "memory" or "redis".
	Backend       string        `yaml:"backend" env:"CACHE_BACKEND"`
	MaxEntries    int           `yaml:"max_entries" env:"CACHE_MAX_ENTRIES"`
	TTL           time.Duration `yaml:"ttl" env:"CACHE_TTL"`
	RedisAddr     string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
}

// QuotaConfig holds quota precheck service configuration.
// An empty URL disables the precheck.
type QuotaConfig struct {
	URL     string        `yaml:"url" env:"QUOTA_SERVICE_URL"`
	Timeout time.Duration `yaml:"timeout"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Enabled          bool     `yaml:"enabled"`
	AllowedOrigins   []string `yaml:"allowed_origins" env:"CORS_ORIGINS"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age"`
}

// Load loads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := loadFile(path, &cfg); err != nil {
		return nil, err
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults applies default values to the config.
func (c *Config) setDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "prospect-discovery"
	}
	if c.Service.Version == "" {
		c.Service.Version = "1.0.0"
	}
	if c.Service.Port == 0 {
		c.Service.Port = 8094
	}
	if c.Service.ShutdownTimeout == 0 {
		c.Service.ShutdownTimeout = 15 * time.Second
	}

	if c.Websets.BaseURL == "" {
		c.Websets.BaseURL = "https://api.exa.ai/websets/v0"
	}
	if c.Websets.Timeout == 0 {
		c.Websets.Timeout = 10 * time.Second
	}
	if c.Websets.PageLimit == 0 {
		c.Websets.PageLimit = 100
	}

	if c.Discovery.PollInterval == 0 {
		c.Discovery.PollInterval = 3 * time.Second
	}
	if c.Discovery.MaxTicks == 0 {
		c.Discovery.MaxTicks = 100
	}
	if c.Discovery.MaxConsecutiveFails == 0 {
		c.Discovery.MaxConsecutiveFails = 3
	}
	if c.Discovery.MinTargetCount == 0 {
		c.Discovery.MinTargetCount = 1
	}
	if c.Discovery.MaxTargetCount == 0 {
		c.Discovery.MaxTargetCount = 1000
	}
	if c.Discovery.MaxCriteria == 0 {
		c.Discovery.MaxCriteria = 5
	}
	if c.Discovery.MaxEnrichments == 0 {
		c.Discovery.MaxEnrichments = 10
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = 100
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 6 * time.Hour
	}
	if c.Cache.RedisAddr == "" {
		c.Cache.RedisAddr = "localhost:6379"
	}

	if c.Quota.Timeout == 0 {
		c.Quota.Timeout = 5 * time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
	if len(c.CORS.AllowedMethods) == 0 {
		c.CORS.AllowedMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if len(c.CORS.AllowedHeaders) == 0 {
		c.CORS.AllowedHeaders = []string{"Content-Type", "Authorization"}
	}
	if c.CORS.MaxAge == 0 {
		c.CORS.MaxAge = 300
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return &ValidationError{Field: "service.port", Message: fmt.Sprintf("invalid port: %d", c.Service.Port)}
	}
	if c.Websets.BaseURL == "" {
		return &ValidationError{Field: "websets.base_url", Message: "is required"}
	}
	if c.Websets.PageLimit < 1 {
		return &ValidationError{Field: "websets.page_limit", Message: "must be greater than 0"}
	}
	if c.Discovery.MinTargetCount < 1 {
		return &ValidationError{Field: "discovery.min_target_count", Message: "must be at least 1"}
	}
	if c.Discovery.MaxTargetCount < c.Discovery.MinTargetCount {
		return &ValidationError{
			Field:   "discovery.max_target_count",
			Message: fmt.Sprintf("must be at least %d", c.Discovery.MinTargetCount),
		}
	}
	if c.Discovery.MaxTicks < 1 {
		return &ValidationError{Field: "discovery.max_ticks", Message: "must be greater than 0"}
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		return &ValidationError{Field: "cache.backend", Message: "must be \"memory\" or \"redis\""}
	}
	if c.Cache.MaxEntries < 1 {
		return &ValidationError{Field: "cache.max_entries", Message: "must be greater than 0"}
	}
	return nil
}

// ValidationError describes an invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config field %s: %s", e.Field, e.Message)
}
