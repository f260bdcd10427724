package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"loyaltykit/adapters/redis"
	"loyaltykit/adapters/sqlx"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds the complete application configuration
type Config struct {
	// Environment and profile settings
	Environment Environment `json:"environment" env:"LOYALTYKIT_ENV"`
	Profile     string      `json:"profile" env:"LOYALTYKIT_PROFILE"`

	// Server configuration
	Server ServerConfig `json:"server"`

	// Storage configuration
	Storage StorageConfig `json:"storage"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// Metrics and monitoring
	Metrics MetricsConfig `json:"metrics"`

	// Security configuration
	Security SecurityConfig `json:"security"`

	// Scoring rules
	Rules RulesConfig `json:"rules"`

	// Ranking refresh
	Rankings RankingsConfig `json:"rankings"`

	// Notification fan-out
	Notifications NotificationsConfig `json:"notifications"`

	// Distributed tracing
	Tracing TracingConfig `json:"tracing"`

	// Analytics aggregation
	Analytics AnalyticsConfig `json:"analytics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" env:"LOYALTYKIT_SERVER_ADDR"`
	PathPrefix        string        `json:"path_prefix" env:"LOYALTYKIT_SERVER_PATH_PREFIX"`
	CORSOrigin        string        `json:"cors_origin" env:"LOYALTYKIT_SERVER_CORS_ORIGIN"`
	ReadTimeout       time.Duration `json:"read_timeout" env:"LOYALTYKIT_SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" env:"LOYALTYKIT_SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" env:"LOYALTYKIT_SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" env:"LOYALTYKIT_SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" env:"LOYALTYKIT_SERVER_SHUTDOWN_TIMEOUT"`
}

// StorageConfig holds storage adapter configuration
type StorageConfig struct {
	Adapter string       `json:"adapter" env:"LOYALTYKIT_STORAGE_ADAPTER"`
	Redis   redis.Config `json:"redis,omitempty"`
	SQL     sqlx.Config  `json:"sql,omitempty"`
	File    FileConfig   `json:"file,omitempty"`
}

// FileConfig holds JSON file storage configuration
type FileConfig struct {
	Path string `json:"path" env:"LOYALTYKIT_STORAGE_FILE_PATH"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" env:"LOYALTYKIT_LOG_LEVEL"`
	Format     string            `json:"format" env:"LOYALTYKIT_LOG_FORMAT"`
	Output     string            `json:"output" env:"LOYALTYKIT_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" env:"LOYALTYKIT_LOG_ATTRIBUTES" envKeyValSeparator:"="`
}

// MetricsConfig holds metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" env:"LOYALTYKIT_METRICS_ENABLED"`
	Address string `json:"address" env:"LOYALTYKIT_METRICS_ADDR"`
	Path    string `json:"path" env:"LOYALTYKIT_METRICS_PATH"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" env:"LOYALTYKIT_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty"`
	APIKeys         []string        `json:"api_keys,omitempty" env:"LOYALTYKIT_SECURITY_API_KEYS" envSeparator:","`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" env:"LOYALTYKIT_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int `json:"burst_size" env:"LOYALTYKIT_SECURITY_RATE_LIMIT_BURST"`
}

// RulesConfig selects the rule pack and the calendar used for monthly points.
// An empty Path uses the built-in levels and achievements.
type RulesConfig struct {
	Path     string `json:"path" env:"LOYALTYKIT_RULES_PATH"`
	Timezone string `json:"timezone" env:"LOYALTYKIT_RULES_TIMEZONE"`
}

// RankingsConfig controls the standings snapshot used by ranking queries.
// A zero RefreshInterval reads standings live on every query.
type RankingsConfig struct {
	RefreshInterval time.Duration `json:"refresh_interval" env:"LOYALTYKIT_RANKINGS_REFRESH_INTERVAL"`
}

// NotificationsConfig controls how notifications leave the engine.
type NotificationsConfig struct {
	DispatchMode     string        `json:"dispatch_mode" env:"LOYALTYKIT_NOTIFICATIONS_DISPATCH"`
	QueueLimit       int           `json:"queue_limit" env:"LOYALTYKIT_NOTIFICATIONS_QUEUE_LIMIT"`
	WebhookEndpoints []string      `json:"webhook_endpoints,omitempty" env:"LOYALTYKIT_NOTIFICATIONS_WEBHOOKS" envSeparator:","`
	WebhookKinds     []string      `json:"webhook_kinds,omitempty" env:"LOYALTYKIT_NOTIFICATIONS_WEBHOOK_KINDS" envSeparator:","`
	WebhookTimeout   time.Duration `json:"webhook_timeout" env:"LOYALTYKIT_NOTIFICATIONS_WEBHOOK_TIMEOUT"`
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" env:"LOYALTYKIT_TRACING_ENABLED"`
	Endpoint    string  `json:"endpoint" env:"LOYALTYKIT_TRACING_ENDPOINT"`
	ServiceName string  `json:"service_name" env:"LOYALTYKIT_TRACING_SERVICE_NAME"`
	Insecure    bool    `json:"insecure" env:"LOYALTYKIT_TRACING_INSECURE"`
	SampleRatio float64 `json:"sample_ratio" env:"LOYALTYKIT_TRACING_SAMPLE_RATIO"`
}

// AnalyticsConfig controls in-process metric aggregation.
type AnalyticsConfig struct {
	Enabled             bool          `json:"enabled" env:"LOYALTYKIT_ANALYTICS_ENABLED"`
	AggregationInterval time.Duration `json:"aggregation_interval" env:"LOYALTYKIT_ANALYTICS_INTERVAL"`
}

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Load from environment variables
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

var configExtensions = []string{".json", ".yaml", ".yml"}

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(cleanPath))
	supported := false
	for _, e := range configExtensions {
		if ext == e {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("config file must have one of the extensions: %s", strings.Join(configExtensions, ", "))
	}

	if _, err := os.Stat(cleanPath); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON or YAML file
func LoadFromFile(path string) (*Config, error) {
	// Validate the path for security
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	// Open the file safely after validation
	file, err := os.Open(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		if data, err = yamlToJSON(data); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Environment variables override file values
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// yamlToJSON re-encodes a YAML document so it decodes through the json tags.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(doc)
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Server: ServerConfig{
			Address:           ":8080",
			PathPrefix:        "/api",
			CORSOrigin:        "*",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Adapter: "memory",
			Redis:   redis.DefaultConfig(),
			SQL:     sqlx.DefaultConfig(sqlx.DriverPostgres),
			File: FileConfig{
				Path: "./data/loyaltykit.json",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9090",
			Path:    "/metrics",
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				BurstSize:         10,
			},
			APIKeys: []string{},
		},
		Rules: RulesConfig{
			Timezone: "Local",
		},
		Rankings: RankingsConfig{
			RefreshInterval: time.Minute,
		},
		Notifications: NotificationsConfig{
			DispatchMode:   "sync",
			QueueLimit:     50,
			WebhookTimeout: 5 * time.Second,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Endpoint:    "localhost:4318",
			ServiceName: "loyaltykit",
			Insecure:    true,
			SampleRatio: 1,
		},
		Analytics: AnalyticsConfig{
			Enabled:             true,
			AggregationInterval: time.Minute,
		},
	}
}

// Location resolves the configured timezone. Empty or "Local" is time.Local.
func (r RulesConfig) Location() (*time.Location, error) {
	if r.Timezone == "" || r.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(r.Timezone)
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	// Validate environment
	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}

	// Validate server config
	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	// Validate storage config
	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("storage config: %v", err))
	}

	// Validate logging config
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}

	// Validate metrics config
	if err := c.Metrics.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("metrics config: %v", err))
	}

	// Validate security config
	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Rules.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("rules config: %v", err))
	}

	if c.Rankings.RefreshInterval < 0 {
		errs = append(errs, "rankings config: refresh_interval cannot be negative")
	}

	if err := c.Notifications.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("notifications config: %v", err))
	}

	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("tracing config: %v", err))
	}

	if c.Analytics.Enabled && c.Analytics.AggregationInterval < 0 {
		errs = append(errs, "analytics config: aggregation_interval cannot be negative")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	// Create a copy for redaction
	cfg := *c

	// Redact sensitive information
	if cfg.Storage.SQL.DSN != "" {
		cfg.Storage.SQL.DSN = "[REDACTED]"
	}
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = "[REDACTED]"
	}
	if len(cfg.Security.APIKeys) > 0 {
		cfg.Security.APIKeys = []string{fmt.Sprintf("[REDACTED x%d]", len(c.Security.APIKeys))}
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
