package config

import (
	"fmt"
	"time"

	"loyaltykit/adapters/sqlx"
)

// LoadProfile returns the preset configuration for a named environment,
// with environment variables applied on top.
func LoadProfile(name string) (*Config, error) {
	var cfg *Config
	switch Environment(name) {
	case EnvDevelopment:
		cfg = developmentProfile()
	case EnvTesting:
		cfg = testingProfile()
	case EnvStaging:
		cfg = stagingProfile()
	case EnvProduction:
		cfg = productionProfile()
	default:
		return nil, fmt.Errorf("unknown profile %q", name)
	}
	cfg.Profile = name

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func developmentProfile() *Config {
	cfg := DefaultConfig()
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "text"
	return cfg
}

func testingProfile() *Config {
	cfg := DefaultConfig()
	cfg.Environment = EnvTesting
	cfg.Logging.Level = "warn"
	cfg.Rankings.RefreshInterval = 0
	cfg.Analytics.Enabled = false
	return cfg
}

func stagingProfile() *Config {
	cfg := DefaultConfig()
	cfg.Environment = EnvStaging
	cfg.Storage.Adapter = "redis"
	cfg.Tracing.Enabled = true
	cfg.Tracing.SampleRatio = 0.5
	cfg.Notifications.DispatchMode = "async"
	return cfg
}

func productionProfile() *Config {
	cfg := DefaultConfig()
	cfg.Environment = EnvProduction
	cfg.Server.CORSOrigin = ""
	cfg.Storage.Adapter = "sql"
	cfg.Storage.SQL = sqlx.DefaultConfig(sqlx.DriverPostgres)
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Security.EnableRateLimit = true
	cfg.Security.RateLimit.RequestsPerMinute = 600
	cfg.Security.RateLimit.BurstSize = 50
	cfg.Rankings.RefreshInterval = 30 * time.Second
	cfg.Notifications.DispatchMode = "async"
	cfg.Tracing.Enabled = true
	cfg.Tracing.Insecure = false
	cfg.Tracing.SampleRatio = 0.1
	return cfg
}
