package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Storage.Adapter)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, time.Minute, cfg.Rankings.RefreshInterval)
	assert.Equal(t, "sync", cfg.Notifications.DispatchMode)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoadFromJSONFile(t *testing.T) {
	path := writeConfig(t, "loyaltykit.json", `{
		"environment": "testing",
		"server": {"address": ":9090"},
		"storage": {"adapter": "file", "file": {"path": "/tmp/state.json"}},
		"rankings": {"refresh_interval": 5000000000}
	}`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, EnvTesting, cfg.Environment)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "file", cfg.Storage.Adapter)
	assert.Equal(t, "/tmp/state.json", cfg.Storage.File.Path)
	assert.Equal(t, 5*time.Second, cfg.Rankings.RefreshInterval)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "missing environment", mutate: func(c *Config) { c.Environment = "" }, wantErr: "environment"},
		{name: "zero read timeout", mutate: func(c *Config) { c.Server.ReadTimeout = 0 }, wantErr: "read_timeout"},
		{name: "unknown adapter", mutate: func(c *Config) { c.Storage.Adapter = "etcd" }, wantErr: "adapter must be one of"},
		{name: "file without path", mutate: func(c *Config) {
			c.Storage.Adapter = "file"
			c.Storage.File.Path = ""
		}, wantErr: "file config"},
		{name: "redis without addr", mutate: func(c *Config) {
			c.Storage.Adapter = "redis"
			c.Storage.Redis.Addr = ""
		}, wantErr: "redis config"},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "trace" }, wantErr: "level must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadProfile(t *testing.T) {
	tests := []struct {
		profile     string
		environment Environment
		adapter     string
		dispatch    string
	}{
		{"development", EnvDevelopment, "memory", "sync"},
		{"testing", EnvTesting, "memory", "sync"},
		{"staging", EnvStaging, "redis", "async"},
		{"production", EnvProduction, "sql", "async"},
	}
	for _, tt := range tests {
		t.Run(tt.profile, func(t *testing.T) {
			cfg, err := LoadProfile(tt.profile)
			require.NoError(t, err)
			assert.Equal(t, tt.environment, cfg.Environment)
			assert.Equal(t, tt.adapter, cfg.Storage.Adapter)
			assert.Equal(t, tt.dispatch, cfg.Notifications.DispatchMode)
		})
	}

	cfg, err := LoadProfile("canary")
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestEnvironmentSecretStore(t *testing.T) {
	t.Setenv("LOYALTYKIT_SECRET_TEST", "s3cret")
	store := NewEnvironmentSecretStore()
	ctx := context.Background()

	v, err := store.Get(ctx, "LOYALTYKIT_SECRET_TEST")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", v)

	assert.Equal(t, "s3cret", store.GetWithDefault(ctx, "LOYALTYKIT_SECRET_TEST", "fallback"))
	assert.Equal(t, "fallback", store.GetWithDefault(ctx, "LOYALTYKIT_SECRET_UNSET_FOR_TEST", "fallback"))
}

func TestValidateConfigPath(t *testing.T) {
	dir := t.TempDir()
	existing := func(name string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
		return path
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"json", existing("a.json"), false},
		{"yaml", existing("a.yaml"), false},
		{"yml", existing("a.yml"), false},
		{"empty", "", true},
		{"no extension", "../../../etc/passwd", true},
		{"unsupported extension", existing("a.txt"), true},
		{"missing file", filepath.Join(dir, "missing.json"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfigPath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := writeConfig(t, "loyaltykit.yaml", `
environment: staging
storage:
  adapter: sql
  sql:
    driver: sqlite
    dsn: file:test.db
rules:
  timezone: Europe/Paris
notifications:
  dispatch_mode: async
  webhook_endpoints:
    - https://hooks.example.com/loyalty
  webhook_kinds: [success, error]
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, EnvStaging, cfg.Environment)
	assert.Equal(t, "sql", cfg.Storage.Adapter)
	assert.EqualValues(t, "sqlite", cfg.Storage.SQL.Driver)
	assert.Equal(t, "file:test.db", cfg.Storage.SQL.DSN)
	assert.Equal(t, "async", cfg.Notifications.DispatchMode)
	assert.Equal(t, []string{"https://hooks.example.com/loyalty"}, cfg.Notifications.WebhookEndpoints)
	assert.Equal(t, []string{"success", "error"}, cfg.Notifications.WebhookKinds)

	// untouched sections keep their defaults
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 50, cfg.Notifications.QueueLimit)

	loc, err := cfg.Rules.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", loc.String())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOYALTYKIT_SERVER_ADDR", ":7070")
	t.Setenv("LOYALTYKIT_STORAGE_ADAPTER", "redis")
	t.Setenv("LOYALTYKIT_REDIS_ADDR", "cache:6379")
	t.Setenv("LOYALTYKIT_SECURITY_API_KEYS", "k1,k2")
	t.Setenv("LOYALTYKIT_RANKINGS_REFRESH_INTERVAL", "15s")
	t.Setenv("LOYALTYKIT_LOG_ATTRIBUTES", "region=eu,team=loyalty")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, "redis", cfg.Storage.Adapter)
	assert.Equal(t, "cache:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Security.APIKeys)
	assert.Equal(t, 15*time.Second, cfg.Rankings.RefreshInterval)
	assert.Equal(t, map[string]string{"region": "eu", "team": "loyalty"}, cfg.Logging.Attributes)
}

func TestEnvOverridesRejectInvalid(t *testing.T) {
	t.Setenv("LOYALTYKIT_NOTIFICATIONS_DISPATCH", "carrier-pigeon")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dispatch_mode")
}

func TestValidateSections(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Adapter = "sql"
	cfg.Storage.SQL.Driver = "oracle"
	cfg.Notifications.WebhookEndpoints = []string{"ftp://nope"}
	cfg.Notifications.WebhookKinds = []string{"celebration"}
	cfg.Tracing.SampleRatio = 2
	cfg.Rules.Timezone = "Mars/Olympus"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"sql config", "webhook_endpoints[0]", "webhook_kinds[0]", "sample_ratio", "timezone"} {
		assert.Contains(t, err.Error(), want)
	}
}

type mapSecrets map[string]string

func (m mapSecrets) Get(_ context.Context, key string) (string, error) {
	if v, ok := m[key]; ok {
		return v, nil
	}
	return "", ErrSecretNotFound
}

func (m mapSecrets) GetWithDefault(ctx context.Context, key, def string) string {
	if v, err := m.Get(ctx, key); err == nil {
		return v
	}
	return def
}

func TestLoadSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Redis.Password = "configured"

	err := cfg.LoadSecrets(context.Background(), mapSecrets{
		SecretSQLDSN:  "postgres://prod",
		SecretAPIKeys: " a , ,b",
	})
	require.NoError(t, err)
	assert.Equal(t, "configured", cfg.Storage.Redis.Password)
	assert.Equal(t, "postgres://prod", cfg.Storage.SQL.DSN)
	assert.Equal(t, []string{"a", "b"}, cfg.Security.APIKeys)

	out := cfg.String()
	assert.NotContains(t, out, "postgres://prod")
	assert.NotContains(t, out, "configured")
}

func TestEnvironmentSecretStoreMissing(t *testing.T) {
	_, err := NewEnvironmentSecretStore().Get(context.Background(), "LOYALTYKIT_SECRET_DEFINITELY_UNSET")
	assert.True(t, errors.Is(err, ErrSecretNotFound))
}
