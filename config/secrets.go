package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrSecretNotFound is returned when a secret has no value.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore resolves secrets by name.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	GetWithDefault(ctx context.Context, key, def string) string
}

// EnvironmentSecretStore reads secrets from process environment variables.
type EnvironmentSecretStore struct{}

func NewEnvironmentSecretStore() *EnvironmentSecretStore { return &EnvironmentSecretStore{} }

func (EnvironmentSecretStore) Get(_ context.Context, key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	return v, nil
}

func (s EnvironmentSecretStore) GetWithDefault(ctx context.Context, key, def string) string {
	v, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	return v
}

// Secret names consulted by LoadSecrets.
const (
	SecretRedisPassword = "LOYALTYKIT_SECRET_REDIS_PASSWORD"
	SecretSQLDSN        = "LOYALTYKIT_SECRET_SQL_DSN"
	SecretAPIKeys       = "LOYALTYKIT_SECRET_API_KEYS"
)

// LoadSecrets overrides credentials with values from store. Missing secrets
// keep the configured value.
func (c *Config) LoadSecrets(ctx context.Context, store SecretStore) error {
	if v, err := store.Get(ctx, SecretRedisPassword); err == nil {
		c.Storage.Redis.Password = v
	} else if !errors.Is(err, ErrSecretNotFound) {
		return err
	}
	if v, err := store.Get(ctx, SecretSQLDSN); err == nil {
		c.Storage.SQL.DSN = v
	} else if !errors.Is(err, ErrSecretNotFound) {
		return err
	}
	if v, err := store.Get(ctx, SecretAPIKeys); err == nil {
		var keys []string
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		c.Security.APIKeys = keys
	} else if !errors.Is(err, ErrSecretNotFound) {
		return err
	}
	return nil
}
