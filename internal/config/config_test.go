package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Travel CRM API", cfg.App.Name)
	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "session", cfg.Auth.CookieName)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 7, cfg.Jobs.StaleBookingsDays)
	assert.Contains(t, cfg.RateLimit.WhitelistPaths, "/health")
}

func TestCacheConfig_TTLDurationIsClamped(t *testing.T) {
	tests := []struct {
		ttl      int
		expected time.Duration
	}{
		{0, 5 * time.Minute},
		{60, 5 * time.Minute},
		{450, 450 * time.Second},
		{3600, 10 * time.Minute},
	}
	for _, tt := range tests {
		c := CacheConfig{TTL: tt.ttl}
		assert.Equal(t, tt.expected, c.TTLDuration(), "ttl=%d", tt.ttl)
	}
}

func TestDurationHelpers(t *testing.T) {
	db := DatabaseConfig{ConnMaxLifetime: 300}
	assert.Equal(t, 5*time.Minute, db.ConnMaxLifetimeDuration())

	srv := ServerConfig{ReadTimeout: 10, WriteTimeout: 20, RequestTimeout: 30}
	assert.Equal(t, 10*time.Second, srv.ReadTimeoutDuration())
	assert.Equal(t, 20*time.Second, srv.WriteTimeoutDuration())
	assert.Equal(t, 30*time.Second, srv.RequestTimeoutDuration())

	jobs := JobsConfig{StaleBookingsDays: 2, Timeout: 60}
	assert.Equal(t, 48*time.Hour, jobs.StaleAfter())
	assert.Equal(t, time.Minute, jobs.TimeoutDuration())

	assert.Equal(t, "redis:6379", (&RedisConfig{Host: "redis", Port: 6379}).Addr())
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "crm", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=crm sslmode=disable", d.ConnectionString())
}

type mapSecrets map[string]string

func (m mapSecrets) GetSecret(ctx context.Context, name string) (string, error) {
	if v, ok := m[name]; ok {
		return v, nil
	}
	return "", errors.New("not found")
}

func (m mapSecrets) GetSecretOrEnv(ctx context.Context, name, env string) (string, error) {
	return m.GetSecret(ctx, name)
}

func TestApplySecrets(t *testing.T) {
	cfg := &Config{OperatorCatalog: OperatorCatalogConfig{Enabled: true}}
	src := mapSecrets{
		"POSTGRES-PASSWORD":  "pg",
		"session-jwt-secret": "jwt",
		"admin-api-key":      "key",
		"CATALOG-URL":        "mssql:1433/catalog",
		"CATALOG-USERNAME":   "reader",
		"CATALOG-PASSWORD":   "pw",
	}

	require.NoError(t, applySecrets(context.Background(), cfg, src))
	assert.Equal(t, "pg", cfg.Database.Password)
	assert.Equal(t, "jwt", cfg.Auth.JWTSecret)
	assert.Equal(t, "key", cfg.Auth.APIKey)
	assert.Equal(t, "reader", cfg.OperatorCatalog.User)
}

func TestApplySecrets_RequiresJWTSecret(t *testing.T) {
	cfg := &Config{}
	err := applySecrets(context.Background(), cfg, mapSecrets{})
	assert.Error(t, err)
}

func TestApplySecrets_CatalogCredentialsRequiredWhenEnabled(t *testing.T) {
	cfg := &Config{OperatorCatalog: OperatorCatalogConfig{Enabled: true}}
	err := applySecrets(context.Background(), cfg, mapSecrets{"session-jwt-secret": "jwt"})
	assert.Error(t, err)
}
