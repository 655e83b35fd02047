package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "MAX_QUERY_LENGTH", "MAX_ROWS", "QUERY_TIMEOUT",
		"SCHEMA_CACHE_TTL", "ALLOWED_TABLES", "POLICY_FILE", "LOG_LEVEL",
		"TRANSPORT", "HTTP_ADDR", "HTTP_BEARER_TOKEN", "OPENAI_API_KEY",
		"LLM_MODEL", "OTEL_ENABLED", "AUDIT_LOG",
		"POOL_MAX_CONNS", "POOL_MIN_CONNS", "POOL_MAX_CONN_LIFETIME",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/test")

	cfg, err := Load(Overrides{})
	require.NoError(t, err)

	assert.Equal(t, 2000, cfg.MaxQueryLength)
	assert.Equal(t, 200, cfg.MaxRows)
	assert.Equal(t, 10*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 5*time.Minute, cfg.SchemaCacheTTL)
	assert.Equal(t, []string{"users", "checklist", "delegation"}, cfg.AllowedTables)
	assert.Equal(t, "gpt-4o-mini", cfg.LLMModel)
	assert.Equal(t, "stdio", cfg.Transport)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, int32(5), cfg.PoolMaxConns)
	assert.Equal(t, int32(1), cfg.PoolMinConns)
	assert.Equal(t, 30*time.Minute, cfg.PoolMaxConnLifetime)
	assert.False(t, cfg.OTelEnabled)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	clearEnv(t)
	_, err := Load(Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_EnvVars(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("MAX_QUERY_LENGTH", "4000")
	t.Setenv("MAX_ROWS", "50")
	t.Setenv("QUERY_TIMEOUT", "30s")
	t.Setenv("SCHEMA_CACHE_TTL", "1m")
	t.Setenv("ALLOWED_TABLES", "users, orders ,payments")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LLM_MODEL", "gpt-4o")
	t.Setenv("OTEL_ENABLED", "true")

	cfg, err := Load(Overrides{})
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.MaxQueryLength)
	assert.Equal(t, 50, cfg.MaxRows)
	assert.Equal(t, 30*time.Second, cfg.QueryTimeout)
	assert.Equal(t, time.Minute, cfg.SchemaCacheTTL)
	assert.Equal(t, []string{"users", "orders", "payments"}, cfg.AllowedTables)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "gpt-4o", cfg.LLMModel)
	assert.True(t, cfg.OTelEnabled)
}

func TestLoad_OverridesBeatEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/env")
	t.Setenv("MAX_ROWS", "50")

	url := "postgres://localhost/flag"
	maxRows := 25
	tables := "users"
	cfg, err := Load(Overrides{
		DatabaseURL:   &url,
		MaxRows:       &maxRows,
		AllowedTables: &tables,
	})
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/flag", cfg.DatabaseURL)
	assert.Equal(t, 25, cfg.MaxRows)
	assert.Equal(t, []string{"users"}, cfg.AllowedTables)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		key   string
		value string
	}{
		{"MAX_QUERY_LENGTH", "zero"},
		{"MAX_QUERY_LENGTH", "-1"},
		{"MAX_ROWS", "0"},
		{"QUERY_TIMEOUT", "soon"},
		{"SCHEMA_CACHE_TTL", "often"},
		{"LOG_LEVEL", "verbose"},
		{"OTEL_ENABLED", "maybe"},
		{"POOL_MAX_CONNS", "0"},
		{"TRANSPORT", "grpc"},
	}
	for _, tc := range cases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("DATABASE_URL", "postgres://localhost/test")
			t.Setenv(tc.key, tc.value)

			_, err := Load(Overrides{})
			assert.Error(t, err)
		})
	}
}

func TestLoad_HTTPTransportRequiresToken(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("TRANSPORT", "http")

	_, err := Load(Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP_BEARER_TOKEN")

	t.Setenv("HTTP_BEARER_TOKEN", "sekrit")
	cfg, err := Load(Overrides{})
	require.NoError(t, err)
	assert.Equal(t, "http", cfg.Transport)
}

func TestLoad_EmptyAllowList(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/test")

	tables := " , "
	_, err := Load(Overrides{AllowedTables: &tables})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ALLOWED_TABLES")
}

func TestLoad_PoolBounds(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("POOL_MIN_CONNS", "10")
	t.Setenv("POOL_MAX_CONNS", "5")

	_, err := Load(Overrides{})
	assert.Error(t, err)
}
