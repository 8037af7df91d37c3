package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":3000", cfg.Server.Listen)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, "hookgraph:", cfg.Redis.Prefix)
	assert.Equal(t, int64(100), cfg.Usage.Limit)
	assert.Equal(t, "http://localhost:3000", cfg.Client.URL)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hookgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  listen: ":8080"
  log_json: true
database:
  driver: sqlite
  url: /tmp/graphs.db
redis:
  addr: localhost:6379
usage:
  limit: 500
  window: 720h
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.True(t, cfg.Server.LogJSON)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "/tmp/graphs.db", cfg.Database.URL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, int64(500), cfg.Usage.Limit)
	assert.Equal(t, 720*time.Hour, cfg.Usage.Window)
	assert.Equal(t, "info", cfg.Server.LogLevel, "defaults fill the gaps")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: [unclosed"), 0o600))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "parse")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"HOOKGRAPH_LISTEN":      ":9000",
		"HOOKGRAPH_TOKEN":       "client-secret",
		"DATABASE_URL":          "postgres://localhost/hookgraph",
		"HOOKGRAPH_USAGE_LIMIT": "250",
		"HOOKGRAPH_LOG_LEVEL":   "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	var cfg Config
	require.NoError(t, cfg.applyEnv(lookup))
	cfg.applyDefaults()

	assert.Equal(t, ":9000", cfg.Server.Listen)
	assert.Equal(t, "client-secret", cfg.Client.Token)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver, "DATABASE_URL implies postgres")
	assert.Equal(t, int64(250), cfg.Usage.Limit)
	assert.Equal(t, "info", cfg.Server.LogLevel, "empty values are ignored")
	assert.NoError(t, cfg.Validate())

	env["HOOKGRAPH_USAGE_LIMIT"] = "lots"
	assert.ErrorContains(t, (&Config{}).applyEnv(lookup), "HOOKGRAPH_USAGE_LIMIT")
}

func TestApplyEnv_KeepsExplicitDriver(t *testing.T) {
	var cfg Config
	cfg.Database.Driver = DriverSQLite
	require.NoError(t, cfg.applyEnv(func(k string) (string, bool) {
		if k == "DATABASE_URL" {
			return "graphs.db", true
		}
		return "", false
	}))
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "graphs.db", cfg.Database.URL)
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name, driver, url string
		wantErr           string
	}{
		{name: "Memory", driver: DriverMemory},
		{name: "PostgresWithURL", driver: DriverPostgres, url: "postgres://x"},
		{name: "PostgresWithoutURL", driver: DriverPostgres, wantErr: "database.url is required"},
		{name: "SQLiteWithoutURL", driver: DriverSQLite, wantErr: "database.url is required"},
		{name: "Unknown", driver: "mongo", wantErr: "unsupported database driver"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var cfg Config
			cfg.Database.Driver = tc.driver
			cfg.Database.URL = tc.url
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}
