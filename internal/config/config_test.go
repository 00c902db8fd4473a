package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"STORE_DRIVER", "SQLITE_PATH", "TX_RETRY_MAX_ATTEMPTS", "TX_RETRY_BASE_MS", "TX_RETRY_CAP_MS", "EVENTS_ENABLED", "EVENTS_STREAM", "EVENTS_BUFFER", "EVENTS_PUBLISH_TIMEOUT_MS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "ticketflow.db", cfg.SQLite.Path)
	assert.Equal(t, 5*time.Second, cfg.SQLite.BusyTimeout())
	assert.Equal(t, 5, cfg.Tx.MaxAttempts)
	assert.Equal(t, 20*time.Millisecond, cfg.Tx.BaseDelay())
	assert.Equal(t, 500*time.Millisecond, cfg.Tx.MaxDelay())
	assert.False(t, cfg.Events.Enabled)
	assert.Equal(t, "ticketflow.events", cfg.Events.Stream)
	assert.Equal(t, 1024, cfg.Events.Buffer)
	assert.Equal(t, 500*time.Millisecond, cfg.Events.PublishTimeout())
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("TX_RETRY_MAX_ATTEMPTS", "3")
	t.Setenv("TX_RETRY_BASE_MS", "5")
	t.Setenv("TX_RETRY_CAP_MS", "50")
	t.Setenv("EVENTS_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, 3, cfg.Tx.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Tx.MaxDelay())
	assert.True(t, cfg.Events.Enabled)
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "primary")
	_, err := Load()
	assert.ErrorContains(t, err, "REDIS_DB")
}

func validConfig() Config {
	return Config{
		Store:  StoreConfig{Driver: DriverMemory},
		SQLite: SQLiteConfig{Path: "x.db"},
		Auth:   AuthConfig{AccessTokenTTLMinutes: 60},
		Tx:     TxConfig{MaxAttempts: 5, BaseMS: 20, CapMS: 500},
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }, "unknown STORE_DRIVER"},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = DriverPostgres }, "POSTGRES_DSN"},
		{"postgres with dsn", func(c *Config) { c.Store.Driver = DriverPostgres; c.Postgres.DSN = "postgres://x" }, ""},
		{"sqlite without path", func(c *Config) { c.Store.Driver = DriverSQLite; c.SQLite.Path = " " }, "SQLITE_PATH"},
		{"zero attempts", func(c *Config) { c.Tx.MaxAttempts = 0 }, "TX_RETRY_MAX_ATTEMPTS"},
		{"zero base", func(c *Config) { c.Tx.BaseMS = 0 }, "TX_RETRY_BASE_MS"},
		{"cap below base", func(c *Config) { c.Tx.CapMS = 10 }, "TX_RETRY_CAP_MS"},
		{"events without stream", func(c *Config) { c.Events = EventsConfig{Enabled: true, Buffer: 8, PublishTimeoutMS: 100} }, "EVENTS_STREAM"},
		{"events without buffer", func(c *Config) { c.Events = EventsConfig{Enabled: true, Stream: "s", PublishTimeoutMS: 100} }, "EVENTS_BUFFER"},
		{"events without timeout", func(c *Config) { c.Events = EventsConfig{Enabled: true, Stream: "s", Buffer: 8} }, "EVENTS_PUBLISH_TIMEOUT_MS"},
		{"events enabled", func(c *Config) { c.Events = EventsConfig{Enabled: true, Stream: "s", Buffer: 8, PublishTimeoutMS: 100} }, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}
