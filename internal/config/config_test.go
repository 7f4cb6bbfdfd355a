package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "clinicrx", cfg.App.Name)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.EqualValues(t, 25, cfg.Database.MaxConns)
	assert.Equal(t, LedgerModeAtomic, cfg.Ledger.Mode)
	assert.True(t, cfg.Ledger.FuzzyNames)
	assert.Equal(t, 2*time.Minute, cfg.Receiving.LockTTL)
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
	assert.False(t, cfg.Redis.Enabled)
	assert.True(t, cfg.IsDevelopment())
}

func TestFromViper_EnvOverrides(t *testing.T) {
	t.Setenv("CLINICRX_DATABASE_DRIVER", "memory")
	t.Setenv("CLINICRX_LEDGER_MODE", "REREAD")
	t.Setenv("CLINICRX_LEDGER_FUZZY_NAMES", "false")
	t.Setenv("CLINICRX_RECEIVING_LOCK_TTL", "30s")

	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, LedgerModeReread, cfg.Ledger.Mode)
	assert.False(t, cfg.Ledger.FuzzyNames)
	assert.Equal(t, 30*time.Second, cfg.Receiving.LockTTL)
}

func TestFromViper_TOML(t *testing.T) {
	v := viper.New()
	v.SetConfigType("toml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
[app]
port = "9090"

[redis]
enabled = true
addr = "cache:6379"

[worker]
timezone = "UTC"
`)))

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.App.Port)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)

	loc, err := cfg.Worker.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := FromViper(viper.New())
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"unknown ledger mode", func(c *Config) { c.Ledger.Mode = "optimistic" }, "ledger.mode"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "sqlite" }, "database.driver"},
		{"zero lock ttl", func(c *Config) { c.Receiving.LockTTL = 0 }, "receiving.lock_ttl"},
		{"zero snapshot interval", func(c *Config) { c.Worker.SnapshotInterval = 0 }, "worker.snapshot_interval"},
		{"min conns above max", func(c *Config) { c.Database.MinConns = 50 }, "database.min_conns"},
		{"memory in production", func(c *Config) {
			c.App.Env = "production"
			c.Database.Driver = DriverMemory
		}, "not allowed in production"},
		{"redis without addr", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Addr = ""
		}, "redis.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
