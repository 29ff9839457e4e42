package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "0.0.0.0:8080", cfg.ServerAddress)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.InDelta(t, 50.0, cfg.Resolver.ProximityRadiusM, 1e-9)
	assert.Equal(t, 24*time.Hour, cfg.Refresh.MaxAge())
	assert.InDelta(t, 500.0, cfg.Refresh.GeotechRadiusM, 1e-9)
	assert.Equal(t, 10*time.Second, cfg.Refresh.ProviderTimeout)
	assert.Equal(t, 8, cfg.Refresh.MaxConcurrency)
	assert.Empty(t, cfg.Providers)
}

func TestLoadConfig_FromYAML(t *testing.T) {
	dir := t.TempDir()
	yaml := `
store:
  driver: postgres
db_source: postgres://localhost/siteeval
refresh:
  provider_timeout: 3s
  max_concurrency: 2
providers:
  - name: linz-titles
    base_url: https://api.example.test
    capabilities: [land]
    cache_ttl: 5m
    bounds:
      - {min_lat: -47.5, max_lat: -34.0, min_lon: 166.0, max_lon: 178.9}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.yaml"), []byte(yaml), 0o644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 3*time.Second, cfg.Refresh.ProviderTimeout)
	assert.Equal(t, 2, cfg.Refresh.MaxConcurrency)
	// untouched keys keep their defaults
	assert.Equal(t, 24, cfg.Refresh.MaxAgeHours)

	require.Len(t, cfg.Providers, 1)
	p := cfg.Providers[0]
	assert.Equal(t, "linz-titles", p.Name)
	assert.Equal(t, []string{"land"}, p.Capabilities)
	assert.Equal(t, 5*time.Minute, p.CacheTTL)
	require.Len(t, p.Bounds, 1)
	assert.InDelta(t, -47.5, p.Bounds[0].MinLat, 1e-9)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SITEEVAL_REFRESH_MAX_CONCURRENCY", "3")
	t.Setenv("SITEEVAL_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Refresh.MaxConcurrency)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Store:    StoreConfig{Driver: "memory"},
			Resolver: ResolverConfig{ProximityRadiusM: 50},
			Refresh:  RefreshConfig{ProviderTimeout: time.Second, MaxConcurrency: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Store.Driver = "postgres" }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.Store.Driver = "sqlite" }, wantErr: true},
		{name: "zero concurrency", mutate: func(c *Config) { c.Refresh.MaxConcurrency = 0 }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.Refresh.ProviderTimeout = 0 }, wantErr: true},
		{name: "zero radius", mutate: func(c *Config) { c.Resolver.ProximityRadiusM = 0 }, wantErr: true},
		{
			name: "duplicate provider",
			mutate: func(c *Config) {
				p := ProviderConfig{Name: "a", BaseURL: "http://x", Capabilities: []string{"zoning"}}
				c.Providers = []ProviderConfig{p, p}
			},
			wantErr: true,
		},
		{
			name: "provider without capabilities",
			mutate: func(c *Config) {
				c.Providers = []ProviderConfig{{Name: "a", BaseURL: "http://x"}}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInitLogger(t *testing.T) {
	assert.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "loud"}))
}
