package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	DBSource      string           `mapstructure:"db_source"`
	ServerAddress string           `mapstructure:"server_address"`
	Store         StoreConfig      `mapstructure:"store"`
	Log           LogConfig        `mapstructure:"log"`
	CORS          CORSConfig       `mapstructure:"cors"`
	Resolver      ResolverConfig   `mapstructure:"resolver"`
	Refresh       RefreshConfig    `mapstructure:"refresh"`
	Providers     []ProviderConfig `mapstructure:"providers"`
}

// StoreConfig selects the location and job store. AddressFile seeds the
// in-memory address index at startup.
type StoreConfig struct {
	Driver      string `mapstructure:"driver"`
	AddressFile string `mapstructure:"address_file"`
}

// LogConfig configures the global zerolog logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CORSConfig lists browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ResolverConfig tunes location deduplication.
type ResolverConfig struct {
	ProximityRadiusM float64 `mapstructure:"proximity_radius_m"`
}

// RefreshConfig tunes the provider fan-out.
type RefreshConfig struct {
	MaxAgeHours     int           `mapstructure:"max_age_hours"`
	GeotechRadiusM  float64       `mapstructure:"geotech_radius_m"`
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
	MaxConcurrency  int           `mapstructure:"max_concurrency"`
}

// MaxAge returns the staleness threshold as a duration.
func (r RefreshConfig) MaxAge() time.Duration {
	return time.Duration(r.MaxAgeHours) * time.Hour
}

// ProviderConfig describes one JSON-over-HTTP registry adapter.
type ProviderConfig struct {
	Name         string         `mapstructure:"name"`
	BaseURL      string         `mapstructure:"base_url"`
	APIKey       string         `mapstructure:"api_key"`
	Capabilities []string       `mapstructure:"capabilities"`
	Bounds       []BoundsConfig `mapstructure:"bounds"`
	RateLimit    float64        `mapstructure:"rate_limit"`
	Burst        int            `mapstructure:"burst"`
	MaxAttempts  int            `mapstructure:"max_attempts"`
	CacheTTL     time.Duration  `mapstructure:"cache_ttl"`
	FallbackFile string         `mapstructure:"fallback_file"`
}

// BoundsConfig is a lat/lon rectangle a provider covers.
type BoundsConfig struct {
	MinLat float64 `mapstructure:"min_lat"`
	MaxLat float64 `mapstructure:"max_lat"`
	MinLon float64 `mapstructure:"min_lon"`
	MaxLon float64 `mapstructure:"max_lon"`
}

// LoadConfig reads configuration from app.yaml in path, then environment
// variables prefixed with SITEEVAL_ (dots become underscores).
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("SITEEVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("db_source", "")
	v.SetDefault("server_address", "0.0.0.0:8080")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.address_file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("resolver.proximity_radius_m", 50.0)
	v.SetDefault("refresh.max_age_hours", 24)
	v.SetDefault("refresh.geotech_radius_m", 500.0)
	v.SetDefault("refresh.provider_timeout", 10*time.Second)
	v.SetDefault("refresh.max_concurrency", 8)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("config: read file: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("config: unmarshal: %w", err)
	}
	return config, config.Validate()
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.DBSource == "" {
			return errors.New("config: store.driver postgres requires db_source")
		}
	default:
		return fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if c.Refresh.MaxConcurrency < 1 {
		return fmt.Errorf("config: refresh.max_concurrency must be at least 1, got %d", c.Refresh.MaxConcurrency)
	}
	if c.Refresh.ProviderTimeout <= 0 {
		return errors.New("config: refresh.provider_timeout must be positive")
	}
	if c.Resolver.ProximityRadiusM <= 0 {
		return errors.New("config: resolver.proximity_radius_m must be positive")
	}

	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("config: providers[%d] has no name", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("config: provider %s declared twice", p.Name)
		}
		seen[p.Name] = true
		if p.BaseURL == "" {
			return fmt.Errorf("config: provider %s has no base_url", p.Name)
		}
		if len(p.Capabilities) == 0 {
			return fmt.Errorf("config: provider %s has no capabilities", p.Name)
		}
	}
	return nil
}

// InitLogger sets the global zerolog level and output format.
func InitLogger(cfg LogConfig) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("config: parse log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return nil
}
