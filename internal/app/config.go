package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/shopforge/shopforge/internal/cache"
	"github.com/shopforge/shopforge/internal/database"
)

// Config represents the runtime configuration for the ShopForge backend.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheSettings  `mapstructure:"cache"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Sync     SyncConfig     `mapstructure:"sync"`
	API      APIConfig      `mapstructure:"api"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	LogLevel    string `mapstructure:"log_level"`
	Development bool   `mapstructure:"development"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string            `mapstructure:"driver"`
	Path     string            `mapstructure:"path"`
	DSN      string            `mapstructure:"dsn"`
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	User     string            `mapstructure:"user"`
	Password string            `mapstructure:"password"`
	Name     string            `mapstructure:"name"`
	Options  map[string]string `mapstructure:"options"`
}

// CacheSettings configures the in-memory document cache.
type CacheSettings struct {
	Enabled       bool          `mapstructure:"enabled"`
	DefaultTTL    time.Duration `mapstructure:"default_ttl"`
	MaxSize       int           `mapstructure:"max_size"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	TrackStats    bool          `mapstructure:"track_stats"`
	TTL           NamespaceTTLs `mapstructure:"ttl"`
}

// NamespaceTTLs overrides the default TTL per cache namespace.
type NamespaceTTLs struct {
	Search      time.Duration `mapstructure:"search"`
	Listing     time.Duration `mapstructure:"listing"`
	Aggregation time.Duration `mapstructure:"aggregation"`
}

// GatewayConfig bounds query execution.
type GatewayConfig struct {
	MaxDepth             int           `mapstructure:"max_depth"`
	MaxComplexity        int           `mapstructure:"max_complexity"`
	IntrospectionEnabled bool          `mapstructure:"introspection_enabled"`
	StorageTimeout       time.Duration `mapstructure:"storage_timeout"`
}

// SyncConfig configures the bulk synchronization collaborator surface.
type SyncConfig struct {
	LockTTL             time.Duration `mapstructure:"lock_ttl"`
	CheckpointRetention int           `mapstructure:"checkpoint_retention_days"`
}

// APIConfig configures the REST admin surface.
type APIConfig struct {
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("SHOPFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.development", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/shopforge.sqlite")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.default_ttl", "5m")
	v.SetDefault("cache.max_size", 10000)
	v.SetDefault("cache.sweep_interval", "1m")
	v.SetDefault("cache.track_stats", true)
	v.SetDefault("cache.ttl.search", "5m")
	v.SetDefault("cache.ttl.listing", "2m")
	v.SetDefault("cache.ttl.aggregation", "10m")

	v.SetDefault("gateway.max_depth", 10)
	v.SetDefault("gateway.max_complexity", 0)
	v.SetDefault("gateway.introspection_enabled", false)
	v.SetDefault("gateway.storage_timeout", "5s")

	v.SetDefault("sync.lock_ttl", "30m")
	v.SetDefault("sync.checkpoint_retention_days", 30)

	v.SetDefault("api.rate_limit_requests", 100)
	v.SetDefault("api.rate_limit_window", "1m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// DatabaseConfig converts the configuration section into connection options.
func (c *Config) DatabaseConfig() database.Config {
	return database.Config{
		Driver:   c.Database.Driver,
		Path:     c.Database.Path,
		DSN:      c.Database.DSN,
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		User:     c.Database.User,
		Password: c.Database.Password,
		Name:     c.Database.Name,
		Options:  c.Database.Options,
	}
}

// CacheConfig converts the configuration section into cache options.
func (c *Config) CacheConfig() cache.Config {
	ttls := map[string]time.Duration{}
	if c.Cache.TTL.Search > 0 {
		ttls[cache.NamespaceSearch] = c.Cache.TTL.Search
	}
	if c.Cache.TTL.Listing > 0 {
		ttls[cache.NamespaceListing] = c.Cache.TTL.Listing
	}
	if c.Cache.TTL.Aggregation > 0 {
		ttls[cache.NamespaceAggregation] = c.Cache.TTL.Aggregation
	}

	return cache.Config{
		Enabled:       c.Cache.Enabled,
		DefaultTTL:    c.Cache.DefaultTTL,
		MaxSize:       c.Cache.MaxSize,
		SweepInterval: c.Cache.SweepInterval,
		NamespaceTTLs: ttls,
		TrackStats:    c.Cache.TrackStats,
	}
}
