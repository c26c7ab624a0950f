// Package config loads runner configuration from an optional file and
// QUERYBOOK_ environment variables
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tiendc/go-deepcopy"
	"go.uber.org/zap"

	"github.com/mnohosten/querybook/pkg/database"
	"github.com/mnohosten/querybook/pkg/logger"
)

// EnvPrefix is the prefix of environment overrides, e.g. QUERYBOOK_LOG_LEVEL
const EnvPrefix = "QUERYBOOK"

// Config is the runner configuration
type Config struct {
	Collection string      `mapstructure:"collection"`
	Script     string      `mapstructure:"script"`
	Explain    bool        `mapstructure:"explain"`
	Log        LogConfig   `mapstructure:"log"`
	Cache      CacheConfig `mapstructure:"cache"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CacheConfig configures the per-collection query cache
type CacheConfig struct {
	Size int           `mapstructure:"size"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Collection: "books",
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Cache: CacheConfig{
			Size: 1000,
			TTL:  5 * time.Minute,
		},
	}
}

// Load reads the configuration. path may be empty, in which case only
// defaults and environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("collection", def.Collection)
	v.SetDefault("script", def.Script)
	v.SetDefault("explain", def.Explain)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("cache.size", def.Cache.Size)
	v.SetDefault("cache.ttl", def.Cache.TTL)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file not found: %w", err)
			}
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration values
func (c *Config) Validate() error {
	if c.Collection == "" {
		return fmt.Errorf("collection cannot be empty")
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if _, err := logger.ParseFormat(c.Log.Format); err != nil {
		return fmt.Errorf("log.format: %w", err)
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("cache.size must be non-negative, got %d", c.Cache.Size)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must be non-negative, got %s", c.Cache.TTL)
	}
	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	var clone Config
	if err := deepcopy.Copy(&clone, c); err != nil {
		// only plain values, copying cannot fail
		panic(fmt.Sprintf("config clone: %v", err))
	}
	return &clone
}

// Logger builds the zap logger described by the configuration
func (c *Config) Logger() (*zap.Logger, error) {
	format, err := logger.ParseFormat(c.Log.Format)
	if err != nil {
		return nil, err
	}
	return logger.New(c.Log.Level, format)
}

// DatabaseConfig maps the configuration onto database settings
func (c *Config) DatabaseConfig(log *zap.Logger) *database.Config {
	cfg := database.DefaultConfig()
	cfg.CacheSize = c.Cache.Size
	cfg.CacheTTL = c.Cache.TTL
	cfg.Logger = log
	return cfg
}
