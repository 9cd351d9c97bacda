// Package config loads server configuration from a YAML file and
// LILA_WS_ environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the server.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Mongo   MongoConfig   `mapstructure:"mongo"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Eval    EvalConfig    `mapstructure:"eval"`
	Spool   SpoolConfig   `mapstructure:"spool"`
	Fishnet FishnetConfig `mapstructure:"fishnet"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// CacheConfig holds in-memory cache TTLs.
type CacheConfig struct {
	RoundTTL time.Duration `mapstructure:"round_ttl"`
	FlagTTL  time.Duration `mapstructure:"flag_ttl"`
}

// EvalConfig holds submission acceptance thresholds.
type EvalConfig struct {
	MinPvPlies int `mapstructure:"min_pv_plies"`
	MaxPvPlies int `mapstructure:"max_pv_plies"`
	MinKnodes  int `mapstructure:"min_knodes"`
	MinDepth   int `mapstructure:"min_depth"`
	MaxEvals   int `mapstructure:"max_evals"`
}

// SpoolConfig holds the submission file watcher settings.
type SpoolConfig struct {
	WatchDir     string        `mapstructure:"watch_dir"`
	ProcessedDir string        `mapstructure:"processed_dir"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// FishnetConfig holds the local analysis contributor settings.
type FishnetConfig struct {
	EnginePath string `mapstructure:"engine_path"`
	Depth      int    `mapstructure:"depth"`
	MultiPv    int    `mapstructure:"multi_pv"`
	HashMB     int    `mapstructure:"hash_mb"`
	Threads    int    `mapstructure:"threads"`
	QueueSize  int    `mapstructure:"queue_size"`
	By         string `mapstructure:"by"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("LILA_WS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not fatal if env vars are set
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri is required")
	}
	if c.Mongo.Database == "" {
		return fmt.Errorf("mongo.database is required")
	}
	if c.Cache.RoundTTL <= 0 {
		return fmt.Errorf("cache.round_ttl must be positive")
	}
	if c.Cache.FlagTTL <= 0 {
		return fmt.Errorf("cache.flag_ttl must be positive")
	}
	if c.Eval.MaxPvPlies < c.Eval.MinPvPlies {
		return fmt.Errorf("eval.max_pv_plies must be >= eval.min_pv_plies")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "lichess")

	v.SetDefault("cache.round_ttl", "1h")
	v.SetDefault("cache.flag_ttl", "1h")

	v.SetDefault("eval.min_pv_plies", 6)
	v.SetDefault("eval.max_pv_plies", 10)
	v.SetDefault("eval.min_knodes", 3000)
	v.SetDefault("eval.min_depth", 20)
	v.SetDefault("eval.max_evals", 5)

	v.SetDefault("spool.poll_interval", "10s")

	v.SetDefault("fishnet.depth", 24)
	v.SetDefault("fishnet.multi_pv", 3)
	v.SetDefault("fishnet.hash_mb", 256)
	v.SetDefault("fishnet.threads", 1)
	v.SetDefault("fishnet.queue_size", 1024)
	v.SetDefault("fishnet.by", "local")
}
