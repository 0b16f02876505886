// Package config loads application configuration from file and environment
// and wires the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Label   LabelConfig   `yaml:"label" mapstructure:"label"`
	Segment SegmentConfig `yaml:"segment" mapstructure:"segment"`
	Ingest  IngestConfig  `yaml:"ingest" mapstructure:"ingest"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Watch   WatchConfig   `yaml:"watch" mapstructure:"watch"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LabelConfig configures the proximity labeling pass.
type LabelConfig struct {
	ThresholdMeters float64 `yaml:"threshold_meters" mapstructure:"threshold_meters"`
	Workers         int     `yaml:"workers" mapstructure:"workers"`
	NearestMatch    bool    `yaml:"nearest_match" mapstructure:"nearest_match"`
}

// SegmentConfig configures vibration windowing.
type SegmentConfig struct {
	SampleIntervalSecs float64 `yaml:"sample_interval_secs" mapstructure:"sample_interval_secs"`
	WindowSecs         float64 `yaml:"window_secs" mapstructure:"window_secs"`
}

// IngestConfig maps logical dataset names to file paths. Paths given on the
// command line override these. Viper lower-cases map keys on unmarshal, so
// lookups must go through FeaturePath rather than indexing Features directly.
type IngestConfig struct {
	Features map[string]string `yaml:"features" mapstructure:"features"`
	Ride     map[string]string `yaml:"ride" mapstructure:"ride"`
}

// FeaturePath returns the configured CSV path for a feature category name,
// or "" when none is set. Matching is case-insensitive.
func (c IngestConfig) FeaturePath(category string) string {
	return c.Features[strings.ToLower(category)]
}

// ServerConfig configures the viewer server.
type ServerConfig struct {
	Port         int     `yaml:"port" mapstructure:"port"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// WatchConfig configures the inbox watcher.
type WatchConfig struct {
	Inbox string `yaml:"inbox" mapstructure:"inbox"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RAILSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "railscan.db")
	v.SetDefault("label.threshold_meters", 15.0)
	v.SetDefault("label.workers", 4)
	v.SetDefault("label.nearest_match", false)
	v.SetDefault("segment.sample_interval_secs", 0.002)
	v.SetDefault("segment.window_secs", 10.0)
	v.SetDefault("server.port", 8060)
	v.SetDefault("server.rate_limit_rps", 20.0)
	v.SetDefault("watch.inbox", "inbox")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
