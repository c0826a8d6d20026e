package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up when no config path is given.
const DefaultFileName = "alertgraph.yml"

// Config is the root configuration.
type Config struct {
	AlertGraph AlertGraphConfig `yaml:"alertgraph"`
}

// AlertGraphConfig is the project configuration.
type AlertGraphConfig struct {
	Source   SourceConfig   `yaml:"source"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Server   ServerConfig   `yaml:"server"`
	Rules    RulesConfig    `yaml:"rules"`
	Redis    RedisConfig    `yaml:"redis"`
	Trigger  TriggerConfig  `yaml:"trigger"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SourceConfig points at the alert log.
type SourceConfig struct {
	Path      string `yaml:"path"`
	TailLines int    `yaml:"tail_lines"`
}

// AnalysisConfig tunes the analysis run.
type AnalysisConfig struct {
	Window      time.Duration `yaml:"window"`
	RecentLimit int           `yaml:"recent_limit"`
	TimelineGap time.Duration `yaml:"timeline_gap"`
	TimelineMax int           `yaml:"timeline_max"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`
}

// RulesConfig controls Sigma tagging of alerts.
type RulesConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// RedisConfig controls the Redis result mirror.
type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// TriggerConfig controls re-analysis requests read from a Redis list.
type TriggerConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Key          string        `yaml:"key"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
}

// WebhookConfig controls anomaly notifications.
type WebhookConfig struct {
	Enabled  bool              `yaml:"enabled"`
	URL      string            `yaml:"url"`
	Timeout  time.Duration     `yaml:"timeout"`
	Headers  map[string]string `yaml:"headers"`
	MinScore float64           `yaml:"min_score"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOrDefault loads path, falling back to an empty config when the file
// does not exist. Defaults are applied either way.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = &Config{}, nil
		cfg.AlertGraph.Logging.Enabled = true
		cfg.AlertGraph.Logging.Console = true
	}
	if err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// FindConfigFile resolves the config path: the explicit argument, then the
// working directory, then the executable's directory.
func FindConfigFile(configArg string) string {
	if configArg != "" {
		if _, err := os.Stat(configArg); err == nil {
			return configArg
		}
	}

	if _, err := os.Stat(DefaultFileName); err == nil {
		return DefaultFileName
	}

	exePath, err := os.Executable()
	if err == nil {
		path := filepath.Join(filepath.Dir(exePath), DefaultFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	if configArg != "" {
		return configArg
	}
	return DefaultFileName
}

// ApplyDefaults fills zero values.
func ApplyDefaults(cfg *Config) {
	c := &cfg.AlertGraph

	if c.Source.Path == "" {
		c.Source.Path = "logs/fast.log"
	}

	if c.Analysis.Window <= 0 {
		c.Analysis.Window = 24 * time.Hour
	}
	if c.Analysis.RecentLimit <= 0 {
		c.Analysis.RecentLimit = 100
	}
	if c.Analysis.TimelineGap <= 0 {
		c.Analysis.TimelineGap = 60 * time.Second
	}
	if c.Analysis.TimelineMax <= 0 {
		c.Analysis.TimelineMax = 200
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Server.BroadcastInterval <= 0 {
		c.Server.BroadcastInterval = 30 * time.Second
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "alertgraph"
	}

	if c.Trigger.Key == "" {
		c.Trigger.Key = "alertgraph:reload"
	}
	if c.Trigger.BlockTimeout <= 0 {
		c.Trigger.BlockTimeout = 5 * time.Second
	}

	if c.Webhook.Timeout <= 0 {
		c.Webhook.Timeout = 5 * time.Second
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
