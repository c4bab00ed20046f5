// Package config loads and hot-merges the core's tunable configuration,
// backed by viper the way a typical cobra/viper CLI layer configures itself.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

// Config is every tunable the core exposes, bound to a viper instance so
// it can come from environment variables, a file, or defaults in that
// order of precedence.
type Config struct {
	WindowSeconds     int     `mapstructure:"window_seconds"`
	EntropyDelta      float64 `mapstructure:"entropy_delta"`
	VaultPath         string  `mapstructure:"vault_path"`
	EventLogPath      string  `mapstructure:"event_log_path"`
	EntropyBaselinePath string `mapstructure:"entropy_baseline_path"`
	RetentionHours    int     `mapstructure:"retention_hours"`
	SafeMode          bool    `mapstructure:"safe_mode"`
	TuningPath        string  `mapstructure:"tuning_path"`
	AlertWebhookURL   string  `mapstructure:"alert_webhook_url"`
	IncidentOutputDir string  `mapstructure:"incident_output_dir"`
	DashboardHost     string  `mapstructure:"dashboard_host"`
	DashboardPort     int     `mapstructure:"dashboard_port"`
	LogLevel          string  `mapstructure:"log_level"`
	MonitorOnly       bool    `mapstructure:"monitor_only"`
	DashboardOnly     bool    `mapstructure:"dashboard_only"`
	WatchPaths        []string `mapstructure:"watch_paths"`
}

// Window returns WindowSeconds as a time.Duration.
func (c Config) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

func defaults(v *viper.Viper) {
	v.SetDefault("window_seconds", 10)
	v.SetDefault("entropy_delta", 2.0)
	v.SetDefault("vault_path", "./data/vault")
	v.SetDefault("event_log_path", "./data/events.db")
	v.SetDefault("entropy_baseline_path", "./data/entropy.db")
	v.SetDefault("retention_hours", 48)
	v.SetDefault("safe_mode", true)
	v.SetDefault("tuning_path", "")
	v.SetDefault("alert_webhook_url", "")
	v.SetDefault("incident_output_dir", "./data/incidents")
	v.SetDefault("dashboard_host", "127.0.0.1")
	v.SetDefault("dashboard_port", 8787)
	v.SetDefault("log_level", "info")
	v.SetDefault("monitor_only", false)
	v.SetDefault("dashboard_only", false)
	v.SetDefault("watch_paths", []string{})
}

// Load reads configuration from path (if non-empty), overlaid with
// RANSOMGUARD_-prefixed environment variables, overlaid on defaults. A
// missing configPath is not an error; defaults and environment apply.
func Load(configPath string) (Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("ransomguard")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			_, notFound := err.(viper.ConfigFileNotFoundError)
			if !notFound && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("read config %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
