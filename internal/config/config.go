// Package config loads the application configuration from a YAML file and
// DOORSYNC_* environment variables, with sensible defaults for everything.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	// DBPath locates the SQLite database file.
	DBPath string `mapstructure:"db_path"`

	// Env is the runtime environment: "development" or "production".
	Env string `mapstructure:"env"`

	Log    LogConfig    `mapstructure:"log"`
	Remote RemoteConfig `mapstructure:"remote"`
	Sync   SyncConfig   `mapstructure:"sync"`
	Probe  ProbeConfig  `mapstructure:"probe"`
}

// LogConfig controls log output.  An empty File logs to stderr; otherwise
// logs go to the file with size-based rotation.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// RemoteConfig points at the remote system.
type RemoteConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
}

// SyncConfig schedules the synchronization job.  Mode "interval" runs every
// IntervalSeconds; mode "daily" runs once a day at DailyHour:DailyMinute.
type SyncConfig struct {
	Mode            string `mapstructure:"mode"`
	IntervalSeconds int    `mapstructure:"interval_seconds"`
	DailyHour       int    `mapstructure:"daily_hour"`
	DailyMinute     int    `mapstructure:"daily_minute"`
	MaxInFlight     int    `mapstructure:"max_in_flight"`
	RunOnInit       bool   `mapstructure:"run_on_init"`
}

// ProbeConfig schedules the connectivity probe.
type ProbeConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_path", "./data/doorsync.db")
	v.SetDefault("env", "development")

	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("remote.base_url", "http://localhost:8080")
	v.SetDefault("remote.timeout_seconds", 15)
	v.SetDefault("remote.max_retries", 3)

	v.SetDefault("sync.mode", "interval")
	v.SetDefault("sync.interval_seconds", 60)
	v.SetDefault("sync.daily_hour", 3)
	v.SetDefault("sync.daily_minute", 0)
	v.SetDefault("sync.max_in_flight", 4)
	v.SetDefault("sync.run_on_init", true)

	v.SetDefault("probe.interval_seconds", 30)
}

// Load reads the configuration.  When file is empty, well-known locations
// are searched and a missing file is not an error; defaults and environment
// variables still apply.
func Load(file string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DOORSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("doorsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/doorsync")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Sync.Mode {
	case "interval", "daily":
	default:
		return fmt.Errorf("invalid sync.mode %q: must be \"interval\" or \"daily\"", c.Sync.Mode)
	}
	if c.Sync.Mode == "interval" && c.Sync.IntervalSeconds <= 0 {
		return fmt.Errorf("invalid sync.interval_seconds %d: must be positive", c.Sync.IntervalSeconds)
	}
	if c.Sync.DailyHour < 0 || c.Sync.DailyHour > 23 {
		return fmt.Errorf("invalid sync.daily_hour %d", c.Sync.DailyHour)
	}
	if c.Sync.DailyMinute < 0 || c.Sync.DailyMinute > 59 {
		return fmt.Errorf("invalid sync.daily_minute %d", c.Sync.DailyMinute)
	}
	if c.Probe.IntervalSeconds <= 0 {
		return fmt.Errorf("invalid probe.interval_seconds %d: must be positive", c.Probe.IntervalSeconds)
	}
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url must be set")
	}
	return nil
}
