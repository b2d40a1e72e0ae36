// Package config loads the daemon configuration from a YAML file with
// environment overrides for deploy-time secrets.
package config

import (
	"fmt"
	"os"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings such as
// "30s", "10m" or "1d".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := str2duration.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}

	*d = Duration(parsed)
	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Log        Log        `yaml:"log"`
	Telegram   Telegram   `yaml:"telegram"`
	Database   Database   `yaml:"database"`
	Feed       Feed       `yaml:"feed"`
	Monitor    Monitor    `yaml:"monitor"`
	Dispatcher Dispatcher `yaml:"dispatcher"`
}

type Log struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"` // "console" or "json"
	Colored bool   `yaml:"colored"`
}

type Telegram struct {
	Token string `yaml:"token"`
}

type Database struct {
	Path string `yaml:"path"`
}

type Feed struct {
	UseTestnet     bool     `yaml:"use_testnet"`
	BatchSize      int      `yaml:"batch_size"`
	BatchDelay     Duration `yaml:"batch_delay"`
	DeadTime       Duration `yaml:"dead_time"`
	ReconnectMin   Duration `yaml:"reconnect_min"`
	ReconnectMax   Duration `yaml:"reconnect_max"`
	MaxReconnects  int      `yaml:"max_reconnects"`
}

type Monitor struct {
	SyncInterval   Duration `yaml:"sync_interval"`
	HealthInterval Duration `yaml:"health_interval"`
	StatsInterval  Duration `yaml:"stats_interval"`
}

type Dispatcher struct {
	QueueSize  int      `yaml:"queue_size"`
	Workers    int      `yaml:"workers"`
	SendDelay  Duration `yaml:"send_delay"`
	DrainGrace Duration `yaml:"drain_grace"`
}

// Default returns the configuration the daemon runs with when no file is
// provided. Timings mirror the production deployment.
func Default() Config {
	return Config{
		Log: Log{
			Level:   "info",
			Format:  "console",
			Colored: true,
		},
		Database: Database{Path: "pricepulse.db"},
		Feed: Feed{
			BatchSize:     50,
			BatchDelay:    Duration(500 * time.Millisecond),
			DeadTime:      Duration(120 * time.Second),
			ReconnectMin:  Duration(5 * time.Second),
			ReconnectMax:  Duration(30 * time.Second),
			MaxReconnects: 100,
		},
		Monitor: Monitor{
			SyncInterval:   Duration(30 * time.Second),
			HealthInterval: Duration(10 * time.Second),
			StatsInterval:  Duration(5 * time.Minute),
		},
		Dispatcher: Dispatcher{
			QueueSize:  1024,
			Workers:    2,
			SendDelay:  Duration(100 * time.Millisecond),
			DrainGrace: Duration(5 * time.Second),
		},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// environment overrides and validates the result. An empty path loads
// defaults plus environment only.
func Load(path string) (Config, error) {
	cfg, err := LoadUnvalidated(path)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadUnvalidated reads the configuration without validating it. Auxiliary
// commands that only touch the database use it so they run without a bot
// token.
func LoadUnvalidated(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if token := os.Getenv("TELEGRAM_TOKEN"); token != "" {
		c.Telegram.Token = token
	}
	if path := os.Getenv("PRICEPULSE_DB"); path != "" {
		c.Database.Path = path
	}
	if level := os.Getenv("PRICEPULSE_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if os.Getenv("TESTNET") == "true" {
		c.Feed.UseTestnet = true
	}
}

// Validate rejects configurations the monitor cannot run with.
func (c Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if c.Feed.BatchSize <= 0 {
		return fmt.Errorf("feed batch_size must be positive")
	}
	if c.Feed.MaxReconnects <= 0 {
		return fmt.Errorf("feed max_reconnects must be positive")
	}
	if c.Feed.DeadTime.Std() <= 0 {
		return fmt.Errorf("feed dead_time must be positive")
	}
	if c.Dispatcher.QueueSize <= 0 {
		return fmt.Errorf("dispatcher queue_size must be positive")
	}
	if c.Dispatcher.Workers <= 0 {
		return fmt.Errorf("dispatcher workers must be positive")
	}
	if c.Monitor.SyncInterval.Std() <= 0 {
		return fmt.Errorf("monitor sync_interval must be positive")
	}
	return nil
}
