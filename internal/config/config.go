package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv    = "ZEN_WATCHER_CONFIG"
	telegramTokenEnv = "TELEGRAM_BOT_TOKEN"
	feedURLEnv       = "ZEN_FEED_URL"
	databasePathEnv  = "ZEN_DB_PATH"
	adminAddressEnv  = "ZEN_ADMIN_ADDR"
)

// Config holds high-level settings required across the application.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Feed     FeedConfig     `yaml:"feed"`
	Admin    AdminConfig    `yaml:"admin"`
	Database DatabaseConfig `yaml:"database"`
	Watcher  WatcherConfig  `yaml:"watcher"`
	Tester   TesterConfig   `yaml:"tester"`
	Channels ChannelConfig  `yaml:"channels"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// TelegramConfig wires the bot token and long-poll pacing.
type TelegramConfig struct {
	BotToken           string `yaml:"botToken"`
	PollTimeoutSeconds int    `yaml:"pollTimeoutSeconds"`
}

// FeedConfig describes the channel-listing API.
type FeedConfig struct {
	BaseURL string `yaml:"baseUrl"`
}

// AdminConfig describes the local shutdown listener.
type AdminConfig struct {
	Address string `yaml:"address"`
}

// DatabaseConfig describes the SQLite file location. The path given on the
// command line takes precedence.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// WatcherConfig paces discovery sweeps.
type WatcherConfig struct {
	IntervalMs int `yaml:"intervalMs"`
}

// TesterConfig paces probation checks and sets the probation window length.
type TesterConfig struct {
	IntervalMs     int `yaml:"intervalMs"`
	ProbationWeeks int `yaml:"probationWeeks"`
}

// ChannelConfig holds the consecutive-failure threshold beyond which a
// channel is considered permanently dead.
type ChannelConfig struct {
	DeadThreshold int `yaml:"deadThreshold"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// WatcherInterval returns the delay between discovery cycles.
func (c Config) WatcherInterval() time.Duration {
	return time.Duration(c.Watcher.IntervalMs) * time.Millisecond
}

// TesterInterval returns the delay between article checks.
func (c Config) TesterInterval() time.Duration {
	return time.Duration(c.Tester.IntervalMs) * time.Millisecond
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Telegram.BotToken = v
	}

	if v := os.Getenv(feedURLEnv); v != "" {
		c.Feed.BaseURL = v
	}

	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv(adminAddressEnv); v != "" {
		c.Admin.Address = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Telegram.BotToken != "" {
		base.Telegram.BotToken = override.Telegram.BotToken
	}
	if override.Telegram.PollTimeoutSeconds > 0 {
		base.Telegram.PollTimeoutSeconds = override.Telegram.PollTimeoutSeconds
	}

	if override.Feed.BaseURL != "" {
		base.Feed.BaseURL = override.Feed.BaseURL
	}

	if override.Admin.Address != "" {
		base.Admin.Address = override.Admin.Address
	}

	if override.Database.Path != "" {
		base.Database.Path = override.Database.Path
	}

	if override.Watcher.IntervalMs > 0 {
		base.Watcher.IntervalMs = override.Watcher.IntervalMs
	}

	if override.Tester.IntervalMs > 0 {
		base.Tester.IntervalMs = override.Tester.IntervalMs
	}
	if override.Tester.ProbationWeeks > 0 {
		base.Tester.ProbationWeeks = override.Tester.ProbationWeeks
	}

	if override.Channels.DeadThreshold > 0 {
		base.Channels.DeadThreshold = override.Channels.DeadThreshold
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Telegram: TelegramConfig{PollTimeoutSeconds: 5},
		Feed:     FeedConfig{BaseURL: "https://zen.yandex.ru/api/v3/launcher/more"},
		Admin:    AdminConfig{Address: "127.0.0.1:2323"},
		Database: DatabaseConfig{Path: "zenwatcher.db"},
		Watcher:  WatcherConfig{IntervalMs: 10000},
		Tester:   TesterConfig{IntervalMs: 2500, ProbationWeeks: 3},
		Channels: ChannelConfig{DeadThreshold: 5},
		Logging:  LoggingConfig{Level: "info"},
	}
}
