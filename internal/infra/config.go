package infra

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"quote_notifier/internal/domain"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultUserAgent identifies the bot against the quote provider
	DefaultUserAgent = "quote-notifier/1.0"

	defaultQuoteURL = "https://economia.awesomeapi.com.br/json/last/"
)

// Config holds all application settings.
// Secrets loaded from the YAML file are overridden by environment variables.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Telegram struct {
		Token       string `yaml:"token"`
		Debug       bool   `yaml:"debug"`
		PollTimeout int    `yaml:"poll_timeout_sec"`
		Workers     int    `yaml:"workers"`
	} `yaml:"telegram"`

	AwesomeAPI struct {
		URL           string `yaml:"url"`
		Token         string `yaml:"token"`
		TimeoutSec    int    `yaml:"timeout_sec"`
		MaxRetries    int    `yaml:"max_retries"`
		RetryDelaySec int    `yaml:"retry_delay_sec"`
		CacheTTLSec   int    `yaml:"cache_ttl_sec"`
	} `yaml:"awesomeapi"`

	Scheduler struct {
		TickSec          int `yaml:"tick_sec"`
		Concurrency      int `yaml:"concurrency"`
		ShutdownGraceSec int `yaml:"shutdown_grace_sec"`
	} `yaml:"scheduler"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	return ParseConfig(data)
}

// ParseConfig parses YAML bytes, applies env overrides and defaults, then validates.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "quote-notifier"
	}
	if c.Telegram.PollTimeout <= 0 {
		c.Telegram.PollTimeout = 60
	}
	if c.Telegram.Workers <= 0 {
		c.Telegram.Workers = 16
	}
	if c.AwesomeAPI.URL == "" {
		c.AwesomeAPI.URL = defaultQuoteURL
	}
	if c.AwesomeAPI.TimeoutSec <= 0 {
		c.AwesomeAPI.TimeoutSec = 120
	}
	if c.AwesomeAPI.MaxRetries <= 0 {
		c.AwesomeAPI.MaxRetries = 3
	}
	if c.AwesomeAPI.RetryDelaySec <= 0 {
		c.AwesomeAPI.RetryDelaySec = 10
	}
	if c.AwesomeAPI.CacheTTLSec <= 0 {
		c.AwesomeAPI.CacheTTLSec = 300
	}
	if c.Scheduler.TickSec <= 0 {
		c.Scheduler.TickSec = 30
	}
	if c.Scheduler.Concurrency <= 0 {
		c.Scheduler.Concurrency = 8
	}
	if c.Scheduler.ShutdownGraceSec <= 0 {
		c.Scheduler.ShutdownGraceSec = 5
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data/quote_notifier.db"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return &domain.ConfigError{Field: "telegram.token", Err: errors.New("bot token is required")}
	}

	u, err := url.Parse(c.AwesomeAPI.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &domain.ConfigError{Field: "awesomeapi.url", Err: fmt.Errorf("invalid URL: %q", c.AwesomeAPI.URL)}
	}

	if c.Scheduler.TickSec > 60 {
		return &domain.ConfigError{Field: "scheduler.tick_sec", Err: errors.New("tick must not exceed one minute")}
	}

	return nil
}

// Durations derived from the integer settings.

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Scheduler.TickSec) * time.Second
}

func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Scheduler.ShutdownGraceSec) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.AwesomeAPI.CacheTTLSec) * time.Second
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.AwesomeAPI.RetryDelaySec) * time.Second
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.AwesomeAPI.TimeoutSec) * time.Second
}

// overrideWithEnv overwrites settings when the environment provides them.
func overrideWithEnv(cfg *Config) {
	if token := os.Getenv("QUOTEBOT_TELEGRAM_TOKEN"); token != "" {
		cfg.Telegram.Token = token
	}
	if token := os.Getenv("QUOTEBOT_AWESOMEAPI_TOKEN"); token != "" {
		cfg.AwesomeAPI.Token = token
	}
	if u := os.Getenv("QUOTEBOT_AWESOMEAPI_URL"); u != "" {
		cfg.AwesomeAPI.URL = u
	}
	if path := os.Getenv("QUOTEBOT_DB_PATH"); path != "" {
		cfg.Storage.Path = path
	}
	if level := os.Getenv("QUOTEBOT_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
