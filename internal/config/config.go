package config

import "time"

// AppConfig holds application-level settings.
type AppConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // text, json or console
}

// RedditConfig points the transport at the upstream API.
type RedditConfig struct {
	BaseHost          string `mapstructure:"base_host"`
	ListingSuffix     string `mapstructure:"listing_suffix"`
	UserAgent         string `mapstructure:"user_agent"`
	Timeout           string `mapstructure:"timeout"` // duration string, e.g., "10s"
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
	Burst             int    `mapstructure:"burst"`
}

// ViewerConfig controls the interactive orchestrator.
type ViewerConfig struct {
	Debounce        string `mapstructure:"debounce"`         // e.g., "300ms"
	RefreshInterval string `mapstructure:"refresh_interval"` // "0" disables periodic refresh
}

// CacheConfig selects the session cache backend.
type CacheConfig struct {
	Backend string `mapstructure:"backend"` // memory or redis
	TTL     string `mapstructure:"ttl"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// OpenAIConfig enables thread summaries when APIKey is set.
type OpenAIConfig struct {
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	Model    string `mapstructure:"model"`
	Language string `mapstructure:"language"`
}

// RetryConfig is the caller-side backoff policy for one-shot commands.
type RetryConfig struct {
	MaxRetries      int    `mapstructure:"max_retries"`
	InitialInterval string `mapstructure:"initial_interval"`
	MaxInterval     string `mapstructure:"max_interval"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the endpoint
}

// Config is the top-level configuration structure.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Reddit  RedditConfig  `mapstructure:"reddit"`
	Viewer  ViewerConfig  `mapstructure:"viewer"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Redis   RedisConfig   `mapstructure:"redis"`
	OpenAI  OpenAIConfig  `mapstructure:"openai"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// FillDefaults applies default values if not provided.
func (c *Config) FillDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.LogFormat == "" {
		c.App.LogFormat = "text"
	}
	if c.Reddit.BaseHost == "" {
		c.Reddit.BaseHost = "https://www.reddit.com"
	}
	if c.Reddit.ListingSuffix == "" {
		c.Reddit.ListingSuffix = ".json"
	}
	if c.Reddit.UserAgent == "" {
		c.Reddit.UserAgent = "threadscope/0.1"
	}
	if c.Reddit.Timeout == "" {
		c.Reddit.Timeout = "10s"
	}
	if c.Reddit.RequestsPerMinute == 0 {
		c.Reddit.RequestsPerMinute = 60
	}
	if c.Reddit.Burst == 0 {
		c.Reddit.Burst = 5
	}
	if c.Viewer.Debounce == "" {
		c.Viewer.Debounce = "300ms"
	}
	if c.Viewer.RefreshInterval == "" {
		c.Viewer.RefreshInterval = "0"
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.TTL == "" {
		c.Cache.TTL = "1h"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.OpenAI.Language == "" {
		c.OpenAI.Language = "English"
	}
	if c.Retry.MaxRetries == 0 {
		c.Retry.MaxRetries = 3
	}
	if c.Retry.InitialInterval == "" {
		c.Retry.InitialInterval = "500ms"
	}
	if c.Retry.MaxInterval == "" {
		c.Retry.MaxInterval = "5s"
	}
}

// Duration parses a duration setting, returning def when s is empty or invalid.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
