package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	HTTPHost            string `envconfig:"HTTP_HOST" default:"0.0.0.0"`
	HTTPPort            int    `envconfig:"HTTP_PORT" default:"8080"`
	HTTPReadTimeoutSec  int    `envconfig:"HTTP_READ_TIMEOUT_SEC" default:"15"`
	HTTPWriteTimeoutSec int    `envconfig:"HTTP_WRITE_TIMEOUT_SEC" default:"30"`

	NewsAPIKey     string `envconfig:"NEWSAPI_KEY" default:""`
	NewsAPIBaseURL string `envconfig:"NEWSAPI_BASE_URL" default:"https://newsapi.org/v2"`
	GNewsAPIKey    string `envconfig:"GNEWS_KEY" default:""`
	GNewsBaseURL   string `envconfig:"GNEWS_BASE_URL" default:"https://gnews.io/api/v4"`
	RSSFeedsPath   string `envconfig:"RSS_FEEDS_PATH" default:""`

	NewsAPIDailyLimit int `envconfig:"NEWSAPI_DAILY_LIMIT" default:"1000"`
	GNewsDailyLimit   int `envconfig:"GNEWS_DAILY_LIMIT" default:"100"`

	AdapterTimeoutSec  int `envconfig:"ADAPTER_TIMEOUT_SEC" default:"8"`
	MinArticlesPerPair int `envconfig:"MIN_ARTICLES_PER_PAIR" default:"15"`
	MaxWindowHours     int `envconfig:"MAX_WINDOW_HOURS" default:"720"`

	CacheMaxEntries int    `envconfig:"CACHE_MAX_ENTRIES" default:"500"`
	RedisURL        string `envconfig:"REDIS_URL" default:""`

	KeywordTablesPath string `envconfig:"KEYWORD_TABLES_PATH" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT must be in [1, 65535]")
	}
	if c.AdapterTimeoutSec < 1 {
		return fmt.Errorf("ADAPTER_TIMEOUT_SEC must be >= 1")
	}
	if c.MinArticlesPerPair < 0 {
		return fmt.Errorf("MIN_ARTICLES_PER_PAIR must be >= 0")
	}
	if c.MaxWindowHours < 1 {
		return fmt.Errorf("MAX_WINDOW_HOURS must be >= 1")
	}
	if c.CacheMaxEntries < 1 {
		return fmt.Errorf("CACHE_MAX_ENTRIES must be >= 1")
	}
	if c.NewsAPIDailyLimit < 0 || c.GNewsDailyLimit < 0 {
		return fmt.Errorf("provider daily limits must be >= 0")
	}
	if strings.TrimSpace(c.NewsAPIBaseURL) == "" {
		return fmt.Errorf("NEWSAPI_BASE_URL is required")
	}
	if strings.TrimSpace(c.GNewsBaseURL) == "" {
		return fmt.Errorf("GNEWS_BASE_URL is required")
	}
	return nil
}
