// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Twitter TwitterConfig `mapstructure:"twitter"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs dispatcher and crawl pipeline behavior.
type CrawlerConfig struct {
	BatchLimit            int `mapstructure:"batch_limit"`
	DefaultLimit          int `mapstructure:"default_limit"`
	Workers               int `mapstructure:"workers"`
	QueueDepth            int `mapstructure:"queue_depth"`
	BackoffInitialSeconds int `mapstructure:"backoff_initial_seconds"`
	BackoffCeilingSeconds int `mapstructure:"backoff_ceiling_seconds"`
}

// TwitterConfig holds upstream endpoints and credentials. The four secret
// values come from the TWITTER_* environment variables, never from config
// files on disk.
type TwitterConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	StreamURL         string `mapstructure:"stream_url"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	APIKey            string `mapstructure:"api_key"`
	APIKeySecret      string `mapstructure:"api_key_secret"`
	AccessToken       string `mapstructure:"access_token"`
	AccessTokenSecret string `mapstructure:"access_token_secret"`
}

// DBConfig controls access to the relational database. An empty DSN
// selects the in-memory stores for local runs.
type DBConfig struct {
	DSN              string `mapstructure:"dsn"`
	MaxConns         int    `mapstructure:"max_conns"`
	MinConns         int    `mapstructure:"min_conns"`
	KeywordBatchSize int    `mapstructure:"keyword_batch_size"`
}

// PubSubConfig holds the broker resources. TaskTopic/TaskSubscription
// back the crawl task queue, PostTopic the downstream processing feed.
type PubSubConfig struct {
	ProjectID        string `mapstructure:"project_id"`
	TaskTopic        string `mapstructure:"task_topic"`
	TaskSubscription string `mapstructure:"task_subscription"`
	PostTopic        string `mapstructure:"post_topic"`
}

// StorageConfig sets the raw payload archive destination. An empty bucket
// disables archiving.
type StorageConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindSecrets(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.batch_limit", 10)
	v.SetDefault("crawler.default_limit", 10)
	v.SetDefault("crawler.workers", 4)
	v.SetDefault("crawler.queue_depth", 64)
	v.SetDefault("crawler.backoff_initial_seconds", 1)
	v.SetDefault("crawler.backoff_ceiling_seconds", 3600)
	v.SetDefault("twitter.base_url", "https://api.twitter.com/1.1")
	v.SetDefault("twitter.stream_url", "wss://stream.twitter.com/1.1/statuses/filter.json")
	v.SetDefault("twitter.timeout_seconds", 30)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.keyword_batch_size", 100)
	v.SetDefault("logging.development", true)
}

// bindSecrets maps the credential keys to their conventional unprefixed
// environment variables.
func bindSecrets(v *viper.Viper) {
	_ = v.BindEnv("twitter.api_key", "TWITTER_API_KEY")
	_ = v.BindEnv("twitter.api_key_secret", "TWITTER_API_KEY_SECRET")
	_ = v.BindEnv("twitter.access_token", "TWITTER_ACCESS_TOKEN")
	_ = v.BindEnv("twitter.access_token_secret", "TWITTER_ACCESS_TOKEN_SECRET")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Crawler.QueueDepth <= 0 {
		return fmt.Errorf("crawler.queue_depth must be > 0")
	}
	if c.Crawler.BackoffInitialSeconds <= 0 {
		return fmt.Errorf("crawler.backoff_initial_seconds must be > 0")
	}
	if c.Crawler.BackoffCeilingSeconds < c.Crawler.BackoffInitialSeconds {
		return fmt.Errorf("crawler.backoff_ceiling_seconds must be >= crawler.backoff_initial_seconds")
	}
	if c.Twitter.TimeoutSeconds <= 0 {
		return fmt.Errorf("twitter.timeout_seconds must be > 0")
	}
	return nil
}

// Timeout converts the upstream timeout into a duration.
func (c TwitterConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BackoffInitial converts the initial backoff into a duration.
func (c CrawlerConfig) BackoffInitial() time.Duration {
	return time.Duration(c.BackoffInitialSeconds) * time.Second
}

// BackoffCeiling converts the cumulative backoff budget into a duration.
func (c CrawlerConfig) BackoffCeiling() time.Duration {
	return time.Duration(c.BackoffCeilingSeconds) * time.Second
}
