// Package config loads and validates mirror configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Team        string            `mapstructure:"team"`
	Snapshot    SnapshotConfig    `mapstructure:"snapshot"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Fetch       FetchConfig       `mapstructure:"fetch"`
	Search      SearchConfig      `mapstructure:"search"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	Serve       ServeConfig       `mapstructure:"serve"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig points at the remote note service.
type ServerConfig struct {
	URL string `mapstructure:"url"`
}

// SnapshotConfig controls where and how the snapshot is persisted.
type SnapshotConfig struct {
	Path     string `mapstructure:"path"`
	Update   bool   `mapstructure:"update"`
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
}

// HTTPConfig configures session client timeout and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// FetchConfig governs the bounded content fetcher.
type FetchConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// SearchConfig points at the optional Meilisearch sink.
type SearchConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
	Index  string `mapstructure:"index"`
}

// NotifyConfig holds metadata for completion notifications.
type NotifyConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// ServeConfig controls the snapshot HTTP server.
type ServeConfig struct {
	Port int `mapstructure:"port"`
}

// CredentialsConfig selects how login credentials are acquired.
type CredentialsConfig struct {
	Provider string `mapstructure:"provider"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MDMIRROR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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
	v.SetDefault("server.url", "https://hackmd.io")
	v.SetDefault("snapshot.path", "hackmd.json")
	v.SetDefault("snapshot.provider", "file")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("fetch.concurrency", 5)
	v.SetDefault("search.index", "pages")
	v.SetDefault("search.api_key", "masterKey")
	v.SetDefault("notify.provider", "noop")
	v.SetDefault("serve.port", 8080)
	v.SetDefault("credentials.provider", "terminal")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits. Mode-specific
// requirements (team name in build mode) are checked by the pipeline,
// not here, because load mode does not need them.
func (c Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url must be set")
	}
	if c.Fetch.Concurrency <= 0 {
		return fmt.Errorf("fetch.concurrency must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	switch c.Snapshot.Provider {
	case "file", "":
	case "postgres":
		if c.Snapshot.DSN == "" {
			return fmt.Errorf("snapshot.dsn must be set when snapshot.provider is postgres")
		}
	default:
		return fmt.Errorf("unknown snapshot provider: %s", c.Snapshot.Provider)
	}
	switch c.Notify.Provider {
	case "noop":
	case "pubsub":
		if c.Notify.ProjectID == "" || c.Notify.TopicID == "" {
			return fmt.Errorf("notify.project_id and notify.topic_id must be set when notify.provider is pubsub")
		}
	default:
		return fmt.Errorf("unknown notify provider: %s", c.Notify.Provider)
	}
	switch c.Credentials.Provider {
	case "terminal", "env":
	default:
		return fmt.Errorf("unknown credentials provider: %s", c.Credentials.Provider)
	}
	if c.Serve.Port <= 0 {
		return fmt.Errorf("serve.port must be > 0")
	}
	return nil
}

// Timeout converts the HTTP timeout config into a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BackoffInitial returns the first retry delay.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond
}

// BackoffMax returns the retry delay ceiling.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}
