// Package config handles configuration loading for tickersent.
// It supports YAML config files with .env and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "TICKERSENT"

// Config represents the complete application configuration.
type Config struct {
	Data      DataConfig      `mapstructure:"data"      yaml:"data"`
	Store     StoreConfig     `mapstructure:"store"     yaml:"store"`
	Provider  ProviderConfig  `mapstructure:"provider"  yaml:"provider"`
	News      NewsConfig      `mapstructure:"news"      yaml:"news"`
	Prices    PricesConfig    `mapstructure:"prices"    yaml:"prices"`
	Fetch     FetchConfig     `mapstructure:"fetch"     yaml:"fetch"`
	Sentiment SentimentConfig `mapstructure:"sentiment" yaml:"sentiment"`
	Aggregate AggregateConfig `mapstructure:"aggregate" yaml:"aggregate"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"  yaml:"schedule"`
	API       APIConfig       `mapstructure:"api"       yaml:"api"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
}

// DataConfig holds the data directory and the table file names inside it.
type DataConfig struct {
	Dir           string `mapstructure:"dir"            yaml:"dir"`
	RawNewsFile   string `mapstructure:"raw_news_file"  yaml:"raw_news_file"`  // split remote batch, for audit
	NewsFile      string `mapstructure:"news_file"      yaml:"news_file"`      // scored news table (csv backend)
	AggregateFile string `mapstructure:"aggregate_file" yaml:"aggregate_file"` // per-ticker mean
	PriceFile     string `mapstructure:"price_file"     yaml:"price_file"`
	StateFile     string `mapstructure:"state_file"     yaml:"state_file"`
}

// Path joins name onto the data directory.
func (d DataConfig) Path(name string) string {
	return filepath.Join(d.Dir, name)
}

// StoreConfig selects the NewsStore backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // "csv", "sqlite", "postgres"
	DSN     string `mapstructure:"dsn"     yaml:"dsn"`     // sqlite path or postgres connection string
}

// ProviderConfig holds credentials and HTTP identity for the data provider.
type ProviderConfig struct {
	AuthToken string `mapstructure:"auth_token" yaml:"auth_token"`
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
	Timezone  string `mapstructure:"timezone"   yaml:"timezone"` // zone of provider timestamps
}

// NewsConfig selects and configures the remote news source.
type NewsConfig struct {
	Source         string   `mapstructure:"source"           yaml:"source"` // "csv" or "rss"
	ExportURL      string   `mapstructure:"export_url"       yaml:"export_url"`
	RSSURLTemplate string   `mapstructure:"rss_url_template" yaml:"rss_url_template"` // {ticker} placeholder
	Tickers        []string `mapstructure:"tickers"          yaml:"tickers"`          // rss universe
}

// PricesConfig configures the per-ticker price export.
type PricesConfig struct {
	ExportURLTemplate string        `mapstructure:"export_url_template" yaml:"export_url_template"` // {ticker} placeholder
	RequestInterval   time.Duration `mapstructure:"request_interval"    yaml:"request_interval"`
}

// FetchConfig holds article fetch retry and rate-limit settings.
type FetchConfig struct {
	Attempts        int           `mapstructure:"attempts"         yaml:"attempts"`
	BaseDelay       time.Duration `mapstructure:"base_delay"       yaml:"base_delay"`
	RateLimitDelay  time.Duration `mapstructure:"rate_limit_delay" yaml:"rate_limit_delay"`
	Timeout         time.Duration `mapstructure:"timeout"          yaml:"timeout"`
	RequestInterval time.Duration `mapstructure:"request_interval" yaml:"request_interval"`
	Workers         int           `mapstructure:"workers"          yaml:"workers"`
	Extractor       string        `mapstructure:"extractor"        yaml:"extractor"` // "paragraphs" or "readability"
	SecondPass      bool          `mapstructure:"second_pass"      yaml:"second_pass"`
}

// SentimentConfig holds the title/content blend weights.
type SentimentConfig struct {
	TitleWeight   float64 `mapstructure:"title_weight"   yaml:"title_weight"`
	ContentWeight float64 `mapstructure:"content_weight" yaml:"content_weight"`
}

// AggregateConfig holds aggregate publication settings.
type AggregateConfig struct {
	Incremental bool `mapstructure:"incremental" yaml:"incremental"`
	TopN        int  `mapstructure:"top_n"       yaml:"top_n"`
}

// ScheduleConfig holds the background update loop settings.
type ScheduleConfig struct {
	Times    []string      `mapstructure:"times"    yaml:"times"` // "HH:MM", local time
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
	File   string `mapstructure:"file"   yaml:"file"`   // optional, tee'd with stderr
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.tickersent/config.yaml (home directory)
//  3. /etc/tickersent/config.yaml (system)
//
// A .env file in the working directory is loaded first. Environment
// variables override config file values.
// Format: TICKERSENT_<SECTION>_<KEY>, e.g., TICKERSENT_FETCH_ATTEMPTS
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".tickersent"))
	v.AddConfigPath("/etc/tickersent")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set are not overwritten; a missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error reading %s: %w", path, err)
	}
	return nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Data files
	v.SetDefault("data.dir", ".")
	v.SetDefault("data.raw_news_file", "news.csv")
	v.SetDefault("data.news_file", "news_with_sentiment.csv")
	v.SetDefault("data.aggregate_file", "average_sentiment_per_ticker.csv")
	v.SetDefault("data.price_file", "export.csv")
	v.SetDefault("data.state_file", "sync_state.yaml")

	// Store
	v.SetDefault("store.backend", "csv")
	v.SetDefault("store.dsn", "")

	// Provider
	v.SetDefault("provider.auth_token", "")
	v.SetDefault("provider.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	v.SetDefault("provider.timezone", "America/New_York")

	// News source
	v.SetDefault("news.source", "csv")
	v.SetDefault("news.export_url", "https://elite.finviz.com/news_export.ashx?v=3")
	v.SetDefault("news.rss_url_template", "https://feeds.finance.yahoo.com/rss/2.0/headline?s={ticker}&region=US&lang=en-US")
	v.SetDefault("news.tickers", []string{})

	// Prices
	v.SetDefault("prices.export_url_template", "https://elite.finviz.com/export.ashx?t={ticker}")
	v.SetDefault("prices.request_interval", time.Second)

	// Article fetching (conservative: one request per second)
	v.SetDefault("fetch.attempts", 3)
	v.SetDefault("fetch.base_delay", time.Second)
	v.SetDefault("fetch.rate_limit_delay", time.Second)
	v.SetDefault("fetch.timeout", 10*time.Second)
	v.SetDefault("fetch.request_interval", time.Second)
	v.SetDefault("fetch.workers", 1)
	v.SetDefault("fetch.extractor", "paragraphs")
	v.SetDefault("fetch.second_pass", true)

	// Sentiment blend
	v.SetDefault("sentiment.title_weight", 0.3)
	v.SetDefault("sentiment.content_weight", 0.7)

	// Aggregate
	v.SetDefault("aggregate.incremental", false)
	v.SetDefault("aggregate.top_n", 10)

	// Schedule
	v.SetDefault("schedule.times", []string{"04:00", "07:00", "09:00"})
	v.SetDefault("schedule.interval", time.Duration(0))

	// API defaults
	v.SetDefault("api.host", "127.0.0.1")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if token := os.Getenv("TICKERSENT_PROVIDER_AUTH_TOKEN"); token != "" {
		cfg.Provider.AuthToken = token
	}
	if dsn := os.Getenv("TICKERSENT_STORE_DSN"); dsn != "" {
		cfg.Store.DSN = dsn
	}
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "csv":
	case "sqlite", "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for backend %q", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}

	switch c.News.Source {
	case "csv":
		if c.News.ExportURL == "" {
			return fmt.Errorf("news.export_url is required for source %q", c.News.Source)
		}
	case "rss":
		if !strings.Contains(c.News.RSSURLTemplate, "{ticker}") {
			return fmt.Errorf("news.rss_url_template must contain {ticker}")
		}
	default:
		return fmt.Errorf("unknown news.source %q", c.News.Source)
	}

	switch c.Fetch.Extractor {
	case "paragraphs", "readability":
	default:
		return fmt.Errorf("unknown fetch.extractor %q", c.Fetch.Extractor)
	}
	if c.Fetch.Attempts < 1 {
		return fmt.Errorf("fetch.attempts must be at least 1, got %d", c.Fetch.Attempts)
	}
	if c.Fetch.Workers < 1 {
		return fmt.Errorf("fetch.workers must be at least 1, got %d", c.Fetch.Workers)
	}

	if c.Sentiment.TitleWeight < 0 || c.Sentiment.ContentWeight < 0 {
		return fmt.Errorf("sentiment weights must be non-negative")
	}
	if sum := c.Sentiment.TitleWeight + c.Sentiment.ContentWeight; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("sentiment weights must sum to 1, got %.3f", sum)
	}

	for _, s := range c.Schedule.Times {
		if _, err := time.Parse("15:04", s); err != nil {
			return fmt.Errorf("invalid schedule time %q: want HH:MM", s)
		}
	}
	if c.Schedule.Interval < 0 {
		return fmt.Errorf("schedule.interval must not be negative")
	}

	if _, err := time.LoadLocation(c.Provider.Timezone); err != nil && c.Provider.Timezone != "" {
		return fmt.Errorf("invalid provider.timezone %q: %w", c.Provider.Timezone, err)
	}
	return nil
}

// Location returns the provider's time zone, or UTC when none is configured.
func (c *Config) Location() *time.Location {
	if c.Provider.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Provider.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
