package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/elonfeng/aqiwatch/internal/store"
)

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Cache     CacheConfig     `yaml:"cache"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Sources   SourcesConfig   `yaml:"sources"`
	Locations LocationsConfig `yaml:"locations"`
	Watch     []WatchItem     `yaml:"watch"`
	Trend     TrendConfig     `yaml:"trend"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Server    ServerConfig    `yaml:"server"`
	Filter    FilterConfig    `yaml:"filter"`
}

// DatabaseConfig selects SQLite (path) or PostgreSQL (url).
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	URL    string `yaml:"url"`
}

// DSN returns the connection string for the configured driver.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" && store.NormalizeDriver(d.Driver) != store.DriverSQLite {
		return d.URL
	}
	return d.Path
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// ParseLevel returns the slog level, defaulting to info.
func (l LogConfig) ParseLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// CacheConfig configures the reading cache.
type CacheConfig struct {
	Backend    string      `yaml:"backend"` // "memory", "redis" or "none"
	TTL        string      `yaml:"ttl"`
	MaxEntries int         `yaml:"max_entries"` // memory backend only
	Redis      RedisConfig `yaml:"redis"`
}

// Size returns the memory cache capacity, defaulting to 1024 entries.
func (c CacheConfig) Size() int {
	if c.MaxEntries <= 0 {
		return 1024
	}
	return c.MaxEntries
}

// ParseTTL returns the cache TTL as time.Duration.
func (c CacheConfig) ParseTTL() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// RedisConfig for the Redis cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ScheduleConfig configures collection intervals.
type ScheduleConfig struct {
	CollectInterval  string `yaml:"collect_interval"`
	AdvisoryInterval string `yaml:"advisory_interval"`
}

// ParseCollectInterval returns the collect interval as time.Duration.
func (s ScheduleConfig) ParseCollectInterval() time.Duration {
	d, err := time.ParseDuration(s.CollectInterval)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// ParseAdvisoryInterval returns the advisory refresh interval as time.Duration.
func (s ScheduleConfig) ParseAdvisoryInterval() time.Duration {
	d, err := time.ParseDuration(s.AdvisoryInterval)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// SourcesConfig holds configuration for all data providers.
type SourcesConfig struct {
	IQAir       APIConfig        `yaml:"iqair"`
	OpenWeather APIConfig        `yaml:"openweather"`
	WAQI        APIConfig        `yaml:"waqi"`
	Advisories  AdvisoriesConfig `yaml:"advisories"`
}

// APIConfig for a keyed HTTP provider.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// Usable reports whether the provider is enabled and has a key.
func (a APIConfig) Usable() bool {
	return a.Enabled && a.APIKey != ""
}

// AdvisoriesConfig for the RSS advisory collector.
type AdvisoriesConfig struct {
	Enabled bool       `yaml:"enabled"`
	MaxAge  string     `yaml:"max_age"`
	Feeds   []FeedItem `yaml:"feeds"`
}

// ParseMaxAge returns the advisory age cut-off.
func (a AdvisoriesConfig) ParseMaxAge() time.Duration {
	d, err := time.ParseDuration(a.MaxAge)
	if err != nil || d <= 0 {
		return 7 * 24 * time.Hour
	}
	return d
}

// FeedItem is a single RSS feed entry.
type FeedItem struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// LocationsConfig configures the city directory.
type LocationsConfig struct {
	File       string `yaml:"file"`        // optional CSV overriding the embedded cities
	ZipCountry string `yaml:"zip_country"` // ISO code for zip lookups
}

// WatchItem is a city collected on every schedule tick.
type WatchItem struct {
	State string `yaml:"state"`
	City  string `yaml:"city"`
}

// TrendConfig configures AQI trend detection.
type TrendConfig struct {
	Window          string  `yaml:"window"`
	SteadyThreshold float64 `yaml:"steady_threshold"` // AQI per hour
}

// ParseWindow returns the trend window as time.Duration.
func (t TrendConfig) ParseWindow() time.Duration {
	d, err := time.ParseDuration(t.Window)
	if err != nil || d <= 0 {
		return 6 * time.Hour
	}
	return d
}

// AlertsConfig configures alert destinations.
type AlertsConfig struct {
	MinRiskScore int           `yaml:"min_risk_score"`
	Slack        SlackConfig   `yaml:"slack"`
	Discord      DiscordConfig `yaml:"discord"`
	Webhook      WebhookConfig `yaml:"webhook"`
	Kafka        KafkaConfig   `yaml:"kafka"`
	MQTT         MQTTConfig    `yaml:"mqtt"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// KafkaConfig for publishing alerts to a Kafka topic.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// MQTTConfig for publishing alerts to an MQTT broker.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// FilterConfig configures advisory keyword filtering.
type FilterConfig struct {
	ExtraKeywords   []string `yaml:"extra_keywords"`
	ExcludeKeywords []string `yaml:"exclude_keywords"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: "sqlite", Path: "./aqiwatch.db"},
		Log:      LogConfig{Level: "info", Format: "text"},
		Cache:    CacheConfig{Backend: "memory", TTL: "10m", MaxEntries: 1024},
		Schedule: ScheduleConfig{
			CollectInterval:  "30m",
			AdvisoryInterval: "1h",
		},
		Sources: SourcesConfig{
			IQAir:       APIConfig{Enabled: true},
			OpenWeather: APIConfig{Enabled: true},
			WAQI:        APIConfig{Enabled: true},
			Advisories: AdvisoriesConfig{
				Enabled: true,
				MaxAge:  "168h",
				Feeds: []FeedItem{
					{Name: "The Star Nation", URL: "https://www.thestar.com.my/rss/News/Nation"},
					{Name: "Malay Mail", URL: "https://www.malaymail.com/feed/rss/malaysia"},
					{Name: "Bernama", URL: "https://www.bernama.com/en/rssfeed.php"},
				},
			},
		},
		Locations: LocationsConfig{ZipCountry: "MY"},
		Watch: []WatchItem{
			{State: "Kuala Lumpur", City: "Kuala Lumpur"},
			{State: "Selangor", City: "Shah Alam"},
			{State: "Pulau Pinang", City: "George Town"},
			{State: "Johor", City: "Johor Bahru"},
			{State: "Sarawak", City: "Kuching"},
			{State: "Sabah", City: "Kota Kinabalu"},
		},
		Trend: TrendConfig{Window: "6h", SteadyThreshold: 2},
		Alerts: AlertsConfig{
			MinRiskScore: 3,
			Kafka:        KafkaConfig{Topic: "aqiwatch.alerts"},
			MQTT:         MQTTConfig{ClientID: "aqiwatch", TopicPrefix: "aqiwatch/alerts"},
		},
		Server: ServerConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envOverrides holds raw environment values; empty means unset.
type envOverrides struct {
	DBDriver          string   `env:"AQIWATCH_DB_DRIVER"`
	DBPath            string   `env:"AQIWATCH_DB_PATH"`
	DatabaseURL       string   `env:"DATABASE_URL"`
	LogLevel          string   `env:"AQIWATCH_LOG_LEVEL"`
	LogFormat         string   `env:"AQIWATCH_LOG_FORMAT"`
	IQAirAPIKey       string   `env:"IQAIR_API_KEY"`
	OpenWeatherAPIKey string   `env:"OPENWEATHER_API_KEY"`
	WAQIToken         string   `env:"WAQI_TOKEN"`
	RedisAddr         string   `env:"REDIS_ADDR"`
	RedisPassword     string   `env:"REDIS_PASSWORD"`
	SlackWebhookURL   string   `env:"SLACK_WEBHOOK_URL"`
	DiscordWebhookURL string   `env:"DISCORD_WEBHOOK_URL"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" envSeparator:","`
	MQTTBroker        string   `env:"MQTT_BROKER"`
	Port              int      `env:"AQIWATCH_PORT"`
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) error {
	var e envOverrides
	if err := env.Parse(&e); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if e.DBDriver != "" {
		cfg.Database.Driver = e.DBDriver
	}
	if e.DBPath != "" {
		cfg.Database.Path = e.DBPath
	}
	if e.DatabaseURL != "" {
		cfg.Database.URL = e.DatabaseURL
		if e.DBDriver == "" {
			cfg.Database.Driver = "postgres"
		}
	}
	if e.LogLevel != "" {
		cfg.Log.Level = e.LogLevel
	}
	if e.LogFormat != "" {
		cfg.Log.Format = e.LogFormat
	}
	if e.IQAirAPIKey != "" {
		cfg.Sources.IQAir.APIKey = e.IQAirAPIKey
	}
	if e.OpenWeatherAPIKey != "" {
		cfg.Sources.OpenWeather.APIKey = e.OpenWeatherAPIKey
	}
	if e.WAQIToken != "" {
		cfg.Sources.WAQI.APIKey = e.WAQIToken
	}
	if e.RedisAddr != "" {
		cfg.Cache.Backend = "redis"
		cfg.Cache.Redis.Addr = e.RedisAddr
	}
	if e.RedisPassword != "" {
		cfg.Cache.Redis.Password = e.RedisPassword
	}
	if e.SlackWebhookURL != "" {
		cfg.Alerts.Slack.WebhookURL = e.SlackWebhookURL
		cfg.Alerts.Slack.Enabled = true
	}
	if e.DiscordWebhookURL != "" {
		cfg.Alerts.Discord.WebhookURL = e.DiscordWebhookURL
		cfg.Alerts.Discord.Enabled = true
	}
	if brokers := trimList(e.KafkaBrokers); len(brokers) > 0 {
		cfg.Alerts.Kafka.Brokers = brokers
		cfg.Alerts.Kafka.Enabled = true
	}
	if e.MQTTBroker != "" {
		cfg.Alerts.MQTT.Broker = e.MQTTBroker
		cfg.Alerts.MQTT.Enabled = true
	}
	if e.Port > 0 {
		cfg.Server.Port = e.Port
	}
	return nil
}

func trimList(items []string) []string {
	var out []string
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
