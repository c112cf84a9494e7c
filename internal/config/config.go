// internal/config/config.go

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Environment string
	LogLevel    string
	Server      ServerConfig
	Database    DatabaseConfig
	NATS        NATSConfig
	Index       IndexConfig
	Spike       SpikeConfig
	Market      MarketConfig
	Monitor     MonitorConfig
	Sources     SourcesConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CorsOrigins     []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	SSLMode      string
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	URL            string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
}

// IndexConfig holds frequency index configuration
type IndexConfig struct {
	BucketWidth   time.Duration
	Retention     int
	MinTermLength int
	NGram         int
}

// SpikeConfig holds spike detection configuration
type SpikeConfig struct {
	Window     int
	MinHistory int
}

// MarketConfig holds market correlation configuration
type MarketConfig struct {
	BaseURL        string
	APIKey         string
	FetchTimeout   time.Duration
	MinInterval    time.Duration
	CandidateLimit int
	MaxConcurrent  int
	LagRange       int
	MinOverlap     int
}

// MonitorConfig holds trend monitor configuration
type MonitorConfig struct {
	DefaultRefreshInterval time.Duration
	MinRefreshInterval     time.Duration
	TopTerms               int
	EventsTopic            string
}

// SourcesConfig holds content source configuration for the default user
type SourcesConfig struct {
	DefaultUserID      string
	FetchLimit         int
	RSSFeeds           []string
	RedditSubreddits   []string
	RedditTimeRange    string
	TwitterBearerToken string
	TwitterQuery       string
}

// Load loads configuration from environment variables
func Load() (Config, error) {
	config := Config{
		Environment: getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CorsOrigins:     getEnvAsSlice("SERVER_CORS_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Database:     getEnv("DB_NAME", "trendwire"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 5*time.Minute),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
		},
		NATS: NATSConfig{
			URL:            getEnv("NATS_URL", "nats://localhost:4222"),
			MaxReconnects:  getEnvAsInt("NATS_MAX_RECONNECTS", 10),
			ReconnectWait:  getEnvAsDuration("NATS_RECONNECT_WAIT", 1*time.Second),
			ConnectTimeout: getEnvAsDuration("NATS_CONNECT_TIMEOUT", 2*time.Second),
		},
		Index: IndexConfig{
			BucketWidth:   getEnvAsDuration("INDEX_BUCKET_WIDTH", 1*time.Hour),
			Retention:     getEnvAsInt("INDEX_RETENTION_BUCKETS", 30),
			MinTermLength: getEnvAsInt("INDEX_MIN_TERM_LENGTH", 3),
			NGram:         getEnvAsInt("INDEX_NGRAM", 1),
		},
		Spike: SpikeConfig{
			Window:     getEnvAsInt("SPIKE_WINDOW_BUCKETS", 29),
			MinHistory: getEnvAsInt("SPIKE_MIN_HISTORY", 5),
		},
		Market: MarketConfig{
			BaseURL:        getEnv("MARKET_BASE_URL", "http://localhost:8090"),
			APIKey:         getEnv("MARKET_API_KEY", ""),
			FetchTimeout:   getEnvAsDuration("MARKET_FETCH_TIMEOUT", 10*time.Second),
			MinInterval:    getEnvAsDuration("MARKET_MIN_INTERVAL", 1*time.Second),
			CandidateLimit: getEnvAsInt("MARKET_CANDIDATE_LIMIT", 10),
			MaxConcurrent:  getEnvAsInt("MARKET_MAX_CONCURRENT", 5),
			LagRange:       getEnvAsInt("MARKET_LAG_RANGE", 2),
			MinOverlap:     getEnvAsInt("MARKET_MIN_OVERLAP", 5),
		},
		Monitor: MonitorConfig{
			DefaultRefreshInterval: getEnvAsDuration("MONITOR_REFRESH_INTERVAL", 4*time.Hour),
			MinRefreshInterval:     getEnvAsDuration("MONITOR_MIN_REFRESH_INTERVAL", 5*time.Minute),
			TopTerms:               getEnvAsInt("MONITOR_TOP_TERMS", 10),
			EventsTopic:            getEnv("MONITOR_EVENTS_TOPIC", "trend"),
		},
		Sources: SourcesConfig{
			DefaultUserID:      getEnv("SOURCES_DEFAULT_USER_ID", "default"),
			FetchLimit:         getEnvAsInt("SOURCES_FETCH_LIMIT", 50),
			RSSFeeds:           getEnvAsSlice("SOURCES_RSS_FEEDS", nil),
			RedditSubreddits:   getEnvAsSlice("SOURCES_REDDIT_SUBREDDITS", nil),
			RedditTimeRange:    getEnv("SOURCES_REDDIT_TIME_RANGE", "day"),
			TwitterBearerToken: getEnv("TWITTER_BEARER_TOKEN", ""),
			TwitterQuery:       getEnv("TWITTER_QUERY", ""),
		},
	}

	return config, validate(config)
}

// validate checks if config is valid
func validate(config Config) error {
	if config.Index.Retention <= 0 {
		return fmt.Errorf("index retention must be positive, got %d", config.Index.Retention)
	}
	if config.Index.NGram != 1 && config.Index.NGram != 2 {
		return fmt.Errorf("index ngram must be 1 or 2, got %d", config.Index.NGram)
	}
	if config.Spike.MinHistory <= 0 {
		return fmt.Errorf("spike min history must be positive, got %d", config.Spike.MinHistory)
	}
	if config.Monitor.MinRefreshInterval <= 0 {
		return fmt.Errorf("monitor min refresh interval must be positive, got %s", config.Monitor.MinRefreshInterval)
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, ",")
}
