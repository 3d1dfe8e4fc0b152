package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// Every environment variable is read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Market data
	MarketData MarketDataConfig

	// Broker
	Broker BrokerConfig

	// Trading
	Trading TradingConfig

	// Screening
	Screener ScreenerConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// MarketDataConfig holds the market data service configuration
type MarketDataConfig struct {
	BaseURL       string
	StreamURL     string
	ScrapeBaseURL string
	Timeout       time.Duration
	RateLimit     int // requests per second
}

// BrokerConfig holds broker connection configuration
type BrokerConfig struct {
	Mode          string // paper, http
	BaseURL       string
	APIKey        string
	AccountNo     string
	InitialEquity float64
	MaxRetries    int
}

// TradingConfig holds trading loop configuration
type TradingConfig struct {
	Universe        []string
	Interval        string
	Lookback        int
	CycleTimeout    time.Duration
	MaxFailures     int // consecutive provider failures before a cycle aborts
	RecordSignals   bool
	DefaultStrategy string
	StrategyConfig  string // optional JSON overrides file
}

// ScreenerConfig holds screening run configuration
type ScreenerConfig struct {
	Universe     []string
	Benchmark    string
	CacheTTL     time.Duration
	MaxScreened  int
	ExportDir    string
	ExportFormat string // csv, json
}

// Load reads configuration from environment variables.
// This is the only function that calls os.Getenv().
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "autotrader"),
			User:            getEnv("DB_USER", "autotrader"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		// Market data
		MarketData: MarketDataConfig{
			BaseURL:       getEnv("MARKET_DATA_BASE_URL", "http://localhost:8080"),
			StreamURL:     getEnv("MARKET_DATA_STREAM_URL", ""),
			ScrapeBaseURL: getEnv("MARKET_DATA_SCRAPE_BASE_URL", ""),
			Timeout:       getEnvAsDuration("MARKET_DATA_TIMEOUT", "10s"),
			RateLimit:     getEnvAsInt("MARKET_DATA_RATE_LIMIT", 10),
		},

		// Broker
		Broker: BrokerConfig{
			Mode:          getEnv("BROKER_MODE", "paper"),
			BaseURL:       getEnv("BROKER_BASE_URL", ""),
			APIKey:        getEnv("BROKER_API_KEY", ""),
			AccountNo:     getEnv("BROKER_ACCOUNT_NO", ""),
			InitialEquity: getEnvAsFloat("BROKER_INITIAL_EQUITY", 100000),
			MaxRetries:    getEnvAsInt("BROKER_MAX_RETRIES", 3),
		},

		// Trading
		Trading: TradingConfig{
			Universe:        getEnvAsSlice("TRADING_UNIVERSE", []string{}),
			Interval:        getEnv("TRADING_INTERVAL", "5m"),
			Lookback:        getEnvAsInt("TRADING_LOOKBACK", 100),
			CycleTimeout:    getEnvAsDuration("TRADING_CYCLE_TIMEOUT", "2m"),
			MaxFailures:     getEnvAsInt("TRADING_MAX_FAILURES", 5),
			RecordSignals:   getEnvAsBool("TRADING_RECORD_SIGNALS", true),
			DefaultStrategy: getEnv("TRADING_DEFAULT_STRATEGY", "momentum_reversal"),
			StrategyConfig:  getEnv("TRADING_STRATEGY_CONFIG", ""),
		},

		// Screening
		Screener: ScreenerConfig{
			Universe:     getEnvAsSlice("SCREENER_UNIVERSE", []string{}),
			Benchmark:    getEnv("SCREENER_BENCHMARK", "SPY"),
			CacheTTL:     getEnvAsDuration("SCREENER_CACHE_TTL", "24h"),
			MaxScreened:  getEnvAsInt("SCREENER_MAX_SCREENED", 50),
			ExportDir:    getEnv("SCREENER_EXPORT_DIR", "results"),
			ExportFormat: getEnv("SCREENER_EXPORT_FORMAT", "csv"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Broker.Mode != "paper" && c.Broker.Mode != "http" {
		return fmt.Errorf("BROKER_MODE must be one of: paper, http")
	}

	if c.Broker.Mode == "http" && c.Broker.BaseURL == "" {
		return fmt.Errorf("BROKER_BASE_URL is required when BROKER_MODE=http")
	}

	if c.Broker.InitialEquity <= 0 {
		return fmt.Errorf("BROKER_INITIAL_EQUITY must be positive")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
			filepath.Join(exeDir, "..", "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
