package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port   string
	Debug  bool
	WebDir string

	// Storage configuration
	DBPath string

	// Pipeline configuration
	RefreshInterval time.Duration // interval between scheduled pipeline runs
	RunTimeout      time.Duration // hard deadline for one pipeline run
	TrendWindow     time.Duration // window over which coin trends are computed
	TopTrending     int           // trending coins kept per summary

	// Feed credentials
	FeedBaseURL     string
	FeedBearerToken string

	// Crypto relevance keywords
	Keywords []string

	// Alert thresholds
	SpikeThreshold    int     // mention-count increase that fires a spike alert
	SentimentShare    float64 // share of one label that fires a sentiment alert
	SentimentMinPosts int     // minimum scored posts for a sentiment alert
	PolarityThreshold float64 // aggregate coin sentiment that fires a trend alert
	TrendMinMentions  int     // minimum mentions for a trend alert
	NotifyImportance  int     // minimum importance forwarded to external channels

	// Text generation (optional)
	OpenAIAPIKey string
	OpenAIModel  string

	// Alert notification channels (optional)
	AlertWebhookURL string
	AlertEmail      string
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string

	// Raw batch archive (optional)
	StorageAccount   string
	StorageContainer string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:   getEnv("PORT", "8080"),
		Debug:  getBoolEnv("DEBUG", false),
		WebDir: getEnv("WEB_DIR", "web"),

		DBPath: getEnv("DB_PATH", "xtc.db"),

		RefreshInterval: getDurationEnv("REFRESH_INTERVAL", 30*time.Minute),
		RunTimeout:      getDurationEnv("RUN_TIMEOUT", 10*time.Minute),
		TrendWindow:     getDurationEnv("TREND_WINDOW", 24*time.Hour),
		TopTrending:     getIntEnv("TOP_TRENDING", 5),

		FeedBaseURL:     getEnv("FEED_BASE_URL", "https://api.x.com/2"),
		FeedBearerToken: getEnv("FEED_BEARER_TOKEN", ""),

		Keywords: getSliceEnv("CRYPTO_KEYWORDS", []string{
			"bitcoin", "btc", "ethereum", "eth", "solana", "sol",
			"crypto", "blockchain", "nft", "defi", "web3", "altcoin",
			"token", "binance", "coinbase", "$", "bull", "bear",
		}),

		SpikeThreshold:    getIntEnv("SPIKE_THRESHOLD", 5),
		SentimentShare:    getFloatEnv("SENTIMENT_SHARE_THRESHOLD", 0.70),
		SentimentMinPosts: getIntEnv("SENTIMENT_MIN_POSTS", 10),
		PolarityThreshold: getFloatEnv("POLARITY_THRESHOLD", 0.5),
		TrendMinMentions:  getIntEnv("TREND_MIN_MENTIONS", 5),
		NotifyImportance:  getIntEnv("NOTIFY_IMPORTANCE", 4),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		AlertWebhookURL: getEnv("ALERT_WEBHOOK_URL", ""),
		AlertEmail:      getEnv("ALERT_EMAIL", ""),
		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getIntEnv("SMTP_PORT", 587),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "feed-batches"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.RefreshInterval < time.Minute {
		return fmt.Errorf("REFRESH_INTERVAL must be at least 1m")
	}

	if c.RunTimeout <= 0 {
		return fmt.Errorf("RUN_TIMEOUT must be positive")
	}

	if c.SentimentShare <= 0 || c.SentimentShare > 1 {
		return fmt.Errorf("SENTIMENT_SHARE_THRESHOLD must be in (0, 1]")
	}

	if c.SpikeThreshold < 1 {
		return fmt.Errorf("SPIKE_THRESHOLD must be at least 1")
	}

	if c.SentimentMinPosts < 1 {
		return fmt.Errorf("SENTIMENT_MIN_POSTS must be at least 1")
	}

	if c.AlertEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when ALERT_EMAIL is set")
		}
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
