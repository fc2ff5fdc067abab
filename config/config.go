package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // usage months are counted in a named zone

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	Vision    VisionConfig
	Shopping  ShoppingConfig
	Cache     CacheConfig
	Redis     RedisConfig
	Usage     UsageConfig
	RateLimit RateLimitConfig
	Matching  MatchingConfig
	Compare   CompareConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	LogLevel        string        `mapstructure:"log_level"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig holds the shared-password session settings. An empty password leaves the API open.
type AuthConfig struct {
	Password      string        `mapstructure:"password"`
	SessionSecret string        `mapstructure:"session_secret"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
}

// VisionConfig holds OCR provider configuration
type VisionConfig struct {
	DefaultProvider string        `mapstructure:"default_provider"` // "openai" or "google"
	GoogleAPIKey    string        `mapstructure:"google_api_key"`
	GoogleBaseURL   string        `mapstructure:"google_base_url"`
	OpenAIAPIKey    string        `mapstructure:"openai_api_key"`
	OpenAIBaseURL   string        `mapstructure:"openai_base_url"`
	OpenAIModel     string        `mapstructure:"openai_model"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// ShoppingConfig holds online price provider configuration
type ShoppingConfig struct {
	Provider          string        `mapstructure:"provider"` // "naver" or "coupang"
	NaverClientID     string        `mapstructure:"naver_client_id"`
	NaverClientSecret string        `mapstructure:"naver_client_secret"`
	NaverBaseURL      string        `mapstructure:"naver_base_url"`
	NaverDisplay      int           `mapstructure:"naver_display"`
	NaverSort         string        `mapstructure:"naver_sort"`
	CoupangBaseURL    string        `mapstructure:"coupang_base_url"`
	CoupangMaxResults int           `mapstructure:"coupang_max_results"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type            string        `mapstructure:"type"` // "memory" or "redis"
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RedisConfig holds the connection shared by the redis cache and usage tracker
type RedisConfig struct {
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// UsageConfig holds the monthly OCR quota
type UsageConfig struct {
	Store         string `mapstructure:"store"` // "memory" or "redis"
	MonthlyLimit  int    `mapstructure:"monthly_limit"`
	WarnThreshold int    `mapstructure:"warn_threshold"`
	Timezone      string `mapstructure:"timezone"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP   int     `mapstructure:"per_ip"`  // requests per minute per client
	Naver   float64 `mapstructure:"naver"`   // requests per second
	Coupang float64 `mapstructure:"coupang"` // page fetches per second
}

// MatchingConfig holds offer matching configuration
type MatchingConfig struct {
	MinConfidenceThreshold float64 `mapstructure:"min_confidence_threshold"`
	EnableFuzzyMatching    bool    `mapstructure:"enable_fuzzy_matching"`
	FuzzyEditDistance      int     `mapstructure:"fuzzy_edit_distance"`
}

// CompareConfig holds price comparison configuration
type CompareConfig struct {
	Concurrency  int    `mapstructure:"concurrency"`
	MaxBatchSize int    `mapstructure:"max_batch_size"`
	MartLabel    string `mapstructure:"mart_label"`
	OnlineLabel  string `mapstructure:"online_label"`
}

// Load loads configuration from .env, environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pricelens/")

	// PRICELENS_CACHE_TTL -> cache.ttl
	v.SetEnvPrefix("PRICELENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile reads ./.env when present. Variables already set in the environment win.
func loadEnvFile() error {
	if _, err := os.Stat(".env"); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(".env")
}

// setDefaults sets default configuration values. Every key needs one so that
// environment variables are picked up by Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("auth.password", "")
	v.SetDefault("auth.session_secret", "")
	v.SetDefault("auth.session_ttl", "24h")

	v.SetDefault("vision.default_provider", "openai")
	v.SetDefault("vision.google_api_key", "")
	v.SetDefault("vision.google_base_url", "https://vision.googleapis.com")
	v.SetDefault("vision.openai_api_key", "")
	v.SetDefault("vision.openai_base_url", "https://api.openai.com")
	v.SetDefault("vision.openai_model", "gpt-4o")
	v.SetDefault("vision.timeout", "30s")

	v.SetDefault("shopping.provider", "naver")
	v.SetDefault("shopping.naver_client_id", "")
	v.SetDefault("shopping.naver_client_secret", "")
	v.SetDefault("shopping.naver_base_url", "https://openapi.naver.com")
	v.SetDefault("shopping.naver_display", 5)
	v.SetDefault("shopping.naver_sort", "asc")
	v.SetDefault("shopping.coupang_base_url", "https://www.coupang.com")
	v.SetDefault("shopping.coupang_max_results", 10)
	v.SetDefault("shopping.timeout", "10s")

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", "720h") // 30 days
	v.SetDefault("cache.cleanup_interval", "10m")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.key_prefix", "pricelens:cache:")

	v.SetDefault("usage.store", "memory")
	v.SetDefault("usage.monthly_limit", 900)
	v.SetDefault("usage.warn_threshold", 100)
	v.SetDefault("usage.timezone", "Asia/Seoul")

	v.SetDefault("ratelimit.per_ip", 100)
	v.SetDefault("ratelimit.naver", 10)
	v.SetDefault("ratelimit.coupang", 1)

	v.SetDefault("matching.min_confidence_threshold", 40.0)
	v.SetDefault("matching.enable_fuzzy_matching", true)
	v.SetDefault("matching.fuzzy_edit_distance", 1)

	v.SetDefault("compare.concurrency", 4)
	v.SetDefault("compare.max_batch_size", 20)
	v.SetDefault("compare.mart_label", "마트")
	v.SetDefault("compare.online_label", "온라인")
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.Vision.DefaultProvider {
	case "openai":
		if config.Vision.OpenAIAPIKey == "" {
			return fmt.Errorf("OpenAI API key is required (set PRICELENS_VISION_OPENAI_API_KEY)")
		}
	case "google":
		if config.Vision.GoogleAPIKey == "" {
			return fmt.Errorf("Google Cloud API key is required (set PRICELENS_VISION_GOOGLE_API_KEY)")
		}
	default:
		return fmt.Errorf("vision provider must be 'openai' or 'google', got: %s", config.Vision.DefaultProvider)
	}

	switch config.Shopping.Provider {
	case "naver":
		if config.Shopping.NaverClientID == "" || config.Shopping.NaverClientSecret == "" {
			return fmt.Errorf("Naver client id and secret are required (set PRICELENS_SHOPPING_NAVER_CLIENT_ID and PRICELENS_SHOPPING_NAVER_CLIENT_SECRET)")
		}
	case "coupang":
	default:
		return fmt.Errorf("shopping provider must be 'naver' or 'coupang', got: %s", config.Shopping.Provider)
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Usage.Store != "memory" && config.Usage.Store != "redis" {
		return fmt.Errorf("usage store must be 'memory' or 'redis', got: %s", config.Usage.Store)
	}

	if (config.Cache.Type == "redis" || config.Usage.Store == "redis") && config.Redis.URL == "" {
		return fmt.Errorf("Redis URL is required when cache type or usage store is 'redis'")
	}

	if config.Usage.Timezone != "" {
		if _, err := time.LoadLocation(config.Usage.Timezone); err != nil {
			return fmt.Errorf("unknown usage timezone %q: %w", config.Usage.Timezone, err)
		}
	}

	if config.Server.Environment == "production" && config.Auth.Password != "" && config.Auth.SessionSecret == "" {
		return fmt.Errorf("session secret is required in production (set PRICELENS_AUTH_SESSION_SECRET)")
	}

	return nil
}

// Location returns the time zone quota months are counted in
func (c UsageConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
