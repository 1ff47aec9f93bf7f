package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Storage    StorageConfig
	Cache      CacheConfig
	Woolworths WoolworthsConfig
	RateLimit  RateLimitConfig
	Resolver   ResolverConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// StorageConfig selects the durable store
type StorageConfig struct {
	Driver  string `mapstructure:"driver"` // "sqlite" or "postgres"
	DSN     string `mapstructure:"dsn"`
	DataDir string `mapstructure:"data_dir"`
}

// CacheConfig holds result cache configuration
type CacheConfig struct {
	Type        string         `mapstructure:"type"` // "store" or "memory"
	MemorySize  int            `mapstructure:"memory_size"`
	StaleMaxAge time.Duration  `mapstructure:"stale_max_age"`
	TTL         CacheTTLConfig `mapstructure:"ttl"`
}

// CacheTTLConfig holds the freshness window per provider operation
type CacheTTLConfig struct {
	Search   time.Duration `mapstructure:"search"`
	Product  time.Duration `mapstructure:"product"`
	Specials time.Duration `mapstructure:"specials"`
}

// WoolworthsConfig holds the provider endpoints and retry policy
type WoolworthsConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	SearchPath   string        `mapstructure:"search_path"`
	ProductPath  string        `mapstructure:"product_path"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Retries      int           `mapstructure:"retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PageSize     int           `mapstructure:"page_size"`
	Sort         string        `mapstructure:"sort"`
}

// RateLimitConfig bounds outbound provider calls to Calls per Period
type RateLimitConfig struct {
	Calls  int           `mapstructure:"calls"`
	Period time.Duration `mapstructure:"period"`
}

// ResolverConfig holds the resolution thresholds
type ResolverConfig struct {
	AutoResolveMinScore float64 `mapstructure:"auto_resolve_min_score"`
	AutoResolveGap      float64 `mapstructure:"auto_resolve_gap"`
	FuzzyMatchThreshold float64 `mapstructure:"fuzzy_match_threshold"`
	SearchPageSize      int     `mapstructure:"search_page_size"`
	MaxCandidates       int     `mapstructure:"max_candidates"`
	BatchConcurrency    int     `mapstructure:"batch_concurrency"`
}

// Load loads configuration from a .env file, environment variables and
// config files, in increasing order of precedence for the environment
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/oakley-grocery/")

	// Environment variable settings, e.g. GROCERY_STORAGE_DRIVER
	v.SetEnvPrefix("GROCERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
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

	if err := resolvePaths(&config); err != nil {
		return nil, err
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads KEY=VALUE pairs from ./.env without overriding
// variables that are already set. A missing file is not an error.
func loadEnvFile() error {
	err := godotenv.Load(".env")
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Storage defaults
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.data_dir", "~/.oakley-grocery/data")

	// Cache defaults
	v.SetDefault("cache.type", "store")
	v.SetDefault("cache.memory_size", 1024)
	v.SetDefault("cache.stale_max_age", "24h")
	v.SetDefault("cache.ttl.search", "1h")
	v.SetDefault("cache.ttl.product", "24h")
	v.SetDefault("cache.ttl.specials", "4h")

	// Woolworths defaults
	v.SetDefault("woolworths.base_url", "https://www.woolworths.com.au")
	v.SetDefault("woolworths.search_path", "/apis/ui/Search/products")
	v.SetDefault("woolworths.product_path", "/apis/ui/product/detail")
	v.SetDefault("woolworths.timeout", "20s")
	v.SetDefault("woolworths.retries", 3)
	v.SetDefault("woolworths.retry_backoff", "500ms")
	v.SetDefault("woolworths.page_size", 10)
	v.SetDefault("woolworths.sort", "TraderRelevance")

	// Rate limit defaults
	v.SetDefault("ratelimit.calls", 5)
	v.SetDefault("ratelimit.period", "1s")

	// Resolver defaults
	v.SetDefault("resolver.auto_resolve_min_score", 0.4)
	v.SetDefault("resolver.auto_resolve_gap", 0.1)
	v.SetDefault("resolver.fuzzy_match_threshold", 0.6)
	v.SetDefault("resolver.search_page_size", 10)
	v.SetDefault("resolver.max_candidates", 5)
	v.SetDefault("resolver.batch_concurrency", 4)
}

// resolvePaths expands ~ in the data directory and derives the SQLite
// database path when no DSN is given
func resolvePaths(config *Config) error {
	dir, err := expandHome(config.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("unable to resolve data directory: %w", err)
	}
	config.Storage.DataDir = dir

	if config.Storage.Driver == "sqlite" {
		if config.Storage.DSN == "" {
			config.Storage.DSN = filepath.Join(dir, "grocery.db")
		} else if config.Storage.DSN, err = expandHome(config.Storage.DSN); err != nil {
			return fmt.Errorf("unable to resolve database path: %w", err)
		}
	}
	return nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// validate validates the configuration
func validate(config *Config) error {
	if _, err := zerolog.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("unknown log level: %s", config.Log.Level)
	}

	switch config.Storage.Driver {
	case "sqlite":
	case "postgres":
		if config.Storage.DSN == "" {
			return fmt.Errorf("storage DSN is required when driver is 'postgres' (set GROCERY_STORAGE_DSN)")
		}
	default:
		return fmt.Errorf("storage driver must be 'sqlite' or 'postgres', got: %s", config.Storage.Driver)
	}

	if config.Cache.Type != "store" && config.Cache.Type != "memory" {
		return fmt.Errorf("cache type must be 'store' or 'memory', got: %s", config.Cache.Type)
	}

	if config.Woolworths.BaseURL == "" {
		return fmt.Errorf("woolworths base URL is required")
	}
	if config.Woolworths.Retries < 1 {
		return fmt.Errorf("woolworths retries must be at least 1, got: %d", config.Woolworths.Retries)
	}

	if config.RateLimit.Calls < 1 || config.RateLimit.Period <= 0 {
		return fmt.Errorf("rate limit must allow at least 1 call per positive period, got: %d per %s",
			config.RateLimit.Calls, config.RateLimit.Period)
	}

	for name, v := range map[string]float64{
		"auto_resolve_min_score": config.Resolver.AutoResolveMinScore,
		"auto_resolve_gap":       config.Resolver.AutoResolveGap,
		"fuzzy_match_threshold":  config.Resolver.FuzzyMatchThreshold,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("resolver %s must be in (0, 1], got: %v", name, v)
		}
	}

	return nil
}
