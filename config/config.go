package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agroprecios/backend/internal/domain"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Fetch      FetchConfig
	Store      StoreConfig
	Classifier ClassifierConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// FetchConfig holds retailer fetching configuration
type FetchConfig struct {
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	CategoryTimeout      time.Duration `mapstructure:"category_timeout"`
	Workers              int           `mapstructure:"workers"`
	RequestsPerSecond    float64       `mapstructure:"requests_per_second"`
	Burst                int           `mapstructure:"burst"`
	MaxRetries           int           `mapstructure:"max_retries"`
	BackoffFactor        float64       `mapstructure:"backoff_factor"`
	RetryableStatusCodes []int         `mapstructure:"retryable_status_codes"`
	UserAgent            string        `mapstructure:"user_agent"`
	Retailers            []string      `mapstructure:"retailers"`
	CategoryCacheTTL     time.Duration `mapstructure:"category_cache_ttl"`
}

// StoreConfig holds persistent store configuration
type StoreConfig struct {
	Type             string `mapstructure:"type"` // "memory", "postgres" or "sqlite"
	DSN              string `mapstructure:"dsn"`
	SheetName        string `mapstructure:"sheet_name"`
	MaxCells         int    `mapstructure:"max_cells"`
	MaxColumns       int    `mapstructure:"max_columns"`
	InitialRows      int    `mapstructure:"initial_rows"`
	KeyGranularity   string `mapstructure:"key_granularity"`
	RotateOnOverflow bool   `mapstructure:"rotate_on_overflow"`
}

// ClassifierConfig holds taxonomy configuration
type ClassifierConfig struct {
	TaxonomyFile string `mapstructure:"taxonomy_file"`
}

// Limits returns the per-segment quotas
func (s StoreConfig) Limits() domain.StoreLimits {
	return domain.StoreLimits{MaxCells: s.MaxCells, MaxColumns: s.MaxColumns}
}

// Load loads configuration from a .env file, environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/agroprecios/")

	v.SetEnvPrefix("AGROPRECIOS")
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

// loadEnvFile loads ./.env into the environment without overriding set variables
func loadEnvFile() error {
	err := godotenv.Load(".env")
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// setDefaults sets default configuration values. Every key needs a default
// for AutomaticEnv to reach it through Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})

	v.SetDefault("log.level", "info")

	v.SetDefault("fetch.request_timeout", "10s")
	v.SetDefault("fetch.category_timeout", "60s")
	v.SetDefault("fetch.workers", 8)
	v.SetDefault("fetch.requests_per_second", 5.0)
	v.SetDefault("fetch.burst", 8)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.backoff_factor", 1.2)
	v.SetDefault("fetch.retryable_status_codes", []int{429, 500, 502, 503, 504})
	v.SetDefault("fetch.user_agent", "")
	v.SetDefault("fetch.retailers", []string{})
	v.SetDefault("fetch.category_cache_ttl", "6h")

	v.SetDefault("store.type", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.sheet_name", "precios_supermercados")
	v.SetDefault("store.max_cells", 10_000_000)
	v.SetDefault("store.max_columns", 40)
	v.SetDefault("store.initial_rows", 10_000)
	v.SetDefault("store.key_granularity", "second")
	v.SetDefault("store.rotate_on_overflow", false)

	v.SetDefault("classifier.taxonomy_file", "")
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.Store.Type {
	case "memory":
	case "postgres", "sqlite":
		if config.Store.DSN == "" {
			return fmt.Errorf("store dsn is required when store type is '%s' (set AGROPRECIOS_STORE_DSN)", config.Store.Type)
		}
	default:
		return fmt.Errorf("store type must be 'memory', 'postgres' or 'sqlite', got: %s", config.Store.Type)
	}

	if config.Store.KeyGranularity != "second" && config.Store.KeyGranularity != "day" {
		return fmt.Errorf("key granularity must be 'second' or 'day', got: %s", config.Store.KeyGranularity)
	}

	if config.Fetch.Workers < 1 {
		return fmt.Errorf("fetch workers must be at least 1, got: %d", config.Fetch.Workers)
	}

	if config.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch max retries must not be negative, got: %d", config.Fetch.MaxRetries)
	}

	if config.Store.SheetName == "" {
		return errors.New("store sheet name is required")
	}

	if config.Store.MaxCells < 0 || config.Store.MaxColumns < 0 {
		return errors.New("store limits must not be negative")
	}

	return nil
}

// LoadTaxonomy reads a taxonomy definition from a YAML or JSON file
func LoadTaxonomy(path string) (domain.TaxonomySpec, error) {
	v := viper.New()
	v.SetConfigFile(path)

	var spec domain.TaxonomySpec
	if err := v.ReadInConfig(); err != nil {
		return spec, fmt.Errorf("error reading taxonomy file: %w", err)
	}
	if err := v.Unmarshal(&spec); err != nil {
		return spec, fmt.Errorf("unable to decode taxonomy: %w", err)
	}
	return spec, nil
}
