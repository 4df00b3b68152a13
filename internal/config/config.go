package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// DefaultTNMBaseURL is the TNM Access products endpoint.
const DefaultTNMBaseURL = "https://tnmaccess.nationalmap.gov/api/v1/products"

// Config holds all process settings, populated from environment variables.
type Config struct {
	LogLevel        string
	LogFormat       string
	LogFile         string
	ShutdownTimeout time.Duration
	MetricsAddr     string

	// Products API search.
	TNMBaseURL        string
	SearchTimeout     time.Duration
	SearchPageSize    int
	SearchConcurrency int
	SearchCacheSize   int

	RetryAttempts int
	RetryBackoff  time.Duration

	// Downloads.
	DownloadWorkers        int
	DownloadTimeout        time.Duration
	MaxConsecutiveFSErrors int

	CatalogFile     string
	ManifestEnabled bool

	// Optional event publishing; disabled when KafkaBrokers is empty.
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	searchTimeout, err := parseDuration("SEARCH_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	downloadTimeout, err := parseDuration("DOWNLOAD_TIMEOUT", "20s")
	if err != nil {
		return nil, err
	}
	retryBackoff, err := parseDuration("RETRY_BACKOFF", "1s")
	if err != nil {
		return nil, err
	}

	pageSize, err := parseInt("SEARCH_PAGE_SIZE", 100, 1, 1000)
	if err != nil {
		return nil, err
	}
	searchConcurrency, err := parseInt("SEARCH_CONCURRENCY", 4, 1, 32)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseInt("SEARCH_CACHE_SIZE", 0, 0, 100000)
	if err != nil {
		return nil, err
	}
	retryAttempts, err := parseInt("RETRY_ATTEMPTS", 3, 1, 10)
	if err != nil {
		return nil, err
	}
	workers, err := parseInt("DOWNLOAD_WORKERS", 4, 1, 16)
	if err != nil {
		return nil, err
	}
	fsErrors, err := parseInt("MAX_CONSECUTIVE_FS_ERRORS", 3, 1, 100)
	if err != nil {
		return nil, err
	}

	manifestEnabled := true
	if v := os.Getenv("MANIFEST_ENABLED"); v != "" {
		manifestEnabled = v == "true"
	}

	cfg := &Config{
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		LogFile:         os.Getenv("LOG_FILE"),
		ShutdownTimeout: shutdownTimeout,
		MetricsAddr:     os.Getenv("METRICS_ADDR"),

		TNMBaseURL:        sharedcfg.EnvOrDefault("TNM_BASE_URL", DefaultTNMBaseURL),
		SearchTimeout:     searchTimeout,
		SearchPageSize:    pageSize,
		SearchConcurrency: searchConcurrency,
		SearchCacheSize:   cacheSize,

		RetryAttempts: retryAttempts,
		RetryBackoff:  retryBackoff,

		DownloadWorkers:        workers,
		DownloadTimeout:        downloadTimeout,
		MaxConsecutiveFSErrors: fsErrors,

		CatalogFile:     os.Getenv("CATALOG_FILE"),
		ManifestEnabled: manifestEnabled,

		KafkaBrokers: parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "usgs-downloads"),
	}

	if cfg.TNMBaseURL == "" {
		return nil, errors.New("TNM_BASE_URL is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// KafkaEnabled reports whether download events should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	return sharedcfg.ParseBrokers(s)
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be an integer in [%d, %d]", key, lo, hi)
	}
	return n, nil
}
