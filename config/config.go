package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tradekit/proxy"
)

type Config struct {
	Tradekit  TradekitConfig  `yaml:"tradekit"`
	Logging   LoggingConfig   `yaml:"logging"`
	Exchanges ExchangesConfig `yaml:"exchanges"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Proxies   []proxy.Endpoint `yaml:"proxies"`
	Journal   JournalConfig   `yaml:"journal"`
}

type TradekitConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	Level         string                 `yaml:"level"`
	Format        string                 `yaml:"format"`
	Output        string                 `yaml:"output"`
	MaxAge        int                    `yaml:"max_age"`
	Fields        map[string]interface{} `yaml:"fields"`
	DashboardName string                 `yaml:"dashboard_name"`
}

type ExchangesConfig struct {
	Binance ExchangeConfig `yaml:"binance"`
	Bybit   ExchangeConfig `yaml:"bybit"`
	Okx     ExchangeConfig `yaml:"okx"`
	Kucoin  ExchangeConfig `yaml:"kucoin"`
}

type ExchangeConfig struct {
	Enabled bool   `yaml:"enabled"`
	Sandbox bool   `yaml:"sandbox"`
	RestURL string `yaml:"rest_url"`
	WsURL   string `yaml:"ws_url"`
}

// RateLimitConfig feeds the per-venue request limiters.
type RateLimitConfig struct {
	Binance ExchangeRateLimit `yaml:"binance"`
	Bybit   ExchangeRateLimit `yaml:"bybit"`
	Okx     ExchangeRateLimit `yaml:"okx"`
	Kucoin  ExchangeRateLimit `yaml:"kucoin"`
}

type ExchangeRateLimit struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

// JournalConfig controls the parquet fill journal and its S3 destination.
type JournalConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Bucket          string        `yaml:"bucket"`
	Region          string        `yaml:"region"`
	Prefix          string        `yaml:"prefix"`
	BatchSize       int           `yaml:"batch_size"`
	FlushInterval   time.Duration `yaml:"flush_interval"`
	AccessKeyID     string        `yaml:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key"`
}

// Auth is a venue credential triple read from the environment. Passphrase is
// only set for venues that use one.
type Auth struct {
	Key        string
	Secret     string
	Passphrase string
}

// LoadConfig reads and validates the YAML configuration at path. An empty
// or default path resolves through APP_ENV, so config.production.yml wins
// over config.yml on a production host. A .env file in the working
// directory is loaded first so credential overrides work in development.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(resolveConfigPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override journal S3 settings from environment variables if available
	if config.Journal.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Journal.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Journal.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Journal.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Journal.Bucket = strings.TrimSpace(v)
		}
	}
	config.Journal.Bucket = strings.TrimSpace(config.Journal.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// AuthFromEnv reads the credential triple for a venue from
// TRADEKIT_<VENUE>_KEY, TRADEKIT_<VENUE>_SECRET and
// TRADEKIT_<VENUE>_PASSPHRASE. Missing variables yield empty fields; the
// facades report AUTH_UNSET when a private call needs them.
func AuthFromEnv(exchange string) Auth {
	prefix := "TRADEKIT_" + strings.ToUpper(exchange) + "_"
	return Auth{
		Key:        strings.TrimSpace(os.Getenv(prefix + "KEY")),
		Secret:     strings.TrimSpace(os.Getenv(prefix + "SECRET")),
		Passphrase: strings.TrimSpace(os.Getenv(prefix + "PASSPHRASE")),
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Tradekit.Name == "" {
		return fmt.Errorf("tradekit.name is required")
	}

	if cfg.Tradekit.Version == "" {
		return fmt.Errorf("tradekit.version is required")
	}

	for i, ep := range cfg.Proxies {
		if ep.Host == "" {
			return fmt.Errorf("proxies[%d].host is required", i)
		}
		if ep.Port <= 0 || ep.Port > 65535 {
			return fmt.Errorf("proxies[%d].port %d is out of range", i, ep.Port)
		}
	}

	if cfg.Journal.Enabled {
		if cfg.Journal.Bucket == "" {
			return fmt.Errorf("journal.bucket is required when the journal is enabled")
		}
		if cfg.Journal.Region == "" {
			return fmt.Errorf("journal.region is required when the journal is enabled")
		}
		if !isValidS3Bucket(cfg.Journal.Bucket) {
			return fmt.Errorf("journal.bucket '%s' is invalid", cfg.Journal.Bucket)
		}
		if cfg.Journal.BatchSize <= 0 {
			return fmt.Errorf("journal.batch_size must be greater than 0")
		}
		if cfg.Journal.FlushInterval <= 0 {
			return fmt.Errorf("journal.flush_interval must be greater than 0")
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
