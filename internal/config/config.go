package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath           = "CONFIG_PATH"
	EnvDBConnection         = "DB_CONNECTION"
	EnvJWTSecret            = "JWT_SECRET"
	EnvJWTExpiry            = "JWT_EXPIRY"
	EnvPaymentAPIKey        = "PAYMENT_API_KEY"
	EnvPaymentWebhookSecret = "PAYMENT_WEBHOOK_SECRET"
	EnvPaymentBaseURL       = "PAYMENT_BASE_URL"
	EnvRedisAddr            = "REDIS_ADDR"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// LoadDatabaseDSN reads the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = 24 * time.Hour

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	// fileConfig maps the YAML fields needed for JWT settings.
	type fileConfig struct {
		JWT JWTConfig `yaml:"jwt"`
	}

	result := JWTConfig{Expiry: defaultJWTExpiry}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.JWT
		}
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}

	if result.Expiry <= 0 {
		result.Expiry = defaultJWTExpiry
	}
	return result, nil
}

// PaymentConfig holds payment processor credentials and endpoints.
type PaymentConfig struct {
	APIKey        string `yaml:"api-key"`
	WebhookSecret string `yaml:"webhook-secret"`
	BaseURL       string `yaml:"base-url"`
}

// LoadPaymentConfig loads payment processor settings from the YAML config file.
func LoadPaymentConfig(configPath string) (PaymentConfig, error) {
	// fileConfig maps the YAML fields needed for payment settings.
	type fileConfig struct {
		Payment PaymentConfig `yaml:"payment"`
	}

	var result PaymentConfig

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.Payment
		}
	}

	if key := strings.TrimSpace(os.Getenv(EnvPaymentAPIKey)); key != "" {
		result.APIKey = key
	}
	if secret := strings.TrimSpace(os.Getenv(EnvPaymentWebhookSecret)); secret != "" {
		result.WebhookSecret = secret
	}
	if base := strings.TrimSpace(os.Getenv(EnvPaymentBaseURL)); base != "" {
		result.BaseURL = base
	}
	return result, nil
}

// LoadRedisAddr loads the optional Redis address used for rate limiting.
// An empty address selects the in-memory limiter.
func LoadRedisAddr(configPath string) string {
	if addr := strings.TrimSpace(os.Getenv(EnvRedisAddr)); addr != "" {
		return addr
	}

	// fileConfig maps the YAML fields needed for the Redis address.
	type fileConfig struct {
		Redis struct {
			Addr string `yaml:"addr"`
		} `yaml:"redis"`
	}

	data, errRead := os.ReadFile(configPath)
	if errRead != nil {
		return ""
	}
	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return ""
	}
	return strings.TrimSpace(cfg.Redis.Addr)
}
