package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string `yaml:"port"` // Listen port.
	Mode string `yaml:"mode"` // gin mode: debug, release, test.
}

// DatabaseConfig holds persistence settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // PostgreSQL or SQLite DSN.
}

// RedisConfig holds optional Redis settings for rate limiting.
type RedisConfig struct {
	URL                string `yaml:"url"`                   // Redis URL; empty disables rate limiting.
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"` // Generation calls allowed per user per minute.
}

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret      string `yaml:"secret"`       // HS256 signing secret.
	ExpiryHours int    `yaml:"expiry_hours"` // Token lifetime in hours.
}

// UsageConfig holds accounting settings.
type UsageConfig struct {
	CostPer1KTokens float64 `yaml:"cost_per_1k_tokens"` // Flat cost estimate per 1000 tokens.
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `yaml:"level"`       // logrus level name.
	File       string `yaml:"file"`        // Log file path; empty logs to stdout only.
	MaxSizeMB  int    `yaml:"max_size_mb"` // Rotation size threshold.
	MaxBackups int    `yaml:"max_backups"` // Rotated files to retain.
}

// ProvidersConfig holds provider-specific static settings.
type ProvidersConfig struct {
	OpenRouterReferer string `yaml:"openrouter_referer"` // HTTP-Referer sent to OpenRouter.
	OpenRouterTitle   string `yaml:"openrouter_title"`   // X-Title sent to OpenRouter.
	CustomBaseURL     string `yaml:"custom_base_url"`    // Base URL of the custom OpenAI-compatible endpoint.
	CustomModel       string `yaml:"custom_model"`       // Default model of the custom endpoint.
}

// Config is the root application configuration.
type Config struct {
	Server     ServerConfig    `yaml:"server"`
	Database   DatabaseConfig  `yaml:"database"`
	Redis      RedisConfig     `yaml:"redis"`
	JWT        JWTConfig       `yaml:"jwt"`
	Usage      UsageConfig     `yaml:"usage"`
	Log        LogConfig       `yaml:"log"`
	Providers  ProvidersConfig `yaml:"providers"`
	Encryption struct {
		Passphrase string `yaml:"passphrase"` // Credential cipher passphrase.
	} `yaml:"encryption"`
}

// Load reads configuration from an optional YAML file and applies
// environment overrides. A missing file is not an error; env alone works.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if trimmed := strings.TrimSpace(path); trimmed != "" {
		data, errRead := os.ReadFile(trimmed)
		if errRead != nil {
			if !os.IsNotExist(errRead) {
				return nil, fmt.Errorf("config: read %s: %w", trimmed, errRead)
			}
		} else if errParse := yaml.Unmarshal(data, cfg); errParse != nil {
			return nil, fmt.Errorf("config: parse %s: %w", trimmed, errParse)
		}
	}

	applyEnv(cfg)

	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("config: database dsn is required (set database.dsn or DATABASE_URL)")
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("config: jwt secret is required (set jwt.secret or JWT_SECRET)")
	}
	if cfg.Encryption.Passphrase == "" {
		return nil, fmt.Errorf("config: encryption passphrase is required (set encryption.passphrase or ENCRYPTION_KEY)")
	}
	return cfg, nil
}

// JWTExpiry returns the configured token lifetime.
func (c *Config) JWTExpiry() time.Duration {
	hours := c.JWT.ExpiryHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Server.Port = "8080"
	cfg.Server.Mode = "release"
	cfg.Redis.RateLimitPerMinute = 60
	cfg.JWT.ExpiryHours = 24
	cfg.Usage.CostPer1KTokens = 0.002
	cfg.Log.Level = "info"
	cfg.Log.MaxSizeMB = 100
	cfg.Log.MaxBackups = 5
	return cfg
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Database.DSN, "DATABASE_URL")
	setString(&cfg.Database.DSN, "DATABASE_DSN")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setString(&cfg.Encryption.Passphrase, "ENCRYPTION_KEY")
	setString(&cfg.Providers.OpenRouterReferer, "OPENROUTER_REFERER")
	setString(&cfg.Providers.OpenRouterTitle, "OPENROUTER_TITLE")
	setString(&cfg.Providers.CustomBaseURL, "CUSTOM_OAI_BASE")
	setString(&cfg.Providers.CustomModel, "CUSTOM_OAI_MODEL")
	setInt(&cfg.Redis.RateLimitPerMinute, "RATE_LIMIT_PER_MINUTE")
}

func setString(dst *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*dst = value
	}
}

func setInt(dst *int, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, errParse := strconv.Atoi(value); errParse == nil {
			*dst = parsed
		}
	}
}
