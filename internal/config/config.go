// Package config loads server settings from an optional .env file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Auth      AuthConfig
	Nutrition NutritionConfig
	Images    ImageConfig
	Email     EmailConfig
	RateLimit RateLimitConfig
	LogLevel  slog.Level
}

type ServerConfig struct {
	Port int
	// PublicURL is the externally reachable base used in email links.
	PublicURL string
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Only set it behind a reverse proxy that overwrites those headers.
	TrustProxy bool
}

type StorageConfig struct {
	DBPath         string
	ImageCachePath string
}

type AuthConfig struct {
	JWTSecret  string
	BcryptCost int
}

type NutritionConfig struct {
	BaseURL  string
	Timeout  time.Duration
	PageSize int
}

type ImageConfig struct {
	FetchTimeout time.Duration
	MaxBytes     int64
	MaxEntries   int
	// AllowPrivate lets the image proxy fetch from loopback and private
	// network addresses.
	AllowPrivate bool
}

type EmailConfig struct {
	// AMQPURL selects the RabbitMQ notifier when set; otherwise emails are logged.
	AMQPURL  string
	Exchange string
	Timeout  time.Duration
}

type RateLimitConfig struct {
	RPS   float64 // requests per second per client IP
	Burst int
}

const minSecretLen = 16

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 3001)
	v.SetDefault("PUBLIC_URL", "http://localhost:3001")
	v.SetDefault("TRUST_PROXY", false)
	v.SetDefault("DB_PATH", "data/diary.db")
	v.SetDefault("IMAGE_CACHE_PATH", "data/images.db")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("NUTRITION_BASE_URL", "https://it.openfoodfacts.org")
	v.SetDefault("NUTRITION_TIMEOUT", "30s")
	v.SetDefault("NUTRITION_PAGE_SIZE", 15)
	v.SetDefault("IMAGE_FETCH_TIMEOUT", "10s")
	v.SetDefault("IMAGE_MAX_BYTES", 5<<20)
	v.SetDefault("IMAGE_CACHE_MAX_ENTRIES", 2000)
	v.SetDefault("IMAGE_ALLOW_PRIVATE", false)
	v.SetDefault("AMQP_EXCHANGE", "food-diary")
	v.SetDefault("EMAIL_TIMEOUT", "10s")
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("LOG_LEVEL", "info")
}

// Load reads configFile if it exists, then the environment. An empty
// configFile means ".env" in the working directory.
func Load(configFile string) (*Config, error) {
	if configFile == "" {
		configFile = ".env"
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// SetConfigFile makes viper report a missing file as a plain fs error.
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
	}

	level, err := parseLevel(v.GetString("LOG_LEVEL"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:       v.GetInt("PORT"),
			PublicURL:  strings.TrimRight(v.GetString("PUBLIC_URL"), "/"),
			TrustProxy: v.GetBool("TRUST_PROXY"),
		},
		Storage: StorageConfig{
			DBPath:         v.GetString("DB_PATH"),
			ImageCachePath: v.GetString("IMAGE_CACHE_PATH"),
		},
		Auth: AuthConfig{
			JWTSecret:  v.GetString("JWT_SECRET"),
			BcryptCost: v.GetInt("BCRYPT_COST"),
		},
		Nutrition: NutritionConfig{
			BaseURL:  v.GetString("NUTRITION_BASE_URL"),
			Timeout:  v.GetDuration("NUTRITION_TIMEOUT"),
			PageSize: v.GetInt("NUTRITION_PAGE_SIZE"),
		},
		Images: ImageConfig{
			FetchTimeout: v.GetDuration("IMAGE_FETCH_TIMEOUT"),
			MaxBytes:     v.GetInt64("IMAGE_MAX_BYTES"),
			MaxEntries:   v.GetInt("IMAGE_CACHE_MAX_ENTRIES"),
			AllowPrivate: v.GetBool("IMAGE_ALLOW_PRIVATE"),
		},
		Email: EmailConfig{
			AMQPURL:  v.GetString("AMQP_URL"),
			Exchange: v.GetString("AMQP_EXCHANGE"),
			Timeout:  v.GetDuration("EMAIL_TIMEOUT"),
		},
		RateLimit: RateLimitConfig{
			RPS:   v.GetFloat64("RATE_LIMIT_RPS"),
			Burst: v.GetInt("RATE_LIMIT_BURST"),
		},
		LogLevel: level,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < minSecretLen {
		return fmt.Errorf("config: JWT_SECRET must be at least %d characters", minSecretLen)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: PORT %d out of range", c.Server.Port)
	}
	if c.Storage.DBPath == "" {
		return errors.New("config: DB_PATH is required")
	}
	if c.Storage.ImageCachePath == "" {
		return errors.New("config: IMAGE_CACHE_PATH is required")
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	return level, nil
}
