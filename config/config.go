package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP      HTTPConfig
	Auth      AuthConfig
	Scheduler SchedulerConfig
	Matching  MatchingConfig
	S3        S3Config
	Pricing   Pricing

	DatabaseURL string
	DBPath      string
	RedisURL    string
	LogPath     string
	LogLevel    string
}

type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type AuthConfig struct {
	JWTSecret     string
	WebhookSecret string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type MatchingConfig struct {
	MinPercent int
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Pricing holds the unlock fees. There are no built-in amounts; a fee that
// is missing from the file cannot be charged.
type Pricing struct {
	Currency      string             `yaml:"currency"`
	RequestUnlock float64            `yaml:"request_unlock"`
	MatchUnlock   map[string]float64 `yaml:"match_unlock"`
}

var ErrFeeNotConfigured = errors.New("fee not configured")

const DefaultTier = "standard"

// RequestFee returns the request-level unlock fee
func (p Pricing) RequestFee() (float64, error) {
	if p.RequestUnlock <= 0 {
		return 0, fmt.Errorf("request_unlock: %w", ErrFeeNotConfigured)
	}
	return p.RequestUnlock, nil
}

// MatchFee returns the fee for unlocking one match at the given tier. An
// empty tier means DefaultTier.
func (p Pricing) MatchFee(tier string) (float64, error) {
	if tier == "" {
		tier = DefaultTier
	}
	fee, ok := p.MatchUnlock[tier]
	if !ok || fee <= 0 {
		return 0, fmt.Errorf("match_unlock.%s: %w", tier, ErrFeeNotConfigured)
	}
	return fee, nil
}

// HasTier reports whether the pricing file names tier
func (p Pricing) HasTier(tier string) bool {
	_, ok := p.MatchUnlock[tier]
	return ok
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTP: HTTPConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret:     os.Getenv("JWT_SECRET"),
			WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("MATCH_CRON"),
		},
		Matching: MatchingConfig{
			MinPercent: getEnvInt("MIN_MATCH_PERCENT", 50),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBPath:      getEnv("DB_PATH", "marketplace.db"),
		RedisURL:    os.Getenv("REDIS_URL"),
		LogPath:     getEnv("LOG_PATH", "marketplace.log"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}

	if interval := os.Getenv("MATCH_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if cfg.Matching.MinPercent < 0 || cfg.Matching.MinPercent > 100 {
		return nil, fmt.Errorf("MIN_MATCH_PERCENT must be between 0 and 100, got %d", cfg.Matching.MinPercent)
	}

	pricing, err := LoadPricing(getEnv("PRICING_PATH", "config/pricing.yaml"))
	if err != nil {
		return nil, err
	}
	cfg.Pricing = pricing

	return cfg, nil
}

// LoadPricing reads the pricing file. A missing file yields empty pricing.
func LoadPricing(path string) (Pricing, error) {
	var p Pricing
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return p, fmt.Errorf("read pricing: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse pricing %s: %w", path, err)
	}
	return p, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
