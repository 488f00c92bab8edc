package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ServiceName    = "camera-kingdom"
	ServiceVersion = "0.3.0"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

const (
	LogsPath      = "/otlp/v1/logs"
	TracesPath    = "/otlp/v1/traces"
	ExportTimeout = 30 * time.Second
	MaxQueueSize  = 2048
)

type Config struct {
	Port           string
	StoreDriver    string
	MongoURI       string
	MongoDB        string
	JWTSecret      string
	KafkaBrokers   []string
	EventsTopic    string
	OtelEndpoint   string
	OtelAuthHeader string
	CouponCacheTTL time.Duration
	RequestTimeout time.Duration
}

// LoadConfig reads .env when present and then the process environment.
func LoadConfig() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	couponTTL, err := time.ParseDuration(getEnv("COUPON_CACHE_TTL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("COUPON_CACHE_TTL: %w", err)
	}
	reqTimeout, err := time.ParseDuration(getEnv("REQUEST_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("REQUEST_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		StoreDriver:    getEnv("STORE_DRIVER", StoreMongo),
		MongoURI:       getEnv("MONGO_URI", ""),
		MongoDB:        getEnv("MONGO_DB", "cameraKingdom"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		KafkaBrokers:   splitCSV(getEnv("KAFKA_BROKERS", "")),
		EventsTopic:    getEnv("EVENTS_TOPIC", "order-events"),
		OtelEndpoint:   getEnv("OTEL_ENDPOINT", ""),
		OtelAuthHeader: getEnv("OTEL_AUTH_HEADER", ""),
		CouponCacheTTL: couponTTL,
		RequestTimeout: reqTimeout,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI environment variable is required for the mongo store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreMongo, StoreMemory, c.StoreDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	return nil
}

// KafkaEnabled reports whether lifecycle events are published.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// OtelEnabled reports whether traces and logs are exported.
func (c *Config) OtelEnabled() bool { return c.OtelEndpoint != "" }

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
