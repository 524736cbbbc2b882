// Package config loads process configuration from UH_* environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full runtime configuration of the server.
type Config struct {
	Addr          string `env:"UH_ADDR" envDefault:":8080"`
	LogLevel      string `env:"UH_LOG_LEVEL" envDefault:"info"`
	PublicBaseURL string `env:"UH_PUBLIC_BASE_URL"`

	// DatabaseURL selects PostgreSQL stores. Empty runs on in-memory stores.
	DatabaseURL string        `env:"UH_DATABASE_URL"`
	TxTimeout   time.Duration `env:"UH_TX_TIMEOUT" envDefault:"5s"`

	Redis RedisConfig
	Auth  AuthConfig
	Push  PushConfig
	Geo   GeocoderConfig
	Kafka KafkaConfig
	OTel  OTelConfig

	CORSOrigins []string `env:"UH_CORS_ORIGINS" envSeparator:"," envDefault:"*"`
}

// RedisConfig configures the geocode result cache. Empty URL disables Redis.
type RedisConfig struct {
	URL          string        `env:"UH_REDIS_URL"`
	PoolSize     int           `env:"UH_REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"UH_REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"UH_REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"UH_REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"UH_REDIS_WRITE_TIMEOUT" envDefault:"3s"`
	CacheTTL     time.Duration `env:"UH_GEOCODE_CACHE_TTL" envDefault:"168h"`
}

type AuthConfig struct {
	JWTSigningKey string `env:"UH_JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	JWTIssuer     string `env:"UH_JWT_ISSUER" envDefault:"united-help"`
	// AdminToken protects the scheduled sweep endpoints. Empty disables them.
	AdminToken string `env:"UH_ADMIN_TOKEN"`
}

// PushConfig configures the notification gateway. FCM credentials take
// precedence over GatewayURL; with neither set notifications are only logged.
type PushConfig struct {
	FCMCredentialsFile string        `env:"UH_FCM_CREDENTIALS_FILE"`
	FCMProjectID       string        `env:"UH_FCM_PROJECT_ID"`
	GatewayURL         string        `env:"UH_PUSH_GATEWAY_URL"`
	GatewayKey         string        `env:"UH_PUSH_GATEWAY_KEY"`
	BatchSize          int           `env:"UH_PUSH_BATCH_SIZE" envDefault:"500"`
	BatchTimeout       time.Duration `env:"UH_PUSH_BATCH_TIMEOUT" envDefault:"10s"`
	Concurrency        int           `env:"UH_PUSH_CONCURRENCY" envDefault:"4"`
}

// GeocoderConfig configures the location resolver. Empty URL disables resolution.
type GeocoderConfig struct {
	URL     string        `env:"UH_GEOCODER_URL"`
	Timeout time.Duration `env:"UH_GEOCODER_TIMEOUT" envDefault:"5s"`
}

// KafkaConfig configures the audit stream. No brokers disables it.
type KafkaConfig struct {
	Brokers    []string `env:"UH_KAFKA_BROKERS" envSeparator:","`
	AuditTopic string   `env:"UH_KAFKA_AUDIT_TOPIC" envDefault:"unitedhelp.audit"`
}

// OTelConfig configures trace export. Tracing stays a no-op without an endpoint.
type OTelConfig struct {
	Endpoint    string `env:"UH_OTEL_ENDPOINT"`
	Enabled     bool   `env:"UH_OTEL_ENABLED" envDefault:"true"`
	ServiceName string `env:"UH_OTEL_SERVICE_NAME" envDefault:"unitedhelp"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c Config) Validate() error {
	if c.Push.BatchSize < 1 || c.Push.BatchSize > 500 {
		return fmt.Errorf("UH_PUSH_BATCH_SIZE must be between 1 and 500, got %d", c.Push.BatchSize)
	}
	if c.Push.Concurrency < 1 {
		return fmt.Errorf("UH_PUSH_CONCURRENCY must be positive, got %d", c.Push.Concurrency)
	}
	if c.Auth.JWTSigningKey == "" {
		return fmt.Errorf("UH_JWT_SIGNING_KEY is required")
	}
	return nil
}
