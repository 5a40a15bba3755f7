// Package config defines the service configuration, loaded from the
// environment.
package config

import (
	"fmt"
	"time"

	"github.com/bookshelf-labs/bookshelf/pkg/config"
	"github.com/bookshelf-labs/bookshelf/pkg/database"
	"github.com/bookshelf-labs/bookshelf/pkg/tracing"
)

// Config is the full service configuration.
type Config struct {
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"bookshelf-api"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Tracing  TracingConfig
	CORS     CORSConfig
	Pprof    PprofConfig
	Cache    CacheConfig
}

// PostgresConfig configures the primary datastore.
type PostgresConfig struct {
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"bookshelf"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"bookshelf"`
	DBName   string `env:"POSTGRES_DB" envDefault:"bookshelf"`
	SSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	MaxConns        int32         `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
	MinConns        int32         `env:"POSTGRES_MIN_CONNS" envDefault:"2"`
	MaxConnLifetime time.Duration `env:"POSTGRES_MAX_CONN_LIFETIME" envDefault:"30m"`
	MaxConnIdleTime time.Duration `env:"POSTGRES_MAX_CONN_IDLE_TIME" envDefault:"5m"`
}

// Pool maps the section onto the database package's pool config.
func (c PostgresConfig) Pool() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Password:        c.Password,
		DBName:          c.DBName,
		SSLMode:         c.SSLMode,
		MaxConns:        c.MaxConns,
		MinConns:        c.MinConns,
		MaxConnLifetime: c.MaxConnLifetime,
		MaxConnIdleTime: c.MaxConnIdleTime,
	}
}

// RedisConfig configures the book cache.
type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED" envDefault:"true"`
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// KafkaConfig configures the event producer.
type KafkaConfig struct {
	Enabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	Brokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled     bool    `env:"TRACING_ENABLED" envDefault:"true"`
	Endpoint    string  `env:"OTLP_ENDPOINT" envDefault:"localhost:4318"`
	SampleRatio float64 `env:"TRACE_SAMPLE_RATIO" envDefault:"1.0"`
}

// CORSConfig configures cross-origin access for the API.
type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// PprofConfig restricts the profiling endpoints to trusted networks.
type PprofConfig struct {
	AllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`
}

// CacheConfig tunes the book read cache.
type CacheConfig struct {
	BookTTL time.Duration `env:"BOOK_CACHE_TTL" envDefault:"5m"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// TracerConfig maps the tracing section onto the exporter config.
func (c *Config) TracerConfig() tracing.Config {
	tc := tracing.DefaultConfig(c.ServiceName)
	tc.Environment = c.Environment
	tc.Enabled = c.Tracing.Enabled
	tc.OTLPEndpoint = c.Tracing.Endpoint
	tc.SampleRate = c.Tracing.SampleRatio
	return tc
}
