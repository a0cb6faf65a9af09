package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"atlas/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Ingest        IngestConfig
	ErrorTracking ErrorTrackingConfig
	Workers       WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"atlas"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS" required:"true"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"atlas"`
}

// IngestConfig tunes snapshot ingestion behavior
type IngestConfig struct {
	// Interval is the expected gap between two polling cycles for one
	// account. A ledger baseline older than this is flagged stale.
	Interval time.Duration `envconfig:"INGEST_INTERVAL" default:"5m"`

	// LockTTL bounds how long a per-account ingestion lock can be held
	LockTTL time.Duration `envconfig:"INGEST_LOCK_TTL" default:"2m"`

	// MaxLeverage caps inferred leverage multipliers
	MaxLeverage int `envconfig:"INGEST_MAX_LEVERAGE" default:"50"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// WorkerConfig contains intervals for background workers
type WorkerConfig struct {
	// AggregationInterval controls how often fills are re-aggregated into trades
	AggregationInterval time.Duration `envconfig:"WORKER_AGGREGATION_INTERVAL" default:"5m"`
	AggregationEnabled  bool          `envconfig:"WORKER_AGGREGATION_ENABLED" default:"true"`

	// AggregationLookback bounds how far back each aggregation pass re-reads fills
	AggregationLookback time.Duration `envconfig:"WORKER_AGGREGATION_LOOKBACK" default:"2160h"` // 90 days

	// AggregationWindow groups fills whose timestamps fall within it into
	// one round trip
	AggregationWindow time.Duration `envconfig:"WORKER_AGGREGATION_WINDOW" default:"1s"`
}

// Load reads configuration from the environment, optionally seeded by a .env
// file. ENV=test switches to .env.test so integration tests can run against
// dedicated databases.
func Load() (*Config, error) {
	envFile := ".env"
	if os.Getenv("ENV") == "test" {
		envFile = ".env.test"
	}

	// Missing env file is fine, variables may come from the environment
	_ = godotenv.Load(envFile)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "process env config")
	}

	return &cfg, nil
}
