package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const envProduction = "production"

type Config struct {
	Env        string `env:"APP_ENV" envDefault:"development"`
	ServerPort int    `env:"SERVER_PORT" envDefault:"8080"`
	ClientURL  string `env:"CLIENT_BASE_URL" envDefault:"http://localhost:5173"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	Database  DatabaseConfig  `envPrefix:"DB_"`
	JWT       JWTConfig       `envPrefix:"JWT_"`
	LoginRate RateLimitConfig `envPrefix:"LOGIN_RATE_"`
	Cache     CacheConfig
	Broker    BrokerConfig
	Snapshot  SnapshotConfig
}

type DatabaseConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"programhub"`
	Password string `env:"PASSWORD" envDefault:"password"`
	DBName   string `env:"NAME" envDefault:"programhub_db"`
	UseSSL   bool   `env:"USE_SSL" envDefault:"false"`
}

// JWTConfig holds the signing secrets and lifetimes of the two token kinds.
// The secrets must differ so that a token of one kind never verifies as
// the other.
type JWTConfig struct {
	AccessSecret  string        `env:"SECRET"`
	RefreshSecret string        `env:"REFRESH_SECRET"`
	AccessTTL     time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	RefreshTTL    time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
}

type RateLimitConfig struct {
	PerSecond float64 `env:"LIMIT" envDefault:"0.2"`
	Burst     int     `env:"BURST" envDefault:"5"`
}

// CacheConfig configures the optional Redis cache for the public
// active-program read. An empty URL disables caching.
type CacheConfig struct {
	RedisURL string        `env:"REDIS_URL"`
	Prefix   string        `env:"CACHE_PREFIX" envDefault:"programhub:"`
	TTL      time.Duration `env:"CACHE_TTL" envDefault:"5m"`
}

// BrokerConfig selects where activity log entries are fanned out to.
type BrokerConfig struct {
	Kind     string `env:"BROKER" envDefault:"none"`
	Topic    string `env:"ACTIVITY_TOPIC" envDefault:"programhub.activity"`
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL      string `env:"RABBITMQ_URL"`
	Exchange string `env:"RABBITMQ_EXCHANGE" envDefault:"programhub.activity"`
}

type PubSubConfig struct {
	ProjectID          string `env:"PUBSUB_PROJECT_ID"`
	CredentialsFile    string `env:"PUBSUB_CREDENTIALS_FILE"`
	SubscriptionSuffix string `env:"PUBSUB_SUBSCRIPTION_SUFFIX" envDefault:"-sub"`
}

// SnapshotConfig selects the object store the active program is published
// to as a static JSON document.
type SnapshotConfig struct {
	Kind  string `env:"SNAPSHOT_STORAGE" envDefault:"none"`
	Key   string `env:"SNAPSHOT_KEY" envDefault:"program/active.json"`
	Minio MinioConfig
	GCS   GCSConfig
}

type MinioConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET"`
	UseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
}

type GCSConfig struct {
	Bucket          string `env:"GCS_BUCKET"`
	ProjectID       string `env:"GCS_PROJECT_ID"`
	CredentialsFile string `env:"GCS_CREDENTIALS_FILE"`
}

// LoadConfig reads the environment, after loading a .env file when one is
// present.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	cfg.Broker.Kind = strings.ToLower(strings.TrimSpace(cfg.Broker.Kind))
	cfg.Snapshot.Kind = strings.ToLower(strings.TrimSpace(cfg.Snapshot.Kind))
	return cfg, nil
}

// IsProduction reports whether the server runs in production mode.
func (c Config) IsProduction() bool {
	return c.Env == envProduction
}

// Validate checks the settings the HTTP server cannot start without.
func (c Config) Validate() error {
	access := strings.TrimSpace(c.JWT.AccessSecret)
	refresh := strings.TrimSpace(c.JWT.RefreshSecret)
	if access == "" {
		return errors.New("JWT_SECRET is required")
	}
	if refresh == "" {
		return errors.New("JWT_REFRESH_SECRET is required")
	}
	if access == refresh {
		return errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	return nil
}
