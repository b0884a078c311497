// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full service configuration.
type Config struct {
	Server    Server
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Chain     ChainConfig
	Storage   StorageConfig
	Integrity IntegrityConfig
	Tenants   TenantsConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"NOTARY_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	JWTSigningKey   string        `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	JWTIssuer       string        `env:"JWT_ISSUER"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"` // audits download documents and decode transactions
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	AdminToken      string        `env:"ADMIN_API_TOKEN"`
}

// DatabaseConfig selects PostgreSQL. An empty URL runs with in-memory stores.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"30m"`
	AutoMigrate     bool          `env:"DATABASE_AUTO_MIGRATE" envDefault:"true"`
}

// RedisConfig enables the shared decode cache. An empty URL disables it.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// KafkaConfig enables the audit outbox relay. No brokers disables it.
type KafkaConfig struct {
	Brokers      []string      `env:"KAFKA_BROKERS" envSeparator:","`
	AuditTopic   string        `env:"AUDIT_TOPIC" envDefault:"notary.audit"`
	Partitions   int32         `env:"AUDIT_TOPIC_PARTITIONS" envDefault:"3"`
	Replicas     int16         `env:"AUDIT_TOPIC_REPLICAS" envDefault:"1"`
	PollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	BatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
}

// ChainConfig configures the registry contract. Without an RPC URL decoding
// is unavailable; without a private key or registry address new records are
// stored as written while integration was disabled.
type ChainConfig struct {
	RPCURL           string        `env:"CHAIN_RPC_URL"`
	ChainID          int64         `env:"CHAIN_ID"`
	PrivateKey       string        `env:"CHAIN_PRIVATE_KEY"`
	RegistryAddress  string        `env:"CHAIN_REGISTRY_ADDRESS"`
	TxTimeout        time.Duration `env:"CHAIN_TX_TIMEOUT" envDefault:"2m"`
	DecodeCacheTTL   time.Duration `env:"DECODE_CACHE_TTL" envDefault:"24h"`
	FailureThreshold int           `env:"CHAIN_BREAKER_FAILURES" envDefault:"5"`
	SuccessThreshold int           `env:"CHAIN_BREAKER_SUCCESSES" envDefault:"2"`
}

// StorageConfig points at the S3-compatible document store.
type StorageConfig struct {
	Endpoint  string `env:"S3_ENDPOINT"`
	Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`
	Bucket    string `env:"S3_BUCKET" envDefault:"contracts"`
	Prefix    string `env:"S3_PREFIX" envDefault:"uploads/"`
	UseSSL    bool   `env:"S3_USE_SSL" envDefault:"true"`
}

// IntegrityConfig tunes the audit engine.
type IntegrityConfig struct {
	MaxConcurrency int           `env:"AUDIT_MAX_CONCURRENCY" envDefault:"8"`
	AuditBuffer    int           `env:"AUDIT_EVENT_BUFFER" envDefault:"256"`
	RateLimit      int           `env:"AUDIT_RATE_LIMIT" envDefault:"30"` // requests per window per tenant and client IP, 0 disables
	RateWindow     time.Duration `env:"AUDIT_RATE_WINDOW" envDefault:"1m"`
}

// TenantsConfig locates the tenant registry file.
type TenantsConfig struct {
	File          string            `env:"TENANTS_FILE"`
	DefaultTenant string            `env:"DEFAULT_TENANT" envDefault:"core"`
	Hosts         map[string]string `env:"TENANT_HOSTS" envKeyValSeparator:"="`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// LoadFrom parses an explicit environment map, used by tests.
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
