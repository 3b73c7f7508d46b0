package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const devJWTSigningKey = "dev-secret-key-change-in-production"

// Config is the full service configuration, read from the environment.
type Config struct {
	Server     Server
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Audit      AuditConfig
	Compliance ComplianceConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string `env:"CLEARANCE_ADDR"  envDefault:":8080"`
	Environment   string `env:"CLEARANCE_ENV"   envDefault:"dev"`
	JWTSigningKey string `env:"JWT_SIGNING_KEY"`
	JWTIssuer     string `env:"JWT_ISSUER"`
}

// IsDev reports whether the service runs in local development mode.
func (s Server) IsDev() bool {
	return s.Environment == "" || s.Environment == "dev"
}

// DatabaseConfig configures the PostgreSQL connection pool.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS"    envDefault:"25"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS"    envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// RedisConfig configures the requirement-set cache.
type RedisConfig struct {
	URL             string        `env:"REDIS_URL"`
	PoolSize        int           `env:"REDIS_POOL_SIZE"        envDefault:"10"`
	MinIdleConns    int           `env:"REDIS_MIN_IDLE_CONNS"   envDefault:"2"`
	DialTimeout     time.Duration `env:"REDIS_DIAL_TIMEOUT"     envDefault:"5s"`
	ReadTimeout     time.Duration `env:"REDIS_READ_TIMEOUT"     envDefault:"3s"`
	WriteTimeout    time.Duration `env:"REDIS_WRITE_TIMEOUT"    envDefault:"3s"`
	RequirementsTTL time.Duration `env:"REDIS_REQUIREMENTS_TTL" envDefault:"5m"`
}

// KafkaConfig configures the audit dead-letter topic.
type KafkaConfig struct {
	Brokers         []string      `env:"KAFKA_BROKERS"           envSeparator:","`
	ClientID        string        `env:"KAFKA_CLIENT_ID"         envDefault:"clearance"`
	DeadLetterTopic string        `env:"KAFKA_DEADLETTER_TOPIC"  envDefault:"clearance.audit.deadletter"`
	ReplayGroup     string        `env:"KAFKA_REPLAY_GROUP"      envDefault:"clearance-audit-replay"`
	Partitions      int32         `env:"KAFKA_TOPIC_PARTITIONS"  envDefault:"1"`
	Replication     int16         `env:"KAFKA_TOPIC_REPLICATION" envDefault:"1"`
	ProduceTimeout  time.Duration `env:"KAFKA_PRODUCE_TIMEOUT"   envDefault:"5s"`
}

// AuditConfig tunes the audit write path.
type AuditConfig struct {
	WriteTimeout    time.Duration `env:"AUDIT_WRITE_TIMEOUT"    envDefault:"3s"`
	BufferSize      int           `env:"AUDIT_BUFFER_SIZE"      envDefault:"10000"`
	RetryInterval   time.Duration `env:"AUDIT_RETRY_INTERVAL"   envDefault:"5s"`
	RetryBatchSize  int           `env:"AUDIT_RETRY_BATCH_SIZE" envDefault:"100"`
	MaxAttempts     int           `env:"AUDIT_MAX_ATTEMPTS"     envDefault:"5"`
	BreakerFailures int           `env:"AUDIT_BREAKER_FAILURES" envDefault:"5"`
	BreakerCooldown time.Duration `env:"AUDIT_BREAKER_COOLDOWN" envDefault:"30s"`
}

// ComplianceConfig tunes evaluation.
type ComplianceConfig struct {
	EvaluationTimeout time.Duration `env:"EVALUATION_TIMEOUT" envDefault:"5s"`
	CatalogPath       string        `env:"REQUIREMENTS_CATALOG"`
}

// RateLimitConfig throttles override mutations per administrator.
type RateLimitConfig struct {
	Disabled        bool          `env:"RATELIMIT_DISABLED"`
	OverrideRequest int           `env:"RATELIMIT_OVERRIDE_REQUESTS" envDefault:"30"`
	OverrideWindow  time.Duration `env:"RATELIMIT_OVERRIDE_WINDOW"   envDefault:"1m"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL"  envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) finalize() error {
	if c.Server.JWTSigningKey == "" {
		if !c.Server.IsDev() {
			return errors.New("JWT_SIGNING_KEY is required outside dev")
		}
		c.Server.JWTSigningKey = devJWTSigningKey
	}
	if c.Compliance.EvaluationTimeout <= 0 {
		return errors.New("EVALUATION_TIMEOUT must be positive")
	}
	if !c.RateLimit.Disabled && c.RateLimit.OverrideWindow <= 0 {
		return errors.New("RATELIMIT_OVERRIDE_WINDOW must be positive")
	}
	if c.Audit.MaxAttempts <= 0 {
		return errors.New("AUDIT_MAX_ATTEMPTS must be positive")
	}
	return nil
}
