package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server captures process level configuration. Empty backing-service URLs select
// the in-process implementation of that collaborator.
type Server struct {
	Addr           string `env:"INSURELY_ADDR" envDefault:":8080"`
	AdminPrincipal string `env:"INSURELY_ADMIN_PRINCIPAL" envDefault:"admin"`
	// DevTokens enables POST /dev/tokens for minting bearer tokens locally.
	DevTokens bool `env:"INSURELY_DEV_TOKENS" envDefault:"false"`

	JWT      JWTConfig      `envPrefix:"INSURELY_JWT_"`
	Database DatabaseConfig `envPrefix:"INSURELY_DATABASE_"`
	Redis    RedisConfig    `envPrefix:"INSURELY_REDIS_"`
	Kafka    KafkaConfig    `envPrefix:"INSURELY_KAFKA_"`
	Treasury TreasuryConfig `envPrefix:"INSURELY_TREASURY_"`
	Lock     LockConfig     `envPrefix:"INSURELY_LOCK_"`
	Log      LogConfig      `envPrefix:"INSURELY_LOG_"`
	OTel     OTelConfig     `envPrefix:"INSURELY_OTEL_"`
}

// DevSigningKey is the built-in JWT key. It is only accepted together with
// DevTokens, where any caller can mint tokens anyway.
const DevSigningKey = "dev-secret-key-change-in-production"

type JWTConfig struct {
	SigningKey string `env:"SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	Issuer     string `env:"ISSUER" envDefault:"insurely"`
	Audience   string `env:"AUDIENCE" envDefault:"insurely-api"`
}

type DatabaseConfig struct {
	URL             string        `env:"URL"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
	TxTimeout       time.Duration `env:"TX_TIMEOUT" envDefault:"5s"`
}

type RedisConfig struct {
	URL          string        `env:"URL"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
}

type KafkaConfig struct {
	Brokers           []string `env:"BROKERS" envSeparator:","`
	Topic             string   `env:"TOPIC" envDefault:"insurely.lifecycle"`
	Partitions        int32    `env:"PARTITIONS" envDefault:"3"`
	ReplicationFactor int16    `env:"REPLICATION_FACTOR" envDefault:"1"`
	BufferSize        int      `env:"BUFFER_SIZE" envDefault:"1024"`
}

type TreasuryConfig struct {
	URL     string        `env:"URL"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

type LockConfig struct {
	// TTL bounds how long a distributed lock survives a crashed holder. It must
	// exceed the treasury timeout.
	TTL          time.Duration `env:"TTL" envDefault:"30s"`
	RetryBackoff time.Duration `env:"RETRY_BACKOFF" envDefault:"25ms"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

type OTelConfig struct {
	Endpoint    string `env:"ENDPOINT"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"insurely"`
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (c Server) validate() error {
	if c.AdminPrincipal == "" {
		return fmt.Errorf("INSURELY_ADMIN_PRINCIPAL must not be empty")
	}
	if c.JWT.SigningKey == "" {
		return fmt.Errorf("INSURELY_JWT_SIGNING_KEY must not be empty")
	}
	if !c.DevTokens && c.JWT.SigningKey == DevSigningKey {
		return fmt.Errorf("INSURELY_JWT_SIGNING_KEY must be set unless INSURELY_DEV_TOKENS is enabled")
	}
	if c.Redis.URL != "" && c.Lock.TTL <= c.Treasury.Timeout {
		return fmt.Errorf("lock TTL (%s) must exceed treasury timeout (%s)", c.Lock.TTL, c.Treasury.Timeout)
	}
	return nil
}
