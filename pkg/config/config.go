package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	LocalStore   LocalStoreConfig
	Gateway      GatewayConfig
	Redis        RedisConfig
	Session      SessionConfig
	Idempotency  IdempotencyConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.LocalStore.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"7381"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// LocalStoreConfig describes the on-device guest cart database. SQLite is the
// shipping configuration; postgres exists for the hosted test rigs.
type LocalStoreConfig struct {
	Driver string `envconfig:"STOREFRONT_STORE_DRIVER" default:"sqlite"`
	DSN    string `envconfig:"STOREFRONT_STORE_DSN" default:"file:storefront.db?_journal_mode=WAL&_busy_timeout=5000"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_STORE_MAX_OPEN_CONNS" default:"1"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_STORE_MAX_IDLE_CONNS" default:"1"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_STORE_CONN_MAX_LIFETIME" default:"1h"`
}

func (s LocalStoreConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Driver)) {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported local store driver %q", s.Driver)
	}
	if strings.TrimSpace(s.DSN) == "" {
		return fmt.Errorf("%s is required", EnvStoreDSN)
	}
	return nil
}

// GatewayConfig points at the marketplace cart API.
type GatewayConfig struct {
	BaseURL   string        `envconfig:"STOREFRONT_GATEWAY_BASE_URL" required:"true"`
	Timeout   time.Duration `envconfig:"STOREFRONT_GATEWAY_TIMEOUT" default:"15s"`
	UserAgent string        `envconfig:"STOREFRONT_GATEWAY_USER_AGENT" default:"openbasket-storefront/1.0"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// SessionConfig governs how the marketplace-issued token is cached and read.
// The upstream signs and verifies its own tokens; the edge only inspects
// claims, so no secret lives here.
type SessionConfig struct {
	Issuer       string        `envconfig:"STOREFRONT_SESSION_ISSUER"`
	TokenTTLCap  time.Duration `envconfig:"STOREFRONT_SESSION_TOKEN_TTL_CAP" default:"720h"`
	ExpiryLeeway time.Duration `envconfig:"STOREFRONT_SESSION_EXPIRY_LEEWAY" default:"30s"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"STOREFRONT_IDEMPOTENCY_TTL" default:"24h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"true"`
}
