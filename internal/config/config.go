package config

import (
	"time"

	"github.com/shopspring/decimal"
)

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN"`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME"`
}

type PaystackConfig struct {
	BaseURL    string        `env:"PAYSTACK_BASE_URL"`
	SecretKey  string        `env:"PAYSTACK_SECRET_KEY"`
	Timeout    time.Duration `env:"PAYSTACK_TIMEOUT"`
	MaxRetries int           `env:"PAYSTACK_MAX_RETRIES"`
	// Gateway amounts are in minor units; divide by this to get major units.
	MinorUnitDivisor int64 `env:"PAYSTACK_MINOR_UNIT_DIVISOR"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,optional"`
	Password string `env:"REDIS_PASSWORD,optional"`
}

type PaymentsConfig struct {
	TopUpMinAmount   decimal.Decimal `env:"TOPUP_MIN_AMOUNT"`
	ReferenceLockTTL time.Duration   `env:"REFERENCE_LOCK_TTL"`
}
