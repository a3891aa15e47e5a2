package main

import (
	"log/slog"
	"time"

	"github.com/fastprodman/groupbuy/internal/config"
)

type apiConfig struct {
	Port            uint16        `env:"APP_PORT"`
	LogLevel        slog.Level    `env:"APP_LOG_LEVEL"`
	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT"`
	JWTSecret       string        `env:"JWT_SECRET"`
	// Empty disables CORS.
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS,optional"`

	Postgres config.PostgresConfig
	Paystack config.PaystackConfig
	Redis    config.RedisConfig
	Payments config.PaymentsConfig
}
