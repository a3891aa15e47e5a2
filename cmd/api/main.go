package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fastprodman/groupbuy/internal/api"
	"github.com/fastprodman/groupbuy/internal/gateway/paystack"
	"github.com/fastprodman/groupbuy/internal/infra/logging"
	"github.com/fastprodman/groupbuy/internal/infra/metrics"
	"github.com/fastprodman/groupbuy/internal/infra/pgutils"
	"github.com/fastprodman/groupbuy/internal/infra/reflock"
	"github.com/fastprodman/groupbuy/internal/services/payments"
	"github.com/fastprodman/groupbuy/pkg/envconf"
	"github.com/fastprodman/groupbuy/pkg/shutdownqueue"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

const lockNamespace = "groupbuy:payref"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel, "api")

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	dbConns, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}

	shutdownqueue.Add("postgres", func(context.Context) error {
		return dbConns.Close()
	})

	locks, err := openLocker(ctx, cfg)
	if err != nil {
		return err
	}

	rec := metrics.New()

	gw, err := paystack.New(cfg.Paystack, rec)
	if err != nil {
		return fmt.Errorf("init paystack: %w", err)
	}

	paymentsSrv := payments.New(dbConns, gw, payments.Options{
		Locks:          locks,
		Metrics:        rec,
		TopUpMinAmount: cfg.Payments.TopUpMinAmount,
	})

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, api.Deps{
		Payments:      paymentsSrv,
		Metrics:       rec.Handler(),
		JWTSecret:     []byte(cfg.JWTSecret),
		WebhookSecret: cfg.Paystack.SecretKey,
		CORSOrigins:   cfg.CORSAllowedOrigins,
	})

	shutdownqueue.Add("http server", func(c context.Context) error {
		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started", "port", cfg.Port)

	select {
	case <-ctx.Done():
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}

// openLocker connects to redis when configured. Without redis a single
// instance still serializes through the pending payment row lock.
func openLocker(ctx context.Context, cfg *apiConfig) (reflock.Locker, error) {
	if cfg.Redis.Addr == "" {
		slog.Warn("REDIS_ADDR not set, payment reference locks disabled")
		return reflock.Noop{}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})

	err := client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	shutdownqueue.Add("redis", func(context.Context) error {
		return client.Close()
	})

	return reflock.NewRedis(client, lockNamespace, cfg.Payments.ReferenceLockTTL), nil
}
