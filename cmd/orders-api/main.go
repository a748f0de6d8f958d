// Command orders-api runs the order lifecycle service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"orderdesk/internal/catalog"
	"orderdesk/internal/config"
	"orderdesk/internal/customers"
	"orderdesk/internal/httpapi"
	"orderdesk/internal/orders"
	"orderdesk/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("orders-api: %v", err)
	}
}

func run(ctx context.Context) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	providers, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	pool, err := initDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("connected to database")

	var resolver customers.Resolver = customers.NewClient(
		cfg.CustomersBaseURL, cfg.ServiceToken, cfg.CustomersTimeout, logger)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		resolver = customers.NewCachedResolver(resolver, rdb, cfg.CustomerCacheTTL, logger)
		logger.Info("customer lookup cache enabled", zap.String("redis_addr", cfg.RedisAddr))
	}

	meter := otel.GetMeterProvider().Meter(cfg.ServiceName)
	orderMetrics, err := orders.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	catalogRepo := catalog.NewPostgresRepository(pool)
	catalogUseCase := catalog.NewUseCase(catalogRepo, logger)
	catalogHandler := catalog.NewHandler(catalogUseCase)

	orderRepo := orders.NewPostgresRepository(pool)
	ledger := orders.NewPostgresLedger(pool)
	orderUseCase := orders.NewUseCase(orderRepo, ledger, resolver, logger, orderMetrics)
	orderHandler := orders.NewHandler(orderUseCase)

	router := httpapi.NewRouter(httpapi.RouterConfig{
		ServiceName:  cfg.ServiceName,
		ServiceToken: cfg.ServiceToken,
	}, catalogHandler, orderHandler)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func initDB(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
