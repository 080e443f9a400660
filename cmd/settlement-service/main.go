package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/commercelab/settlement/internal/order"
	"github.com/commercelab/settlement/internal/pkg/cache"
	"github.com/commercelab/settlement/internal/pkg/telemetry"
	"github.com/commercelab/settlement/internal/settlement/adapters/tossapi"
	"github.com/commercelab/settlement/internal/settlement/app"
	"github.com/commercelab/settlement/internal/settlement/ports"
	"github.com/commercelab/settlement/internal/storage/sqlite"
	"github.com/commercelab/settlement/internal/transport/httpx"
)

func main() {
	telemetry.InitLogger("settlement-service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx, getEnv("OTEL_SERVICE_NAME", "settlement-service"))
	if err != nil {
		slog.Error("failed to initialise tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	db, err := sqlite.Open(getEnv("SETTLEMENT_DB_PATH", "./data/settlement.db"))
	if err != nil {
		slog.Error("failed to open settlement database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	payments := sqlite.NewPaymentRepository(db)
	splits := sqlite.NewSplitRepository(db)
	auditLog := sqlite.NewAuditRepository(db)

	var (
		locker     ports.SplitLocker
		readyCache cache.Cache
	)
	if redisAddr := getEnv("REDIS_ADDR", ""); redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		locker = cache.NewRedisSplitLocker(client)
		readyCache = cache.NewRedisCache(client, "settlement")
	} else {
		slog.Warn("REDIS_ADDR not set, using in-process split lock (single instance only)")
		locker = cache.NewMemorySplitLocker()
	}

	var gateway ports.Gateway
	if secretKey := os.Getenv("TOSS_SECRET_KEY"); secretKey != "" {
		gateway = tossapi.NewClient(getEnv("TOSS_BASE_URL", "https://api.tosspayments.com"), secretKey)
	} else {
		slog.Warn("TOSS_SECRET_KEY not set, using fake in-memory gateway")
		gateway = tossapi.NewFakeGateway()
	}

	orders := order.NewStore(payments)

	settlement := app.NewService(
		payments, splits, locker, gateway, orders, orders, auditLog, readyCache,
		app.Config{
			ClientKey:  getEnv("TOSS_CLIENT_KEY", "test_ck_local"),
			SuccessURL: getEnv("TOSS_SUCCESS_URL", "http://localhost:8080/payments/success"),
			FailURL:    getEnv("TOSS_FAIL_URL", "http://localhost:8080/payments/fail"),
		},
	)

	handler := httpx.NewHandler(settlement, orders)
	router := httpx.NewRouter(handler)

	addr := ":" + getEnv("PORT", "8080")
	server := &http.Server{Addr: addr, Handler: router}

	go func() {
		slog.Info("settlement service running", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
