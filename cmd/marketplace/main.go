// Package main запускает HTTP-сервер маркетплейса.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/marketplace/internal/config"
	"github.com/mmeshcher/marketplace/internal/handler"
	"github.com/mmeshcher/marketplace/internal/middleware"
	"github.com/mmeshcher/marketplace/internal/notify"
	"github.com/mmeshcher/marketplace/internal/oracle"
	"github.com/mmeshcher/marketplace/internal/repository"
	"github.com/mmeshcher/marketplace/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	var repo service.Repository
	if cfg.DatabaseURI != "" {
		repo, err = repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
	} else {
		sugar.Warn("DATABASE_URI is empty, using in-memory storage")
		repo = repository.NewMemoryRepository()
	}

	var priceOracle service.PriceOracle
	if cfg.PriceOracleAddress != "" {
		priceOracle = oracle.NewAdapter(oracle.NewClient(cfg.PriceOracleAddress), cfg.PriceMaxAge, nil)
	} else {
		sugar.Warn("PRICE_ORACLE_ADDRESS is empty, token payments are disabled")
	}

	sinks := notify.Multi{notify.NewLogSink(logger)}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink := notify.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
	}

	svc := service.NewService(repo, priceOracle, sinks, service.Config{
		TimeToLock:     cfg.TimeToLock,
		NativeDecimals: cfg.NativeDecimals,
		TokenDecimals:  cfg.TokenDecimals,
		Treasury:       cfg.TreasuryAccount,
		TokenTreasury:  cfg.TokenTreasuryAccount,
		PriceFeedID:    cfg.PriceFeedID,
	})
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware).
		WithMetrics(middleware.NewMetrics(prometheus.DefaultRegisterer), prometheus.DefaultGatherer)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting marketplace server",
			"addr", cfg.RunAddress,
			"time_to_lock", cfg.TimeToLock,
			"kafka", len(cfg.KafkaBrokers) > 0,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
