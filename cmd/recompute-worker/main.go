package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/medisched/clinic-scheduling/internal/config"
	"github.com/medisched/clinic-scheduling/internal/db"
	"github.com/medisched/clinic-scheduling/internal/treatment"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("recompute-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config load error", zap.Error(err))
	}

	logger.Info("running recompute worker",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval),
		zap.Int("batch", cfg.WorkerBatch))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	store := treatment.NewPgStore(pgPool)
	ledger := treatment.NewLedger(store, cfg.ConsumeCompletedOnly, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	// Run one sweep immediately, then on every tick. Recompute is a pure
	// re-derivation, so a sweep overlapping a triggered recompute is harmless.
	sweep(rootCtx, ledger, cfg.WorkerBatch, logger)

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("recompute-worker shutting down")
			return
		case <-ticker.C:
			sweep(rootCtx, ledger, cfg.WorkerBatch, logger)
		}
	}
}

func sweep(ctx context.Context, ledger *treatment.Ledger, batch int, logger *zap.Logger) {
	start := time.Now()
	done, err := ledger.RecomputeActive(ctx, batch)
	if err != nil {
		logger.Error("sweep failed", zap.Error(err))
		return
	}
	logger.Info("sweep complete", zap.Int("packages", done), zap.Duration("took", time.Since(start)))
}
