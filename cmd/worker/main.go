// Package main runs the background worker: queued event materialization,
// calendar publishing and the periodic reconcile sweep.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/daeli/backend/config"
	"github.com/daeli/backend/internal/calendar"
	"github.com/daeli/backend/internal/planner"
	"github.com/daeli/backend/internal/store"
	"github.com/daeli/backend/internal/worker"
	"github.com/daeli/backend/pkg/database"
	"github.com/daeli/backend/pkg/queue"
	"github.com/daeli/backend/pkg/redis"
	"github.com/daeli/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var records store.Store
	if cfg.Planner.StoreBackend == config.StorePostgres {
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		records = store.NewPostgres(pool)
	} else {
		records = store.NewRedis(rdb.Client, logger)
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)
	// No notifier: websocket fan-out belongs to the server processes. Events
	// created here still trigger a calendar publish through the queue.
	svc := planner.NewService(records, logger,
		planner.WithJobs(jobQueue),
		planner.WithStrictReferences(cfg.Planner.StrictReferences),
	)

	var publisher worker.CalendarPublisher
	if cfg.AWS.CalendarBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			CalendarBucket:       cfg.AWS.CalendarBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Fatal("s3", zap.Error(err))
		}
		publisher = calendar.NewPublisher(svc, s3Client, cfg.Planner.CalendarName, logger)
	}

	processor := worker.NewProcessor(svc, publisher, jobQueue, logger)
	reconciler, err := worker.NewReconciler(svc, cfg.Worker.ReconcileSchedule, logger)
	if err != nil {
		logger.Fatal("reconciler", zap.Error(err))
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Run(workerCtx)
	}()
	go func() {
		defer wg.Done()
		if err := reconciler.Run(workerCtx); err != nil {
			logger.Error("reconciler", zap.Error(err))
		}
	}()
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	wg.Wait()
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
