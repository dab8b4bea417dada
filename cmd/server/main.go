// Package main runs the date planner HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/daeli/backend/config"
	"github.com/daeli/backend/internal/auth"
	"github.com/daeli/backend/internal/calendar"
	"github.com/daeli/backend/internal/dates"
	"github.com/daeli/backend/internal/middleware"
	"github.com/daeli/backend/internal/planner"
	"github.com/daeli/backend/internal/realtime"
	"github.com/daeli/backend/internal/store"
	"github.com/daeli/backend/internal/worker"
	"github.com/daeli/backend/pkg/database"
	"github.com/daeli/backend/pkg/queue"
	"github.com/daeli/backend/pkg/redis"
	"github.com/daeli/backend/pkg/response"
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
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var records store.Store
	switch cfg.Planner.StoreBackend {
	case config.StorePostgres:
		records = store.NewPostgres(pool)
	default:
		records = store.NewRedis(rdb.Client, logger)
	}
	logger.Info("record store selected", zap.String("backend", cfg.Planner.StoreBackend))

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	svc := planner.NewService(records, logger,
		planner.WithNotifier(hub),
		planner.WithJobs(jobQueue),
		planner.WithStrictReferences(cfg.Planner.StrictReferences),
	)

	// Calendar feed publishing is optional; without a bucket the feed is
	// still served directly.
	var (
		links     dates.CalendarLinks
		publisher worker.CalendarPublisher
	)
	if cfg.AWS.CalendarBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			CalendarBucket:       cfg.AWS.CalendarBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			p := calendar.NewPublisher(svc, s3Client, cfg.Planner.CalendarName, logger)
			links, publisher = p, p
		}
	}

	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)
	datesHandler := dates.NewHandler(svc, links, cfg.Planner.CalendarName, logger)
	processor := worker.NewProcessor(svc, publisher, jobQueue, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/signup", authHandler.Signup)
		authGroup.POST("/login", authHandler.Login)
	}

	api := router.Group("/api")
	api.Use(middleware.JWT(jwtService), middleware.RequireCouple())
	{
		api.GET("/me", authHandler.Me)
		datesHandler.Register(api)
	}

	// Token in query for clients that cannot send headers.
	router.GET("/ws", middleware.QueryToken(jwtService), middleware.RequireCouple(), realtime.ServeWs(hub, logger))
	router.GET("/feeds/calendar.ics", middleware.QueryToken(jwtService), middleware.RequireCouple(), datesHandler.CalendarFeed)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go processor.Run(workerCtx)
	logger.Info("job processor started")

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
