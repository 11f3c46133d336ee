package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"novafeed/app/echo-server/router"
	"novafeed/business/aggregate"
	"novafeed/business/feed"
	"novafeed/business/ingest"
	"novafeed/business/replicate"
	"novafeed/business/retention"
	"novafeed/internal/consumer"
	psqlRepo "novafeed/internal/repository/postgres"
	redisRepo "novafeed/internal/repository/redis"
	"novafeed/internal/rest"
	"novafeed/pkg/config"
	"novafeed/pkg/database"
	redisdb "novafeed/pkg/database/redis"
	"novafeed/pkg/logger"
	"novafeed/pkg/metrics"

	"novafeed/domain"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.App.Environment)
	logger.Info("Starting Novafeed", "version", cfg.App.Version)

	metrics.Init()

	db, err := database.InitPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	logger.Info("Database connected successfully")

	if err := db.AutoMigrate(
		&domain.InteractionEvent{},
		&domain.PostReplica{},
		&domain.FollowReplica{},
		&domain.LikeReplica{},
		&domain.CommentReplica{},
		&domain.CDCDeadLetter{},
		&domain.PostMetricRollup{},
		&domain.UserAuthorAffinity{},
	); err != nil {
		logger.Fatal("Failed to migrate schema", "error", err)
	}

	redisClient, err := redisdb.NewRedisClient(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", "error", err)
	}

	// Init repo
	eventLogRepo := psqlRepo.NewEventLogRepository(db)
	replicaRepo := psqlRepo.NewReplicaRepository(db)
	deadLetterRepo := psqlRepo.NewDeadLetterRepository(db)
	rollupRepo := psqlRepo.NewRollupRepository(db)
	feedRepo := psqlRepo.NewFeedRepository(db)
	dedupRepo := redisRepo.NewDedupRepository(redisClient)
	feedCacheRepo := redisRepo.NewFeedCacheRepository(redisClient)

	// Init service
	ingestService := ingest.NewIngestService(eventLogRepo, dedupRepo, ingest.DefaultConfig())
	replicationService := replicate.NewReplicationService(replicaRepo, deadLetterRepo, replicate.DefaultConfig())
	aggregationService := aggregate.NewAggregationService(rollupRepo, aggregate.DefaultConfig())
	feedService := feed.NewFeedService(feedRepo, feedRepo, feedRepo, feedRepo, feedCacheRepo, feed.DefaultConfig())

	retentionCfg := retention.DefaultConfig()
	retentionCfg.SweepInterval = time.Duration(cfg.Retention.SweepIntervalMinutes) * time.Minute
	retentionService := retention.NewRetentionService(eventLogRepo, rollupRepo, retentionCfg)

	// Background workers share one cancellation scope
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	batcher := aggregate.NewBatcher(aggregationService, aggregate.DefaultConfig())
	go batcher.Run(workerCtx)

	go retentionService.RunSweeper(workerCtx)

	// Bus consumers
	busRouter, err := consumer.NewRouter()
	if err != nil {
		logger.Fatal("Failed to build consumer router", "error", err)
	}

	if err := consumer.EnsureGroupAtTail(workerCtx, redisClient, cfg.Bus.EventsTopic, cfg.Bus.EventsGroup); err != nil {
		logger.Fatal("Failed to create events consumer group", "error", err)
	}
	if err := consumer.EnsureGroupAtTail(workerCtx, redisClient, cfg.Bus.CDCTopic, cfg.Bus.CDCGroup); err != nil {
		logger.Fatal("Failed to create cdc consumer group", "error", err)
	}

	eventsSub, err := consumer.NewGroupSubscriber(redisClient, cfg.Bus.EventsGroup, cfg.Bus.ConsumerName)
	if err != nil {
		logger.Fatal("Failed to build events subscriber", "error", err)
	}
	cdcSub, err := consumer.NewGroupSubscriber(redisClient, cfg.Bus.CDCGroup, cfg.Bus.ConsumerName)
	if err != nil {
		logger.Fatal("Failed to build cdc subscriber", "error", err)
	}

	consumer.RegisterEventsHandler(busRouter, eventsSub, cfg.Bus.EventsTopic, ingestService, batcher)
	consumer.RegisterCDCHandler(busRouter, cdcSub, cfg.Bus.CDCTopic, replicationService)

	go func() {
		if err := busRouter.Run(workerCtx); err != nil {
			logger.Error("Consumer router stopped", "error", err)
		}
	}()

	// Init handler
	feedHandler := rest.NewFeedHandler(feedService)

	// Init echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: []string{"http://localhost:3000", "http://localhost:8080"},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Setup routes
	api := e.Group("/api/v1")
	router.SetupFeedRoutes(api, feedHandler)

	// Goroutine server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server starting", "address", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Stop consumers first so no event is lost between ingest and the
	// batcher's final flush
	if err := busRouter.Close(); err != nil {
		logger.Error("Consumer router close error", "error", err)
	}

	stopWorkers()
	select {
	case <-batcher.Done():
	case <-ctx.Done():
		logger.Warn("Timed out waiting for final aggregation flush")
	}

	// Shutdown server
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	if err := redisdb.CloseRedisClient(redisClient); err != nil {
		logger.Error("Redis close error", "error", err)
	}

	logger.Info("Server stopped")
}
