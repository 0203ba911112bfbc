// Command feedsvc runs the Personalized Feed & Playback Continuity
// Core as a standalone HTTP service: database init and migration, a
// gin router with CORS/security-header middleware, health/ready
// endpoints, and signal-driven graceful shutdown.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"clipfeed/internal/analytics"
	"clipfeed/internal/cache"
	"clipfeed/internal/config"
	"clipfeed/internal/feed"
	"clipfeed/internal/httpapi"
	"clipfeed/internal/prefetch"
	"clipfeed/internal/progress"
	"clipfeed/internal/ranking"
	"clipfeed/internal/store"
)

const (
	serviceName    = "clipfeed"
	serviceVersion = "0.1.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	cacheStore, err := cache.Dial(context.Background(), cfg.RedisAddr(), cfg.Redis.Password, cfg.Redis.Database, cfg.Redis.KeyPrefix)
	if err != nil {
		log.Fatalf("failed to connect to cache: %v", err)
	}

	sink := analytics.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix)

	docs := store.NewBreakerStore(store.NewGormStore(db), "document-store")
	ranker := ranking.NewRanker(ranking.Weights{
		PopularityWeight:     cfg.Scoring.PopularityWeight,
		TrendingWeight:       cfg.Scoring.TrendingWeight,
		FeedPriorityWeight:   cfg.Scoring.FeedPriorityWeight,
		FeedWeightWeight:     cfg.Scoring.FeedWeightWeight,
		GenreMatchBonus:      cfg.Scoring.GenreMatchBonus,
		LanguageMatchBonus:   cfg.Scoring.LanguageMatchBonus,
		RecencyWeekBonus:     cfg.Scoring.RecencyWeekBonus,
		RecencyMonthBonus:    cfg.Scoring.RecencyMonthBonus,
		CompletionRateWeight: cfg.Scoring.CompletionRateWeight,
		JitterMax:            cfg.Scoring.JitterMax,
	}, rand.New(rand.NewSource(time.Now().UnixNano())), docs)

	planner := prefetch.NewPlanner(docs, cfg.Feed.PrefetchDefaultQuality, cfg.Feed.PrefetchDefaultEpisodes)
	progressStore := progress.NewStore(docs, cfg.Feed.CompletionThreshold)

	orchestrator := feed.New(docs, cacheStore, ranker, planner, progressStore, sink, feed.Config{
		DefaultPageSize:     20,
		MaxPageSize:         cfg.Feed.MaxPageSize,
		PerPoolSize:         cfg.Feed.PrefetchDefaultCards * 3,
		FeedCacheTTL:        cfg.Cache.ShortTTL,
		ContinueWatchingMin: cfg.Feed.ContinueWatchingMin,
		ContinueWatchingMax: cfg.Feed.ContinueWatchingMax,
		CompletionThreshold: cfg.Feed.CompletionThreshold,
		TrendingWindowDays:  cfg.Feed.TrendingWindowDays,
		FreshWindowDays:     cfg.Feed.FreshWindowDays,
	})

	router := newRouter(cfg, db, orchestrator)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	runWithGracefulShutdown(server, db, cacheStore, sink)
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormConfig := &gorm.Config{}
	if cfg.Debug {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	} else {
		gormConfig.Logger = logger.Default.LogMode(logger.Silent)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := db.AutoMigrate(store.Models()...); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Println("database connection established and migrations completed")
	return db, nil
}

func newRouter(cfg *config.Config, db *gorm.DB, orchestrator *feed.Orchestrator) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(securityHeaders())

	router.GET("/health", healthCheck())
	router.GET("/ready", readinessCheck(db))

	httpapi.RegisterRoutes(router, orchestrator)
	return router
}

func healthCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"service":   serviceName,
			"version":   serviceVersion,
			"timestamp": time.Now().UTC(),
		})
	}
}

func readinessCheck(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.Ping() != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "database": "disconnected"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "database": "connected"})
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, Accept, X-User-Id")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

func runWithGracefulShutdown(server *http.Server, db *gorm.DB, cacheStore *cache.RedisStore, sink *analytics.KafkaSink) {
	log.Printf("starting %s v%s on %s", serviceName, serviceVersion, server.Addr)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Println("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("failed to shutdown server gracefully: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	cacheStore.Close()
	sink.Close()

	log.Println("service stopped gracefully")
}
