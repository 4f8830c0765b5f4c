package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wiretrace/wiretrace/internal/config"
	"github.com/wiretrace/wiretrace/internal/handler"
	"github.com/wiretrace/wiretrace/internal/middleware"
	"github.com/wiretrace/wiretrace/internal/pkg/logger"
	"github.com/wiretrace/wiretrace/internal/repository"
	"github.com/wiretrace/wiretrace/internal/service"
	"github.com/wiretrace/wiretrace/internal/stream"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Log.Level)

	// 2. Initialize Persistence
	db, err := repository.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	eventRepo, err := repository.NewSQLiteEventRepo(db)
	if err != nil {
		log.Fatalf("Failed to prepare events table: %v", err)
	}
	logger.Info("Database ready", "path", cfg.Database.Path)

	// 3. Initialize Core Services
	broadcaster := stream.NewBroadcaster(cfg.Stream.BufferSize)
	ingestSvc := service.NewIngestService(eventRepo, broadcaster)
	querySvc := service.NewQueryService(eventRepo)

	// 4. Initialize Handlers
	eventHandler := handler.NewEventHandler(ingestSvc, querySvc)
	streamHandler := handler.NewStreamHandler(broadcaster)

	// 5. Setup Router
	r := gin.Default()

	// Global Middleware
	r.Use(cors.Default())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())

	// Health Check
	r.GET("/health", eventHandler.Health)

	// Metrics Endpoint
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// Live observer streams
	r.GET("/events/stream", streamHandler.SSE)
	r.GET("/events/ws", streamHandler.WebSocket)

	// Ingestion and queries
	r.POST("/events",
		middleware.RateLimitMiddleware(cfg.Ingest.RateLimitRPS, cfg.Ingest.RateLimitBurst),
		middleware.BodyLimitMiddleware(cfg.Ingest.MaxRequestBytes),
		eventHandler.Ingest)
	r.GET("/events", eventHandler.List)
	r.GET("/events/:id", eventHandler.Get)
	r.GET("/hosts", eventHandler.Hosts)
	r.POST("/clear", eventHandler.Clear)

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("wiretrace collector started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down collector...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	broadcaster.Close()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}
	if err := db.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	}

	logger.Info("Collector exiting")
}
