package main

import (
	"collaborative-spec-editor/internal/audit"
	"collaborative-spec-editor/internal/broker"
	"collaborative-spec-editor/internal/bundle"
	"collaborative-spec-editor/internal/config"
	"collaborative-spec-editor/internal/conflict"
	"collaborative-spec-editor/internal/db"
	"collaborative-spec-editor/internal/diff"
	"collaborative-spec-editor/internal/draft"
	"collaborative-spec-editor/internal/ledger"
	"collaborative-spec-editor/internal/middleware"
	"collaborative-spec-editor/internal/section"
	"collaborative-spec-editor/internal/stream"
	"collaborative-spec-editor/internal/telemetry"
	"collaborative-spec-editor/internal/user"
	"collaborative-spec-editor/internal/worker"
	"collaborative-spec-editor/redis"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func main() {
	// Load configuration
	config.LoadConfig()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Connect to database
	db.ConnectDb()
	defer db.CloseDb()

	// Migrate database schema
	db.Migrate()

	// Seed database with initial data (for development)
	db.SeedData()

	// Initialize Redis
	redis.InitRedis()

	// Background workers for audit writes
	pool := worker.NewWorkerPool(config.AppConfig.WorkerPoolSize, 1000, logger)

	// Event broker with its retention sweeper
	eventBroker := broker.New(
		config.AppConfig.BrokerBufferSize,
		config.AppConfig.SubscriberQueueSize,
		config.AppConfig.BrokerRetention,
		logger,
	)

	// Initialize repositories
	gormLedger := ledger.NewGormLedger(db.AppDb)
	conflictLog := conflict.NewLogRepository(db.AppDb)
	userRepo := user.NewRepository(db.AppDb)
	draftRepo := draft.NewRepository(db.AppDb)
	sectionRepo := section.NewRepository(db.AppDb)

	// Initialize services
	differ := diff.NewEngine()
	detector := conflict.NewDetector(gormLedger, differ, conflictLog, eventBroker, logger)
	userService := user.NewService(userRepo)
	draftService := draft.NewService(draftRepo, gormLedger)
	auditRecorder := audit.NewGormRecorder(db.AppDb, pool, logger)
	emitter := telemetry.NewRedisEmitter(redis.RedisClient, logger)
	coordinator := bundle.NewCoordinator(gormLedger, gormLedger, auditRecorder, emitter, eventBroker, logger)

	// Initialize handlers
	userHandler := user.NewHandler(userService)
	sectionHandler := section.NewHandler(sectionRepo)
	draftHandler := draft.NewHandler(draftService)
	conflictHandler := conflict.NewHandler(detector, conflictLog)
	bundleHandler := bundle.NewHandler(coordinator)
	streamHandler := stream.NewHandler(eventBroker, config.AppConfig.HeartbeatInterval, logger)

	authMw := &middleware.Auth{
		UserService:    userService,
		InternalSecret: config.AppConfig.InternalSecret,
	}

	// Initialize Gin router
	router := gin.Default()

	// cors setting
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Last-Event-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}

	if config.AppConfig.Environment == "development" {
		// Allow all origins in development
		corsConfig.AllowAllOrigins = true
	} else {
		// Restrict origins in production
		corsConfig.AllowOrigins = []string{config.AppConfig.FrontendAddress}
	}
	router.Use(cors.New(corsConfig))
	router.Use(middleware.ErrorHandler(logger))

	// User routes
	router.POST("/register", userHandler.Register)
	router.POST("/login", userHandler.Login)
	router.DELETE("/logout", authMw.AuthMiddleWare(), userHandler.Logout)
	router.GET("/profile", authMw.AuthMiddleWare(), userHandler.GetProfile)

	// Document and section routes
	router.GET("/documents/:id/sections", authMw.AuthMiddleWare(), sectionHandler.ListSections)
	router.POST("/documents/:id/bundles", authMw.AuthMiddleWare(), bundleHandler.ApplyBundle)
	router.GET("/sections/:id", authMw.AuthMiddleWare(), sectionHandler.ShowSection)
	router.POST("/sections/:id/drafts", authMw.AuthMiddleWare(), draftHandler.StartDraft)
	router.POST("/sections/:id/conflict-check", authMw.AuthMiddleWare(), conflictHandler.CheckSection)
	router.GET("/sections/:id/conflicts", authMw.AuthMiddleWare(), conflictHandler.ListConflicts)

	// Draft routes
	router.GET("/drafts/:key", authMw.AuthMiddleWare(), draftHandler.ShowDraft)
	router.PUT("/drafts/:key", authMw.AuthMiddleWare(), draftHandler.Autosave)
	router.DELETE("/drafts/:key", authMw.AuthMiddleWare(), draftHandler.DiscardDraft)

	// Server-push stream
	router.GET("/stream", authMw.AuthMiddleWare(), streamHandler.Stream)

	// internal use routes
	router.GET("/internal/sections/:id/state", authMw.InternalAuthMiddleware(), sectionHandler.ShowSectionState)

	// Server configuration
	serverPort := config.AppConfig.ServerPort
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverPort),
		Handler: router.Handler(),
	}

	// Start server
	go func() {
		logger.Info().Str("port", serverPort).Msg("server listening")
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}

	// Stop push delivery, then drain background writes
	eventBroker.Close()
	pool.Shutdown()

	logger.Info().Msg("server shutdown complete")
}
