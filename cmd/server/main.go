package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/echolingo/listening-service/internal/cache"
	"github.com/echolingo/listening-service/internal/config"
	"github.com/echolingo/listening-service/internal/handlers"
	"github.com/echolingo/listening-service/internal/models"
	"github.com/echolingo/listening-service/internal/repositories/postgres"
	"github.com/echolingo/listening-service/internal/services"
	"github.com/echolingo/listening-service/internal/session"
	"github.com/echolingo/listening-service/internal/utils"
	"github.com/echolingo/listening-service/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var logger utils.Logger
	if cfg.Environment == "production" {
		logger = utils.NewDefaultLogger()
		gin.SetMode(gin.ReleaseMode)
	} else {
		logger = utils.NewDevelopmentLogger()
	}

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := db.AutoMigrate(&models.Question{}); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	publisher, err := cfg.Events.CreateEventPublisher(utils.ToSlogLogger(logger))
	if err != nil {
		logger.Error("failed to create event publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	validator := utils.NewValidator()
	cacheService := cache.NewRedisCache(redisClient, logger)
	completions := cache.NewCompletionStore(redisClient)
	questionRepo := postgres.NewQuestionPostgreSQL(db)

	bankService := services.NewQuestionBankService(
		questionRepo, cacheService, completions, logger, validator,
		cfg.Engine.QuestionsPerTest,
	)
	sessionService := services.NewSessionService(
		bankService, completions, publisher, logger, validator,
		session.Config{
			TimerSeconds: cfg.Engine.TimerSeconds,
			SettleDelay:  cfg.Engine.SettleDelay,
			AdvanceDelay: cfg.Engine.AdvanceDelay,
			WrongDelay:   cfg.Engine.WrongDelay,
		},
		nil,
	)
	exportService := services.NewExportService(sessionService, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(logger))

	handlerManager := handlers.NewHandlerManager(sessionService, bankService, exportService, logger)
	handlerManager.SetupRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
	logger.Info("server stopped")
}
