package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinicore/scale-assessment-service/internal/cache"
	"github.com/clinicore/scale-assessment-service/internal/config"
	"github.com/clinicore/scale-assessment-service/internal/handlers"
	"github.com/clinicore/scale-assessment-service/internal/repositories/postgres"
	"github.com/clinicore/scale-assessment-service/internal/services"
	"github.com/clinicore/scale-assessment-service/internal/utils"
	"github.com/clinicore/scale-assessment-service/internal/validator"
	"github.com/clinicore/scale-assessment-service/pkg"
)

func main() {
	logger := utils.NewDefaultLogger()
	slogger := utils.ToSlogLogger(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Redis is optional: without it, templates are cached in process memory.
	var cacheService cache.CacheService
	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, using in-memory template cache", "error", err)
		cacheService = cache.NewMemoryCache()
	} else {
		defer redisClient.Close()
		cacheService = cache.NewRedisCache(redisClient, slogger)
	}

	eventConfig := config.LoadEventConfig()
	publisher, err := eventConfig.CreateEventPublisher(slogger)
	if err != nil {
		logger.Error("Failed to create event publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	templateRepo := postgres.NewTemplatePostgreSQL(db)
	assessmentRepo := postgres.NewAssessmentPostgreSQL(db)

	v := validator.New()
	templateService := services.NewTemplateService(templateRepo, cacheService, cfg.TemplateCacheTTL, slogger)
	assessmentService := services.NewAssessmentService(assessmentRepo, templateService, publisher, slogger, v)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(logger))

	handlerManager := handlers.NewHandlerManager(templateService, assessmentService, logger)
	handlerManager.SetupRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", "error", err)
	}
	logger.Info("Server stopped")
}
