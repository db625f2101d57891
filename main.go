package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"cafeapi/auth"
	"cafeapi/config"
	"cafeapi/controller"
	"cafeapi/database"
	"cafeapi/repository"
	"cafeapi/route"
	"cafeapi/service"
	"cafeapi/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := utils.NewLogger(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	slog.SetDefault(appLogger)

	sqlLogLevel := logger.Info
	if cfg.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
		sqlLogLevel = logger.Warn
	} else {
		slog.Info("running in debug mode")
	}

	db, err := database.Connect(cfg.Database.DSN, sqlLogLevel)
	if err != nil {
		slog.Error("database setup failed", "error", err)
		os.Exit(1)
	}
	defer database.Close(db)

	gate, err := auth.NewGate(cfg.Auth.APIKey)
	if err != nil {
		slog.Error("api key setup failed", "error", err)
		os.Exit(1)
	}

	cafes := service.NewCafeService(repository.NewCafeRepository(db), gate, appLogger)
	router := route.NewRouter(controller.NewCafeController(cafes), appLogger, cfg.Server.AllowedOrigins)
	slog.Info("routes configured", "allowed_origins", cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}
