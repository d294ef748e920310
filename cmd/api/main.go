package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"gorisk/adapters/api"
	"gorisk/adapters/postgres"
	"gorisk/app"
	"gorisk/internal"
	"gorisk/internal/config"
	"gorisk/ports"
)

func main() {
	_ = godotenv.Load()

	logger := internal.DefaultLogger

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration: %v", err)
		os.Exit(1)
	}

	var repo ports.ResultRepository
	if cfg.Database.URL != "" {
		db, err := sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			logger.Error("failed to connect to database: %v", err)
			os.Exit(1)
		}
		defer db.Close()

		pgRepo := postgres.NewResultRepository(db)
		if err := pgRepo.EnsureSchema(context.Background()); err != nil {
			logger.Error("failed to ensure schema: %v", err)
			os.Exit(1)
		}
		repo = pgRepo
		logger.Info("result caching enabled")
	} else {
		logger.Info("DATABASE_URL not set, result caching disabled")
	}

	svc := app.NewSimulationService(cfg.Engine, repo, logger)
	server := api.NewServer(svc, logger)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: server.Router(),
	}

	go func() {
		logger.Info("API server listening on :%s", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed: %v", err)
		os.Exit(1)
	}
}
