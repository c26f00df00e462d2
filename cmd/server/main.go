package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"qa-orchestrator/internal/adapter/qa_http"
	"qa-orchestrator/internal/adapter/repository"
	"qa-orchestrator/internal/di"
	"qa-orchestrator/internal/infra"
	"qa-orchestrator/internal/infra/config"
	"qa-orchestrator/internal/infra/logger"
	"qa-orchestrator/internal/infra/telemetry"
)

func main() {
	// 1. Load Config
	cfg := config.Load()

	// 2. Initialize Telemetry
	telemetryCfg := telemetry.ConfigFromEnv()
	telemetryCfg.ServiceName = cfg.Obs.ServiceName
	telemetryCfg.Environment = cfg.Env
	if cfg.Obs.OTLPEndpoint != "" {
		telemetryCfg.OTLPEndpoint = cfg.Obs.OTLPEndpoint
	}
	shutdownTelemetry, err := telemetry.InitProvider(context.Background(), telemetryCfg)
	if err != nil {
		slog.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	// 3. Initialize Logger
	log := logger.NewWithOTel(telemetryCfg.Enabled)
	slog.SetDefault(log)

	// 4. Initialize DB
	dbPool, err := infra.NewPostgresDB(context.Background(), cfg.DB.DSN(), infra.PoolConfig{
		MaxConns: int(cfg.DB.MaxConns),
		MinConns: int(cfg.DB.MinConns),
	})
	if err != nil {
		log.Error("failed to connect to db", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := repository.EnsureSchema(context.Background(), dbPool); err != nil {
		log.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	// 5. Wire Components
	components, err := di.NewApplicationComponents(cfg, dbPool, log)
	if err != nil {
		log.Error("failed to wire components", "error", err)
		os.Exit(1)
	}

	// 6. Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())

	// 7. Register Handlers
	handler := qa_http.NewHandler(
		components.Pipeline,
		components.Documents,
		components.Sessions,
		components.Logs,
		dbPool,
		components.Stats,
		log,
	)
	handler.Register(e)

	// 8. Start Server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		log.Info("Starting server", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	// 9. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
}
