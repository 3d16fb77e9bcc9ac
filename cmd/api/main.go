package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/surveyplot/internal/adapters/http"
	natsadapter "github.com/samirrijal/surveyplot/internal/adapters/nats"
	"github.com/samirrijal/surveyplot/internal/adapters/postgres"
	"github.com/samirrijal/surveyplot/internal/adapters/valkey"
	"github.com/samirrijal/surveyplot/internal/core/ports"
	"github.com/samirrijal/surveyplot/internal/core/usecases"
	"github.com/samirrijal/surveyplot/internal/pkg/config"
	"github.com/samirrijal/surveyplot/internal/pkg/logging"
	"github.com/samirrijal/surveyplot/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("surveyplot-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(cfg.Telemetry.ServiceName, logLevel, os.Getenv("LOG_FORMAT"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}

	deps := &http.Dependencies{}

	// Cache
	var cache ports.CacheService
	if c, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable, caching disabled", "error", err)
	} else {
		defer c.Close()
		cache = c
		deps.Cache = c
	}

	deps.Survey = usecases.NewSurveyService(cache, usecases.SurveyOptions{
		PrecisionThreshold: cfg.Survey.PrecisionThreshold,
		Labels:             cfg.Survey.LabelOptions(),
		ViewPadding:        cfg.Survey.ViewPadding,
		CacheTTLSeconds:    cfg.Survey.CacheTTLSeconds,
	})

	// NATS
	var publisher ports.EventPublisher
	if p, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, events disabled", "error", err)
	} else {
		defer p.Close()
		publisher = p
	}

	// Raw NATS connection for WebSocket relay
	if nc, err := natsadapter.RawConn(cfg.NATS.URL); err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer nc.Close()
		deps.NATS = nc
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		slog.Warn("database unavailable, plot storage disabled", "error", err)
	} else {
		defer db.Close()
		deps.DB = db
		deps.Plots = usecases.NewPlotService(postgres.NewPlotRepo(db), publisher, deps.Survey)
		go db.ReportPoolStats(ctx, 15*time.Second)
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    4 * 1024 * 1024, // KML documents can be large
		AppName:      "Surveyplot API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
