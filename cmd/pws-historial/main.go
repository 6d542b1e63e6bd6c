package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	httpapi "pws-historial/internal/api/http"
	"pws-historial/internal/collector"
	"pws-historial/internal/config"
	"pws-historial/internal/logging"
	"pws-historial/internal/scheduler"
	"pws-historial/internal/store"
	"pws-historial/internal/wunderground"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	slog.SetDefault(logging.New(cfg, "pws-historial"))

	if cfg.APIKey == "" {
		slog.Warn("WU_API_KEY (o CLAVE DE API WU) no definido; /api/wu/history responderá 500")
	}
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		slog.Error("db open failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()

	// Shared HTTP client for outbound weather.com calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	client := wunderground.NewClient(httpClient, cfg.APIKey)

	coll := collector.NewService(cfg.Stations, client, st)

	// Optional in-process daily trigger; /cron/daily stays available either way.
	sched := scheduler.New(coll, cfg.CollectAt)
	if err := sched.Start(); err != nil {
		slog.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "pws-historial",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(httpapi.NoCache())

	httpapi.RegisterRoutes(app, cfg, client, st, coll)

	// Companion front-end; API routes above take precedence.
	app.Static("/", cfg.PublicDir)

	go func() {
		slog.Info("listening", "port", cfg.Port, "stations", cfg.Stations)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("fiber server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("error during shutdown", "error", err)
	}
}
