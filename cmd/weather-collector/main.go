package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/weather-collector/internal/api/http"
	"github.com/i474232898/weather-collector/internal/config"
	"github.com/i474232898/weather-collector/internal/locations"
	"github.com/i474232898/weather-collector/internal/logging"
	"github.com/i474232898/weather-collector/internal/metrics"
	"github.com/i474232898/weather-collector/internal/queue"
	"github.com/i474232898/weather-collector/internal/scheduler"
	"github.com/i474232898/weather-collector/internal/store"
	"github.com/i474232898/weather-collector/internal/weather"
	"github.com/i474232898/weather-collector/internal/weather/providers"
)

func main() {
	once := flag.Bool("once", false, "run a single collection cycle and exit")
	flag.Parse()

	bootLogger := zap.Must(zap.NewProduction())

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		bootLogger.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		bootLogger.Fatal("failed to build logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Shared HTTP client for outbound provider and directory calls.
	httpClient := &http.Client{
		Timeout: cfg.FetchTimeout,
	}

	fetcher := providers.NewOpenMeteoProvider(httpClient, providers.OpenMeteoConfig{
		BaseURL:   cfg.WeatherAPIURL,
		Timezone:  cfg.WeatherTimezone,
		Timeout:   cfg.FetchTimeout,
		RateLimit: cfg.ProviderRateLimit,
		Burst:     cfg.ProviderRateBurst,
	}, logger.Named("openmeteo"))

	source, err := locations.NewFromConfig(cfg, httpClient, logger)
	if err != nil {
		logger.Fatal("failed to build location source", zap.Error(err))
	}

	publisher := queue.NewRabbitPublisher(queue.Config{
		URL:     cfg.RabbitMQURL,
		Queue:   cfg.QueueName,
		Timeout: cfg.PublishTimeout,
	}, logger.Named("publisher"), queue.WithMetrics(m))
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("failed to close publisher", zap.Error(err))
		}
	}()

	// Core pipeline: fetch, normalize, publish.
	service := weather.NewService(fetcher, publisher)

	status := store.NewStatusStore(cfg.StatusMaxHistory, cfg.StatusMaxAge)

	sched := scheduler.New(source, service, scheduler.Config{
		Interval:       cfg.CollectionInterval,
		Cooldown:       cfg.CycleCooldown,
		MaxConcurrency: cfg.MaxConcurrency,
	},
		scheduler.WithLogger(logger.Named("scheduler")),
		scheduler.WithStatusStore(status),
		scheduler.WithMetrics(m),
	)

	logger.Info("weather collector starting",
		zap.String("location_mode", cfg.LocationMode),
		zap.String("queue", cfg.QueueName),
		zap.Duration("interval", cfg.CollectionInterval),
		zap.String("cron", cfg.CollectionCron),
	)

	if *once {
		report := sched.RunCycle(ctx)
		logger.Info("single cycle finished",
			zap.String("result", report.Result()),
			zap.Int("published", report.Published),
			zap.Int("failed", report.Failed),
		)
		return
	}

	var app *fiber.App
	if !strings.EqualFold(cfg.HTTPAddr, "off") {
		app = fiber.New(fiber.Config{
			AppName:               "weather-collector",
			DisableStartupMessage: true,
			ReadTimeout:           10 * time.Second,
			WriteTimeout:          10 * time.Second,
			ErrorHandler:          httpapi.ErrorHandler,
		})
		app.Use(recover.New())
		app.Use(httpapi.RequestLogger(logger.Named("http")))

		httpapi.RegisterRoutes(app, httpapi.Deps{
			Scheduler: sched,
			Status:    status,
			Gatherer:  reg,
		})

		go func() {
			logger.Info("status server listening", zap.String("addr", cfg.HTTPAddr))
			if err := app.Listen(cfg.HTTPAddr); err != nil {
				logger.Error("fiber server stopped", zap.Error(err))
			}
		}()
	}

	if cfg.CollectionCron != "" {
		err = sched.RunCron(ctx, cfg.CollectionCron)
	} else {
		err = sched.Run(ctx)
	}
	if err != nil {
		logger.Error("scheduler exited", zap.Error(err))
	}

	if app != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error("error during shutdown", zap.Error(err))
		}
	}
	logger.Info("weather collector stopped")
}
