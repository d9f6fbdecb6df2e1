package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	httpapi "github.com/i474232898/station-aggregator/internal/api/http"
	"github.com/i474232898/station-aggregator/internal/config"
	"github.com/i474232898/station-aggregator/internal/ingest/mqtt"
	"github.com/i474232898/station-aggregator/internal/logging"
	"github.com/i474232898/station-aggregator/internal/metrics"
	"github.com/i474232898/station-aggregator/internal/scheduler"
	"github.com/i474232898/station-aggregator/internal/store"
	"github.com/i474232898/station-aggregator/internal/weather"
)

const appName = "station-aggregator"

// Overridden with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg, version, appName)
	slog.SetDefault(logger)
	logger.Info("starting",
		"version", version,
		"env", cfg.Env,
		"log_level", cfg.LogLevel.String(),
		"dew_point_model", cfg.DewPointModel,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shut down")
}

func run(cfg *config.AppConfig, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	backoff := store.DefaultBackoff
	backoff.MaxRetries = cfg.SinkMaxRetries

	var (
		sinks  store.Fanout
		reader weather.SampleReader
	)
	if cfg.SQLitePath != "" {
		sqliteStore, err := store.OpenSQLite(cfg.SQLitePath, logger)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		defer func() {
			if err := sqliteStore.Close(); err != nil {
				logger.Error("close sqlite", "error", err)
			}
		}()
		sinks = append(sinks, store.NewResilient("sqlite", sqliteStore, backoff, logger))
		reader = sqliteStore
		logger.Info("sqlite sink enabled", "path", cfg.SQLitePath)
	} else {
		// In-memory store with configured retention.
		memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)
		sinks = append(sinks, memStore)
		reader = memStore
	}

	hub := weather.NewHub(cfg.Stations, func() *weather.Accumulator {
		return weather.NewAccumulator(
			weather.WithLogger(logger),
			weather.WithDewPointModel(cfg.DewPointModel),
		)
	})
	defer hub.Close()

	// MQTT is both an ingestion source and, optionally, a sample sink.
	var mqttClient *mqtt.Client
	if cfg.MQTTBroker != "" {
		mqttClient = mqtt.NewClient(cfg, logger)
		if cfg.MQTTPublishTopic != "" {
			sinks = append(sinks, store.NewResilient("mqtt", mqtt.NewSampleSink(mqttClient, cfg.MQTTPublishTopic), backoff, logger))
		}
	}

	service := weather.NewService(hub, sinks, reader,
		weather.WithServiceLogger(logger),
		weather.WithMetrics(metrics.New(reg)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if mqttClient != nil {
		mqttClient.SetHandler(mqtt.NewHandler(service, logger))
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := mqttClient.Connect(connectCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
		defer mqttClient.Disconnect()
	}

	// Scheduler that periodically closes every station period.
	sched := scheduler.New(service, cfg.FlushInterval, cfg.FlushCron, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	app := httpapi.NewApp(service, reg, cfg.Dev())
	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			logger.Error("fiber server stopped", "error", err)
			stop()
		}
	}()
	logger.Info("http server listening", "addr", cfg.HTTPAddr)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during http shutdown", "error", err)
	}
	// Flush the open periods while the sinks are still available.
	sched.Stop(shutdownCtx)
	return nil
}
