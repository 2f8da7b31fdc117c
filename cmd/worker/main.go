package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/telemetry"
	"github.com/joao-fontenele/storefront/internal/worker"
)

const (
	serviceName    = "notification-worker"
	serviceVersion = "0.1.0"
)

type eventConsumer interface {
	Consume(ctx context.Context, handler messaging.HandlerFunc) error
	Close() error
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load("")
	if err != nil {
		telemetry.NewLogger(os.Stdout, serviceName, slog.LevelInfo).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := telemetry.NewLogger(os.Stdout, serviceName, cfg.LogLevel)

	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, serviceVersion, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	consumer, err := newConsumer(ctx, cfg.Events, logger)
	if err != nil {
		logger.Error("failed to create event consumer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = consumer.Close() }()

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	notificationHandler := worker.NewNotificationHandler(cfg.Services.EmailURL, httpClient, logger)

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting notification worker", "events_backend", cfg.Events.Backend, "group", cfg.Events.ConsumerGroup)

	if err := consumer.Consume(ctx, notificationHandler.Handle); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}

func newConsumer(ctx context.Context, cfg config.EventsConfig, logger *slog.Logger) (eventConsumer, error) {
	if cfg.Backend == config.EventsBackendNATS {
		nc, err := messaging.ConnectNATS(ctx, cfg.NATSURL, serviceName, logger)
		if err != nil {
			return nil, err
		}
		return messaging.NewNATSConsumer(nc, cfg.SubjectPrefix, cfg.ConsumerGroup), nil
	}

	return messaging.NewConsumer(cfg.KafkaBrokers, cfg.Topic, cfg.ConsumerGroup), nil
}
