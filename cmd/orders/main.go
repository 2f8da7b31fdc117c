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

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/coupon"
	"github.com/joao-fontenele/storefront/internal/idempotency"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/payment"
	"github.com/joao-fontenele/storefront/internal/storage"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

const (
	serviceName    = "orders"
	serviceVersion = "0.1.0"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load("8081")
	if err != nil {
		telemetry.NewLogger(os.Stdout, serviceName, slog.LevelInfo).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := telemetry.NewLogger(os.Stdout, serviceName, cfg.LogLevel)

	if err := cfg.ValidateOrders(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, serviceVersion, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	metrics, err := telemetry.NewWorkflowMetrics(otel.Meter(serviceName))
	if err != nil {
		logger.Error("failed to create workflow metrics", "error", err)
		os.Exit(1)
	}

	dsn, err := storage.WithSearchPath(cfg.Postgres.URL, storage.Schema)
	if err != nil {
		logger.Error("invalid POSTGRES_URL", "error", err)
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", dsn)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	publisher, closePublisher, err := newPublisher(ctx, cfg.Events, logger)
	if err != nil {
		logger.Error("failed to create event publisher", "error", err)
		os.Exit(1)
	}
	defer closePublisher()

	gateway := payment.NewStripeGateway(payment.StripeConfig{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Currency:      cfg.Stripe.Currency,
		SuccessURL:    cfg.Stripe.SuccessURL,
		CancelURL:     cfg.Stripe.CancelURL,
	}, nil)

	svc := orders.NewService(orders.Deps{
		Orders:      orders.NewOrderRepository(db),
		Products:    catalog.NewProductRepository(db),
		Carts:       cart.NewCartRepository(db),
		Coupons:     coupon.NewCouponRepository(db),
		Gateway:     gateway,
		Events:      publisher,
		Idempotency: idempotency.NewStore(rdb, cfg.Redis.IdempotencyTTL),
		Tx:          storage.NewTransactor(db),
		Metrics:     metrics,
		Logger:      logger,
	}, orders.Config{
		DeliveryWindow:      cfg.Workflow.DeliveryWindow,
		ReleaseReservations: cfg.Workflow.ReleaseReservations,
	})
	handler := orders.NewHandler(svc, logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsHandler)
	mux.Handle("/", handler.Routes())

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(mux, serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting orders service", "port", cfg.Port, "events_backend", cfg.Events.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

// newPublisher returns the event publisher selected by EVENTS_BACKEND and a
// function that releases it.
func newPublisher(ctx context.Context, cfg config.EventsConfig, logger *slog.Logger) (orders.EventPublisher, func(), error) {
	if cfg.Backend == config.EventsBackendNATS {
		nc, err := messaging.ConnectNATS(ctx, cfg.NATSURL, serviceName, logger)
		if err != nil {
			return nil, nil, err
		}
		return messaging.NewNATSPublisher(nc, cfg.SubjectPrefix), func() { _ = nc.Drain() }, nil
	}

	producer := messaging.NewProducer(cfg.KafkaBrokers, cfg.Topic)
	return producer, func() { _ = producer.Close() }, nil
}
