// Package config loads service settings from the environment. A .env file in
// the working directory, when present, is read first and never overrides
// variables that are already set.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EventsBackendKafka = "kafka"
	EventsBackendNATS  = "nats"
)

type Config struct {
	Port     string
	LogLevel slog.Level

	Postgres  PostgresConfig
	Redis     RedisConfig
	Events    EventsConfig
	Stripe    StripeConfig
	Workflow  WorkflowConfig
	Telemetry TelemetryConfig
	Services  ServicesConfig
}

type PostgresConfig struct {
	URL string
}

type RedisConfig struct {
	URL            string
	IdempotencyTTL time.Duration
}

type EventsConfig struct {
	Backend      string
	KafkaBrokers []string
	Topic        string
	NATSURL      string
	// SubjectPrefix is the NATS subject root events are published under.
	SubjectPrefix string
	ConsumerGroup string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	SuccessURL    string
	CancelURL     string
}

type WorkflowConfig struct {
	DeliveryWindow      time.Duration
	ReleaseReservations bool
}

type TelemetryConfig struct {
	OTLPEndpoint string
}

type ServicesConfig struct {
	OrdersURL  string
	CatalogURL string
	EmailURL   string
}

// Load reads every setting any binary needs. Callers validate the subset
// they use with the Validate* methods.
func Load(defaultPort string) (*Config, error) {
	_ = godotenv.Load()

	var errs []error

	cfg := &Config{
		Port: getEnv("PORT", defaultPort),
		Postgres: PostgresConfig{
			URL: getEnv("POSTGRES_URL", ""),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		},
		Events: EventsConfig{
			Backend:       strings.ToLower(getEnv("EVENTS_BACKEND", EventsBackendKafka)),
			KafkaBrokers:  splitList(getEnv("KAFKA_BROKERS", "")),
			Topic:         getEnv("EVENTS_TOPIC", "storefront.orders"),
			NATSURL:       getEnv("NATS_URL", "nats://localhost:4222"),
			SubjectPrefix: getEnv("EVENTS_SUBJECT_PREFIX", "storefront"),
			ConsumerGroup: getEnv("EVENTS_CONSUMER_GROUP", "notification-worker"),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Currency:      strings.ToLower(getEnv("STRIPE_CURRENCY", "egp")),
			SuccessURL:    getEnv("STRIPE_SUCCESS_URL", "http://localhost:8080/orders?checkout=success"),
			CancelURL:     getEnv("STRIPE_CANCEL_URL", "http://localhost:8080/orders?checkout=cancelled"),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		},
		Services: ServicesConfig{
			OrdersURL:  getEnv("ORDERS_SERVICE_URL", ""),
			CatalogURL: getEnv("CATALOG_SERVICE_URL", ""),
			EmailURL:   getEnv("EMAIL_SERVICE_URL", ""),
		},
	}

	var err error
	if cfg.LogLevel, err = parseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		errs = append(errs, err)
	}
	if cfg.Redis.IdempotencyTTL, err = getDuration("IDEMPOTENCY_TTL", 72*time.Hour); err != nil {
		errs = append(errs, err)
	}
	if cfg.Workflow.DeliveryWindow, err = getDuration("DELIVERY_WINDOW", 48*time.Hour); err != nil {
		errs = append(errs, err)
	}
	if cfg.Workflow.ReleaseReservations, err = getBool("RELEASE_RESERVATIONS", true); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}

	return cfg, nil
}

func (c *Config) ValidateOrders() error {
	var errs []error
	if c.Postgres.URL == "" {
		errs = append(errs, errors.New("POSTGRES_URL is required"))
	}
	if c.Redis.URL == "" {
		errs = append(errs, errors.New("REDIS_URL is required"))
	}
	if c.Stripe.SecretKey == "" {
		errs = append(errs, errors.New("STRIPE_SECRET_KEY is required"))
	}
	if c.Stripe.WebhookSecret == "" {
		errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required"))
	}
	if c.Workflow.DeliveryWindow <= 0 {
		errs = append(errs, errors.New("DELIVERY_WINDOW must be positive"))
	}
	errs = append(errs, c.validateEvents())
	return errors.Join(errs...)
}

func (c *Config) ValidateDatabase() error {
	if c.Postgres.URL == "" {
		return errors.New("POSTGRES_URL is required")
	}
	return nil
}

func (c *Config) ValidateWorker() error {
	var errs []error
	if c.Services.EmailURL == "" {
		errs = append(errs, errors.New("EMAIL_SERVICE_URL is required"))
	}
	if c.Events.ConsumerGroup == "" {
		errs = append(errs, errors.New("EVENTS_CONSUMER_GROUP is required"))
	}
	errs = append(errs, c.validateEvents())
	return errors.Join(errs...)
}

func (c *Config) ValidateGateway() error {
	var errs []error
	if c.Services.OrdersURL == "" {
		errs = append(errs, errors.New("ORDERS_SERVICE_URL is required"))
	}
	if c.Services.CatalogURL == "" {
		errs = append(errs, errors.New("CATALOG_SERVICE_URL is required"))
	}
	return errors.Join(errs...)
}

func (c *Config) validateEvents() error {
	switch c.Events.Backend {
	case EventsBackendKafka:
		if len(c.Events.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when EVENTS_BACKEND=kafka")
		}
		if c.Events.Topic == "" {
			return errors.New("EVENTS_TOPIC is required")
		}
	case EventsBackendNATS:
		if c.Events.NATSURL == "" {
			return errors.New("NATS_URL is required when EVENTS_BACKEND=nats")
		}
	default:
		return fmt.Errorf("EVENTS_BACKEND must be %q or %q, got %q", EventsBackendKafka, EventsBackendNATS, c.Events.Backend)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func parseLevel(value string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
