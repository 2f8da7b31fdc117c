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
	"github.com/joao-fontenele/storefront/internal/gateway"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

const (
	serviceName    = "gateway"
	serviceVersion = "0.1.0"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load("8080")
	if err != nil {
		telemetry.NewLogger(os.Stdout, serviceName, slog.LevelInfo).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := telemetry.NewLogger(os.Stdout, serviceName, cfg.LogLevel)

	if err := cfg.ValidateGateway(); err != nil {
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

	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	ordersProxy := gateway.NewServiceProxy(cfg.Services.OrdersURL, httpClient)
	catalogProxy := gateway.NewServiceProxy(cfg.Services.CatalogURL, httpClient)
	handler := gateway.NewHandler(ordersProxy, catalogProxy, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(handler.HandleOrders))
	mux.HandleFunc("POST /orders", telemetry.WithHTTPRoute(handler.HandleOrders))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(handler.HandleOrders))
	mux.HandleFunc("POST /orders/{id}/checkout", telemetry.WithHTTPRoute(handler.HandleOrders))
	mux.HandleFunc("PATCH /orders/{id}/refund", telemetry.WithHTTPRoute(handler.HandleOrders))
	mux.HandleFunc("PATCH /orders/{id}/deliver", telemetry.WithHTTPRoute(handler.HandleOrders))
	mux.HandleFunc("POST /webhooks/stripe", telemetry.WithHTTPRoute(handler.HandleOrders))
	mux.HandleFunc("GET /products", telemetry.WithHTTPRoute(handler.HandleCatalog))
	mux.HandleFunc("GET /products/{id}", telemetry.WithHTTPRoute(handler.HandleCatalog))
	mux.HandleFunc("POST /products/{id}/restock", telemetry.WithHTTPRoute(handler.HandleCatalog))
	mux.HandleFunc("GET /cart", telemetry.WithHTTPRoute(handler.HandleCatalog))
	mux.HandleFunc("POST /cart/items", telemetry.WithHTTPRoute(handler.HandleCatalog))
	mux.HandleFunc("PATCH /cart/items/{productId}", telemetry.WithHTTPRoute(handler.HandleCatalog))
	mux.HandleFunc("DELETE /cart/items/{productId}", telemetry.WithHTTPRoute(handler.HandleCatalog))
	mux.HandleFunc("POST /coupons", telemetry.WithHTTPRoute(handler.HandleCatalog))
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(mux, serviceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting gateway service", "port", cfg.Port)
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
