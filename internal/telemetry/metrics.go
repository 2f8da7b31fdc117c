package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// InitMeterProvider initializes the Prometheus exporter and MeterProvider and
// starts the Go runtime collectors. It returns an http.Handler for the
// /metrics endpoint and a shutdown function.
func InitMeterProvider(serviceName, serviceVersion string) (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	)

	mp := metric.NewMeterProvider(
		metric.WithReader(exporter),
		metric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	if err := runtime.Start(runtime.WithMeterProvider(mp)); err != nil {
		_ = mp.Shutdown(context.Background())
		return nil, nil, err
	}

	return promhttp.Handler(), mp.Shutdown, nil
}

// WorkflowMetrics counts order workflow outcomes. A nil *WorkflowMetrics
// records nothing.
type WorkflowMetrics struct {
	ordersCreated   otelmetric.Int64Counter
	transitions     otelmetric.Int64Counter
	webhookEvents   otelmetric.Int64Counter
	gatewayFailures otelmetric.Int64Counter
}

func NewWorkflowMetrics(meter otelmetric.Meter) (*WorkflowMetrics, error) {
	ordersCreated, err := meter.Int64Counter("storefront.orders.created",
		otelmetric.WithDescription("Orders created, by payment method"))
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter("storefront.orders.transitions",
		otelmetric.WithDescription("Order status transitions, by target status"))
	if err != nil {
		return nil, err
	}

	webhookEvents, err := meter.Int64Counter("storefront.webhook.events",
		otelmetric.WithDescription("Payment webhook events, by type and outcome"))
	if err != nil {
		return nil, err
	}

	gatewayFailures, err := meter.Int64Counter("storefront.payment.gateway.failures",
		otelmetric.WithDescription("Failed payment gateway calls, by operation"))
	if err != nil {
		return nil, err
	}

	return &WorkflowMetrics{
		ordersCreated:   ordersCreated,
		transitions:     transitions,
		webhookEvents:   webhookEvents,
		gatewayFailures: gatewayFailures,
	}, nil
}

func (m *WorkflowMetrics) OrderCreated(ctx context.Context, method domain.PaymentMethod) {
	if m == nil {
		return
	}
	m.ordersCreated.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("payment_method", string(method))))
}

func (m *WorkflowMetrics) Transitioned(ctx context.Context, to domain.OrderStatus) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("status", string(to))))
}

func (m *WorkflowMetrics) WebhookHandled(ctx context.Context, eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("type", eventType),
		attribute.String("outcome", outcome),
	))
}

func (m *WorkflowMetrics) GatewayFailed(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.gatewayFailures.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("operation", op)))
}
