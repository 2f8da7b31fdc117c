package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const natsFlushTimeout = 2 * time.Second

// ConnectNATS dials the server with reconnects enabled, retrying the initial
// connection a few times.
func ConnectNATS(ctx context.Context, url, name string, logger *slog.Logger) (*nats.Conn, error) {
	var lastErr error

	for attempt := 1; attempt <= 3; attempt++ {
		nc, err := nats.Connect(url,
			nats.Name(name),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("nats disconnected", "error", err)
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.Info("nats reconnected", "url", nc.ConnectedUrl())
			}),
		)
		if err == nil {
			return nc, nil
		}

		lastErr = err
		logger.Warn("failed to connect to nats", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to nats: %w", ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}

	return nil, fmt.Errorf("connect to nats after retries: %w", lastErr)
}

// Subject returns the subject an event is published on: the prefix followed
// by the event name, e.g. "storefront.order.paid".
func Subject(prefix, event string) string {
	if event == "" {
		return prefix
	}
	return prefix + "." + event
}

type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

func NewNATSPublisher(nc *nats.Conn, prefix string) *NATSPublisher {
	return &NATSPublisher{nc: nc, prefix: prefix}
}

func (p *NATSPublisher) Publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	name := eventName(event)
	subject := Subject(p.prefix, name)

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(HeaderKey, key)
	if name != "" {
		msg.Header.Set(HeaderEventType, name)
	}

	ctx, span := producerTracer.Start(ctx, spanName("send", subject, ""),
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKey.String("nats"),
			semconv.MessagingOperationName("send"),
			semconv.MessagingOperationTypePublish,
			semconv.MessagingDestinationName(subject),
			attribute.String("storefront.event_type", name),
		),
	)
	defer span.End()

	otel.GetTextMapPropagator().Inject(ctx, natsCarrier(msg))

	if err := p.nc.PublishMsg(msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := p.nc.FlushTimeout(natsFlushTimeout); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

// NATSConsumer receives events through a queue group, so each event is
// handled by one worker instance.
type NATSConsumer struct {
	nc      *nats.Conn
	subject string
	queue   string
}

// NewNATSConsumer subscribes to every event under prefix.
func NewNATSConsumer(nc *nats.Conn, prefix, queue string) *NATSConsumer {
	return &NATSConsumer{
		nc:      nc,
		subject: prefix + ".>",
		queue:   queue,
	}
}

func (c *NATSConsumer) Consume(ctx context.Context, handler HandlerFunc) error {
	msgs := make(chan *nats.Msg, 64)

	sub, err := c.nc.ChanQueueSubscribe(c.subject, c.queue, msgs)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.subject, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-msgs:
			if err := c.processMessage(ctx, msg, handler); err != nil {
				return err
			}
		}
	}
}

func (c *NATSConsumer) processMessage(ctx context.Context, msg *nats.Msg, handler HandlerFunc) error {
	carrier := natsCarrier(msg)
	delivery := Delivery{
		Key:       carrier.Get(HeaderKey),
		EventType: carrier.Get(HeaderEventType),
		Payload:   msg.Data,
	}

	parentCtx := otel.GetTextMapPropagator().Extract(ctx, carrier)

	spanCtx, span := consumerTracer.Start(parentCtx, spanName("process", msg.Subject, ""),
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKey.String("nats"),
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(msg.Subject),
			attribute.String("messaging.consumer.group.name", c.queue),
		),
	)
	defer span.End()

	if err := handler(spanCtx, delivery); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

// Close drains the connection, letting in-flight messages finish.
func (c *NATSConsumer) Close() error {
	return c.nc.Drain()
}
