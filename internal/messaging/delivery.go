package messaging

import "context"

// Delivery is one event received from the bus.
type Delivery struct {
	Key       string
	EventType string
	Payload   []byte
}

// HandlerFunc processes a delivery. A returned error stops the consumer
// before the delivery is acknowledged.
type HandlerFunc func(ctx context.Context, d Delivery) error
