package messaging

import (
	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventType = "event_type"
	HeaderKey       = "event_key"
)

// MessageCarrier adapts Kafka message headers for trace context propagation.
type MessageCarrier struct {
	msg *kafka.Message
}

func NewMessageCarrier(msg *kafka.Message) *MessageCarrier {
	return &MessageCarrier{msg: msg}
}

func (c *MessageCarrier) Get(key string) string {
	for _, h := range c.msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *MessageCarrier) Set(key, value string) {
	for i, h := range c.msg.Headers {
		if h.Key == key {
			c.msg.Headers[i].Value = []byte(value)
			return
		}
	}
	c.msg.Headers = append(c.msg.Headers, kafka.Header{
		Key:   key,
		Value: []byte(value),
	})
}

func (c *MessageCarrier) Keys() []string {
	keys := make([]string, len(c.msg.Headers))
	for i, h := range c.msg.Headers {
		keys[i] = h.Key
	}
	return keys
}

// NATSCarrier adapts NATS message headers for trace context propagation.
// NATS header keys are case sensitive, unlike HTTP ones.
type NATSCarrier struct {
	msg *nats.Msg
}

func natsCarrier(msg *nats.Msg) NATSCarrier {
	if msg.Header == nil {
		msg.Header = nats.Header{}
	}
	return NATSCarrier{msg: msg}
}

func (c NATSCarrier) Get(key string) string {
	return c.msg.Header.Get(key)
}

func (c NATSCarrier) Set(key, value string) {
	c.msg.Header.Set(key, value)
}

func (c NATSCarrier) Keys() []string {
	keys := make([]string, 0, len(c.msg.Header))
	for k := range c.msg.Header {
		keys = append(keys, k)
	}
	return keys
}

// eventName returns the routing name of events that expose one.
func eventName(event any) string {
	if named, ok := event.(interface{ EventName() string }); ok {
		return named.EventName()
	}
	return ""
}

func spanName(op, destination, event string) string {
	if event == "" {
		return op + " " + destination
	}
	return op + " " + destination + " " + event
}
