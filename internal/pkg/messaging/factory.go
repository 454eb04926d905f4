package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	// DriverNone discards every message.
	DriverNone = "none"
	// DriverMemory keeps messages in process.
	DriverMemory = "memory"
	// DriverNSQ selects the NSQ backend.
	DriverNSQ = "nsq"
	// DriverNATS selects the NATS backend.
	DriverNATS = "nats"
	// DriverKafka selects the Kafka backend.
	DriverKafka = "kafka"
	// DriverGooglePubSub selects the Google Pub/Sub backend.
	DriverGooglePubSub = "google-pubsub"
)

// ErrUnknownDriver indicates an unsupported messaging driver.
var ErrUnknownDriver = errors.New("messaging: unknown driver")

// FactoryOptions groups config for supported messaging backends.
type FactoryOptions struct {
	NSQ    NSQConfig
	Kafka  KafkaConfig
	NATS   NATSConfig
	PubSub PubSubConfig
}

// NewFromDriver constructs a Publisher by driver name. An empty driver is none.
func NewFromDriver(ctx context.Context, driver string, opts FactoryOptions) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverNone:
		return Noop{}, nil
	case DriverMemory:
		return NewMemory(), nil
	case DriverNSQ:
		return NewNSQ(opts.NSQ)
	case DriverKafka:
		return NewKafka(opts.Kafka)
	case DriverNATS:
		return NewNATS(opts.NATS)
	case DriverGooglePubSub:
		return NewPubSub(ctx, opts.PubSub)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}
