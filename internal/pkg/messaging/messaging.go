package messaging

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrUnsupported is returned when the broker cannot honor a message option.
	ErrUnsupported = errors.New("messaging: unsupported operation")
	// ErrDestinationRequired is returned for an empty topic or subject.
	ErrDestinationRequired = errors.New("messaging: destination is required")
)

// Publisher sends messages to a destination (topic or subject).
type Publisher interface {
	io.Closer
	Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error)
}

// OutgoingMessage is a broker-agnostic message.
type OutgoingMessage struct {
	Body []byte
	// Key is used for partitioning where the broker supports it.
	Key []byte
	// Headers are mapped to native headers or string attributes. NSQ has
	// neither and drops them.
	Headers []Header
	// Delay requests deferred delivery. Only NSQ supports it.
	Delay time.Duration
}

// Header is a message header.
type Header struct {
	Key   string
	Value []byte
}

// PublishResult carries what the broker reports back.
type PublishResult struct {
	MessageID string
	Topic     string
	Timestamp time.Time
}

func checkPublish(ctx context.Context, destination string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if destination == "" {
		return ErrDestinationRequired
	}
	return nil
}
