package messaging

import (
	"context"
	"io"
	"strconv"
	"sync"
	"time"
)

// Noop discards messages.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(ctx context.Context, destination string, _ OutgoingMessage) (PublishResult, error) {
	if err := checkPublish(ctx, destination); err != nil {
		return PublishResult{}, err
	}
	return PublishResult{Topic: destination, Timestamp: time.Now()}, nil
}

// Close implements io.Closer.
func (Noop) Close() error { return nil }

// Published is a message recorded by Memory.
type Published struct {
	Destination string
	Message     OutgoingMessage
}

// Memory records published messages in order.
type Memory struct {
	mu     sync.Mutex
	msgs   []Published
	closed bool
}

// NewMemory returns an empty recorder.
func NewMemory() *Memory {
	return &Memory{}
}

// Publish implements Publisher.
func (m *Memory) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := checkPublish(ctx, destination); err != nil {
		return PublishResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return PublishResult{}, io.ErrClosedPipe
	}
	m.msgs = append(m.msgs, Published{Destination: destination, Message: msg})

	return PublishResult{
		MessageID: strconv.Itoa(len(m.msgs)),
		Topic:     destination,
		Timestamp: time.Now(),
	}, nil
}

// Messages returns a copy of everything published so far.
func (m *Memory) Messages() []Published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Published(nil), m.msgs...)
}

// Close implements io.Closer.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
