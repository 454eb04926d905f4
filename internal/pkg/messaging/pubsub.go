package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"cloud.google.com/go/pubsub/v2"
	"google.golang.org/api/option"
)

// ErrPubSubProjectIDRequired is returned when no project is configured.
var ErrPubSubProjectIDRequired = errors.New("messaging: pubsub project id is required")

// PubSubConfig configures the Google Pub/Sub implementation.
type PubSubConfig struct {
	ProjectID     string
	Client        *pubsub.Client
	ClientOptions []option.ClientOption
}

// PubSub publishes to Google Pub/Sub topics. Headers become attributes.
type PubSub struct {
	client *pubsub.Client

	mu         sync.Mutex
	closed     bool
	publishers map[string]*pubsub.Publisher
}

// NewPubSub constructs a PubSub publisher.
func NewPubSub(ctx context.Context, cfg PubSubConfig) (*PubSub, error) {
	client := cfg.Client
	if client == nil {
		if cfg.ProjectID == "" {
			return nil, ErrPubSubProjectIDRequired
		}

		c, err := pubsub.NewClient(ctx, cfg.ProjectID, cfg.ClientOptions...)
		if err != nil {
			return nil, fmt.Errorf("messaging: pubsub new client: %w", err)
		}
		client = c
	}

	return &PubSub{client: client, publishers: map[string]*pubsub.Publisher{}}, nil
}

// Close stops publishers and closes the client.
func (p *PubSub) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	pubs := p.publishers
	p.publishers = nil
	p.mu.Unlock()

	for _, pub := range pubs {
		pub.Stop()
	}
	return p.client.Close()
}

// Publish sends msg and waits for the server-assigned id.
func (p *PubSub) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := checkPublish(ctx, destination); err != nil {
		return PublishResult{}, err
	}
	if msg.Delay > 0 {
		return PublishResult{}, ErrUnsupported
	}

	pub, err := p.publisher(destination)
	if err != nil {
		return PublishResult{}, err
	}

	attrs := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		if h.Key != "" {
			attrs[h.Key] = string(h.Value)
		}
	}

	id, err := pub.Publish(ctx, &pubsub.Message{Data: msg.Body, Attributes: attrs}).Get(ctx)
	if err != nil {
		return PublishResult{}, fmt.Errorf("messaging: pubsub publish: %w", err)
	}

	return PublishResult{MessageID: id, Topic: destination}, nil
}

func (p *PubSub) publisher(topic string) (*pubsub.Publisher, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, io.ErrClosedPipe
	}
	if pub, ok := p.publishers[topic]; ok {
		return pub, nil
	}

	pub := p.client.Publisher(topic)
	p.publishers[topic] = pub
	return pub, nil
}
