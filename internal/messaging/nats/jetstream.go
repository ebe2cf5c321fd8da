package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// JetStreamClient extends Client with JetStream persistence.
type JetStreamClient struct {
	*Client
	js jetstream.JetStream
}

// StreamConfig defines a JetStream stream.
type StreamConfig struct {
	Name      string
	Subjects  []string
	MaxAge    time.Duration
	MaxBytes  int64
	MaxMsgs   int64
	Retention jetstream.RetentionPolicy
	Storage   jetstream.StorageType
}

// ConsumerConfig defines a durable pull consumer.
type ConsumerConfig struct {
	// Name is the durable consumer name; instances sharing it split the stream.
	Name          string
	FilterSubject string

	// AckWait is the time to wait for an ack before redelivery.
	AckWait time.Duration

	// MaxDeliver bounds delivery attempts. Once reached the consumer stops
	// redelivering, so the last attempt must dead-letter the message.
	MaxDeliver    int
	MaxAckPending int
}

// EventsStream is the inbound stream. Limits retention keeps messages for
// inspection after they are acked; the durable consumer tracks progress.
func EventsStream(name, subject string) StreamConfig {
	return StreamConfig{
		Name:      name,
		Subjects:  []string{subject},
		MaxAge:    7 * 24 * time.Hour,
		MaxBytes:  1024 * 1024 * 1024, // 1GB
		MaxMsgs:   10000000,
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
	}
}

// DLQStream captures dead-lettered messages under <prefix>.<reason>.
func DLQStream(name, subjectPrefix string) StreamConfig {
	return StreamConfig{
		Name:      name,
		Subjects:  []string{subjectPrefix + ".>"},
		MaxAge:    30 * 24 * time.Hour,
		MaxBytes:  512 * 1024 * 1024, // 512MB
		MaxMsgs:   1000000,
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
	}
}

// BatchConsumer returns the durable pull consumer config for the ingestion group.
func BatchConsumer(name, subject string, batchSize int, ackWait time.Duration, maxDeliver int) ConsumerConfig {
	return ConsumerConfig{
		Name:          name,
		FilterSubject: subject,
		AckWait:       ackWait,
		MaxDeliver:    maxDeliver,
		MaxAckPending: batchSize * 2,
	}
}

// NewJetStreamClient connects and creates a JetStream context.
func NewJetStreamClient(cfg Config) (*JetStreamClient, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(client.conn)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &JetStreamClient{Client: client, js: js}, nil
}

// CreateOrUpdateStream creates or updates a stream.
func (c *JetStreamClient) CreateOrUpdateStream(ctx context.Context, cfg StreamConfig) (jetstream.Stream, error) {
	stream, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Name,
		Subjects:  cfg.Subjects,
		MaxAge:    cfg.MaxAge,
		MaxBytes:  cfg.MaxBytes,
		MaxMsgs:   cfg.MaxMsgs,
		Retention: cfg.Retention,
		Storage:   cfg.Storage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream %s: %w", cfg.Name, err)
	}
	return stream, nil
}

// Stream looks up an existing stream.
func (c *JetStreamClient) Stream(ctx context.Context, name string) (jetstream.Stream, error) {
	stream, err := c.js.Stream(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream %s: %w", name, err)
	}
	return stream, nil
}

// CreateOrUpdateConsumer creates or updates a durable consumer with explicit acks.
func (c *JetStreamClient) CreateOrUpdateConsumer(ctx context.Context, streamName string, cfg ConsumerConfig) (jetstream.Consumer, error) {
	stream, err := c.Stream(ctx, streamName)
	if err != nil {
		return nil, err
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          cfg.Name,
		Durable:       cfg.Name,
		FilterSubject: cfg.FilterSubject,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxDeliver,
		MaxAckPending: cfg.MaxAckPending,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update consumer %s: %w", cfg.Name, err)
	}
	return consumer, nil
}

// PublishSync publishes a message and waits for the stream's acknowledgment.
func (c *JetStreamClient) PublishSync(ctx context.Context, subject string, data []byte) (*jetstream.PubAck, error) {
	return c.js.Publish(ctx, subject, data)
}
