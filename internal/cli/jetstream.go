package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/telhawk-systems/eventlogs/internal/config"
	"github.com/telhawk-systems/eventlogs/internal/consumer"
	"github.com/telhawk-systems/eventlogs/internal/dlq"
	natsclient "github.com/telhawk-systems/eventlogs/internal/messaging/nats"
	"github.com/telhawk-systems/eventlogs/internal/storage"
)

func connectJetStream(c *config.Config) (*natsclient.JetStreamClient, error) {
	natsCfg := natsclient.DefaultConfig()
	natsCfg.URL = c.NATS.URL
	natsCfg.MaxReconnects = c.NATS.MaxReconnects
	natsCfg.ReconnectWait = c.NATS.ReconnectWait()

	js, err := natsclient.NewJetStreamClient(natsCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	slog.Info("Connected to NATS", slog.String("url", c.NATS.URL))
	return js, nil
}

func ensureEventsStream(ctx context.Context, js *natsclient.JetStreamClient, c *config.Config) error {
	if _, err := js.CreateOrUpdateStream(ctx, natsclient.EventsStream(c.NATS.Stream, c.NATS.Subject)); err != nil {
		return fmt.Errorf("provision events stream: %w", err)
	}
	return nil
}

// openDLQ provisions the dead-letter stream. It returns nil when the DLQ is disabled.
func openDLQ(ctx context.Context, js *natsclient.JetStreamClient, c *config.Config) (*dlq.JetStreamQueue, error) {
	if !c.DLQ.Enabled {
		return nil, nil
	}
	stream, err := js.CreateOrUpdateStream(ctx, natsclient.DLQStream(c.DLQ.Stream, c.DLQ.SubjectPrefix))
	if err != nil {
		return nil, fmt.Errorf("provision dlq stream: %w", err)
	}
	return dlq.NewJetStreamQueue(js, stream, c.DLQ.SubjectPrefix)
}

// newEventSource provisions the events stream and the durable batch consumer
// and returns a pull loop feeding store.
func newEventSource(ctx context.Context, js *natsclient.JetStreamClient, c *config.Config, store storage.EventStore, queue *dlq.JetStreamQueue) (*consumer.JetStreamSource, error) {
	if err := ensureEventsStream(ctx, js, c); err != nil {
		return nil, err
	}

	durable, err := js.CreateOrUpdateConsumer(ctx, c.NATS.Stream, natsclient.BatchConsumer(
		c.NATS.Consumer,
		c.NATS.Subject,
		c.NATS.BatchSize,
		c.NATS.AckWait(),
		c.NATS.MaxDeliver,
	))
	if err != nil {
		return nil, fmt.Errorf("provision consumer: %w", err)
	}

	var deadLetters consumer.DeadLetterer
	if queue != nil {
		deadLetters = queue
	}

	return consumer.NewJetStreamSource(durable, consumer.New(store), deadLetters, consumer.SourceConfig{
		BatchSize:  c.NATS.BatchSize,
		FetchWait:  c.NATS.FetchWait(),
		MaxDeliver: c.NATS.MaxDeliver,
		NakDelay:   c.NATS.NakDelay(),
	}), nil
}
