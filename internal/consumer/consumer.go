// Package consumer turns broker batches into stored events. A batch is
// acknowledged only after every parseable event in it has been persisted.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/telhawk-systems/eventlogs/internal/dlq"
	"github.com/telhawk-systems/eventlogs/internal/logging"
	"github.com/telhawk-systems/eventlogs/internal/metrics"
	"github.com/telhawk-systems/eventlogs/internal/models"
)

// Batch is one delivery from the broker. Ack commits the whole batch; Reject
// leaves it for redelivery, or dead-letters messages that are out of attempts.
type Batch interface {
	Payloads() [][]byte
	Ack(ctx context.Context) error
	Reject(ctx context.Context, reason string, cause error) error
}

// Writer is the storage dependency of the consumer.
type Writer interface {
	Add(ctx context.Context, events []models.Event) error
}

// Consumer applies the ingestion state machine to each batch.
type Consumer struct {
	store  Writer
	parser models.Parser
	logger *slog.Logger
}

// New returns a Consumer writing to store.
func New(store Writer) *Consumer {
	return &Consumer{
		store:  store,
		parser: models.DefaultParser,
		logger: logging.ForComponent("consumer"),
	}
}

// WithParser overrides the parser, mainly to pin the clock in tests.
func (c *Consumer) WithParser(p models.Parser) *Consumer {
	c.parser = p
	return c
}

// HandleBatch processes one batch:
//
//   - empty: ack and return.
//   - every message malformed: reject, return *models.BatchFailure.
//   - otherwise add the parsed events; ack on success, reject on failure.
//
// Malformed messages in a batch that is otherwise stored are acked with it.
func (c *Consumer) HandleBatch(ctx context.Context, b Batch) error {
	payloads := b.Payloads()
	if len(payloads) == 0 {
		return b.Ack(ctx)
	}
	metrics.MessagesReceived.Add(float64(len(payloads)))

	events := make([]models.Event, 0, len(payloads))
	var lastErr error
	for i, raw := range payloads {
		ev, err := c.parser.Parse(raw)
		if err != nil {
			metrics.MessagesFailed.Inc()
			c.logger.WarnContext(ctx, "dropping malformed message",
				slog.Int("index", i),
				logging.Error(err))
			lastErr = err
			continue
		}
		events = append(events, ev)
	}

	metrics.MessagesParsed.Add(float64(len(events)))

	if len(events) == 0 {
		failure := &models.BatchFailure{Received: len(payloads), Failed: len(payloads), Err: lastErr}
		metrics.BatchesRejected.WithLabelValues(dlq.ReasonParseFailed).Inc()
		c.logger.ErrorContext(ctx, "no message in batch could be parsed",
			logging.Count(len(payloads)),
			logging.Error(lastErr))
		if err := b.Reject(ctx, dlq.ReasonParseFailed, failure); err != nil {
			return errors.Join(failure, fmt.Errorf("reject batch: %w", err))
		}
		return failure
	}

	if err := c.store.Add(ctx, events); err != nil {
		metrics.BatchesRejected.WithLabelValues(dlq.ReasonStorageFailed).Inc()
		c.logger.ErrorContext(ctx, "failed to store batch, leaving it for redelivery",
			logging.Count(len(events)),
			logging.Error(err))
		if rerr := b.Reject(ctx, dlq.ReasonStorageFailed, err); rerr != nil {
			return errors.Join(err, fmt.Errorf("reject batch: %w", rerr))
		}
		return err
	}

	metrics.EventsIngested.Add(float64(len(events)))

	if err := b.Ack(ctx); err != nil {
		// Stored but unacked: redelivery is absorbed by idempotent ids.
		return fmt.Errorf("ack batch: %w", err)
	}

	metrics.BatchesProcessed.Inc()
	c.logger.DebugContext(ctx, "batch stored",
		logging.Count(len(events)),
		slog.Int("malformed", len(payloads)-len(events)))
	return nil
}
