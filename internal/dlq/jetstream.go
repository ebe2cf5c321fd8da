// Package dlq keeps messages the consumer gave up on in a JetStream stream,
// one subject per failure reason, for inspection and manual replay.
package dlq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/telhawk-systems/eventlogs/internal/logging"
	"github.com/telhawk-systems/eventlogs/internal/metrics"
)

// Failure reasons; each becomes the last subject token.
const (
	ReasonParseFailed   = "parse_failed"
	ReasonStorageFailed = "storage_failed"
)

// Entry is one dead-lettered message.
type Entry struct {
	Timestamp  time.Time `json:"timestamp"`
	Reason     string    `json:"reason"`
	Error      string    `json:"error"`
	Subject    string    `json:"subject"`
	Deliveries uint64    `json:"deliveries"`
	StreamSeq  uint64    `json:"streamSeq"`
	Payload    string    `json:"payload"`
}

// Stats summarizes the dead-letter stream.
type Stats struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	WrittenLocal uint64 `json:"writtenLocal" yaml:"written_local"`
	Messages     uint64 `json:"messages" yaml:"messages"`
	Bytes        uint64 `json:"bytes" yaml:"bytes"`
	FirstSeq     uint64 `json:"firstSeq" yaml:"first_seq"`
	LastSeq      uint64 `json:"lastSeq" yaml:"last_seq"`
	Consumers    int    `json:"consumers" yaml:"consumers"`
}

// Publisher is the write side of a JetStream context.
type Publisher interface {
	PublishSync(ctx context.Context, subject string, data []byte) (*jetstream.PubAck, error)
}

// Stream is the subset of jetstream.Stream the queue reads and purges through.
type Stream interface {
	Info(ctx context.Context, opts ...jetstream.StreamInfoOpt) (*jetstream.StreamInfo, error)
	Purge(ctx context.Context, opts ...jetstream.StreamPurgeOpt) error
	CreateOrUpdateConsumer(ctx context.Context, cfg jetstream.ConsumerConfig) (jetstream.Consumer, error)
}

// JetStreamQueue writes dead letters to a JetStream stream. A nil queue is
// valid and means the DLQ is disabled.
type JetStreamQueue struct {
	pub     Publisher
	stream  Stream
	prefix  string
	written uint64
	logger  *slog.Logger
}

// NewJetStreamQueue returns a queue publishing under prefix.<reason>.
func NewJetStreamQueue(pub Publisher, stream Stream, prefix string) (*JetStreamQueue, error) {
	if pub == nil || stream == nil {
		return nil, errors.New("jetstream publisher and stream are required")
	}
	return &JetStreamQueue{
		pub:    pub,
		stream: stream,
		prefix: prefix,
		logger: logging.ForComponent("dlq"),
	}, nil
}

// Subject returns the subject entries with reason are published on.
func (q *JetStreamQueue) Subject(reason string) string {
	return fmt.Sprintf("%s.%s", q.prefix, reason)
}

// Write publishes one entry and waits for the stream to persist it.
func (q *JetStreamQueue) Write(ctx context.Context, entry Entry) error {
	if q == nil {
		return nil
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal dlq entry: %w", err)
	}

	subject := q.Subject(entry.Reason)
	if _, err := q.pub.PublishSync(ctx, subject, data); err != nil {
		q.logger.Error("failed to publish dlq entry", logging.Subject(subject), logging.Error(err))
		return fmt.Errorf("publish dlq entry: %w", err)
	}

	atomic.AddUint64(&q.written, 1)
	metrics.DLQMessages.WithLabelValues(entry.Reason).Inc()
	q.logger.Warn("message dead-lettered",
		slog.String("reason", entry.Reason),
		slog.Uint64("deliveries", entry.Deliveries),
		slog.String("cause", entry.Error))
	return nil
}

// Stats reads the stream state.
func (q *JetStreamQueue) Stats(ctx context.Context) (Stats, error) {
	if q == nil {
		return Stats{}, nil
	}

	info, err := q.stream.Info(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("dlq stream info: %w", err)
	}

	return Stats{
		Enabled:      true,
		WrittenLocal: atomic.LoadUint64(&q.written),
		Messages:     info.State.Msgs,
		Bytes:        info.State.Bytes,
		FirstSeq:     info.State.FirstSeq,
		LastSeq:      info.State.LastSeq,
		Consumers:    info.State.Consumers,
	}, nil
}

// List returns up to limit entries from the start of the stream without
// consuming them.
func (q *JetStreamQueue) List(ctx context.Context, limit int) ([]Entry, error) {
	if q == nil {
		return nil, errors.New("dlq not enabled")
	}
	if limit <= 0 {
		limit = 100
	}

	consumer, err := q.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject:     q.prefix + ".>",
		AckPolicy:         jetstream.AckNonePolicy,
		DeliverPolicy:     jetstream.DeliverAllPolicy,
		MaxDeliver:        1,
		InactiveThreshold: 30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("create list consumer: %w", err)
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("fetch dlq messages: %w", err)
	}

	var entries []Entry
	for msg := range batch.Messages() {
		var e Entry
		if err := json.Unmarshal(msg.Data(), &e); err != nil {
			q.logger.Warn("skipping unreadable dlq message", logging.Subject(msg.Subject()), logging.Error(err))
			continue
		}
		entries = append(entries, e)
	}
	if err := batch.Error(); err != nil {
		q.logger.Debug("dlq fetch ended with error", logging.Error(err))
	}
	return entries, nil
}

// Purge removes every entry.
func (q *JetStreamQueue) Purge(ctx context.Context) error {
	if q == nil {
		return errors.New("dlq not enabled")
	}
	if err := q.stream.Purge(ctx); err != nil {
		return fmt.Errorf("purge dlq stream: %w", err)
	}
	q.logger.Info("purged dlq stream")
	return nil
}
