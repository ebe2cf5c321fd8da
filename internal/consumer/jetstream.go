package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/telhawk-systems/eventlogs/internal/dlq"
	"github.com/telhawk-systems/eventlogs/internal/logging"
)

// Message is the part of jetstream.Msg a batch needs.
type Message interface {
	Data() []byte
	Subject() string
	Metadata() (*jetstream.MsgMetadata, error)
	Ack() error
	NakWithDelay(delay time.Duration) error
	Term() error
}

// DeadLetterer receives messages that exhausted their delivery attempts.
type DeadLetterer interface {
	Write(ctx context.Context, entry dlq.Entry) error
}

// Fetcher pulls batches from a durable consumer.
type Fetcher interface {
	Fetch(batch int, opts ...jetstream.FetchOpt) (jetstream.MessageBatch, error)
}

type jetStreamBatch struct {
	msgs       []Message
	dlq        DeadLetterer
	maxDeliver int
	nakDelay   time.Duration
	logger     *slog.Logger
}

func (b *jetStreamBatch) Payloads() [][]byte {
	out := make([][]byte, len(b.msgs))
	for i, m := range b.msgs {
		out[i] = m.Data()
	}
	return out
}

func (b *jetStreamBatch) Ack(ctx context.Context) error {
	var errs []error
	for _, m := range b.msgs {
		if err := m.Ack(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// dlqWriteTimeout bounds one dead-letter publish. The write runs detached from
// the caller's cancellation: a storage failure caused by shutdown must still
// dead-letter messages on their last delivery.
const dlqWriteTimeout = 5 * time.Second

// Reject naks each message with a delay. A message already delivered
// maxDeliver times would never come back, so it is written to the DLQ and
// terminated instead. If the DLQ write fails the message is nak'd; the
// broker then drops it once attempts run out.
func (b *jetStreamBatch) Reject(ctx context.Context, reason string, cause error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dlqWriteTimeout)
	defer cancel()

	var errs []error
	for _, m := range b.msgs {
		if b.exhausted(m) {
			if err := b.deadLetter(ctx, m, reason, cause); err == nil {
				if err := m.Term(); err != nil {
					errs = append(errs, err)
				}
				continue
			}
		}
		if err := m.NakWithDelay(b.nakDelay); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *jetStreamBatch) exhausted(m Message) bool {
	if b.dlq == nil || b.maxDeliver <= 0 {
		return false
	}
	md, err := m.Metadata()
	if err != nil {
		return false
	}
	return md.NumDelivered >= uint64(b.maxDeliver)
}

func (b *jetStreamBatch) deadLetter(ctx context.Context, m Message, reason string, cause error) error {
	entry := dlq.Entry{
		Timestamp: time.Now().UTC(),
		Reason:    reason,
		Subject:   m.Subject(),
		Payload:   string(m.Data()),
	}
	if cause != nil {
		entry.Error = cause.Error()
	}
	if md, err := m.Metadata(); err == nil {
		entry.Deliveries = md.NumDelivered
		entry.StreamSeq = md.Sequence.Stream
	}
	err := b.dlq.Write(ctx, entry)
	if err != nil {
		b.logger.Error("dead-letter write failed, message will be dropped by the broker",
			logging.Subject(m.Subject()),
			logging.Error(err))
	}
	return err
}

// SourceConfig tunes the pull loop.
type SourceConfig struct {
	BatchSize  int
	FetchWait  time.Duration
	MaxDeliver int
	NakDelay   time.Duration
}

// JetStreamSource pulls batches from a durable consumer and hands them to a
// Consumer until its context is cancelled.
type JetStreamSource struct {
	fetcher  Fetcher
	consumer *Consumer
	dlq      DeadLetterer
	cfg      SourceConfig
	logger   *slog.Logger
}

// NewJetStreamSource wires a fetcher to c. dl may be nil to disable dead-lettering.
func NewJetStreamSource(f Fetcher, c *Consumer, dl DeadLetterer, cfg SourceConfig) *JetStreamSource {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FetchWait <= 0 {
		cfg.FetchWait = 5 * time.Second
	}
	return &JetStreamSource{
		fetcher:  f,
		consumer: c,
		dlq:      dl,
		cfg:      cfg,
		logger:   logging.ForComponent("jetstream-source"),
	}
}

// Run blocks until ctx is done. Batch failures are logged; the loop keeps
// pulling so later batches are not held up by a poisoned one.
func (s *JetStreamSource) Run(ctx context.Context) error {
	s.logger.Info("consumer started",
		slog.Int("batch_size", s.cfg.BatchSize),
		slog.Duration("fetch_wait", s.cfg.FetchWait))

	for {
		if ctx.Err() != nil {
			s.logger.Info("consumer stopped")
			return nil
		}

		batch, err := s.fetcher.Fetch(s.cfg.BatchSize, jetstream.FetchMaxWait(s.cfg.FetchWait))
		if err != nil {
			s.logger.Warn("fetch failed", logging.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		msgs := s.collect(batch)
		if len(msgs) == 0 {
			continue
		}

		b := &jetStreamBatch{
			msgs:       msgs,
			dlq:        s.dlq,
			maxDeliver: s.cfg.MaxDeliver,
			nakDelay:   s.cfg.NakDelay,
			logger:     s.logger,
		}
		// A fetched batch runs to ack or reject even if ctx is cancelled
		// meanwhile; cancellation only stops the next fetch.
		if err := s.consumer.HandleBatch(context.WithoutCancel(ctx), b); err != nil {
			s.logger.Warn("batch not committed", logging.Count(len(msgs)), logging.Error(err))
		}
	}
}

func (s *JetStreamSource) collect(batch jetstream.MessageBatch) []Message {
	var msgs []Message
	for m := range batch.Messages() {
		msgs = append(msgs, m)
	}
	if err := batch.Error(); err != nil {
		s.logger.Warn("fetch ended with error", logging.Count(len(msgs)), logging.Error(err))
	}
	return msgs
}
