package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/telhawk-systems/eventlogs/internal/logging"
)

// Publisher is the JetStream write path.
type Publisher interface {
	PublishSync(ctx context.Context, subject string, data []byte) (*jetstream.PubAck, error)
}

// Config controls a seeding run.
type Config struct {
	Count        int
	InvalidRatio float64
	TimeSpread   time.Duration
	Seed         int64
	Subject      string
}

// Result counts what a run published.
type Result struct {
	Published int
	Invalid   int
	Failed    int
}

// Runner publishes generated events one at a time, waiting for each ack.
type Runner struct {
	pub    Publisher
	cfg    Config
	gen    *Generator
	logger *slog.Logger
}

// NewRunner returns a Runner publishing to cfg.Subject.
func NewRunner(pub Publisher, cfg Config) *Runner {
	return &Runner{
		pub:    pub,
		cfg:    cfg,
		gen:    NewGenerator(cfg.Seed, cfg.TimeSpread),
		logger: logging.ForComponent("seeder"),
	}
}

// Run publishes cfg.Count messages. It stops early if ctx is cancelled.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if r.cfg.InvalidRatio < 0 || r.cfg.InvalidRatio > 1 {
		return Result{}, fmt.Errorf("invalid ratio must be within [0, 1], got %v", r.cfg.InvalidRatio)
	}

	r.logger.Info("seeding events",
		logging.Subject(r.cfg.Subject),
		logging.Count(r.cfg.Count),
		slog.Float64("invalid_ratio", r.cfg.InvalidRatio),
		slog.Duration("time_spread", r.cfg.TimeSpread))

	var res Result
	for i := 0; i < r.cfg.Count; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		data, invalid, err := r.gen.Payload(r.cfg.InvalidRatio)
		if err != nil {
			return res, err
		}
		if _, err := r.pub.PublishSync(ctx, r.cfg.Subject, data); err != nil {
			res.Failed++
			r.logger.Warn("publish failed", logging.Error(err))
			continue
		}
		res.Published++
		if invalid {
			res.Invalid++
		}

		if step := progressStep(r.cfg.Count); (i+1)%step == 0 {
			r.logger.Info("seeding progress", slog.Int("published", res.Published), logging.Count(r.cfg.Count))
		}
	}

	r.logger.Info("seeding completed",
		slog.Int("published", res.Published),
		slog.Int("invalid", res.Invalid),
		slog.Int("failed", res.Failed))
	return res, nil
}

func progressStep(total int) int {
	step := total / 10
	if step < 1000 {
		step = 1000
	}
	return step
}
