package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/telhawk-systems/eventlogs/internal/logging"
)

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, logging.FieldError, err.Error())...)
}

// Scheduler runs the sweep on a cron schedule. A run that is still going
// when the next one is due causes that next run to be skipped.
type Scheduler struct {
	mu       sync.Mutex
	sweeper  *Sweeper
	schedule string
	cron     *cron.Cron
	parsed   cron.Schedule
	cancel   context.CancelFunc
	running  bool
	logger   *slog.Logger
}

// NewScheduler returns a scheduler for a standard five-field cron expression,
// evaluated in UTC.
func NewScheduler(sweeper *Sweeper, schedule string) *Scheduler {
	return &Scheduler{
		sweeper:  sweeper,
		schedule: schedule,
		logger:   logging.ForComponent("retention-scheduler"),
	}
}

// Start registers the sweep and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("retention scheduler already running")
	}

	parsed, err := cron.ParseStandard(s.schedule)
	if err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", s.schedule, err)
	}

	cl := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	runCtx, cancel := context.WithCancel(ctx)
	c.Schedule(parsed, cron.FuncJob(func() { s.sweeper.Sweep(runCtx) }))

	c.Start()
	s.cron = c
	s.parsed = parsed
	s.cancel = cancel
	s.running = true

	s.logger.Info("retention scheduler started",
		slog.String("schedule", s.schedule),
		slog.Time("next_run", parsed.Next(time.Now().UTC())))
	return nil
}

// Stop waits for an in-flight sweep to finish, then stops the loop.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return fmt.Errorf("retention scheduler not running")
	}

	<-s.cron.Stop().Done()
	s.cancel()
	s.running = false
	s.logger.Info("retention scheduler stopped")
	return nil
}

// NextRun reports when the sweep fires next; zero if not running.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return time.Time{}
	}
	return s.parsed.Next(time.Now().UTC())
}
