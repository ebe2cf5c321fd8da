// Package retention deletes events older than the configured horizon.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/telhawk-systems/eventlogs/internal/logging"
	"github.com/telhawk-systems/eventlogs/internal/metrics"
	"github.com/telhawk-systems/eventlogs/internal/models"
)

// Deleter removes events strictly older than cutoff.
type Deleter interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SettingsReader returns the persisted settings, or nil when none exist.
type SettingsReader interface {
	Get(ctx context.Context) (*models.Settings, error)
}

// Result describes one sweep.
type Result struct {
	RetentionDays int
	Cutoff        time.Time
	Deleted       int64
	Err           error
}

// Sweeper runs a single retention pass.
type Sweeper struct {
	store       Deleter
	settings    SettingsReader
	defaultDays int
	now         func() time.Time
	logger      *slog.Logger
}

// NewSweeper returns a Sweeper that falls back to defaultDays when no
// settings are stored.
func NewSweeper(store Deleter, settings SettingsReader, defaultDays int) *Sweeper {
	if defaultDays < models.MinRetentionDays {
		defaultDays = models.DefaultRetentionDays
	}
	return &Sweeper{
		store:       store,
		settings:    settings,
		defaultDays: defaultDays,
		now:         time.Now,
		logger:      logging.ForComponent("retention"),
	}
}

// WithClock pins the sweep's notion of now.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

func (s *Sweeper) retentionDays(ctx context.Context) int {
	if s.settings == nil {
		return s.defaultDays
	}
	st, err := s.settings.Get(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to read settings, using default retention",
			slog.Int("retention_days", s.defaultDays),
			logging.Error(err))
		return s.defaultDays
	}
	if st == nil || st.RetentionPeriodDays < models.MinRetentionDays {
		return s.defaultDays
	}
	return st.RetentionPeriodDays
}

// Sweep deletes everything older than now minus the retention period.
// Failures are logged and reported in the Result, never returned: the next
// scheduled run retries.
func (s *Sweeper) Sweep(ctx context.Context) Result {
	days := s.retentionDays(ctx)
	cutoff := s.now().UTC().AddDate(0, 0, -days)
	res := Result{RetentionDays: days, Cutoff: cutoff}

	s.logger.InfoContext(ctx, "retention sweep started",
		slog.Int("retention_days", days),
		slog.Time("cutoff", cutoff))

	deleted, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		res.Err = err
		metrics.RetentionRuns.WithLabelValues("error").Inc()
		s.logger.ErrorContext(ctx, "retention sweep failed", logging.Error(err))
		return res
	}

	res.Deleted = deleted
	metrics.RetentionRuns.WithLabelValues("success").Inc()
	metrics.RetentionDeleted.Add(float64(deleted))
	s.logger.InfoContext(ctx, "retention sweep completed",
		slog.Int64("deleted", deleted),
		slog.Time("cutoff", cutoff))
	return res
}
