package storage

import (
	"context"
	"time"

	"github.com/telhawk-systems/eventlogs/internal/metrics"
	"github.com/telhawk-systems/eventlogs/internal/models"
)

// instrumented records latency and failures of every EventStore call.
type instrumented struct {
	EventStore
	backend string
}

// Instrument wraps s so each operation is observed under the given backend label.
func Instrument(s EventStore, backend string) EventStore {
	return &instrumented{EventStore: s, backend: backend}
}

func (s *instrumented) observe(op string, start time.Time, err error) {
	metrics.StorageDuration.WithLabelValues(s.backend, op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StorageErrors.WithLabelValues(s.backend, op).Inc()
	}
}

func (s *instrumented) Add(ctx context.Context, events []models.Event) (err error) {
	defer func(start time.Time) { s.observe("add", start, err) }(time.Now())
	return s.EventStore.Add(ctx, events)
}

func (s *instrumented) Search(ctx context.Context, q models.Query) (p models.Page, err error) {
	defer func(start time.Time) { s.observe("search", start, err) }(time.Now())
	return s.EventStore.Search(ctx, q)
}

func (s *instrumented) Count(ctx context.Context, q models.Query) (n int64, err error) {
	defer func(start time.Time) { s.observe("count", start, err) }(time.Now())
	return s.EventStore.Count(ctx, q)
}

func (s *instrumented) DeleteOlderThan(ctx context.Context, cutoff time.Time) (n int64, err error) {
	defer func(start time.Time) { s.observe("delete_older_than", start, err) }(time.Now())
	return s.EventStore.DeleteOlderThan(ctx, cutoff)
}
