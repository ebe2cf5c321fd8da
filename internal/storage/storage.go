// Package storage defines the event and settings storage ports and selects
// the configured backend at startup.
package storage

import (
	"context"
	"time"

	"github.com/telhawk-systems/eventlogs/internal/models"
)

// EventStore is implemented once per backend.
type EventStore interface {
	// Add persists a batch. An empty batch is a no-op. Partial backend
	// failures surface as a single aggregate error.
	Add(ctx context.Context, events []models.Event) error

	// Search returns one page of matches and the total over the full filtered set.
	Search(ctx context.Context, q models.Query) (models.Page, error)

	// Count returns the number of events matching q's filters.
	Count(ctx context.Context, q models.Query) (int64, error)

	// DeleteOlderThan removes every event with timestamp strictly before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// SettingsStore persists the singleton settings record.
type SettingsStore interface {
	// Get returns nil, nil when no settings have been saved.
	Get(ctx context.Context) (*models.Settings, error)
	Save(ctx context.Context, s models.Settings) error
}
