package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telhawk-systems/eventlogs/internal/models"
)

// SettingsStore keeps the singleton settings row in event_log_settings.
type SettingsStore struct {
	pool *pgxpool.Pool
}

func NewSettingsStore(pool *pgxpool.Pool) *SettingsStore {
	return &SettingsStore{pool: pool}
}

// Get returns nil, nil when the row has never been written.
func (s *SettingsStore) Get(ctx context.Context) (*models.Settings, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	var st models.Settings
	err := s.pool.QueryRow(ctx,
		`SELECT id, retention_period_days, updated_at, updated_by
         FROM event_log_settings WHERE id = $1`, models.SettingsID,
	).Scan(&st.ID, &st.RetentionPeriodDays, &st.UpdatedAt, &st.UpdatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}
	st.UpdatedAt = st.UpdatedAt.UTC()
	return &st, nil
}

// Save replaces the settings row.
func (s *SettingsStore) Save(ctx context.Context, st models.Settings) error {
	ctx, cancel := context.WithTimeout(ctx, WriteTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO event_log_settings (id, retention_period_days, updated_at, updated_by)
         VALUES ($1, $2, $3, $4)
         ON CONFLICT (id) DO UPDATE SET
             retention_period_days = EXCLUDED.retention_period_days,
             updated_at = EXCLUDED.updated_at,
             updated_by = EXCLUDED.updated_by`,
		models.SettingsID, st.RetentionPeriodDays, st.UpdatedAt.UTC(), st.UpdatedBy,
	)
	if err != nil {
		return &models.StorageError{Op: "save_settings", Err: err}
	}
	return nil
}
