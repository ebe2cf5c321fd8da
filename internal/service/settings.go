package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/telhawk-systems/eventlogs/internal/logging"
	"github.com/telhawk-systems/eventlogs/internal/models"
	"github.com/telhawk-systems/eventlogs/internal/storage"
)

// SettingsService reads and updates the retention settings.
type SettingsService struct {
	store         storage.SettingsStore
	defaultDays   int
	maxExportSize int
	now           func() time.Time
	logger        *slog.Logger
}

// NewSettingsService returns a service that reports defaultDays until
// settings are saved. maxExportSize is echoed, never persisted.
func NewSettingsService(store storage.SettingsStore, defaultDays, maxExportSize int) *SettingsService {
	if defaultDays < models.MinRetentionDays {
		defaultDays = models.DefaultRetentionDays
	}
	if maxExportSize < 1 {
		maxExportSize = models.DefaultMaxExportSize
	}
	return &SettingsService{
		store:         store,
		defaultDays:   defaultDays,
		maxExportSize: maxExportSize,
		now:           time.Now,
		logger:        logging.ForComponent("settings-service"),
	}
}

// Get returns the effective settings.
func (s *SettingsService) Get(ctx context.Context) (models.SettingsView, error) {
	st, err := s.store.Get(ctx)
	if err != nil {
		return models.SettingsView{}, fmt.Errorf("load settings: %w", err)
	}

	view := models.SettingsView{
		RetentionPeriodDays: s.defaultDays,
		MaxExportSize:       s.maxExportSize,
	}
	if st != nil && st.RetentionPeriodDays >= models.MinRetentionDays {
		view.RetentionPeriodDays = st.RetentionPeriodDays
	}
	return view, nil
}

// Update validates v and persists its retention period. The returned view
// echoes v unchanged.
func (s *SettingsService) Update(ctx context.Context, v models.SettingsView) (models.SettingsView, error) {
	if err := v.Validate(); err != nil {
		return models.SettingsView{}, err
	}

	st := models.Settings{
		ID:                  models.SettingsID,
		RetentionPeriodDays: v.RetentionPeriodDays,
		UpdatedAt:           s.now().UTC(),
		UpdatedBy:           models.DefaultSettingsUpdatedBy,
	}
	if err := s.store.Save(ctx, st); err != nil {
		return models.SettingsView{}, fmt.Errorf("save settings: %w", err)
	}

	s.logger.InfoContext(ctx, "settings updated",
		slog.Int("retention_days", v.RetentionPeriodDays),
		slog.String("updated_by", st.UpdatedBy))
	return v, nil
}
