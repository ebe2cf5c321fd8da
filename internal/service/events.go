// Package service holds the query, export, ingestion and settings logic
// behind the HTTP handlers.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/telhawk-systems/eventlogs/internal/export"
	"github.com/telhawk-systems/eventlogs/internal/logging"
	"github.com/telhawk-systems/eventlogs/internal/metrics"
	"github.com/telhawk-systems/eventlogs/internal/models"
	"github.com/telhawk-systems/eventlogs/internal/storage"
)

// EventService runs searches, exports and direct ingestion against the
// active backend.
type EventService struct {
	store         storage.EventStore
	maxExportSize int
	parser        models.Parser
	logger        *slog.Logger
}

// NewEventService returns a service whose exports return at most maxExportSize rows.
func NewEventService(store storage.EventStore, maxExportSize int) *EventService {
	if maxExportSize < 1 {
		maxExportSize = models.DefaultMaxExportSize
	}
	return &EventService{
		store:         store,
		maxExportSize: maxExportSize,
		parser:        models.DefaultParser,
		logger:        logging.ForComponent("event-service"),
	}
}

// MaxExportSize is the export row cap.
func (s *EventService) MaxExportSize() int {
	return s.maxExportSize
}

func asSearchError(err error) error {
	var se *models.SearchError
	if errors.As(err, &se) {
		return err
	}
	return &models.SearchError{Err: err}
}

// Search returns one page of matching events.
func (s *EventService) Search(ctx context.Context, q models.Query) (models.QueryResult, error) {
	if err := q.Validate(); err != nil {
		return models.QueryResult{}, err
	}

	metrics.Searches.Inc()
	page, err := s.store.Search(ctx, q)
	if err != nil {
		s.logger.ErrorContext(ctx, "search failed", logging.Error(err))
		return models.QueryResult{}, asSearchError(err)
	}

	s.logger.DebugContext(ctx, "search completed",
		logging.Count(len(page.Items)),
		slog.Int64("total", page.Total))
	return models.NewQueryResult(page, q), nil
}

// Export writes the first maxExportSize matches of q to w as CSV. The
// caller's page and size are ignored. Nothing is written to w if the
// search fails.
func (s *EventService) Export(ctx context.Context, q models.Query, w io.Writer) (int, error) {
	q.Page = 0
	q.Size = s.maxExportSize

	page, err := s.store.Search(ctx, q)
	if err != nil {
		s.logger.ErrorContext(ctx, "export search failed", logging.Error(err))
		return 0, asSearchError(err)
	}

	if len(page.Items) >= s.maxExportSize {
		s.logger.WarnContext(ctx, "export reached the max export size and may be truncated",
			logging.Count(len(page.Items)),
			slog.Int("max_export_size", s.maxExportSize),
			slog.Int64("total", page.Total))
	}

	if err := export.WriteCSV(w, page.Items); err != nil {
		return 0, fmt.Errorf("export events: %w", err)
	}

	metrics.EventsExported.Add(float64(len(page.Items)))
	s.logger.InfoContext(ctx, "exported events to CSV", logging.Count(len(page.Items)))
	return len(page.Items), nil
}

// Ingest parses and stores raw events synchronously. Every element must
// parse; otherwise nothing is stored and the per-index reasons come back
// in a *models.ValidationError.
func (s *EventService) Ingest(ctx context.Context, raws []json.RawMessage) (int, error) {
	if len(raws) == 0 {
		return 0, nil
	}

	events := make([]models.Event, 0, len(raws))
	fields := map[string]string{}
	for i, raw := range raws {
		ev, err := s.parser.Parse(raw)
		if err != nil {
			fields[fmt.Sprintf("[%d]", i)] = err.Error()
			continue
		}
		events = append(events, ev)
	}
	if len(fields) > 0 {
		return 0, &models.ValidationError{Fields: fields}
	}

	if err := s.store.Add(ctx, events); err != nil {
		s.logger.ErrorContext(ctx, "ingest failed", logging.Count(len(events)), logging.Error(err))
		return 0, err
	}

	metrics.EventsIngested.Add(float64(len(events)))
	return len(events), nil
}
