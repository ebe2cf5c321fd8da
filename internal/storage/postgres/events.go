// Package postgres implements the event and settings stores on PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telhawk-systems/eventlogs/internal/logging"
	"github.com/telhawk-systems/eventlogs/internal/models"
)

// Timeouts applied on top of the caller's context.
const (
	QueryTimeout = 5 * time.Second
	WriteTimeout = 10 * time.Second
	BulkTimeout  = 30 * time.Second
)

// maxPrealloc bounds the row slice preallocated for a page; size comes from
// the caller.
const maxPrealloc = 1000

func pageCapacity(q models.Query) int {
	return min(q.Limit(), maxPrealloc)
}

const insertEventSQL = `INSERT INTO events (
        id, timestamp, user_name, category, action, document_name, project,
        environment, tenant, correlation_id, trace_id, details
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
    ON CONFLICT (id) DO NOTHING`

const selectEventColumns = `SELECT id::text, timestamp, user_name, category, action,
        COALESCE(document_name, ''), COALESCE(project, ''), COALESCE(environment, ''),
        COALESCE(tenant, ''), COALESCE(correlation_id, ''), COALESCE(trace_id, ''), details
    FROM events`

// NewPool opens and pings a pgx connection pool.
func NewPool(ctx context.Context, connString string, maxConns int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return pool, nil
}

// EventStore stores events in the events table.
type EventStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewEventStore returns an EventStore on pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{
		pool:   pool,
		logger: logging.ForComponent("postgres-events"),
	}
}

// resolveID returns the event's UUID, generating one when the inbound id is
// missing or not a UUID. A regenerated id is logged.
func (s *EventStore) resolveID(ev models.Event) uuid.UUID {
	if ev.ID == "" {
		return uuid.New()
	}
	id, err := uuid.Parse(ev.ID)
	if err != nil {
		generated := uuid.New()
		s.logger.Warn("invalid event id, generated a new one",
			slog.String("invalid_id", ev.ID),
			logging.EventID(generated.String()),
			logging.Error(err))
		return generated
	}
	return id
}

// Add inserts the batch in one transaction. Rows whose id already exists
// are skipped, so redelivered batches are harmless.
func (s *EventStore) Add(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, BulkTimeout)
	defer cancel()

	batch := &pgx.Batch{}
	for _, ev := range events {
		details, err := marshalDetails(ev.Details)
		if err != nil {
			return &models.StorageError{Op: "add", Err: err}
		}
		batch.Queue(insertEventSQL,
			s.resolveID(ev), ev.Timestamp.UTC(), ev.User, ev.Category, ev.Action,
			nullIfEmpty(ev.Document), nullIfEmpty(ev.Project), nullIfEmpty(ev.Environment),
			nullIfEmpty(ev.Tenant), nullIfEmpty(ev.CorrelationID), nullIfEmpty(ev.TraceID),
			details,
		)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &models.StorageError{Op: "add", Err: fmt.Errorf("begin: %w", err)}
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	br := tx.SendBatch(ctx, batch)
	for i := range events {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return &models.StorageError{Op: "add", Err: fmt.Errorf("insert event %d of %d: %w", i+1, len(events), err)}
		}
	}
	if err := br.Close(); err != nil {
		return &models.StorageError{Op: "add", Err: fmt.Errorf("close batch: %w", err)}
	}

	if err := tx.Commit(ctx); err != nil {
		return &models.StorageError{Op: "add", Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

// Search returns one page ordered by the requested column and id.
func (s *EventStore) Search(ctx context.Context, q models.Query) (models.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	total, err := s.count(ctx, q)
	if err != nil {
		return models.Page{}, &models.SearchError{Err: err}
	}

	pred := buildPredicate(q)
	args := append(pred.args, q.Limit(), q.Offset())
	sql := selectEventColumns + pred.clause + orderBy(q) +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return models.Page{}, &models.SearchError{Err: fmt.Errorf("query events: %w", err)}
	}
	defer rows.Close()

	items := make([]models.Event, 0, pageCapacity(q))
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return models.Page{}, &models.SearchError{Err: err}
		}
		items = append(items, ev)
	}
	if err := rows.Err(); err != nil {
		return models.Page{}, &models.SearchError{Err: fmt.Errorf("iterate events: %w", err)}
	}

	return models.Page{Items: items, Total: total}, nil
}

// Count returns the number of rows matching q's filters.
func (s *EventStore) Count(ctx context.Context, q models.Query) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	n, err := s.count(ctx, q)
	if err != nil {
		return 0, &models.SearchError{Err: err}
	}
	return n, nil
}

func (s *EventStore) count(ctx context.Context, q models.Query) (int64, error) {
	pred := buildPredicate(q)
	var total int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM events"+pred.clause, pred.args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return total, nil
}

// DeleteOlderThan removes rows with timestamp < cutoff.
func (s *EventStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, BulkTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx, "DELETE FROM events WHERE timestamp < $1", cutoff.UTC())
	if err != nil {
		return 0, &models.StorageError{Op: "delete_older_than", Err: err}
	}
	return tag.RowsAffected(), nil
}

// Ping checks database connectivity.
func (s *EventStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *EventStore) Close() error {
	s.pool.Close()
	return nil
}

func scanEvent(rows pgx.Rows) (models.Event, error) {
	var ev models.Event
	var details []byte
	if err := rows.Scan(
		&ev.ID, &ev.Timestamp, &ev.User, &ev.Category, &ev.Action,
		&ev.Document, &ev.Project, &ev.Environment, &ev.Tenant,
		&ev.CorrelationID, &ev.TraceID, &details,
	); err != nil {
		return models.Event{}, fmt.Errorf("scan event: %w", err)
	}
	ev.Timestamp = ev.Timestamp.UTC()

	if len(details) > 0 {
		var d models.Details
		if err := json.Unmarshal(details, &d); err != nil {
			return models.Event{}, fmt.Errorf("decode details of event %s: %w", ev.ID, err)
		}
		ev.Details = &d
	}
	return ev, nil
}

func marshalDetails(d *models.Details) ([]byte, error) {
	if d == nil {
		return nil, nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode details: %w", err)
	}
	return data, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
