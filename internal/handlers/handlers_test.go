package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/eventlogs/internal/export"
	"github.com/telhawk-systems/eventlogs/internal/httputil"
	"github.com/telhawk-systems/eventlogs/internal/logging"
	"github.com/telhawk-systems/eventlogs/internal/models"
	"github.com/telhawk-systems/eventlogs/internal/service"
)

// memStore is an in-memory EventStore supporting equality filters.
type memStore struct {
	events    []models.Event
	searchErr error
}

func (s *memStore) Add(_ context.Context, events []models.Event) error {
	s.events = append(s.events, events...)
	return nil
}

func fieldValue(ev models.Event, f models.Field) string {
	switch f {
	case models.FieldUser:
		return ev.User
	case models.FieldCategory:
		return ev.Category
	case models.FieldAction:
		return ev.Action
	case models.FieldDocument:
		return ev.Document
	case models.FieldProject:
		return ev.Project
	case models.FieldEnvironment:
		return ev.Environment
	case models.FieldTenant:
		return ev.Tenant
	case models.FieldCorrelationID:
		return ev.CorrelationID
	case models.FieldTraceID:
		return ev.TraceID
	}
	return ""
}

func (s *memStore) Search(_ context.Context, q models.Query) (models.Page, error) {
	if s.searchErr != nil {
		return models.Page{}, s.searchErr
	}
	var matched []models.Event
outer:
	for _, ev := range s.events {
		for _, f := range q.Filters() {
			if fieldValue(ev, f.Field) != f.Value {
				continue outer
			}
		}
		matched = append(matched, ev)
	}
	start, end := q.Offset(), q.Offset()+q.Limit()
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}
	return models.Page{Items: matched[start:end], Total: int64(len(matched))}, nil
}

func (s *memStore) Count(ctx context.Context, q models.Query) (int64, error) {
	p, err := s.Search(ctx, q)
	return p.Total, err
}

func (s *memStore) DeleteOlderThan(context.Context, time.Time) (int64, error) { return 0, nil }
func (s *memStore) Ping(context.Context) error                                { return nil }
func (s *memStore) Close() error                                              { return nil }

type memSettings struct {
	saved *models.Settings
}

func (s *memSettings) Get(context.Context) (*models.Settings, error) { return s.saved, nil }

func (s *memSettings) Save(_ context.Context, st models.Settings) error {
	s.saved = &st
	return nil
}

func setup(t *testing.T, maxExport int) (*Handler, *memStore, *memSettings) {
	t.Helper()
	store := &memStore{}
	settings := &memSettings{}
	h := New(
		service.NewEventService(store, maxExport),
		service.NewSettingsService(settings, 90, maxExport),
	)
	return h, store, settings
}

func do(h http.HandlerFunc, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestIngestThenSearchByUser(t *testing.T) {
	h, _, _ := setup(t, 100)

	rec := do(h.IngestEvents, http.MethodPost, "/events/ingest", `[
		{"user":"alice","category":"auth","action":"login"},
		{"user":"bob","category":"auth","action":"login"}
	]`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"accepted":2}`, rec.Body.String())

	rec = do(h.SearchEvents, http.MethodPost, "/events", `{"user":"alice"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res models.QueryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Items, 1)
	assert.Equal(t, "alice", res.Items[0].User)
	assert.Equal(t, int64(1), res.Total)
	assert.Equal(t, 20, res.PageSize, "omitted size keeps the default")
	assert.Equal(t, 1, res.TotalPages)
}

func TestSearchEvents_EmptyBodyMatchesAll(t *testing.T) {
	h, store, _ := setup(t, 100)
	store.events = []models.Event{{User: "a"}, {User: "b"}}

	rec := do(h.SearchEvents, http.MethodPost, "/events", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res models.QueryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, int64(2), res.Total)
}

func TestSearchEvents_Errors(t *testing.T) {
	h, store, _ := setup(t, 100)

	rec := do(h.SearchEvents, http.MethodPost, "/events", `{"user":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h.SearchEvents, http.MethodPost, "/events", `{"size":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Fields, "size")

	rec = do(h.SearchEvents, http.MethodPost, "/events", `{"size":2000000000,"page":5000000000}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body = httputil.ErrorResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Fields, "page")

	store.searchErr = errors.New("index missing")
	rec = do(h.SearchEvents, http.MethodPost, "/events", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "index missing")
}

func TestExportEvents(t *testing.T) {
	h, store, _ := setup(t, 2)
	h.now = func() time.Time { return time.Date(2024, 3, 5, 14, 7, 9, 0, time.FixedZone("CET", 3600)) }
	for _, u := range []string{"a", "b", "c", "d", "e"} {
		store.events = append(store.events, models.Event{User: u, Category: "auth", Action: "login"})
	}

	rec := do(h.ExportEvents, http.MethodPost, "/events/export", `{"page":4,"size":1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="events-export_20240305_130709_utc.csv"`, rec.Header().Get("Content-Disposition"))

	records, err := csv.NewReader(bytes.NewReader(rec.Body.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3, "header plus maxExportSize rows")
	assert.Equal(t, export.Header, records[0])
	assert.Equal(t, "a", records[1][2])
	assert.Equal(t, "b", records[2][2])
}

func TestExportEvents_SearchFailure(t *testing.T) {
	h, store, _ := setup(t, 10)
	store.searchErr = errors.New("timeout")

	rec := do(h.ExportEvents, http.MethodPost, "/events/export", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestExportFilename(t *testing.T) {
	ts := time.Date(2025, 12, 31, 23, 59, 58, 0, time.UTC)
	assert.Equal(t, "events-export_20251231_235958_utc.csv", ExportFilename(ts))
}

func TestIngestEvents_Validation(t *testing.T) {
	h, store, _ := setup(t, 10)

	rec := do(h.IngestEvents, http.MethodPost, "/events/ingest", `[{"user":"alice","category":"auth","action":"login"},{"user":"bob"}]`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Fields, "[1]")
	assert.Empty(t, store.events)

	rec = do(h.IngestEvents, http.MethodPost, "/events/ingest", `{"user":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "body must be an array")

	rec = do(h.IngestEvents, http.MethodPost, "/events/ingest", `[]`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"accepted":0}`, rec.Body.String())
}

func TestSettings(t *testing.T) {
	h, _, settings := setup(t, 10000)

	rec := do(h.Settings, http.MethodGet, "/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"retentionPeriodDays":90,"maxExportSize":10000}`, rec.Body.String())

	rec = do(h.Settings, http.MethodPut, "/settings", `{"retentionPeriodDays":30,"maxExportSize":500}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"retentionPeriodDays":30,"maxExportSize":500}`, rec.Body.String())
	require.NotNil(t, settings.saved)
	assert.Equal(t, "api-user", settings.saved.UpdatedBy)

	rec = do(h.Settings, http.MethodGet, "/settings", "")
	assert.JSONEq(t, `{"retentionPeriodDays":30,"maxExportSize":10000}`, rec.Body.String())
}

func TestSettings_ValidationFailure(t *testing.T) {
	h, _, settings := setup(t, 10000)

	rec := do(h.Settings, http.MethodPut, "/settings", `{"retentionPeriodDays":4000,"maxExportSize":0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Fields, "retentionPeriodDays")
	assert.Contains(t, body.Fields, "maxExportSize")
	assert.Nil(t, settings.saved)
}

func TestReady(t *testing.T) {
	h, _, _ := setup(t, 10)

	rec := do(h.Ready, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	h.WithReadinessCheck("storage", func(context.Context) error { return nil }).
		WithReadinessCheck("broker", func(context.Context) error { return errors.New("not connected") })

	rec = do(h.Ready, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "DOWN", body.Status)
	assert.Equal(t, "UP", body.Checks["storage"])
	assert.Contains(t, body.Checks["broker"], "not connected")
}

func TestReady_ReportsNextRetentionRun(t *testing.T) {
	h, _, _ := setup(t, 10)
	next := time.Date(2024, 3, 6, 2, 0, 0, 0, time.UTC)
	h.WithRetentionSchedule(func() time.Time { return next })

	rec := do(h.Ready, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2024-03-06T02:00:00Z", body["nextRetentionRun"])

	h.WithRetentionSchedule(func() time.Time { return time.Time{} })
	rec = do(h.Ready, http.MethodGet, "/readyz", "")
	body = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body, "nextRetentionRun")
}

func TestWriteServiceError_LogsStatus(t *testing.T) {
	h, store, _ := setup(t, 10)
	var buf bytes.Buffer
	h.logger = logging.NewWithWriter(&buf, slog.LevelInfo, "json")

	store.searchErr = errors.New("index missing")
	rec := do(h.SearchEvents, http.MethodPost, "/events", `{}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), `"status":500`)
	assert.Contains(t, buf.String(), "index missing")
}

func TestHealth(t *testing.T) {
	h, _, _ := setup(t, 10)
	rec := do(h.Health, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"UP"}`, rec.Body.String())
}
