package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchutil"

	"github.com/telhawk-systems/eventlogs/internal/logging"
	"github.com/telhawk-systems/eventlogs/internal/models"
)

// EventStore indexes events into a single OpenSearch index.
type EventStore struct {
	client *opensearch.Client
	index  string
	logger *slog.Logger
}

// NewEventStore returns an EventStore writing to index.
func NewEventStore(client *opensearch.Client, index string) *EventStore {
	return &EventStore{
		client: client,
		index:  index,
		logger: logging.ForComponent("opensearch-events"),
	}
}

// documentID returns the _id to index under. Events carrying a UUID keep it,
// so a redelivered batch overwrites instead of duplicating; everything else
// gets an OpenSearch-assigned id.
func (s *EventStore) documentID(ev models.Event) string {
	if ev.ID == "" {
		return ""
	}
	if _, err := uuid.Parse(ev.ID); err != nil {
		s.logger.Warn("invalid event id, letting OpenSearch assign one",
			slog.String("invalid_id", ev.ID),
			logging.Error(err))
		return ""
	}
	return ev.ID
}

// Add bulk-indexes the batch with refresh=true, so the events are
// searchable as soon as Add returns. Any per-item failure fails the call.
func (s *EventStore) Add(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	bi, err := opensearchutil.NewBulkIndexer(opensearchutil.BulkIndexerConfig{
		Client:     s.client,
		Index:      s.index,
		NumWorkers: 1,
		Refresh:    "true",
	})
	if err != nil {
		return &models.StorageError{Op: "add", Err: fmt.Errorf("create bulk indexer: %w", err)}
	}

	var mu sync.Mutex
	var failures []string

	for _, ev := range events {
		docID := s.documentID(ev)
		doc := ev
		doc.ID = ""

		data, err := json.Marshal(doc)
		if err != nil {
			_ = bi.Close(ctx)
			return &models.StorageError{Op: "add", Err: fmt.Errorf("marshal event: %w", err)}
		}

		err = bi.Add(ctx, opensearchutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: docID,
			Body:       bytes.NewReader(data),
			OnFailure: func(ctx context.Context, item opensearchutil.BulkIndexerItem, res opensearchutil.BulkIndexerResponseItem, err error) {
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failures = append(failures, err.Error())
				} else {
					failures = append(failures, fmt.Sprintf("%s: %s", res.Error.Type, res.Error.Reason))
				}
			},
		})
		if err != nil {
			_ = bi.Close(ctx)
			return &models.StorageError{Op: "add", Err: fmt.Errorf("queue event: %w", err)}
		}
	}

	if err := bi.Close(ctx); err != nil {
		return &models.StorageError{Op: "add", Err: fmt.Errorf("flush bulk indexer: %w", err)}
	}

	stats := bi.Stats()
	if stats.NumFailed > 0 {
		mu.Lock()
		defer mu.Unlock()
		return &models.StorageError{
			Op:  "add",
			Err: fmt.Errorf("%d of %d events failed to index: %s", stats.NumFailed, len(events), strings.Join(failures, "; ")),
		}
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string       `json:"_id"`
			Source models.Event `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs one paged query with track_total_hits, so Total is exact.
func (s *EventStore) Search(ctx context.Context, q models.Query) (models.Page, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(buildSearchBody(q)); err != nil {
		return models.Page{}, &models.SearchError{Err: fmt.Errorf("encode query: %w", err)}
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(&buf),
		s.client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return models.Page{}, &models.SearchError{Err: fmt.Errorf("search request: %w", err)}
	}
	defer res.Body.Close()

	if res.IsError() {
		return models.Page{}, &models.SearchError{Err: responseError(res.Status(), res.Body)}
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return models.Page{}, &models.SearchError{Err: fmt.Errorf("decode search response: %w", err)}
	}

	items := make([]models.Event, 0, len(sr.Hits.Hits))
	for _, hit := range sr.Hits.Hits {
		ev := hit.Source
		ev.ID = hit.ID
		ev.Timestamp = ev.Timestamp.UTC()
		items = append(items, ev)
	}
	return models.Page{Items: items, Total: sr.Hits.Total.Value}, nil
}

// Count returns the number of documents matching q's filters.
func (s *EventStore) Count(ctx context.Context, q models.Query) (int64, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(map[string]interface{}{"query": buildQuery(q)}); err != nil {
		return 0, &models.SearchError{Err: fmt.Errorf("encode query: %w", err)}
	}

	res, err := s.client.Count(
		s.client.Count.WithContext(ctx),
		s.client.Count.WithIndex(s.index),
		s.client.Count.WithBody(&buf),
	)
	if err != nil {
		return 0, &models.SearchError{Err: fmt.Errorf("count request: %w", err)}
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, &models.SearchError{Err: responseError(res.Status(), res.Body)}
	}

	var cr struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&cr); err != nil {
		return 0, &models.SearchError{Err: fmt.Errorf("decode count response: %w", err)}
	}
	return cr.Count, nil
}

// DeleteOlderThan runs a delete-by-query on timestamp < cutoff.
func (s *EventStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	data, err := json.Marshal(buildDeleteBody(cutoff))
	if err != nil {
		return 0, &models.StorageError{Op: "delete_older_than", Err: err}
	}

	res, err := s.client.DeleteByQuery(
		[]string{s.index},
		bytes.NewReader(data),
		s.client.DeleteByQuery.WithContext(ctx),
		s.client.DeleteByQuery.WithRefresh(true),
		s.client.DeleteByQuery.WithConflicts("proceed"),
	)
	if err != nil {
		return 0, &models.StorageError{Op: "delete_older_than", Err: fmt.Errorf("delete by query request: %w", err)}
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, &models.StorageError{Op: "delete_older_than", Err: responseError(res.Status(), res.Body)}
	}

	var dr struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&dr); err != nil {
		return 0, &models.StorageError{Op: "delete_older_than", Err: fmt.Errorf("decode delete response: %w", err)}
	}
	return dr.Deleted, nil
}

// Ping checks the cluster answers and the events index exists.
func (s *EventStore) Ping(ctx context.Context) error {
	res, err := s.client.Indices.Exists([]string{s.index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping opensearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("events index %s unavailable: %s", s.index, res.Status())
	}
	return nil
}

// Close is a no-op; the HTTP transport holds no resources worth releasing.
func (s *EventStore) Close() error { return nil }

func responseError(status string, body io.Reader) error {
	data, _ := io.ReadAll(io.LimitReader(body, 4096))
	return fmt.Errorf("opensearch returned %s: %s", status, strings.TrimSpace(string(data)))
}
