package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/telhawk-systems/eventlogs/internal/models"
)

// SettingsStore keeps the singleton settings document.
type SettingsStore struct {
	client *opensearch.Client
	index  string
}

func NewSettingsStore(client *opensearch.Client, index string) *SettingsStore {
	return &SettingsStore{client: client, index: index}
}

// Get returns nil, nil when the document (or its index) does not exist.
func (s *SettingsStore) Get(ctx context.Context) (*models.Settings, error) {
	res, err := s.client.Get(s.index, models.SettingsID, s.client.Get.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("get settings: %w", responseError(res.Status(), res.Body))
	}

	var doc struct {
		Found  bool            `json:"found"`
		Source models.Settings `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if !doc.Found {
		return nil, nil
	}
	st := doc.Source
	st.ID = models.SettingsID
	st.UpdatedAt = st.UpdatedAt.UTC()
	return &st, nil
}

// Save overwrites the settings document and refreshes the index.
func (s *SettingsStore) Save(ctx context.Context, st models.Settings) error {
	st.ID = models.SettingsID
	data, err := json.Marshal(st)
	if err != nil {
		return &models.StorageError{Op: "save_settings", Err: err}
	}

	res, err := s.client.Index(
		s.index,
		bytes.NewReader(data),
		s.client.Index.WithDocumentID(models.SettingsID),
		s.client.Index.WithRefresh("true"),
		s.client.Index.WithContext(ctx),
	)
	if err != nil {
		return &models.StorageError{Op: "save_settings", Err: err}
	}
	defer res.Body.Close()

	if res.IsError() {
		return &models.StorageError{Op: "save_settings", Err: responseError(res.Status(), res.Body)}
	}
	return nil
}
