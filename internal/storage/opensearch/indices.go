package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/opensearch-project/opensearch-go/v2"
)

func keyword() map[string]interface{} {
	return map[string]interface{}{"type": "keyword"}
}

func eventsIndexBody() map[string]interface{} {
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"timestamp":     map[string]interface{}{"type": "date"},
				"user":          keyword(),
				"category":      keyword(),
				"action":        keyword(),
				"document":      keyword(),
				"project":       keyword(),
				"environment":   keyword(),
				"tenant":        keyword(),
				"correlationId": keyword(),
				"traceId":       keyword(),
				"details": map[string]interface{}{
					"properties": map[string]interface{}{
						"ipAddress":      keyword(),
						"userAgent":      keyword(),
						"additionalInfo": map[string]interface{}{"type": "text"},
						"changes": map[string]interface{}{
							"properties": map[string]interface{}{
								"field":    keyword(),
								"oldValue": keyword(),
								"newValue": keyword(),
							},
						},
					},
				},
			},
		},
	}
}

func settingsIndexBody() map[string]interface{} {
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"id":                  keyword(),
				"retentionPeriodDays": map[string]interface{}{"type": "integer"},
				"updatedAt":           map[string]interface{}{"type": "date"},
				"updatedBy":           keyword(),
			},
		},
	}
}

// EnsureIndices creates the events and settings indices when they are missing.
func EnsureIndices(ctx context.Context, client *opensearch.Client, cfg Config) error {
	if err := ensureIndex(ctx, client, cfg.Index, eventsIndexBody()); err != nil {
		return err
	}
	return ensureIndex(ctx, client, cfg.SettingsIndex, settingsIndexBody())
}

func ensureIndex(ctx context.Context, client *opensearch.Client, name string, body map[string]interface{}) error {
	exists, err := client.Indices.Exists([]string{name}, client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", name, err)
	}
	exists.Body.Close()

	if exists.StatusCode == http.StatusOK {
		return nil
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal index %s: %w", name, err)
	}

	res, err := client.Indices.Create(
		name,
		client.Indices.Create.WithBody(bytes.NewReader(data)),
		client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		respBody, _ := io.ReadAll(res.Body)
		// Another replica created it first.
		if strings.Contains(string(respBody), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("create index %s: %s - %s", name, res.Status(), string(respBody))
	}
	return nil
}
