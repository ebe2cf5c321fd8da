package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/telhawk-systems/eventlogs/internal/httputil"
	"github.com/telhawk-systems/eventlogs/internal/logging"
	"github.com/telhawk-systems/eventlogs/internal/models"
)

// ExportFilename is the attachment name for an export started at t.
func ExportFilename(t time.Time) string {
	return fmt.Sprintf("events-export_%s_utc.csv", t.UTC().Format("20060102_150405"))
}

// decodeQuery starts from the defaults, so omitted fields keep them. An
// empty body is a match-all query.
func decodeQuery(r *http.Request) (models.Query, error) {
	q := models.NewQuery()
	if err := httputil.DecodeJSON(r, &q); err != nil && !errors.Is(err, io.EOF) {
		return models.Query{}, err
	}
	return q, nil
}

// SearchEvents handles POST /events.
func (h *Handler) SearchEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	q, err := decodeQuery(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.events.Search(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, r, "failed to search events", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// ExportEvents handles POST /events/export, streaming the first
// maxExportSize matches as a CSV attachment.
func (h *Handler) ExportEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	q, err := decodeQuery(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	filename := ExportFilename(h.now())
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	n, err := h.events.Export(r.Context(), q, w)
	if err != nil {
		var se *models.SearchError
		if errors.As(err, &se) {
			// Export writes nothing before the search succeeds.
			w.Header().Del("Content-Disposition")
			h.writeServiceError(w, r, "failed to export events", err)
			return
		}
		h.logger.ErrorContext(r.Context(), "export interrupted while streaming", logging.Error(err))
		return
	}

	h.logger.InfoContext(r.Context(), "export served",
		logging.Count(n),
		slog.String("filename", filename))
}

type ingestResponse struct {
	Accepted int `json:"accepted"`
}

// IngestEvents handles POST /events/ingest: a JSON array of events stored
// synchronously. One bad element rejects the whole request.
func (h *Handler) IngestEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var raws []json.RawMessage
	if err := httputil.DecodeJSON(r, &raws); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "request body must be a JSON array of events")
		return
	}

	n, err := h.events.Ingest(r.Context(), raws)
	if err != nil {
		h.writeServiceError(w, r, "failed to ingest events", err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, ingestResponse{Accepted: n})
}
