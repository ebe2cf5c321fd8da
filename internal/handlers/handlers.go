// Package handlers exposes the event and settings services over HTTP.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/telhawk-systems/eventlogs/internal/httputil"
	"github.com/telhawk-systems/eventlogs/internal/logging"
	"github.com/telhawk-systems/eventlogs/internal/models"
	"github.com/telhawk-systems/eventlogs/internal/service"
)

// ReadinessCheck reports whether one dependency can serve traffic.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler wires HTTP routes to the services.
type Handler struct {
	events    *service.EventService
	settings  *service.SettingsService
	checks    []ReadinessCheck
	nextSweep func() time.Time
	now       func() time.Time
	logger    *logging.Logger
}

// New creates a Handler instance.
func New(events *service.EventService, settings *service.SettingsService) *Handler {
	return &Handler{
		events:   events,
		settings: settings,
		now:      time.Now,
		logger:   logging.Default().With(logging.Component("http")),
	}
}

// WithReadinessCheck adds a dependency probed by /readyz.
func (h *Handler) WithReadinessCheck(name string, check func(ctx context.Context) error) *Handler {
	h.checks = append(h.checks, ReadinessCheck{Name: name, Check: check})
	return h
}

// WithRetentionSchedule reports the next retention sweep in the /readyz body.
func (h *Handler) WithRetentionSchedule(next func() time.Time) *Handler {
	h.nextSweep = next
	return h
}

// Health handles GET /healthz for liveness probes.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

// Ready handles GET /readyz: 200 when every dependency answers, 503 otherwise.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "UP"
	checks := make(map[string]string, len(h.checks))
	for _, c := range h.checks {
		if err := c.Check(ctx); err != nil {
			status = "DOWN"
			checks[c.Name] = "DOWN: " + err.Error()
			h.logger.WarnContext(r.Context(), "readiness check failed",
				slog.String("check", c.Name),
				logging.Error(err))
			continue
		}
		checks[c.Name] = "UP"
	}

	code := http.StatusOK
	if status != "UP" {
		code = http.StatusServiceUnavailable
	}
	body := map[string]interface{}{"status": status, "checks": checks}
	if h.nextSweep != nil {
		if next := h.nextSweep(); !next.IsZero() {
			body["nextRetentionRun"] = next.UTC().Format(time.RFC3339)
		}
	}
	httputil.WriteJSON(w, code, body)
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	for _, m := range allowed {
		w.Header().Add("Allow", m)
	}
	httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// writeServiceError maps service errors to status codes: validation
// failures are the caller's fault, everything else is ours.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		httputil.WriteFieldErrors(w, "validation failed", ve.Fields)
		return
	}
	h.logger.ErrorContext(r.Context(), msg,
		logging.Method(r.Method),
		logging.Path(r.URL.Path),
		logging.Status(http.StatusInternalServerError),
		logging.Error(err))
	httputil.WriteError(w, http.StatusInternalServerError, msg)
}
