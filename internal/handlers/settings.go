package handlers

import (
	"net/http"

	"github.com/telhawk-systems/eventlogs/internal/httputil"
	"github.com/telhawk-systems/eventlogs/internal/models"
)

// Settings handles GET and PUT /settings.
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		view, err := h.settings.Get(r.Context())
		if err != nil {
			h.writeServiceError(w, r, "failed to load settings", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, view)

	case http.MethodPut:
		var view models.SettingsView
		if err := httputil.DecodeJSON(r, &view); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		updated, err := h.settings.Update(r.Context(), view)
		if err != nil {
			h.writeServiceError(w, r, "failed to update settings", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, updated)

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut)
	}
}
