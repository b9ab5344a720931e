package devices

import (
	"encoding/json"
	"net/http"
	"time"
)

// Handler serves the operator device listing.
type Handler struct {
	repo Repository
}

// NewHandler constructs a handler.
func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// ServeHTTP handles GET /api/v1/devices.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.repo == nil {
		http.Error(w, "device registry unavailable", http.StatusServiceUnavailable)
		return
	}
	list, err := h.repo.List(r.Context())
	if err != nil {
		http.Error(w, "failed to list devices", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":   true,
		"devices":   list,
		"count":     len(list),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
