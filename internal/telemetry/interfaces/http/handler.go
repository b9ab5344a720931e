package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"hydrofarm-cloud/internal/auth"
	"hydrofarm-cloud/internal/observability/metrics"
	"hydrofarm-cloud/internal/telemetry/application"
	telemetry "hydrofarm-cloud/internal/telemetry/domain"
)

const maxIngestBody = 1 << 16

// Handler exposes the telemetry ingestion and read endpoints.
type Handler struct {
	service *application.Service
	logger  *log.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *application.Service, logger *log.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("telemetry http: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{service: service, logger: logger}, nil
}

// RegisterDevice mounts the device-facing ingest route.
func (h *Handler) RegisterDevice(router *mux.Router) {
	router.HandleFunc("/api/v1/sensors/ingest", h.handleIngest).Methods(http.MethodPost)
}

// RegisterControl mounts the operator-facing read route.
func (h *Handler) RegisterControl(router *mux.Router) {
	router.HandleFunc("/api/v1/sensors/latest", h.handleLatest).Methods(http.MethodGet)
}

// handleIngest accepts one telemetry payload from an authenticated device.
func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	deviceID := auth.DeviceIDFromContext(r.Context())
	if deviceID == "" {
		writeError(w, http.StatusUnauthorized, "API key required")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	payload, err := application.ParsePayload(body)
	if err != nil {
		metrics.IncIngest("rejected")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reading, err := h.service.Ingest(r.Context(), deviceID, payload)
	if err != nil {
		h.respondTelemetryError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":   true,
		"readingId": reading.ReadingID,
		"deviceId":  reading.DeviceID,
		"timestamp": reading.Timestamp.UTC().Format(time.RFC3339),
	})
}

// handleLatest returns the merged current-state snapshot.
func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	var deviceIDs []string
	if raw := r.URL.Query().Get("devices"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if id := strings.TrimSpace(part); id != "" {
				deviceIDs = append(deviceIDs, id)
			}
		}
	}

	view, err := h.service.LatestSnapshot(r.Context(), deviceIDs)
	if err != nil {
		h.respondTelemetryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"room":           view.Room,
		"bags":           view.Bags,
		"isDataFresh":    view.IsDataFresh,
		"dataAgeSeconds": view.DataAgeSeconds,
		"count":          view.Count,
		"timestamp":      view.Timestamp.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) respondTelemetryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, telemetry.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, telemetry.ErrDependency):
		h.logger.Printf("telemetry: dependency failure: %v", err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		h.logger.Printf("telemetry: internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}
