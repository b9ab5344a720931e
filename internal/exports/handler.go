package exports

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	commandapp "hydrofarm-cloud/internal/commands/application"
	"hydrofarm-cloud/internal/observability/metrics"
	telemetry "hydrofarm-cloud/internal/telemetry/domain"
)

const defaultWindow = 7 * 24 * time.Hour

// Handler serves reading and command history exports.
type Handler struct {
	history       *HistoryQuery
	commands      *commandapp.Service
	logger        *log.Logger
	defaultRoomID string
}

// NewHandler constructs a handler.
func NewHandler(history *HistoryQuery, commands *commandapp.Service, defaultRoomID string, logger *log.Logger) (*Handler, error) {
	if history == nil {
		return nil, errors.New("exports http: nil history query")
	}
	if commands == nil {
		return nil, errors.New("exports http: nil command service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{history: history, commands: commands, logger: logger, defaultRoomID: defaultRoomID}, nil
}

// Register mounts the export routes.
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/api/v1/exports/readings.xlsx", h.handleReadingsXLSX).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/exports/devices/{deviceId}/commands.pdf", h.handleCommandsPDF).Methods(http.MethodGet)
}

func (h *Handler) handleReadingsXLSX(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	from, to, err := parseWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		roomID = h.defaultRoomID
	}

	rooms, err := h.history.RoomHistory(r.Context(), roomID, from, to)
	if err != nil {
		h.fail(w, "xlsx", started, err)
		return
	}
	var units []telemetry.UnitReading
	if deviceID := r.URL.Query().Get("device"); deviceID != "" {
		units, err = h.history.UnitHistory(r.Context(), deviceID, from, to)
		if err != nil {
			h.fail(w, "xlsx", started, err)
			return
		}
	}

	data, err := BuildReadingsXLSX(roomID, rooms, units)
	if err != nil {
		h.fail(w, "xlsx", started, err)
		return
	}

	metrics.ObserveExport("xlsx", metrics.ResultSuccess, time.Since(started))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="readings-%s.xlsx"`, roomID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) handleCommandsPDF(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	deviceID := mux.Vars(r)["deviceId"]
	from, to, err := parseWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cmds, err := h.commands.ListByDevice(r.Context(), deviceID, from, to)
	if err != nil {
		h.fail(w, "pdf", started, err)
		return
	}

	data, err := BuildCommandsPDF(deviceID, from, to, cmds)
	if err != nil {
		h.fail(w, "pdf", started, err)
		return
	}

	metrics.ObserveExport("pdf", metrics.ResultSuccess, time.Since(started))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="commands-%s.pdf"`, deviceID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) fail(w http.ResponseWriter, format string, started time.Time, err error) {
	metrics.ObserveExport(format, metrics.ResultError, time.Since(started))
	h.logger.Printf("exports: %s export failed: %v", format, err)
	http.Error(w, "export failed", http.StatusInternalServerError)
}

func parseWindow(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now.Add(-defaultWindow)
	to := now

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from: %s", raw)
		}
		from = parsed.UTC()
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to: %s", raw)
		}
		to = parsed.UTC()
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, errors.New("to must be after from")
	}
	return from, to, nil
}
