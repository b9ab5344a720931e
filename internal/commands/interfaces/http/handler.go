package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"hydrofarm-cloud/internal/audit"
	"hydrofarm-cloud/internal/auth"
	commandsapp "hydrofarm-cloud/internal/commands/application"
	commands "hydrofarm-cloud/internal/commands/domain"
)

// Handler provides command HTTP endpoints for operators and devices.
type Handler struct {
	service     *commandsapp.Service
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *commandsapp.Service, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("commands handler: nil service")
	}
	return &Handler{service: service, auditLogger: auditLogger}, nil
}

// RegisterControl mounts the operator-facing routes.
func (h *Handler) RegisterControl(router *mux.Router) {
	router.HandleFunc("/api/v1/devices/{deviceId}/commands", h.handleCreate).Methods(http.MethodPost)
}

// RegisterDevice mounts the device-facing routes. Both carry an API key
// resolved to a device id before the handler runs.
func (h *Handler) RegisterDevice(router *mux.Router) {
	router.HandleFunc("/api/v1/devices/{deviceId}/commands", h.handlePoll).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/devices/{deviceId}/commands/ack", h.handleAck).Methods(http.MethodPost)
}

// handleCreate queues a command from the operator console.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["deviceId"]

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req commandsapp.CreateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	req.DeviceID = deviceID

	cmd, err := h.service.Create(r.Context(), req)
	if err != nil {
		respondCommandError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":   true,
		"commandId": cmd.CommandID,
		"deviceId":  cmd.DeviceID,
		"action":    cmd.Action,
		"expiresAt": cmd.ExpiresAt.Format(time.RFC3339),
	})

	h.logAudit(r, "command.issue", cmd.CommandID, cmd.DeviceID, cmd.Action)
}

// handlePoll is the device delivery poll. Returned commands move to sent
// within this same request.
func (h *Handler) handlePoll(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["deviceId"]
	if auth.DeviceIDFromContext(r.Context()) != deviceID {
		http.Error(w, "invalid API key or device mismatch", http.StatusUnauthorized)
		return
	}

	batch, err := h.service.PollPending(r.Context(), deviceID)
	if err != nil {
		respondCommandError(w, err)
		return
	}
	if batch == nil {
		batch = []commands.Command{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":   true,
		"deviceId":  deviceID,
		"commands":  batch,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleAck records a device-reported command outcome.
func (h *Handler) handleAck(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["deviceId"]
	if auth.DeviceIDFromContext(r.Context()) != deviceID {
		http.Error(w, "invalid API key or device mismatch", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req commandsapp.AckRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	cmd, err := h.service.Acknowledge(r.Context(), deviceID, req.CommandID, req.Status, req.Result)
	if err != nil {
		respondCommandError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"command": cmd,
	})

	h.logAudit(r, "command.ack", cmd.CommandID, cmd.DeviceID, cmd.Status)
}

func (h *Handler) logAudit(r *http.Request, action, commandID, deviceID, detail string) {
	if h.auditLogger == nil {
		return
	}
	meta, _ := json.Marshal(map[string]any{
		"device_id": deviceID,
		"detail":    detail,
	})
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "command",
		ResourceID:   commandID,
		DeviceID:     deviceID,
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func respondCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, commands.ErrInvalidArgument),
		errors.Is(err, commands.ErrUnknownDevice),
		errors.Is(err, commands.ErrExpired),
		errors.Is(err, commands.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, commands.ErrNotOwned):
		http.Error(w, "command not found", http.StatusNotFound)
	case errors.Is(err, commands.ErrNotFound):
		http.Error(w, "command not found", http.StatusNotFound)
	default:
		http.Error(w, "command operation failed", http.StatusInternalServerError)
	}
}
