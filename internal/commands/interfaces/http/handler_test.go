package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"hydrofarm-cloud/internal/auth"
	commandsapp "hydrofarm-cloud/internal/commands/application"
	"hydrofarm-cloud/internal/commands/infrastructure/memory"
	"hydrofarm-cloud/internal/devices"
)

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	repo := memory.NewCommandRepository()
	deviceRepo := devices.NewMemoryRepository()
	deviceRepo.Put(devices.Device{DeviceID: "device-1", RoomID: "main-room", CreatedAt: time.Now().UTC()})
	deviceRepo.Put(devices.Device{DeviceID: "device-2", RoomID: "main-room", CreatedAt: time.Now().UTC()})

	service, err := commandsapp.NewService(repo, deviceRepo, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	handler, err := NewHandler(service, nil)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	router := mux.NewRouter()
	handler.RegisterControl(router)
	handler.RegisterDevice(router)
	return router
}

func asDevice(req *http.Request, deviceID string) *http.Request {
	return req.WithContext(auth.WithDeviceID(req.Context(), deviceID))
}

func issueCommand(t *testing.T, router *mux.Router, deviceID, action string) string {
	t.Helper()
	body := fmt.Sprintf(`{"action": %q, "parameters": {"speed": 2}}`, action)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/"+deviceID+"/commands", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("issue: status = %d, body %s", resp.Code, resp.Body.String())
	}
	var out struct {
		CommandID string `json:"commandId"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out.CommandID
}

func TestIssueCommand(t *testing.T) {
	router := newTestRouter(t)
	commandID := issueCommand(t, router, "device-1", "set_pump")
	if commandID == "" {
		t.Fatalf("no command id returned")
	}
}

func TestIssueCommandUnknownDevice(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/ghost/commands",
		strings.NewReader(`{"action": "set_pump"}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
}

func TestPollRequiresMatchingDevice(t *testing.T) {
	router := newTestRouter(t)
	issueCommand(t, router, "device-1", "set_pump")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/device-1/commands", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, asDevice(req, "device-2"))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.Code)
	}
}

func TestPollDeliversOnce(t *testing.T) {
	router := newTestRouter(t)
	commandID := issueCommand(t, router, "device-1", "set_pump")

	poll := func() []map[string]any {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/device-1/commands", nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, asDevice(req, "device-1"))
		if resp.Code != http.StatusOK {
			t.Fatalf("poll: status = %d, body %s", resp.Code, resp.Body.String())
		}
		var out struct {
			Commands []map[string]any `json:"commands"`
		}
		if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return out.Commands
	}

	first := poll()
	if len(first) != 1 {
		t.Fatalf("first poll = %d commands, want 1", len(first))
	}
	if first[0]["commandId"] != commandID {
		t.Fatalf("commandId = %v, want %s", first[0]["commandId"], commandID)
	}
	if first[0]["status"] != "sent" {
		t.Fatalf("status = %v, want sent", first[0]["status"])
	}

	if second := poll(); len(second) != 0 {
		t.Fatalf("second poll = %d commands, want 0", len(second))
	}
}

func TestAckCrossDeviceIsNotFound(t *testing.T) {
	router := newTestRouter(t)
	commandID := issueCommand(t, router, "device-1", "set_pump")

	body := fmt.Sprintf(`{"commandId": %q, "status": "executed"}`, commandID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/device-2/commands/ack", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, asDevice(req, "device-2"))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.Code)
	}
}

func TestAckRecordsOutcome(t *testing.T) {
	router := newTestRouter(t)
	commandID := issueCommand(t, router, "device-1", "set_pump")

	body := fmt.Sprintf(`{"commandId": %q, "status": "executed", "result": {"ok": true}}`, commandID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/device-1/commands/ack", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, asDevice(req, "device-1"))
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.Code, resp.Body.String())
	}

	var out struct {
		Command struct {
			Status string `json:"status"`
		} `json:"command"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Command.Status != "executed" {
		t.Fatalf("status = %q, want executed", out.Command.Status)
	}
}

func TestAckInvalidOutcome(t *testing.T) {
	router := newTestRouter(t)
	commandID := issueCommand(t, router, "device-1", "set_pump")

	body := fmt.Sprintf(`{"commandId": %q, "status": "done"}`, commandID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/device-1/commands/ack", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, asDevice(req, "device-1"))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
}
