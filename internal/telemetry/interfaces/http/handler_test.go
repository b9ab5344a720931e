package http

import (
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"hydrofarm-cloud/internal/auth"
	"hydrofarm-cloud/internal/devices"
	"hydrofarm-cloud/internal/telemetry/application"
	"hydrofarm-cloud/internal/telemetry/infrastructure/memory"
)

func newTestRouter(t *testing.T, store *memory.Store) *mux.Router {
	t.Helper()
	deviceRepo := devices.NewMemoryRepository()
	deviceRepo.Put(devices.Device{DeviceID: "device-1", RoomID: "main-room", CreatedAt: time.Now().UTC()})

	service, err := application.NewService(store, deviceRepo, nil, log.Default())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	handler, err := NewHandler(service, log.Default())
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	router := mux.NewRouter()
	handler.RegisterDevice(router)
	handler.RegisterControl(router)
	return router
}

func asDevice(req *http.Request, deviceID string) *http.Request {
	return req.WithContext(auth.WithDeviceID(req.Context(), deviceID))
}

const validBody = `{"room_temp": 23.5, "humidity": 65, "ph": 6.1, "ec": 1.8, "substrate_moisture": 42.5}`

func TestIngestEndpoint(t *testing.T) {
	store := memory.NewStore()
	router := newTestRouter(t, store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sensors/ingest", strings.NewReader(validBody))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, asDevice(req, "device-1"))

	if resp.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", resp.Code, resp.Body.String())
	}
	var body struct {
		Success   bool   `json:"success"`
		ReadingID string `json:"readingId"`
		DeviceID  string `json:"deviceId"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.DeviceID != "device-1" || body.ReadingID == "" {
		t.Fatalf("unexpected body %+v", body)
	}
	if store.UnitCount() != 1 {
		t.Fatalf("unit readings = %d, want 1", store.UnitCount())
	}
}

func TestIngestWithoutDeviceIdentity(t *testing.T) {
	router := newTestRouter(t, memory.NewStore())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sensors/ingest", strings.NewReader(validBody))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.Code)
	}
}

func TestIngestRejectsInvalidPayload(t *testing.T) {
	router := newTestRouter(t, memory.NewStore())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sensors/ingest",
		strings.NewReader(`{"room_temp": 23.5, "humidity": 65, "ph": 15, "ec": 1.8, "substrate_moisture": 42.5}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, asDevice(req, "device-1"))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "ph out of valid range") {
		t.Fatalf("body = %s", resp.Body.String())
	}
}

func TestLatestEndpoint(t *testing.T) {
	store := memory.NewStore()
	router := newTestRouter(t, store)

	ingest := httptest.NewRequest(http.MethodPost, "/api/v1/sensors/ingest", strings.NewReader(validBody))
	router.ServeHTTP(httptest.NewRecorder(), asDevice(ingest, "device-1"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sensors/latest", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.Code, resp.Body.String())
	}

	var body struct {
		Success        bool            `json:"success"`
		Room           json.RawMessage `json:"room"`
		Bags           map[string]any  `json:"bags"`
		IsDataFresh    bool            `json:"isDataFresh"`
		DataAgeSeconds *int64          `json:"dataAgeSeconds"`
		Count          int             `json:"count"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || !body.IsDataFresh || body.Count != 1 {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
	if _, ok := body.Bags["device-1"]; !ok {
		t.Fatalf("bags missing device-1: %s", resp.Body.String())
	}
	if body.DataAgeSeconds == nil {
		t.Fatalf("dataAgeSeconds must not be null with data present")
	}
}

func TestLatestEndpointEmptyStoreReportsNullAge(t *testing.T) {
	router := newTestRouter(t, memory.NewStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sensors/latest", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"dataAgeSeconds":null`) {
		t.Fatalf("body = %s, want null dataAgeSeconds", resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), `"isDataFresh":false`) {
		t.Fatalf("body = %s, want stale verdict", resp.Body.String())
	}
}
