package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubValidator struct {
	creds map[string]*Credential
	err   error
}

func (s *stubValidator) Validate(_ context.Context, key string) (*Credential, error) {
	if s.err != nil {
		return nil, s.err
	}
	cred, ok := s.creds[key]
	if !ok {
		return nil, ErrUnauthenticated
	}
	return cred, nil
}

func TestDeviceAuth_MissingKey(t *testing.T) {
	mw := NewDeviceAuthMiddleware(&stubValidator{})
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sensors/ingest", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestDeviceAuth_UnknownKey(t *testing.T) {
	mw := NewDeviceAuthMiddleware(&stubValidator{creds: map[string]*Credential{}})
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sensors/ingest", nil)
	req.Header.Set("X-API-Key", "nope")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestDeviceAuth_ResolvesDeviceID(t *testing.T) {
	validator := &stubValidator{creds: map[string]*Credential{
		"key-1": {Key: "key-1", DeviceID: "device-1", IsActive: true},
	}}
	mw := NewDeviceAuthMiddleware(validator)

	var gotDevice string
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotDevice = DeviceIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sensors/ingest", nil)
	req.Header.Set("X-API-Key", "key-1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if gotDevice != "device-1" {
		t.Fatalf("device = %q, want device-1", gotDevice)
	}
}

func TestDeviceAuth_StoreFailureIs503(t *testing.T) {
	mw := NewDeviceAuthMiddleware(&stubValidator{err: errors.New("db down")})
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sensors/ingest", nil)
	req.Header.Set("X-API-Key", "key-1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}
