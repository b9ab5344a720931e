package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Credential maps an opaque API key to exactly one device.
type Credential struct {
	Key       string
	DeviceID  string
	IsActive  bool
	ExpiresAt time.Time
	LastUsed  time.Time
}

// CredentialValidator resolves an API key to a device identity.
type CredentialValidator interface {
	Validate(ctx context.Context, key string) (*Credential, error)
}

// KeyStore validates device API keys against the api_keys table.
type KeyStore struct {
	db *sql.DB
}

// NewKeyStore constructs a KeyStore.
func NewKeyStore(db *sql.DB) *KeyStore {
	if db == nil {
		return nil
	}
	return &KeyStore{db: db}
}

// Validate resolves an API key. Inactive and expired keys fail with
// ErrUnauthenticated. The last_used touch is best-effort.
func (s *KeyStore) Validate(ctx context.Context, key string) (*Credential, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("keystore: nil db")
	}
	if key == "" {
		return nil, ErrUnauthenticated
	}
	row := s.db.QueryRowContext(ctx, `
SELECT api_key, device_id, is_active, expires_at
FROM api_keys
WHERE api_key = $1
LIMIT 1`, key)

	var cred Credential
	var expiresAt sql.NullTime
	if err := row.Scan(&cred.Key, &cred.DeviceID, &cred.IsActive, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if expiresAt.Valid {
		cred.ExpiresAt = expiresAt.Time.UTC()
	}
	if !cred.IsActive {
		return nil, ErrUnauthenticated
	}
	if !cred.ExpiresAt.IsZero() && time.Now().After(cred.ExpiresAt) {
		return nil, ErrUnauthenticated
	}

	_, _ = s.db.ExecContext(ctx, `UPDATE api_keys SET last_used = NOW() WHERE api_key = $1`, key)
	return &cred, nil
}

// DeviceAuthMiddleware authenticates device requests via the X-API-Key
// header and stores the resolved device id in the request context.
type DeviceAuthMiddleware struct {
	Validator CredentialValidator
}

// NewDeviceAuthMiddleware constructs a device auth middleware.
func NewDeviceAuthMiddleware(validator CredentialValidator) *DeviceAuthMiddleware {
	return &DeviceAuthMiddleware{Validator: validator}
}

// Wrap enforces API-key authentication.
func (m *DeviceAuthMiddleware) Wrap(next http.Handler) http.Handler {
	if m == nil || m.Validator == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "device auth not configured", http.StatusUnauthorized)
		})
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get("X-API-Key"))
		if key == "" {
			http.Error(w, "API key required", http.StatusUnauthorized)
			return
		}
		cred, err := m.Validator.Validate(r.Context(), key)
		if err != nil {
			if errors.Is(err, ErrUnauthenticated) {
				http.Error(w, "invalid API key", http.StatusUnauthorized)
				return
			}
			http.Error(w, "authentication service unavailable", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithDeviceID(r.Context(), cred.DeviceID)))
	})
}
