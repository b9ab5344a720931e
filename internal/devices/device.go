package devices

import (
	"context"
	"errors"
	"time"
)

// Device is a registered field unit (one grow bag controller).
type Device struct {
	DeviceID  string    `json:"deviceId"`
	Name      string    `json:"name"`
	RoomID    string    `json:"roomId"`
	CreatedAt time.Time `json:"createdAt"`
	LastSeen  time.Time `json:"lastSeen,omitempty"`
}

// ErrNotFound indicates an unknown device.
var ErrNotFound = errors.New("devices: not found")

// Repository provides access to the device registry.
type Repository interface {
	GetByID(ctx context.Context, deviceID string) (*Device, error)
	List(ctx context.Context) ([]Device, error)
	// TouchLastSeen is best-effort; callers ignore its error.
	TouchLastSeen(ctx context.Context, deviceID string, seenAt time.Time) error
}
