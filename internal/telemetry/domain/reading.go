package telemetry

import (
	"context"
	"errors"
	"time"
)

// RoomReading is a shared environmental sample reported by the room-level
// instrument cluster.
type RoomReading struct {
	RoomID     string    `json:"roomId"`
	RoomTemp   float64   `json:"roomTemp"`
	Humidity   float64   `json:"humidity"`
	PH         float64   `json:"pH"`
	EC         float64   `json:"ec"`
	WaterLevel string    `json:"waterLevel"`
	Timestamp  time.Time `json:"timestamp"`
}

// UnitReading is a per-device substrate sample. Every unit reading
// references exactly one room; many units share a room.
type UnitReading struct {
	ReadingID string    `json:"readingId"`
	DeviceID  string    `json:"deviceId"`
	RoomID    string    `json:"roomId"`
	Moisture  float64   `json:"moisture"`
	Timestamp time.Time `json:"timestamp"`
}

// BagState is one unit's slice of the merged snapshot.
type BagState struct {
	DeviceID          string    `json:"deviceId"`
	Moisture          float64   `json:"moisture"`
	MoistureTimestamp time.Time `json:"moistureTimestamp"`
	RoomID            string    `json:"roomId"`
}

// Snapshot is the read-time join of the latest room state with each
// unit's latest moisture state. It is derived, never persisted.
type Snapshot struct {
	Room *RoomReading
	Bags map[string]BagState
}

// Timestamps collects every contributing timestamp from both sensor
// populations.
func (s Snapshot) Timestamps() []time.Time {
	var result []time.Time
	if s.Room != nil && !s.Room.Timestamp.IsZero() {
		result = append(result, s.Room.Timestamp)
	}
	for _, bag := range s.Bags {
		if !bag.MoistureTimestamp.IsZero() {
			result = append(result, bag.MoistureTimestamp)
		}
	}
	return result
}

var (
	// ErrValidation indicates a malformed or out-of-range reading.
	ErrValidation = errors.New("telemetry: validation")
	// ErrDependency indicates the reading store is unavailable.
	ErrDependency = errors.New("telemetry: store unavailable")
)

// Store persists and retrieves readings. The two populations are written
// separately and merged only at query time.
type Store interface {
	InsertUnitReading(ctx context.Context, reading UnitReading) error
	InsertRoomReading(ctx context.Context, reading RoomReading) error
	// LatestRoom returns the newest room reading for a room, or nil when
	// the room has never reported.
	LatestRoom(ctx context.Context, roomID string) (*RoomReading, error)
	// LatestRoomAny returns the newest room reading across all rooms.
	LatestRoomAny(ctx context.Context) (*RoomReading, error)
	// LatestUnits returns the newest unit reading per device. An empty
	// filter means all known devices.
	LatestUnits(ctx context.Context, deviceIDs []string) ([]UnitReading, error)
}

// Clock abstracts time for freshness decisions.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
