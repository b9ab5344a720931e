package memory

import (
	"context"
	"sort"
	"sync"

	telemetry "hydrofarm-cloud/internal/telemetry/domain"
)

// Store is an in-memory reading store used in tests and local runs.
type Store struct {
	mu    sync.RWMutex
	rooms []telemetry.RoomReading
	units []telemetry.UnitReading

	// FailUnitInsert / FailRoomInsert inject write errors in tests.
	FailUnitInsert error
	FailRoomInsert error
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{}
}

func (s *Store) InsertUnitReading(_ context.Context, reading telemetry.UnitReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUnitInsert != nil {
		return s.FailUnitInsert
	}
	s.units = append(s.units, reading)
	return nil
}

func (s *Store) InsertRoomReading(_ context.Context, reading telemetry.RoomReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailRoomInsert != nil {
		return s.FailRoomInsert
	}
	s.rooms = append(s.rooms, reading)
	return nil
}

func (s *Store) LatestRoom(_ context.Context, roomID string) (*telemetry.RoomReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *telemetry.RoomReading
	for i := range s.rooms {
		r := s.rooms[i]
		if r.RoomID != roomID {
			continue
		}
		if latest == nil || r.Timestamp.After(latest.Timestamp) {
			copied := r
			latest = &copied
		}
	}
	return latest, nil
}

func (s *Store) LatestRoomAny(_ context.Context) (*telemetry.RoomReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *telemetry.RoomReading
	for i := range s.rooms {
		r := s.rooms[i]
		if latest == nil || r.Timestamp.After(latest.Timestamp) {
			copied := r
			latest = &copied
		}
	}
	return latest, nil
}

func (s *Store) LatestUnits(_ context.Context, deviceIDs []string) ([]telemetry.UnitReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filter := make(map[string]bool, len(deviceIDs))
	for _, id := range deviceIDs {
		filter[id] = true
	}

	latest := make(map[string]telemetry.UnitReading)
	for _, u := range s.units {
		if len(filter) > 0 && !filter[u.DeviceID] {
			continue
		}
		cur, ok := latest[u.DeviceID]
		if !ok || u.Timestamp.After(cur.Timestamp) {
			latest[u.DeviceID] = u
		}
	}

	result := make([]telemetry.UnitReading, 0, len(latest))
	for _, u := range latest {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DeviceID < result[j].DeviceID })
	return result, nil
}

// RoomCount reports how many room readings were stored.
func (s *Store) RoomCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// UnitCount reports how many unit readings were stored.
func (s *Store) UnitCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.units)
}
