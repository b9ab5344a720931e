package devices

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is an in-memory device registry used by tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	devices map[string]Device
}

// NewMemoryRepository constructs an empty registry.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{devices: make(map[string]Device)}
}

// Put registers or replaces a device.
func (r *MemoryRepository) Put(device Device) {
	r.mu.Lock()
	r.devices[device.DeviceID] = device
	r.mu.Unlock()
}

// GetByID fetches a device by id.
func (r *MemoryRepository) GetByID(_ context.Context, deviceID string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	device, ok := r.devices[deviceID]
	if !ok {
		return nil, ErrNotFound
	}
	return &device, nil
}

// List returns all registered devices ordered by creation time.
func (r *MemoryRepository) List(_ context.Context) ([]Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Device, 0, len(r.devices))
	for _, device := range r.devices {
		result = append(result, device)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// TouchLastSeen updates the device heartbeat timestamp.
func (r *MemoryRepository) TouchLastSeen(_ context.Context, deviceID string, seenAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	device, ok := r.devices[deviceID]
	if !ok {
		return ErrNotFound
	}
	device.LastSeen = seenAt
	r.devices[deviceID] = device
	return nil
}
