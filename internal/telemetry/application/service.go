package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"hydrofarm-cloud/internal/devices"
	"hydrofarm-cloud/internal/eventing"
	"hydrofarm-cloud/internal/observability/metrics"
	telemetryevents "hydrofarm-cloud/internal/telemetry/application/events"
	telemetry "hydrofarm-cloud/internal/telemetry/domain"
)

// SnapshotView is the merged snapshot annotated with its freshness verdict.
type SnapshotView struct {
	Room           *telemetry.RoomReading        `json:"room"`
	Bags           map[string]telemetry.BagState `json:"bags"`
	IsDataFresh    bool                          `json:"isDataFresh"`
	DataAgeSeconds *int64                        `json:"dataAgeSeconds"`
	Count          int                           `json:"count"`
	Timestamp      time.Time                     `json:"timestamp"`
}

// Service validates incoming readings, writes both reading populations and
// produces the merged current-state view.
type Service struct {
	store          telemetry.Store
	deviceRepo     devices.Repository
	bus            eventing.EventBus
	logger         *log.Logger
	clock          telemetry.Clock
	defaultRoomID  string
	staleThreshold time.Duration
}

// Option configures the service.
type Option func(*Service)

// WithClock overrides the clock, for tests.
func WithClock(clock telemetry.Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithStaleThreshold overrides the staleness threshold.
func WithStaleThreshold(threshold time.Duration) Option {
	return func(s *Service) {
		if threshold > 0 {
			s.staleThreshold = threshold
		}
	}
}

// WithDefaultRoom overrides the default room id.
func WithDefaultRoom(roomID string) Option {
	return func(s *Service) {
		if roomID != "" {
			s.defaultRoomID = roomID
		}
	}
}

// NewService constructs a telemetry service.
func NewService(store telemetry.Store, deviceRepo devices.Repository, bus eventing.EventBus, logger *log.Logger, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("telemetry: nil store")
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Service{
		store:          store,
		deviceRepo:     deviceRepo,
		bus:            bus,
		logger:         logger,
		clock:          telemetry.SystemClock{},
		defaultRoomID:  "main-room",
		staleThreshold: telemetry.DefaultStaleThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ingest persists one validated reading for an authenticated device. The
// unit reading is authoritative; the room reading is a best-effort
// secondary write whose failure is logged, never surfaced.
func (s *Service) Ingest(ctx context.Context, deviceID string, payload Payload) (*telemetry.UnitReading, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: missing device id", telemetry.ErrValidation)
	}

	now := s.clock.Now()
	roomID := s.resolveRoom(ctx, deviceID)

	unit := telemetry.UnitReading{
		ReadingID: "read-" + uuid.NewString(),
		DeviceID:  deviceID,
		RoomID:    roomID,
		Moisture:  payload.Moisture,
		Timestamp: now,
	}
	if err := s.store.InsertUnitReading(ctx, unit); err != nil {
		metrics.IncIngest("error")
		return nil, fmt.Errorf("%w: %v", telemetry.ErrDependency, err)
	}

	room := telemetry.RoomReading{
		RoomID:     roomID,
		RoomTemp:   payload.RoomTemp,
		Humidity:   payload.Humidity,
		PH:         payload.PH,
		EC:         payload.EC,
		WaterLevel: payload.WaterLevel,
		Timestamp:  now,
	}
	if err := s.store.InsertRoomReading(ctx, room); err != nil {
		s.logger.Printf("telemetry ingest: room reading dropped for %s: %v", roomID, err)
		metrics.IncRoomWriteDropped()
	}

	metrics.IncIngest("success")
	if s.deviceRepo != nil {
		_ = s.deviceRepo.TouchLastSeen(ctx, deviceID, now)
	}

	if s.bus != nil {
		_ = s.bus.Publish(ctx, telemetryevents.TelemetryReceived{
			ReadingID:  unit.ReadingID,
			DeviceID:   deviceID,
			RoomID:     roomID,
			RoomTemp:   payload.RoomTemp,
			Humidity:   payload.Humidity,
			PH:         payload.PH,
			EC:         payload.EC,
			Moisture:   payload.Moisture,
			OccurredAt: now,
		})
	}
	return &unit, nil
}

// LatestSnapshot merges the latest room reading with each unit's latest
// moisture reading and evaluates freshness. When the room half is stale
// but a unit is fresh, a newer room value is re-resolved from the general
// reading store so a slow room pipeline does not mark the feed stale.
func (s *Service) LatestSnapshot(ctx context.Context, deviceIDs []string) (*SnapshotView, error) {
	now := s.clock.Now()

	room, err := s.store.LatestRoom(ctx, s.defaultRoomID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", telemetry.ErrDependency, err)
	}
	units, err := s.store.LatestUnits(ctx, deviceIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", telemetry.ErrDependency, err)
	}

	snapshot := telemetry.Snapshot{
		Room: room,
		Bags: make(map[string]telemetry.BagState, len(units)),
	}
	for _, unit := range units {
		snapshot.Bags[unit.DeviceID] = telemetry.BagState{
			DeviceID:          unit.DeviceID,
			Moisture:          unit.Moisture,
			MoistureTimestamp: unit.Timestamp,
			RoomID:            unit.RoomID,
		}
	}

	verdict := telemetry.EvaluateFreshness(snapshot.Timestamps(), now, s.staleThreshold)

	if verdict.IsFresh && room != nil && now.Sub(room.Timestamp) >= s.staleThreshold {
		if fresher, err := s.store.LatestRoomAny(ctx); err == nil && fresher != nil && fresher.Timestamp.After(room.Timestamp) {
			snapshot.Room = fresher
		}
	}

	return &SnapshotView{
		Room:           snapshot.Room,
		Bags:           snapshot.Bags,
		IsDataFresh:    verdict.IsFresh,
		DataAgeSeconds: verdict.AgeSeconds(),
		Count:          len(snapshot.Bags),
		Timestamp:      now,
	}, nil
}

func (s *Service) resolveRoom(ctx context.Context, deviceID string) string {
	if s.deviceRepo == nil {
		return s.defaultRoomID
	}
	device, err := s.deviceRepo.GetByID(ctx, deviceID)
	if err != nil || device.RoomID == "" {
		return s.defaultRoomID
	}
	return device.RoomID
}
