package postgres

import (
	"context"
	"database/sql"
	"errors"

	telemetry "hydrofarm-cloud/internal/telemetry/domain"
)

// Store is the Postgres reading store. Room and unit readings live in
// separate tables keyed by (room_id, ts) and (device_id, ts).
type Store struct {
	db *sql.DB
}

// NewStore constructs a store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// InsertUnitReading appends one per-device substrate sample.
func (s *Store) InsertUnitReading(ctx context.Context, reading telemetry.UnitReading) error {
	if s == nil || s.db == nil {
		return errors.New("telemetry store: nil db")
	}
	if reading.DeviceID == "" || reading.RoomID == "" || reading.Timestamp.IsZero() {
		return errors.New("telemetry store: invalid unit reading")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO unit_readings (reading_id, device_id, room_id, substrate_moisture, ts)
VALUES ($1, $2, $3, $4, $5)`,
		reading.ReadingID, reading.DeviceID, reading.RoomID, reading.Moisture, reading.Timestamp)
	return err
}

// InsertRoomReading appends one shared environmental sample.
func (s *Store) InsertRoomReading(ctx context.Context, reading telemetry.RoomReading) error {
	if s == nil || s.db == nil {
		return errors.New("telemetry store: nil db")
	}
	if reading.RoomID == "" || reading.Timestamp.IsZero() {
		return errors.New("telemetry store: invalid room reading")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO room_readings (room_id, room_temp, humidity, ph, ec, water_level_status, ts)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		reading.RoomID, reading.RoomTemp, reading.Humidity, reading.PH, reading.EC, reading.WaterLevel, reading.Timestamp)
	return err
}

// LatestRoom returns the newest room reading for a room, or nil.
func (s *Store) LatestRoom(ctx context.Context, roomID string) (*telemetry.RoomReading, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("telemetry store: nil db")
	}
	row := s.db.QueryRowContext(ctx, `
SELECT room_id, room_temp, humidity, ph, ec, water_level_status, ts
FROM room_readings
WHERE room_id = $1
ORDER BY ts DESC
LIMIT 1`, roomID)
	return scanRoom(row)
}

// LatestRoomAny returns the newest room reading across all rooms.
func (s *Store) LatestRoomAny(ctx context.Context) (*telemetry.RoomReading, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("telemetry store: nil db")
	}
	row := s.db.QueryRowContext(ctx, `
SELECT room_id, room_temp, humidity, ph, ec, water_level_status, ts
FROM room_readings
ORDER BY ts DESC
LIMIT 1`)
	return scanRoom(row)
}

// LatestUnits returns the newest unit reading per device.
func (s *Store) LatestUnits(ctx context.Context, deviceIDs []string) ([]telemetry.UnitReading, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("telemetry store: nil db")
	}

	var rows *sql.Rows
	var err error
	if len(deviceIDs) == 0 {
		rows, err = s.db.QueryContext(ctx, `
SELECT DISTINCT ON (device_id) reading_id, device_id, room_id, substrate_moisture, ts
FROM unit_readings
ORDER BY device_id, ts DESC`)
	} else {
		rows, err = s.db.QueryContext(ctx, `
SELECT DISTINCT ON (device_id) reading_id, device_id, room_id, substrate_moisture, ts
FROM unit_readings
WHERE device_id = ANY($1)
ORDER BY device_id, ts DESC`, deviceIDs)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []telemetry.UnitReading
	for rows.Next() {
		var reading telemetry.UnitReading
		if err := rows.Scan(&reading.ReadingID, &reading.DeviceID, &reading.RoomID, &reading.Moisture, &reading.Timestamp); err != nil {
			return nil, err
		}
		reading.Timestamp = reading.Timestamp.UTC()
		result = append(result, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanRoom(row *sql.Row) (*telemetry.RoomReading, error) {
	var reading telemetry.RoomReading
	if err := row.Scan(&reading.RoomID, &reading.RoomTemp, &reading.Humidity, &reading.PH, &reading.EC, &reading.WaterLevel, &reading.Timestamp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	reading.Timestamp = reading.Timestamp.UTC()
	return &reading, nil
}
