package exports

import (
	"context"
	"database/sql"
	"errors"
	"time"

	telemetry "hydrofarm-cloud/internal/telemetry/domain"
)

// HistoryQuery reads reading history for exports. Exports scan time ranges
// the live store never needs, so they get their own read model.
type HistoryQuery struct {
	db *sql.DB
}

// NewHistoryQuery constructs a history query.
func NewHistoryQuery(db *sql.DB) *HistoryQuery {
	return &HistoryQuery{db: db}
}

// RoomHistory lists room readings for a room in a window, oldest first.
func (q *HistoryQuery) RoomHistory(ctx context.Context, roomID string, from, to time.Time) ([]telemetry.RoomReading, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("exports query: nil db")
	}
	rows, err := q.db.QueryContext(ctx, `
SELECT room_id, room_temp, humidity, ph, ec, water_level_status, ts
FROM room_readings
WHERE room_id = $1 AND ts >= $2 AND ts < $3
ORDER BY ts ASC`, roomID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []telemetry.RoomReading
	for rows.Next() {
		var reading telemetry.RoomReading
		if err := rows.Scan(&reading.RoomID, &reading.RoomTemp, &reading.Humidity, &reading.PH, &reading.EC, &reading.WaterLevel, &reading.Timestamp); err != nil {
			return nil, err
		}
		reading.Timestamp = reading.Timestamp.UTC()
		result = append(result, reading)
	}
	return result, rows.Err()
}

// UnitHistory lists unit readings for a device in a window, oldest first.
func (q *HistoryQuery) UnitHistory(ctx context.Context, deviceID string, from, to time.Time) ([]telemetry.UnitReading, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("exports query: nil db")
	}
	rows, err := q.db.QueryContext(ctx, `
SELECT reading_id, device_id, room_id, substrate_moisture, ts
FROM unit_readings
WHERE device_id = $1 AND ts >= $2 AND ts < $3
ORDER BY ts ASC`, deviceID, from, to)
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
	return result, rows.Err()
}
