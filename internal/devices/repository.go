package devices

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresRepository is the Postgres device registry.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository constructs a repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID fetches a device by id.
func (r *PostgresRepository) GetByID(ctx context.Context, deviceID string) (*Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("devices repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT device_id, name, room_id, created_at, last_seen
FROM devices
WHERE device_id = $1
LIMIT 1`, deviceID)
	return scanDevice(row)
}

// List returns all registered devices ordered by creation time.
func (r *PostgresRepository) List(ctx context.Context) ([]Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("devices repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT device_id, name, room_id, created_at, last_seen
FROM devices
ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// TouchLastSeen updates the device heartbeat timestamp.
func (r *PostgresRepository) TouchLastSeen(ctx context.Context, deviceID string, seenAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("devices repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE devices SET last_seen = $2 WHERE device_id = $1`, deviceID, seenAt)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*Device, error) {
	var device Device
	var lastSeen sql.NullTime
	if err := row.Scan(&device.DeviceID, &device.Name, &device.RoomID, &device.CreatedAt, &lastSeen); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if lastSeen.Valid {
		device.LastSeen = lastSeen.Time.UTC()
	}
	device.CreatedAt = device.CreatedAt.UTC()
	return &device, nil
}
