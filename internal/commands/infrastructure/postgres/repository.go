package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	commands "hydrofarm-cloud/internal/commands/domain"
)

// CommandRepository is a Postgres implementation for device commands.
type CommandRepository struct {
	db *sql.DB
}

// NewCommandRepository constructs a repository.
func NewCommandRepository(db *sql.DB) *CommandRepository {
	return &CommandRepository{db: db}
}

// Create inserts a command in pending state.
func (r *CommandRepository) Create(ctx context.Context, cmd *commands.Command) error {
	if r == nil || r.db == nil {
		return errors.New("command repo: nil db")
	}
	if cmd == nil {
		return errors.New("command repo: nil command")
	}
	parameters := cmd.Parameters
	if len(parameters) == 0 {
		parameters = []byte("{}")
	}
	if !json.Valid(parameters) {
		return errors.New("command repo: invalid parameters")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO device_commands (
	command_id, device_id, action, parameters, priority, status, created_at, expires_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8
)`, cmd.CommandID, cmd.DeviceID, cmd.Action, parameters, cmd.Priority, cmd.Status, cmd.CreatedAt, cmd.ExpiresAt)
	return err
}

// GetByID fetches a command by id.
func (r *CommandRepository) GetByID(ctx context.Context, commandID string) (*commands.Command, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("command repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT command_id, device_id, action, parameters, priority, status, result,
	created_at, sent_at, executed_at, expires_at
FROM device_commands
WHERE command_id = $1
LIMIT 1`, commandID)
	return scanCommand(row)
}

// ListPending returns deliverable commands ordered by priority then age.
func (r *CommandRepository) ListPending(ctx context.Context, deviceID string, now time.Time) ([]commands.Command, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("command repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT command_id, device_id, action, parameters, priority, status, result,
	created_at, sent_at, executed_at, expires_at
FROM device_commands
WHERE device_id = $1 AND status = $2 AND expires_at > $3
ORDER BY
	CASE priority WHEN 'high' THEN 3 WHEN 'normal' THEN 2 ELSE 1 END DESC,
	created_at ASC`, deviceID, commands.StatusPending, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCommands(rows)
}

// MarkSent transitions pending commands to sent. Re-marking a command that
// is already sent is a no-op.
func (r *CommandRepository) MarkSent(ctx context.Context, commandIDs []string, sentAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("command repo: nil db")
	}
	if len(commandIDs) == 0 {
		return nil
	}
	// The pgx stdlib driver encodes []string as a text array.
	_, err := r.db.ExecContext(ctx, `
UPDATE device_commands
SET status = $1, sent_at = $2
WHERE command_id = ANY($3) AND status = $4`,
		commands.StatusSent, sentAt, commandIDs, commands.StatusPending)
	return err
}

// ExpireDue flips deliverable commands past their expiry to expired.
func (r *CommandRepository) ExpireDue(ctx context.Context, deviceID string, now time.Time) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("command repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE device_commands
SET status = $1
WHERE device_id = $2 AND status IN ($3, $4) AND expires_at <= $5`,
		commands.StatusExpired, deviceID, commands.StatusPending, commands.StatusSent, now)
	if err != nil {
		return 0, err
	}
	count, _ := result.RowsAffected()
	return int(count), nil
}

// MarkOutcome records a device-reported outcome for a deliverable command.
func (r *CommandRepository) MarkOutcome(ctx context.Context, commandID, deviceID, status string, result json.RawMessage, executedAt time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("command repo: nil db")
	}
	var resultValue any
	if len(result) > 0 {
		resultValue = []byte(result)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE device_commands
SET status = $1, result = $2, executed_at = $3
WHERE command_id = $4 AND device_id = $5 AND status IN ($6, $7)`,
		status, resultValue, executedAt, commandID, deviceID, commands.StatusPending, commands.StatusSent)
	if err != nil {
		return false, err
	}
	count, _ := res.RowsAffected()
	return count > 0, nil
}

// ListByDeviceAndTime lists commands for a device in a time range.
func (r *CommandRepository) ListByDeviceAndTime(ctx context.Context, deviceID string, from, to time.Time) ([]commands.Command, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("command repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT command_id, device_id, action, parameters, priority, status, result,
	created_at, sent_at, executed_at, expires_at
FROM device_commands
WHERE device_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at ASC`, deviceID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCommands(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func collectCommands(rows *sql.Rows) ([]commands.Command, error) {
	var result []commands.Command
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanCommand(row rowScanner) (*commands.Command, error) {
	var cmd commands.Command
	var parameters []byte
	var resultPayload []byte
	var sentAt sql.NullTime
	var executedAt sql.NullTime
	if err := row.Scan(
		&cmd.CommandID,
		&cmd.DeviceID,
		&cmd.Action,
		&parameters,
		&cmd.Priority,
		&cmd.Status,
		&resultPayload,
		&cmd.CreatedAt,
		&sentAt,
		&executedAt,
		&cmd.ExpiresAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, commands.ErrNotFound
		}
		return nil, err
	}
	cmd.Parameters = parameters
	cmd.Result = resultPayload
	if sentAt.Valid {
		cmd.SentAt = sentAt.Time.UTC()
	}
	if executedAt.Valid {
		cmd.ExecutedAt = executedAt.Time.UTC()
	}
	cmd.CreatedAt = cmd.CreatedAt.UTC()
	cmd.ExpiresAt = cmd.ExpiresAt.UTC()
	return &cmd, nil
}
