package events

import "time"

// TelemetryReceived is published after a reading is accepted.
type TelemetryReceived struct {
	ReadingID  string    `json:"reading_id"`
	DeviceID   string    `json:"device_id"`
	RoomID     string    `json:"room_id"`
	RoomTemp   float64   `json:"room_temp"`
	Humidity   float64   `json:"humidity"`
	PH         float64   `json:"ph"`
	EC         float64   `json:"ec"`
	Moisture   float64   `json:"moisture"`
	OccurredAt time.Time `json:"occurred_at"`
}
