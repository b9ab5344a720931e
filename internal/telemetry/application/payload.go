package application

import (
	"encoding/json"
	"fmt"

	telemetry "hydrofarm-cloud/internal/telemetry/domain"
)

// Payload is a validated ingestion payload.
type Payload struct {
	RoomTemp   float64
	Humidity   float64
	PH         float64
	EC         float64
	Moisture   float64
	WaterLevel string
}

// requiredFields is checked in a fixed order so the error names the first
// offending field deterministically.
var requiredFields = []string{"room_temp", "humidity", "ph", "ec", "substrate_moisture"}

// ParsePayload validates presence, numeric type and domain ranges of an
// ingestion payload. Out-of-range values are rejected, never clamped.
func ParsePayload(data []byte) (Payload, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Payload{}, fmt.Errorf("%w: invalid json", telemetry.ErrValidation)
	}

	values := make(map[string]float64, len(requiredFields))
	for _, field := range requiredFields {
		value, ok := raw[field].(float64)
		if !ok {
			return Payload{}, fmt.Errorf("%w: invalid or missing field: %s", telemetry.ErrValidation, field)
		}
		values[field] = value
	}

	payload := Payload{
		RoomTemp:   values["room_temp"],
		Humidity:   values["humidity"],
		PH:         values["ph"],
		EC:         values["ec"],
		Moisture:   values["substrate_moisture"],
		WaterLevel: "Adequate",
	}
	if level, ok := raw["water_level_status"].(string); ok && level != "" {
		payload.WaterLevel = level
	}

	switch {
	case payload.RoomTemp < -10 || payload.RoomTemp > 60:
		return Payload{}, fmt.Errorf("%w: room_temp out of valid range (-10 to 60)", telemetry.ErrValidation)
	case payload.PH < 0 || payload.PH > 14:
		return Payload{}, fmt.Errorf("%w: ph out of valid range (0 to 14)", telemetry.ErrValidation)
	case payload.EC < 0 || payload.EC > 10:
		return Payload{}, fmt.Errorf("%w: ec out of valid range (0 to 10)", telemetry.ErrValidation)
	case payload.Moisture < 0 || payload.Moisture > 100:
		return Payload{}, fmt.Errorf("%w: substrate_moisture out of valid range (0 to 100)", telemetry.ErrValidation)
	case payload.Humidity < 0 || payload.Humidity > 100:
		return Payload{}, fmt.Errorf("%w: humidity out of valid range (0 to 100)", telemetry.ErrValidation)
	}
	return payload, nil
}
