package application

import (
	"errors"
	"strings"
	"testing"

	telemetry "hydrofarm-cloud/internal/telemetry/domain"
)

func TestParsePayloadValid(t *testing.T) {
	payload, err := ParsePayload([]byte(`{
		"room_temp": 23.5,
		"humidity": 65,
		"ph": 6.1,
		"ec": 1.8,
		"substrate_moisture": 42.5
	}`))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if payload.Moisture != 42.5 {
		t.Fatalf("Moisture = %v, want 42.5", payload.Moisture)
	}
	if payload.WaterLevel != "Adequate" {
		t.Fatalf("WaterLevel = %q, want default Adequate", payload.WaterLevel)
	}
}

func TestParsePayloadKeepsProvidedWaterLevel(t *testing.T) {
	payload, err := ParsePayload([]byte(`{
		"room_temp": 23.5,
		"humidity": 65,
		"ph": 6.1,
		"ec": 1.8,
		"substrate_moisture": 42.5,
		"water_level_status": "Low"
	}`))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if payload.WaterLevel != "Low" {
		t.Fatalf("WaterLevel = %q, want Low", payload.WaterLevel)
	}
}

func TestParsePayloadNamesFirstMissingField(t *testing.T) {
	_, err := ParsePayload([]byte(`{"ph": 6.1}`))
	if !errors.Is(err, telemetry.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if !strings.Contains(err.Error(), "room_temp") {
		t.Fatalf("err = %v, want first missing field room_temp", err)
	}
}

func TestParsePayloadRejectsNonNumericField(t *testing.T) {
	_, err := ParsePayload([]byte(`{
		"room_temp": 23.5,
		"humidity": "sixty",
		"ph": 6.1,
		"ec": 1.8,
		"substrate_moisture": 42.5
	}`))
	if !errors.Is(err, telemetry.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if !strings.Contains(err.Error(), "humidity") {
		t.Fatalf("err = %v, want humidity named", err)
	}
}

func TestParsePayloadRejectsOutOfRange(t *testing.T) {
	cases := map[string]string{
		"ph high":       `{"room_temp": 23, "humidity": 60, "ph": 15, "ec": 1.8, "substrate_moisture": 40}`,
		"ec high":       `{"room_temp": 23, "humidity": 60, "ph": 6, "ec": 11, "substrate_moisture": 40}`,
		"temp low":      `{"room_temp": -20, "humidity": 60, "ph": 6, "ec": 1.8, "substrate_moisture": 40}`,
		"moisture high": `{"room_temp": 23, "humidity": 60, "ph": 6, "ec": 1.8, "substrate_moisture": 140}`,
		"humidity high": `{"room_temp": 23, "humidity": 160, "ph": 6, "ec": 1.8, "substrate_moisture": 40}`,
	}
	for name, body := range cases {
		if _, err := ParsePayload([]byte(body)); !errors.Is(err, telemetry.ErrValidation) {
			t.Errorf("%s: err = %v, want ErrValidation", name, err)
		}
	}
}

func TestParsePayloadAcceptsBoundaryValues(t *testing.T) {
	payload, err := ParsePayload([]byte(`{"room_temp": 60, "humidity": 100, "ph": 14, "ec": 10, "substrate_moisture": 0}`))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if payload.PH != 14 {
		t.Fatalf("PH = %v, want 14", payload.PH)
	}
}

func TestParsePayloadInvalidJSON(t *testing.T) {
	if _, err := ParsePayload([]byte(`{`)); !errors.Is(err, telemetry.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}
