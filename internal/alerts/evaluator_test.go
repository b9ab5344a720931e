package alerts

import (
	"context"
	"log"
	"sync"
	"testing"
	"time"

	"hydrofarm-cloud/internal/config"
	telemetryevents "hydrofarm-cloud/internal/telemetry/application/events"
)

type captureChannel struct {
	mu    sync.Mutex
	calls []Alert
}

func (c *captureChannel) Send(_ context.Context, alert Alert) error {
	c.mu.Lock()
	c.calls = append(c.calls, alert)
	c.mu.Unlock()
	return nil
}

func testThresholds() config.AlertThresholds {
	return config.AlertThresholds{MoistureMin: 20, PHMin: 5.0, PHMax: 7.5, ECMax: 4.0}
}

func reading(moisture, ph, ec float64) telemetryevents.TelemetryReceived {
	return telemetryevents.TelemetryReceived{
		ReadingID:  "read-1",
		DeviceID:   "device-1",
		RoomID:     "main-room",
		RoomTemp:   23,
		Humidity:   60,
		PH:         ph,
		EC:         ec,
		Moisture:   moisture,
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEvaluateInBandProducesNoAlerts(t *testing.T) {
	evaluator, err := NewEvaluator(testThresholds(), &captureChannel{}, log.Default())
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	if alerts := evaluator.Evaluate(reading(45, 6.0, 1.8)); len(alerts) != 0 {
		t.Fatalf("alerts = %v, want none", alerts)
	}
}

func TestEvaluateLowMoisture(t *testing.T) {
	evaluator, err := NewEvaluator(testThresholds(), &captureChannel{}, log.Default())
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	alerts := evaluator.Evaluate(reading(12, 6.0, 1.8))
	if len(alerts) != 1 {
		t.Fatalf("alerts = %v, want one", alerts)
	}
	if alerts[0].Metric != "substrate_moisture" || alerts[0].Value != 12 {
		t.Fatalf("unexpected alert %+v", alerts[0])
	}
	if alerts[0].DeviceID != "device-1" {
		t.Fatalf("deviceId = %q", alerts[0].DeviceID)
	}
}

func TestEvaluateMultipleViolations(t *testing.T) {
	evaluator, err := NewEvaluator(testThresholds(), &captureChannel{}, log.Default())
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	alerts := evaluator.Evaluate(reading(10, 8.2, 5.5))
	if len(alerts) != 3 {
		t.Fatalf("alerts = %d, want 3 (moisture, ph, ec)", len(alerts))
	}
}

func TestEvaluatePHBand(t *testing.T) {
	evaluator, err := NewEvaluator(testThresholds(), &captureChannel{}, log.Default())
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	if alerts := evaluator.Evaluate(reading(45, 4.2, 1.8)); len(alerts) != 1 || alerts[0].Metric != "ph" {
		t.Fatalf("low pH not flagged: %v", alerts)
	}
	if alerts := evaluator.Evaluate(reading(45, 8.0, 1.8)); len(alerts) != 1 || alerts[0].Metric != "ph" {
		t.Fatalf("high pH not flagged: %v", alerts)
	}
}
