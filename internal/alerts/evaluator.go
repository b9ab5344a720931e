package alerts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"hydrofarm-cloud/internal/config"
	"hydrofarm-cloud/internal/eventing"
	"hydrofarm-cloud/internal/observability/metrics"
	telemetryevents "hydrofarm-cloud/internal/telemetry/application/events"
)

// Alert describes one threshold violation.
type Alert struct {
	DeviceID   string    `json:"deviceId"`
	RoomID     string    `json:"roomId"`
	Metric     string    `json:"metric"`
	Value      float64   `json:"value"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Evaluator checks accepted readings against configured bands and pushes
// violations to a channel. Delivery runs off the request path.
type Evaluator struct {
	thresholds config.AlertThresholds
	channel    Channel
	logger     *log.Logger
}

// NewEvaluator constructs an evaluator.
func NewEvaluator(thresholds config.AlertThresholds, channel Channel, logger *log.Logger) (*Evaluator, error) {
	if channel == nil {
		return nil, errors.New("alerts: nil channel")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Evaluator{thresholds: thresholds, channel: channel, logger: logger}, nil
}

// Register subscribes the evaluator to accepted readings.
func (e *Evaluator) Register(bus eventing.EventBus) {
	bus.Subscribe(eventing.EventTypeOf[telemetryevents.TelemetryReceived](), func(ctx context.Context, event any) error {
		received, ok := event.(telemetryevents.TelemetryReceived)
		if !ok {
			if ptr, isPtr := event.(*telemetryevents.TelemetryReceived); isPtr {
				received = *ptr
			} else {
				return nil
			}
		}
		e.handle(received)
		return nil
	})
}

func (e *Evaluator) handle(received telemetryevents.TelemetryReceived) {
	for _, alert := range e.Evaluate(received) {
		go e.dispatch(alert)
	}
}

// Evaluate returns the violations a reading triggers.
func (e *Evaluator) Evaluate(received telemetryevents.TelemetryReceived) []Alert {
	var alerts []Alert
	add := func(metric string, value float64, message string) {
		alerts = append(alerts, Alert{
			DeviceID:   received.DeviceID,
			RoomID:     received.RoomID,
			Metric:     metric,
			Value:      value,
			Message:    message,
			OccurredAt: received.OccurredAt,
		})
	}

	if received.Moisture < e.thresholds.MoistureMin {
		add("substrate_moisture", received.Moisture,
			fmt.Sprintf("substrate moisture %.1f%% below minimum %.1f%%", received.Moisture, e.thresholds.MoistureMin))
	}
	if received.PH < e.thresholds.PHMin {
		add("ph", received.PH,
			fmt.Sprintf("pH %.2f below minimum %.2f", received.PH, e.thresholds.PHMin))
	}
	if received.PH > e.thresholds.PHMax {
		add("ph", received.PH,
			fmt.Sprintf("pH %.2f above maximum %.2f", received.PH, e.thresholds.PHMax))
	}
	if received.EC > e.thresholds.ECMax {
		add("ec", received.EC,
			fmt.Sprintf("EC %.2f above maximum %.2f", received.EC, e.thresholds.ECMax))
	}
	return alerts
}

func (e *Evaluator) dispatch(alert Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := e.channel.Send(ctx, alert); err != nil {
		metrics.IncAlertDispatch(metrics.ResultError)
		e.logger.Printf("alerts: dispatch failed for %s/%s: %v", alert.DeviceID, alert.Metric, err)
		return
	}
	metrics.IncAlertDispatch(metrics.ResultSuccess)
}
