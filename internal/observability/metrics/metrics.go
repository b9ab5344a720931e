package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "hydrofarm_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ingestRequests    *prometheus.CounterVec
	roomWritesDropped prometheus.Counter

	commandsIssued    prometheus.Counter
	commandsDelivered prometheus.Counter
	commandsExpired   prometheus.Counter
	commandsAcked     *prometheus.CounterVec

	streamClients prometheus.Gauge

	rateLimited prometheus.Counter

	alertDispatches *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total telemetry ingest requests by result",
			},
			[]string{"result"},
		)
		roomWritesDropped = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "room_writes_dropped_total",
				Help: "Room reading writes dropped after the unit write succeeded",
			},
		)

		commandsIssued = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "commands_issued_total",
				Help: "Total issued device commands",
			},
		)
		commandsDelivered = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "commands_delivered_total",
				Help: "Total commands handed to devices via polling",
			},
		)
		commandsExpired = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "commands_expired_total",
				Help: "Total commands expired before execution",
			},
		)
		commandsAcked = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "commands_acked_total",
				Help: "Total command acknowledgements by outcome",
			},
			[]string{"outcome"},
		)

		streamClients = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "stream_clients",
				Help: "Currently connected live-stream clients",
			},
		)

		rateLimited = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "rate_limited_total",
				Help: "Total requests rejected by the rate limiter",
			},
		)

		alertDispatches = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_dispatches_total",
				Help: "Total alert webhook dispatches by result",
			},
			[]string{"result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total export operations by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			ingestRequests,
			roomWritesDropped,
			commandsIssued,
			commandsDelivered,
			commandsExpired,
			commandsAcked,
			streamClients,
			rateLimited,
			alertDispatches,
			exportTotal,
			exportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// IncIngest increments the ingest counter for a result.
func IncIngest(result string) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
}

// IncRoomWriteDropped counts a dropped best-effort room write.
func IncRoomWriteDropped() {
	if roomWritesDropped != nil {
		roomWritesDropped.Inc()
	}
}

// IncCommandIssued increments the issued command counter.
func IncCommandIssued() {
	if commandsIssued != nil {
		commandsIssued.Inc()
	}
}

// AddCommandsDelivered increments the delivered counter by count.
func AddCommandsDelivered(count int) {
	if count <= 0 {
		return
	}
	if commandsDelivered != nil {
		commandsDelivered.Add(float64(count))
	}
}

// AddCommandsExpired increments the expired counter by count.
func AddCommandsExpired(count int) {
	if count <= 0 {
		return
	}
	if commandsExpired != nil {
		commandsExpired.Add(float64(count))
	}
}

// IncCommandAcked increments the acknowledgement counter for an outcome.
func IncCommandAcked(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if commandsAcked != nil {
		commandsAcked.WithLabelValues(outcome).Inc()
	}
}

// IncStreamClients records a new live-stream connection.
func IncStreamClients() {
	if streamClients != nil {
		streamClients.Inc()
	}
}

// DecStreamClients records a closed live-stream connection.
func DecStreamClients() {
	if streamClients != nil {
		streamClients.Dec()
	}
}

// IncRateLimited counts a rejected request.
func IncRateLimited() {
	if rateLimited != nil {
		rateLimited.Inc()
	}
}

// IncAlertDispatch increments the alert dispatch counter for a result.
func IncAlertDispatch(result string) {
	if result == "" {
		result = resultSuccess
	}
	if alertDispatches != nil {
		alertDispatches.WithLabelValues(result).Inc()
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
