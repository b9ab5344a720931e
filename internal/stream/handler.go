package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"hydrofarm-cloud/internal/observability/metrics"
	"hydrofarm-cloud/internal/telemetry/application"
)

const (
	// DefaultSnapshotInterval is how often a fresh snapshot is pushed.
	DefaultSnapshotInterval = 5 * time.Second
	// DefaultKeepAliveInterval is how often a comment keeps proxies from
	// closing an idle connection.
	DefaultKeepAliveInterval = 30 * time.Second
)

// SnapshotSource computes the merged current-state view pushed to clients.
type SnapshotSource interface {
	LatestSnapshot(ctx context.Context, deviceIDs []string) (*application.SnapshotView, error)
}

// Handler serves the live telemetry feed over server-sent events. Each
// connection runs its own loop; a failed snapshot is reported as an error
// event and the stream stays open.
type Handler struct {
	source            SnapshotSource
	logger            *log.Logger
	snapshotInterval  time.Duration
	keepAliveInterval time.Duration
}

// Option configures the handler.
type Option func(*Handler)

// WithSnapshotInterval overrides the push cadence, for tests.
func WithSnapshotInterval(interval time.Duration) Option {
	return func(h *Handler) {
		if interval > 0 {
			h.snapshotInterval = interval
		}
	}
}

// WithKeepAliveInterval overrides the keepalive cadence, for tests.
func WithKeepAliveInterval(interval time.Duration) Option {
	return func(h *Handler) {
		if interval > 0 {
			h.keepAliveInterval = interval
		}
	}
}

// NewHandler constructs a handler.
func NewHandler(source SnapshotSource, logger *log.Logger, opts ...Option) (*Handler, error) {
	if source == nil {
		return nil, errors.New("stream: nil snapshot source")
	}
	if logger == nil {
		logger = log.Default()
	}
	h := &Handler{
		source:            source,
		logger:            logger,
		snapshotInterval:  DefaultSnapshotInterval,
		keepAliveInterval: DefaultKeepAliveInterval,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Register mounts the stream route.
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/api/v1/sensors/stream", h.ServeHTTP).Methods(http.MethodGet)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var deviceIDs []string
	if raw := r.URL.Query().Get("devices"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if id := strings.TrimSpace(part); id != "" {
				deviceIDs = append(deviceIDs, id)
			}
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	metrics.IncStreamClients()
	defer metrics.DecStreamClients()

	ctx := r.Context()

	writeEvent(w, "connected", map[string]any{
		"message":   "stream established",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	flusher.Flush()

	h.pushSnapshot(ctx, w, deviceIDs)
	flusher.Flush()

	snapshotTicker := time.NewTicker(h.snapshotInterval)
	defer snapshotTicker.Stop()
	keepAliveTicker := time.NewTicker(h.keepAliveInterval)
	defer keepAliveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-snapshotTicker.C:
			h.pushSnapshot(ctx, w, deviceIDs)
			flusher.Flush()
		case <-keepAliveTicker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func (h *Handler) pushSnapshot(ctx context.Context, w http.ResponseWriter, deviceIDs []string) {
	view, err := h.source.LatestSnapshot(ctx, deviceIDs)
	if err != nil {
		h.logger.Printf("stream: snapshot failed: %v", err)
		writeEvent(w, "error", map[string]any{
			"error":     "snapshot unavailable",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	writeEvent(w, "snapshot", view)
}

func writeEvent(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
