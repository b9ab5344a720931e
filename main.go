package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hydrofarm-cloud/internal/alerts"
	"hydrofarm-cloud/internal/audit"
	"hydrofarm-cloud/internal/auth"
	commandsapp "hydrofarm-cloud/internal/commands/application"
	commandsrepo "hydrofarm-cloud/internal/commands/infrastructure/postgres"
	commandshttp "hydrofarm-cloud/internal/commands/interfaces/http"
	"hydrofarm-cloud/internal/config"
	"hydrofarm-cloud/internal/devices"
	"hydrofarm-cloud/internal/eventing"
	"hydrofarm-cloud/internal/exports"
	"hydrofarm-cloud/internal/observability/metrics"
	"hydrofarm-cloud/internal/ratelimit"
	"hydrofarm-cloud/internal/stream"
	telemetryapp "hydrofarm-cloud/internal/telemetry/application"
	telemetryrepo "hydrofarm-cloud/internal/telemetry/infrastructure/postgres"
	telemetryhttp "hydrofarm-cloud/internal/telemetry/interfaces/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)

	bus := eventing.NewInMemoryBus()
	deviceRepo := devices.NewPostgresRepository(db)
	auditRepo := audit.NewRepository(db)

	commandRepo := commandsrepo.NewCommandRepository(db)
	commandService, err := commandsapp.NewService(commandRepo, deviceRepo, bus,
		commandsapp.WithDefaultTTL(cfg.CommandDefaultTTL))
	if err != nil {
		logger.Fatalf("command service error: %v", err)
	}
	commandHandler, err := commandshttp.NewHandler(commandService, auditRepo)
	if err != nil {
		logger.Fatalf("command handler error: %v", err)
	}

	telemetryStore := telemetryrepo.NewStore(db)
	telemetryService, err := telemetryapp.NewService(telemetryStore, deviceRepo, bus, logger,
		telemetryapp.WithStaleThreshold(cfg.StaleThreshold),
		telemetryapp.WithDefaultRoom(cfg.DefaultRoomID))
	if err != nil {
		logger.Fatalf("telemetry service error: %v", err)
	}
	telemetryHandler, err := telemetryhttp.NewHandler(telemetryService, logger)
	if err != nil {
		logger.Fatalf("telemetry handler error: %v", err)
	}

	streamHandler, err := stream.NewHandler(telemetryService, logger,
		stream.WithSnapshotInterval(cfg.StreamInterval),
		stream.WithKeepAliveInterval(cfg.KeepAliveInterval))
	if err != nil {
		logger.Fatalf("stream handler error: %v", err)
	}

	exportHandler, err := exports.NewHandler(exports.NewHistoryQuery(db), commandService, cfg.DefaultRoomID, logger)
	if err != nil {
		logger.Fatalf("export handler error: %v", err)
	}

	if cfg.AlertWebhookURL != "" {
		channel, err := alerts.NewWebhookChannel(cfg.AlertWebhookURL)
		if err != nil {
			logger.Fatalf("alert channel error: %v", err)
		}
		evaluator, err := alerts.NewEvaluator(cfg.AlertThresholds, channel, logger)
		if err != nil {
			logger.Fatalf("alert evaluator error: %v", err)
		}
		evaluator.Register(bus)
	}

	deviceAuth := auth.NewDeviceAuthMiddleware(auth.NewKeyStore(db))
	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	ingestLimiter := ratelimit.NewLimiter(cfg.IngestRateLimit, time.Duration(cfg.IngestRateWindow)*time.Second)
	defer ingestLimiter.Close()
	deviceLimiter := ratelimit.NewLimiter(cfg.DeviceRateLimit, time.Duration(cfg.DeviceRateWindow)*time.Second)
	defer deviceLimiter.Close()

	router := mux.NewRouter()

	ingestRouter := router.NewRoute().Subrouter()
	ingestRouter.Use(limitWith(ingestLimiter), deviceAuth.Wrap)
	telemetryHandler.RegisterDevice(ingestRouter)

	deviceRouter := router.NewRoute().Subrouter()
	deviceRouter.Use(limitWith(deviceLimiter), deviceAuth.Wrap)
	commandHandler.RegisterDevice(deviceRouter)

	controlRouter := router.NewRoute().Subrouter()
	controlRouter.Use(authMiddleware.Wrap)
	commandHandler.RegisterControl(controlRouter)
	telemetryHandler.RegisterControl(controlRouter)
	streamHandler.Register(controlRouter)
	exportHandler.Register(controlRouter)
	controlRouter.Handle("/api/v1/devices", devices.NewHandler(deviceRepo)).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(router, logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

func limitWith(limiter *ratelimit.Limiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return ratelimit.Middleware(limiter, next)
	}
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush keeps server-sent events working through the logging wrapper.
func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
