package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"

	"github.com/optionvault/ove/internal/logger"
	"github.com/optionvault/ove/internal/market"
)

var webLogger = logger.GetForComponent("web_server")

// StatusSource reports the live vault stage for the status endpoints.
type StatusSource interface {
	CurrentStage() string
}

// WebServer exposes read-only health and status endpoints for the vault.
type WebServer struct {
	router    *mux.Router
	port      string
	vaultName string
	stage     StatusSource
	state     *market.State
	startedAt time.Time
}

// NewWebServer creates a new web server instance
func NewWebServer(port, vaultName string, stage StatusSource, state *market.State) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:    mux.NewRouter(),
		port:      port,
		vaultName: vaultName,
		stage:     stage,
		state:     state,
		startedAt: time.Now(),
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/status", ws.handleStatus).Methods("GET")

	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health plus market-data freshness. Stale
// market data degrades the health status because every trading decision
// reads from it.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	tickerAge, positionAge := ws.state.Staleness()
	hasErrors := !ws.state.PositionsSynced() || positionAge > 2*time.Minute

	overallStatus := "OK"
	statusCode := http.StatusOK
	if hasErrors {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(ws.startedAt).Seconds()),
		},
		"market_data": map[string]interface{}{
			"ticker_age_seconds":   tickerAge.Seconds(),
			"position_age_seconds": positionAge.Seconds(),
			"positions_synced":     ws.state.PositionsSynced(),
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleStatus returns the vault's current stage and open positions.
func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	positions := ws.state.Positions()
	open := make([]map[string]interface{}, 0, len(positions))
	for _, p := range positions {
		if !p.IsOpen() {
			continue
		}
		open = append(open, map[string]interface{}{
			"instrument_name": p.InstrumentName,
			"amount":          p.Amount.String(),
		})
	}

	response := map[string]interface{}{
		"vault_name": ws.vaultName,
		"stage":      ws.stage.CurrentStage(),
		"positions":  open,
		"timestamp":  time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
