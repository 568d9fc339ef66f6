package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"trivia-service/internal/logging"
)

// ServerConfig holds listener settings for NewServer.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewRouter wires the REST API, the websocket endpoint and the health/metrics routes.
func NewRouter(handler *Handler, ws *WSHandler, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws", ws.ServeWS)
	handler.Register(mux)

	return withRequestLogger(mux, logger)
}

func NewServer(cfg ServerConfig, router http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
}

// withRequestLogger tags each request with an id and stores the logger in its context.
func withRequestLogger(next http.Handler, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		reqLogger := logger.With().Str("request_id", reqID).Str("method", r.Method).Str("path", r.URL.Path).Logger()
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(logging.IntoContext(r.Context(), reqLogger)))
		reqLogger.Debug().Dur("elapsed", time.Since(start)).Msg("request served")
	})
}
