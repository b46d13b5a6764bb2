package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yndnr/diskcache-go/internal/core/domain"
	"github.com/yndnr/diskcache-go/internal/storage"
	"github.com/yndnr/diskcache-go/internal/telemetry/metric"
)

// StoreProbe is the part of the store the router reads.
type StoreProbe interface {
	Healthy() error
	Stats() storage.Stats
}

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Store backs /readyz and /v1/stats.
	Store StoreProbe

	// Metrics backs /metrics. Nil disables the endpoint.
	Metrics *metric.Registry

	// Logger for access and panic logs.
	Logger *slog.Logger

	// RateLimit is the per-IP request rate; zero disables limiting.
	RateLimit int

	// Now is the clock used in health responses.
	Now func() time.Time
}

// NewRouter builds the handler for the serve listener.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   now().UTC().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Store.Healthy(); err != nil {
			code := "DC-HTTP-5030"
			var de *domain.DomainError
			if errors.As(err, &de) {
				code = de.Code
			}
			writeError(w, http.StatusServiceUnavailable, code, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ready",
			"time":   now().UTC().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("GET /v1/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, cfg.Store.Stats())
	})

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", metric.Handler(cfg.Metrics))
	}

	middlewares := []Middleware{Recover(log), RequestID(), AccessLog(log)}
	if cfg.RateLimit > 0 {
		middlewares = append(middlewares, RateLimit(cfg.RateLimit))
	}
	return Chain(mux, middlewares...)
}
