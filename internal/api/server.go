// Package api serves the read endpoint over the state derivation function.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/swapstream/swap-indexer/internal/fault"
	"github.com/swapstream/swap-indexer/internal/metrics"
	"github.com/swapstream/swap-indexer/internal/state"
)

// StatusProvider resolves an identifier and derives its lifecycle status.
type StatusProvider interface {
	Status(ctx context.Context, identifier string) (*state.Status, error)
}

type Server struct {
	provider StatusProvider
	logger   *slog.Logger
}

func NewServer(provider StatusProvider, logger *slog.Logger) *Server {
	return &Server{
		provider: provider,
		logger:   logger.With("component", "api"),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/swaps/{identifier}", s.handleSwap)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	const route = "/v2/swaps"
	start := time.Now()
	defer func() {
		metrics.APILatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}()

	identifier := r.PathValue("identifier")
	st, err := s.provider.Status(r.Context(), identifier)
	if err != nil {
		// The taxonomy stays internal: unresolvable identifiers read as a
		// plain not-found, everything else as a plain server error.
		if fault.IsNotFound(err) {
			s.writeError(w, route, http.StatusNotFound, "swap not found")
			return
		}
		s.logger.Error("status derivation failed", "identifier", identifier, "error", err)
		s.writeError(w, route, http.StatusInternalServerError, "internal error")
		return
	}

	metrics.APIRequests.WithLabelValues(route, strconv.Itoa(http.StatusOK)).Inc()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(statusResponse(st)); err != nil {
		s.logger.Warn("write response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, route string, code int, msg string) {
	metrics.APIRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg}) //nolint:errcheck
}
