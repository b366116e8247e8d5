// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package api serves the agent's local, read-only status endpoints.
package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grimm.is/edgewatch/internal/clock"
	"grimm.is/edgewatch/internal/errors"
	"grimm.is/edgewatch/internal/logging"
	"grimm.is/edgewatch/internal/store"
	"grimm.is/edgewatch/internal/version"
)

// StatusStore is the read side of the store the API exposes.
type StatusStore interface {
	ListDevices(ctx context.Context) ([]store.Device, error)
	OutboxStats(ctx context.Context) (store.OutboxStats, error)
	DNSBlockStats(ctx context.Context, since time.Time, top int) (*store.BlockStats, error)
}

var _ StatusStore = (*store.Store)(nil)

// Server handles the status endpoints.
type Server struct {
	store    StatusStore
	gatherer prometheus.Gatherer
	clock    clock.Clock
	started  time.Time
	logger   *logging.Logger
	router   *mux.Router
}

// NewServer creates the status server. A nil gatherer disables /metrics.
func NewServer(st StatusStore, gatherer prometheus.Gatherer, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.WithComponent("api")
	}
	s := &Server{
		store:    st,
		gatherer: gatherer,
		clock:    clock.Real,
		started:  time.Now(),
		logger:   logger,
		router:   mux.NewRouter(),
	}
	s.RegisterRoutes(s.router)
	return s
}

// RegisterRoutes registers API routes
func (s *Server) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	if s.gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	router.HandleFunc("/api/devices", s.handleDevices).Methods("GET")
	router.HandleFunc("/api/outbox", s.handleOutbox).Methods("GET")
	router.HandleFunc("/api/dns/stats", s.handleDNSStats).Methods("GET")
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Attr(errors.Wrap(err, errors.KindUnavailable, "status listener"), "addr", addr)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("status API listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"name":           version.Name,
		"version":        version.Version,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.store.ListDevices(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to list devices", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

func (s *Server) handleOutbox(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.OutboxStats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to read outbox", err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// handleDNSStats accepts ?hours=N (default 24) and ?top=N (default 10).
func (s *Server) handleDNSStats(w http.ResponseWriter, r *http.Request) {
	hours, err := intParam(r, "hours", 24)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid hours", err)
		return
	}
	top, err := intParam(r, "top", 10)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid top", err)
		return
	}

	since := s.clock.Now().Add(-time.Duration(hours) * time.Hour)
	stats, err := s.store.DNSBlockStats(r.Context(), since, top)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to read DNS stats", err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errors.Errorf(errors.KindValidation, "%s must be a positive integer", name)
	}
	return n, nil
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]any{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
		s.logger.Warn(message, "error", err)
	}
	s.writeJSON(w, status, response)
}
