// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package statsimport

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// healthGrace is how far past the tick interval the last heartbeat may lie
// before the check reports an error.
const healthGrace = 10 * time.Second

type healthStatus struct {
	Status string `json:"status"`
}

// HealthServer is the loopback liveness surface for the importer. The
// importer POSTs heartbeats; operators poll the health check.
type HealthServer struct {
	log      zerolog.Logger
	interval time.Duration
	port     int
	now      func() time.Time

	mu            sync.RWMutex
	lastHeartbeat time.Time
}

func NewHealthServer(log zerolog.Logger, interval time.Duration, port int) *HealthServer {
	return &HealthServer{
		log:      log.With().Str("module", "statsimport").Logger(),
		interval: interval,
		port:     port,
		now:      time.Now,
	}
}

func (h *HealthServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health_check", h.handleHealthCheck)
	r.Post("/heartbeat", h.handleHeartbeat)
	return r
}

func (h *HealthServer) handleHeartbeat(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	h.lastHeartbeat = h.now()
	h.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (h *HealthServer) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	last := h.lastHeartbeat
	h.mu.RUnlock()

	status := healthStatus{Status: "Error"}
	if !last.IsZero() && h.now().Sub(last) <= h.interval+healthGrace {
		status.Status = "Ok"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// ListenAndServe binds to loopback only and serves until the context is
// cancelled.
func (h *HealthServer) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("127.0.0.1:%d", h.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind health endpoint: %w", err)
	}

	server := &http.Server{Handler: h.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	h.log.Info().Str("addr", addr).Msg("importer health endpoint listening")
	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
