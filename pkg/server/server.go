// Package server exposes the operational HTTP surface: health, metrics,
// and the read-only usage report. Product traffic never flows through
// here; generation requests reach the gateway in-process.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/lcortez-code/strengthsync/pkg/ai"
	"github.com/lcortez-code/strengthsync/pkg/ai/gateway"
	"github.com/lcortez-code/strengthsync/pkg/config"
)

// Server is the admin HTTP server.
type Server struct {
	config      config.ServerConfig
	gateway     *gateway.Gateway
	metrics     http.Handler
	metricsPath string
	logger      *slog.Logger

	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	running      bool
}

// New creates the admin server. The metrics handler may be nil when
// exposition is disabled.
func New(cfg config.ServerConfig, gw *gateway.Gateway, metricsHandler http.Handler, metricsPath string) *Server {
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	return &Server{
		config:      cfg,
		gateway:     gw,
		metrics:     metricsHandler,
		metricsPath: metricsPath,
		logger:      slog.Default().With("component", "server"),
	}
}

// Start runs the server and blocks until the context is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("admin server listening", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown stops the server gracefully, bounded by the configured
// shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.logger.Info("admin server stopped")
	})

	return shutdownErr
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/usage", s.handleUsage)
	if s.metrics != nil {
		mux.Handle(s.metricsPath, s.metrics)
	}
	return mux
}

// handleHealth reports liveness plus the gateway's readiness probe. An
// unconfigured provider is 503: the process is up but cannot generate.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type health struct {
		Status string `json:"status"`
		Reason string `json:"reason,omitempty"`
	}

	if err := s.gateway.CheckAIReady(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, health{Status: "unavailable", Reason: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, health{Status: "ok"})
}

// usageResponse is the wire shape of the usage report.
type usageResponse struct {
	Actor struct {
		ID          string `json:"id"`
		Requests    int64  `json:"requests"`
		TotalTokens int64  `json:"total_tokens"`
		CostCents   int64  `json:"cost_cents"`
		DailyTokens int64  `json:"daily_token_ceiling"`
	} `json:"actor"`
	Group struct {
		ID          string `json:"id"`
		Requests    int64  `json:"requests"`
		TotalTokens int64  `json:"total_tokens"`
		CostCents   int64  `json:"cost_cents"`
		DailyTokens int64  `json:"daily_token_ceiling"`
	} `json:"group"`
	DayStart time.Time `json:"day_start"`
}

// handleUsage serves today's consumption for ?actor=...&group=....
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	actor := r.URL.Query().Get("actor")
	group := r.URL.Query().Get("group")
	if actor == "" || group == "" {
		http.Error(w, "actor and group query parameters are required", http.StatusBadRequest)
		return
	}

	stats, err := s.gateway.UsageStats(r.Context(), ai.ActorID(actor), ai.GroupID(group))
	if err != nil {
		s.logger.Error("usage report failed", "actor", actor, "group", group, "error", err)
		http.Error(w, "failed to compute usage", http.StatusInternalServerError)
		return
	}

	var resp usageResponse
	resp.Actor.ID = actor
	resp.Actor.Requests = stats.Actor.Requests
	resp.Actor.TotalTokens = stats.Actor.TotalTokens
	resp.Actor.CostCents = stats.Actor.CostCents
	resp.Actor.DailyTokens = stats.ActorDailyTokens
	resp.Group.ID = group
	resp.Group.Requests = stats.Group.Requests
	resp.Group.TotalTokens = stats.Group.TotalTokens
	resp.Group.CostCents = stats.Group.CostCents
	resp.Group.DailyTokens = stats.GroupDailyTokens
	resp.DayStart = stats.DayStart

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
