package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aaronyhsoh33/market-maker-bot/internal/config"
)

// Server runs the HTTP/WebSocket observability API.
type Server struct {
	cfg      config.DashboardConfig
	provider SnapshotProvider
	events   <-chan StreamEvent
	hub      *Hub
	server   *http.Server
	logger   *slog.Logger
}

// NewServer creates the observability server. events may be nil; the /ws
// stream then only carries connection-time snapshots.
func NewServer(
	cfg config.DashboardConfig,
	provider SnapshotProvider,
	events <-chan StreamEvent,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
) *Server {
	hub := NewHub(logger)

	s := &Server{
		cfg:      cfg,
		provider: provider,
		events:   events,
		hub:      hub,
		logger:   logger.With("component", "api-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the server and the event fan-out. Blocks until the listener
// stops.
func (s *Server) Start() error {
	go s.consumeEvents()

	s.logger.Info("observability server starting", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop() error {
	s.logger.Info("stopping observability server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// consumeEvents forwards engine events to connected clients.
func (s *Server) consumeEvents() {
	if s.events == nil {
		return
	}
	for evt := range s.events {
		s.hub.Broadcast(evt)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot := s.provider.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		s.logger.Error("failed to encode snapshot", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	// The hub queues the current snapshot before any cycle events so the
	// client starts from known state.
	s.hub.Attach(conn, StreamEvent{
		Type:      "snapshot",
		Timestamp: time.Now(),
		Data:      s.provider.Snapshot(),
	})
}
