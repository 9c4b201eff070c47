// Package gateway is the client-facing websocket server: it admits browser
// sessions on /agent and hands each one to a session orchestrator.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/voxtask/internal/agent"
	"github.com/nextlevelbuilder/voxtask/internal/config"
	"github.com/nextlevelbuilder/voxtask/internal/stt"
	"github.com/nextlevelbuilder/voxtask/pkg/protocol"
)

// Server owns the HTTP listener and the websocket upgrade path.
type Server struct {
	cfg  *config.Config
	loop *agent.Loop

	upgrader   websocket.Upgrader
	limiter    *rate.Limiter
	mux        *http.ServeMux
	httpServer *http.Server
}

func NewServer(cfg *config.Config, loop *agent.Loop) *Server {
	s := &Server{
		cfg:  cfg,
		loop: loop,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  32 * 1024,
		WriteBufferSize: 32 * 1024,
		// The browser client is served from its own origin in development;
		// audio sessions carry no credentials worth CSRF-protecting.
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	if n := cfg.Gateway.SessionsPerMinute; n > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(float64(n)/60.0), n)
	}
	return s
}

func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/agent", s.handleAgent)
	mux.HandleFunc("/health", s.handleHealth)

	s.mux = mux
	return mux
}

// Start begins listening and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := s.BuildMux()

	addr := fmt.Sprintf("%s:%d", s.cfg.Gateway.Host, s.cfg.Gateway.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	slog.Info("gateway starting", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("gateway server: %w", err)
	}
	return nil
}

// handleAgent upgrades the connection and runs the session orchestrator
// until the client goes away.
func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		http.Error(w, "too many sessions", http.StatusTooManyRequests)
		return
	}

	params := stt.ParamsFromQuery(r.URL.Query())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sess := newSession(conn, s.cfg, s.loop, params)
	sess.run(r.Context())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","protocol":%d}`, protocol.ProtocolVersion)
}
