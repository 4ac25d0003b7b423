package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/GriffinCanCode/soundswitch/internal/gamestate"
	"github.com/GriffinCanCode/soundswitch/internal/history"
	"github.com/GriffinCanCode/soundswitch/internal/mixer"
	"github.com/GriffinCanCode/soundswitch/internal/switcher"
	"github.com/GriffinCanCode/soundswitch/internal/trace"
)

// Switcher is the part of the pipeline the server exposes.
type Switcher interface {
	Status() switcher.Status
	SetPaused(paused bool)
	History() *history.Store
}

// SwitchMessage is pushed to WebSocket clients on every applied switch.
type SwitchMessage struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	From      gamestate.State `json:"from"`
	To        gamestate.State `json:"to"`
	Text      string          `json:"text"`
	Result    mixer.Result    `json:"result"`
}

// StatusMessage is sent once when a WebSocket client connects.
type StatusMessage struct {
	Type   string          `json:"type"`
	Status switcher.Status `json:"status"`
}

// Server handles HTTP and WebSocket connections and gRPC health.
type Server struct {
	sw      Switcher
	healthy func() bool
	limiter *rate.Limiter
	health  *health.Server

	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}
}

// New creates a server. healthy reports whether the pipeline is serving.
func New(sw Switcher, healthy func() bool) *Server {
	return &Server{
		sw:      sw,
		healthy: healthy,
		limiter: rate.NewLimiter(rate.Every(ToggleInterval), ToggleBurst),
		health:  health.NewServer(),
		conns:   make(map[*websocket.Conn]struct{}),
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("POST /api/switching/pause", s.handleToggle(true))
	mux.HandleFunc("POST /api/switching/resume", s.handleToggle(false))

	// trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

// GRPC returns a gRPC server with the health service registered.
func (s *Server) GRPC() *grpc.Server {
	gs := grpc.NewServer(grpc.UnaryInterceptor(trace.UnaryServerInterceptor()))
	healthpb.RegisterHealthServer(gs, s.health)
	s.updateHealth()
	return gs
}

// Run broadcasts history events and refreshes health until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ticker := time.NewTicker(HealthCheckInterval)
	defer ticker.Stop()
	defer s.health.Shutdown()

	events := s.sw.History().Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-events:
			s.broadcast(ctx, SwitchMessage{
				Type:      "switch",
				Timestamp: e.Timestamp,
				From:      e.From,
				To:        e.To,
				Text:      e.Text,
				Result:    e.Result,
			})
		case <-ticker.C:
			s.updateHealth()
		}
	}
}

func (s *Server) updateHealth() {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if s.healthy() {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	log := trace.Logger(r.Context())
	log.Info("websocket connected", "remote", r.RemoteAddr)

	// Clients only listen; CloseRead handles control frames and reports disconnects.
	ctx := conn.CloseRead(r.Context())

	if err := writeTimeout(ctx, conn, StatusMessage{Type: "status", Status: s.sw.Status()}); err != nil {
		log.Debug("websocket write error", "error", err)
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	<-ctx.Done()
	log.Debug("websocket disconnected", "remote", r.RemoteAddr)
}

func (s *Server) broadcast(ctx context.Context, msg any) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for conn := range s.conns {
		go func(c *websocket.Conn) {
			if err := writeTimeout(ctx, c, msg); err != nil {
				slog.Debug("websocket broadcast failed", "error", err)
			}
		}(conn)
	}
}

func writeTimeout(ctx context.Context, c *websocket.Conn, msg any) error {
	ctx, cancel := context.WithTimeout(ctx, WSWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, c, msg)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !s.healthy() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sw.Status())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := HistoryDefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, HistoryMaxLimit)
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": s.sw.History().Recent(limit)})
}

func (s *Server) handleToggle(paused bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			trace.Logger(r.Context()).Warn("rate limit exceeded", "remote", r.RemoteAddr, "path", r.URL.Path)
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		s.sw.SetPaused(paused)
		status := "switching_resumed"
		if paused {
			status = "switching_paused"
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": status})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("response encode failed", "error", err)
	}
}
