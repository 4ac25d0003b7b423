package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/GriffinCanCode/soundswitch/internal/gamestate"
	"github.com/GriffinCanCode/soundswitch/internal/history"
	"github.com/GriffinCanCode/soundswitch/internal/mixer"
	"github.com/GriffinCanCode/soundswitch/internal/switcher"
)

// mockSwitcher for testing.
type mockSwitcher struct {
	mu      sync.Mutex
	status  switcher.Status
	paused  bool
	history *history.Store
}

func newMockSwitcher() *mockSwitcher {
	return &mockSwitcher{
		status:  switcher.Status{Running: true, Frames: 42, Detected: gamestate.Action, Applied: gamestate.Action, LastText: "ACTION"},
		history: history.NewStore(10, 10),
	}
}

func (m *mockSwitcher) Status() switcher.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.status
	st.Paused = m.paused
	return st
}

func (m *mockSwitcher) SetPaused(p bool) {
	m.mu.Lock()
	m.paused = p
	m.mu.Unlock()
}

func (m *mockSwitcher) History() *history.Store { return m.history }

func (m *mockSwitcher) isPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

func alwaysHealthy() bool { return true }

func TestCORSMiddleware(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/status", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("OPTIONS status = %d, want %d", rec.Code, http.StatusOK)
	}
	if v := rec.Header().Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("CORS origin = %q, want %q", v, "*")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/status", http.NoBody)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTeapot {
		t.Errorf("GET should reach next handler, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	tests := []struct {
		name    string
		healthy bool
		code    int
	}{
		{"healthy", true, http.StatusOK},
		{"unhealthy", false, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(newMockSwitcher(), func() bool { return tt.healthy })
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
			if rec.Code != tt.code {
				t.Errorf("status = %d, want %d", rec.Code, tt.code)
			}
		})
	}
}

func TestStatusEndpoint(t *testing.T) {
	s := New(newMockSwitcher(), alwaysHealthy)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", http.NoBody))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["detected"] != "action" || body["frames"] != float64(42) {
		t.Errorf("body = %v", body)
	}
	if rec.Header().Get("x-trace-id") == "" {
		t.Error("trace middleware should set a trace id")
	}
}

func TestHistoryEndpoint(t *testing.T) {
	sw := newMockSwitcher()
	for _, st := range []gamestate.State{gamestate.Preparation, gamestate.Action, gamestate.Victory} {
		sw.history.Add(history.Entry{To: st, Result: mixer.Result{Changed: 1}})
	}
	s := New(sw, alwaysHealthy)

	tests := []struct {
		query string
		code  int
		count int
	}{
		{"", http.StatusOK, 3},
		{"?limit=2", http.StatusOK, 2},
		{"?limit=1000", http.StatusOK, 3},
		{"?limit=0", http.StatusBadRequest, 0},
		{"?limit=abc", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history"+tt.query, http.NoBody))
		if rec.Code != tt.code {
			t.Errorf("%q: status = %d, want %d", tt.query, rec.Code, tt.code)
			continue
		}
		if tt.code != http.StatusOK {
			continue
		}
		var body struct {
			Entries []history.Entry `json:"entries"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if len(body.Entries) != tt.count {
			t.Errorf("%q: entries = %d, want %d", tt.query, len(body.Entries), tt.count)
		}
	}
}

func TestPauseResume(t *testing.T) {
	sw := newMockSwitcher()
	s := New(sw, alwaysHealthy)
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/switching/pause", http.NoBody))
	if rec.Code != http.StatusOK || !sw.isPaused() {
		t.Fatalf("pause: code = %d, paused = %v", rec.Code, sw.isPaused())
	}
	if !strings.Contains(rec.Body.String(), "switching_paused") {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/switching/resume", http.NoBody))
	if rec.Code != http.StatusOK || sw.isPaused() {
		t.Errorf("resume: code = %d, paused = %v", rec.Code, sw.isPaused())
	}
}

func TestToggleMethodNotAllowed(t *testing.T) {
	s := New(newMockSwitcher(), alwaysHealthy)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/switching/pause", http.NoBody))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestToggleRateLimited(t *testing.T) {
	s := New(newMockSwitcher(), alwaysHealthy)
	h := s.Handler()

	limited := false
	for i := 0; i < ToggleBurst+2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/switching/pause", http.NoBody))
		if rec.Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Error("expected a 429 after exceeding the burst")
	}
}

func TestGRPCHealth(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	s := New(newMockSwitcher(), healthy.Load)
	gs := s.GRPC()
	defer gs.Stop()

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		resp, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		return resp.GetStatus()
	}

	if got := check(); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", got)
	}
	healthy.Store(false)
	s.updateHealth()
	if got := check(); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status = %v, want NOT_SERVING", got)
	}
}

func TestWebSocketStatusAndBroadcast(t *testing.T) {
	sw := newMockSwitcher()
	s := New(sw, alwaysHealthy)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	var hello map[string]any
	if err := wsjson.Read(ctx, conn, &hello); err != nil {
		t.Fatalf("read status: %v", err)
	}
	if hello["type"] != "status" {
		t.Fatalf("first message = %v", hello)
	}

	// The connection is registered right after the status message is written.
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.mu.RLock()
		n := len(s.conns)
		s.mu.RUnlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("connection never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	sw.history.Add(history.Entry{From: gamestate.Action, To: gamestate.Victory, Text: "VICTORY"})

	var msg SwitchMessage
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		t.Fatalf("read switch: %v", err)
	}
	if msg.Type != "switch" || msg.To != gamestate.Victory || msg.From != gamestate.Action {
		t.Errorf("message = %+v", msg)
	}
}
