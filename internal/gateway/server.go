package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"nifty-optionsbot/internal/markethours"
	"nifty-optionsbot/internal/model"
	"nifty-optionsbot/internal/portfolio"
	"nifty-optionsbot/internal/store/sqlite"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// StateSource exposes the latest evaluation state. Satisfied by the
// pipeline.
type StateSource interface {
	State() (model.StateSnapshot, bool)
}

// SignalHistory reads journaled signals, newest first. Satisfied by the
// SQLite reader.
type SignalHistory interface {
	ReadSignals(count int) ([]sqlite.JournaledSignal, error)
}

// Server is the dashboard HTTP server: WebSocket stream plus REST.
type Server struct {
	Hub       *Hub
	State     StateSource
	Signals   SignalHistory
	Portfolio *portfolio.Portfolio
	Risk      *portfolio.RiskManager

	started time.Time
	srv     *http.Server
}

// NewServer wires the dashboard server. Signals, Portfolio and Risk may
// be nil; the corresponding endpoints then return empty bodies.
func NewServer(addr string, hub *Hub, state StateSource) *Server {
	s := &Server{Hub: hub, State: state, started: time.Now()}
	mux := http.NewServeMux()
	s.register(mux)
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

// setCORS sets permissive CORS headers for the dashboard frontend.
func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func (s *Server) register(mux *http.ServeMux) {
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[gateway] ws upgrade error: %v", err)
			return
		}
		afterSeq := int64(-1)
		if raw := r.URL.Query().Get("last_seq"); raw != "" {
			if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
				afterSeq = v
			}
		}
		s.Hub.HandleWS(conn, afterSeq)
	})

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/reasoning", s.handleReasoning)
	mux.HandleFunc("/api/signals", s.handleSignals)
	mux.HandleFunc("/api/positions", s.handlePositions)
	mux.HandleFunc("/api/latency", s.handleLatency)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	w.Header().Set("Content-Type", "application/json")

	now := time.Now()
	status := map[string]interface{}{
		"market_open": markethours.IsMarketOpen(now),
		"next_open":   markethours.NextOpen(now).Format(time.RFC3339),
		"ws_clients":  s.Hub.ClientCount(),
		"uptime_sec":  int64(time.Since(s.started).Seconds()),
	}
	if s.Risk != nil {
		status["risk"] = s.Risk.Status()
	}
	if s.Portfolio != nil {
		status["portfolio"] = s.Portfolio.GetSummary()
	}
	json.NewEncoder(w).Encode(status)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	w.Header().Set("Content-Type", "application/json")

	if s.State != nil {
		if st, ok := s.State.State(); ok {
			json.NewEncoder(w).Encode(st)
			return
		}
	}
	// No evaluation yet; fall back to the hub's warm-start frame.
	if latest := s.Hub.Latest(); latest != nil {
		w.Write(latest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReasoning(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	w.Header().Set("Content-Type", "application/json")

	if s.State != nil {
		if st, ok := s.State.State(); ok {
			json.NewEncoder(w).Encode(st.Reasoning)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	w.Header().Set("Content-Type", "application/json")

	count := 50
	if raw := r.URL.Query().Get("count"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 500 {
			count = v
		}
	}
	if s.Signals == nil {
		json.NewEncoder(w).Encode([]sqlite.JournaledSignal{})
		return
	}
	sigs, err := s.Signals.ReadSignals(count)
	if err != nil {
		http.Error(w, `{"error":"signal history unavailable"}`, http.StatusInternalServerError)
		return
	}
	if sigs == nil {
		sigs = []sqlite.JournaledSignal{}
	}
	json.NewEncoder(w).Encode(sigs)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	w.Header().Set("Content-Type", "application/json")

	if s.Portfolio == nil {
		json.NewEncoder(w).Encode([]model.Position{})
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"positions": s.Portfolio.Positions(),
		"summary":   s.Portfolio.GetSummary(),
	})
}

func (s *Server) handleLatency(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	w.Header().Set("Content-Type", "application/json")

	p50, p95, p99 := s.Hub.Latency.Percentiles()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"p50_ms":  p50,
		"p95_ms":  p95,
		"p99_ms":  p99,
		"samples": s.Hub.Latency.Count(),
	})
}

// Handler returns the server's route mux.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start runs the HTTP server. Blocks until the server stops.
func (s *Server) Start() error {
	log.Printf("[gateway] dashboard listening on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
