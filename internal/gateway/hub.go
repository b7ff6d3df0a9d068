// Package gateway serves the dashboard: a WebSocket fan-out of live
// evaluation state plus REST endpoints for status, signal history and
// positions.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"nifty-optionsbot/internal/model"
)

// Hub fans evaluation state out to connected WebSocket clients.
// It keeps the latest envelope for warm-starting new clients and a
// replay buffer so a reconnecting client can backfill missed frames
// by sequence number.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	seq     int64
	latest  []byte // last broadcast envelope, nil before first state
	replay  *ReplayBuffer

	Latency *LatencyTracker
}

// NewHub creates a hub with a replay window of replayCap frames.
func NewHub(replayCap int) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		replay:  NewReplayBuffer(replayCap),
		Latency: NewLatencyTracker(10000),
	}
}

// envelope is the wire frame sent to dashboard clients.
type envelope struct {
	Type string              `json:"type"` // "state"
	Seq  int64               `json:"seq"`
	TS   string              `json:"ts"`
	Data model.StateSnapshot `json:"data"`
}

// PublishState broadcasts a state snapshot to every connected client.
// It satisfies model.StatePublisher so the pipeline can treat the hub
// like any other state sink.
func (h *Hub) PublishState(ctx context.Context, st model.StateSnapshot) error {
	h.mu.Lock()
	h.seq++
	frame, err := json.Marshal(envelope{
		Type: "state",
		Seq:  h.seq,
		TS:   st.UpdatedAt.Format(time.RFC3339Nano),
		Data: st,
	})
	if err != nil {
		h.mu.Unlock()
		return err
	}
	h.latest = frame
	h.replay.Push(h.seq, frame)

	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			// Slow client; drop it rather than stall the broadcast.
			delete(h.clients, c)
			close(c.send)
			log.Printf("[gateway] dropping slow ws client")
		}
	}
	h.mu.Unlock()

	if !st.Bar.TS.IsZero() {
		h.Latency.RecordSince(st.Bar.TS)
	}
	return nil
}

// Prime seeds the hub's latest frame from a persisted snapshot so that
// clients connecting before the first live evaluation still get state.
// A nil snapshot is a no-op.
func (h *Hub) Prime(st *model.StateSnapshot) {
	if st == nil {
		return
	}
	h.PublishState(context.Background(), *st)
}

// Latest returns the most recent envelope, or nil before the first state.
func (h *Hub) Latest() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// ClientCount returns the number of connected WebSocket clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}
