package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"nifty-optionsbot/internal/model"
)

type fakeState struct {
	st model.StateSnapshot
	ok bool
}

func (f *fakeState) State() (model.StateSnapshot, bool) { return f.st, f.ok }

func testSnapshot(kind model.SignalKind, ts time.Time) model.StateSnapshot {
	return model.StateSnapshot{
		Instrument: model.Instrument{Exchange: "NSE", Token: "99926000"},
		Bar:        model.Bar{Token: "99926000", Exchange: "NSE", TS: ts, Open: 2215000, High: 2216000, Low: 2214000, Close: 2215500},
		Signal:     model.Signal{Kind: kind, Confidence: 80, TS: ts},
		UpdatedAt:  ts,
	}
}

func dialWS(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	return conn
}

// readEnvelopes reads one WebSocket message and splits coalesced frames.
func readEnvelopes(t *testing.T, conn *websocket.Conn) []envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ws read: %v", err)
	}
	var out []envelope
	for _, raw := range bytes.Split(msg, []byte{'\n'}) {
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("bad envelope %q: %v", raw, err)
		}
		out = append(out, env)
	}
	return out
}

func TestHubBroadcastReachesClient(t *testing.T) {
	hub := NewHub(16)
	srv := NewServer("", hub, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, "")
	defer conn.Close()

	// Wait for the client to register before broadcasting.
	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatal("client did not register")
	}

	hub.PublishState(context.Background(), testSnapshot(model.SignalBuyCE, time.Now()))

	envs := readEnvelopes(t, conn)
	if envs[0].Type != "state" {
		t.Errorf("type = %s, want state", envs[0].Type)
	}
	if envs[0].Seq != 1 {
		t.Errorf("seq = %d, want 1", envs[0].Seq)
	}
	if envs[0].Data.Signal.Kind != model.SignalBuyCE {
		t.Errorf("signal kind = %s, want BUY_CE", envs[0].Data.Signal.Kind)
	}
}

func TestNewClientGetsLatestState(t *testing.T) {
	hub := NewHub(16)
	srv := NewServer("", hub, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	hub.PublishState(context.Background(), testSnapshot(model.SignalHold, time.Now()))
	hub.PublishState(context.Background(), testSnapshot(model.SignalBuyPE, time.Now()))

	conn := dialWS(t, ts, "")
	defer conn.Close()

	envs := readEnvelopes(t, conn)
	if envs[0].Seq != 2 {
		t.Errorf("warm start seq = %d, want 2", envs[0].Seq)
	}
	if envs[0].Data.Signal.Kind != model.SignalBuyPE {
		t.Errorf("warm start kind = %s, want BUY_PE", envs[0].Data.Signal.Kind)
	}
}

func TestReconnectBackfillsFromSeq(t *testing.T) {
	hub := NewHub(16)
	srv := NewServer("", hub, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	for i := 0; i < 3; i++ {
		hub.PublishState(context.Background(), testSnapshot(model.SignalHold, time.Now()))
	}

	conn := dialWS(t, ts, "?last_seq=1")
	defer conn.Close()

	var got []envelope
	for len(got) < 2 {
		got = append(got, readEnvelopes(t, conn)...)
	}
	if got[0].Seq != 2 || got[1].Seq != 3 {
		t.Errorf("backfill seqs = %d,%d, want 2,3", got[0].Seq, got[1].Seq)
	}
}

func TestStatusEndpoint(t *testing.T) {
	hub := NewHub(16)
	srv := NewServer("", hub, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if _, ok := status["market_open"]; !ok {
		t.Error("status missing market_open")
	}
	if status["ws_clients"].(float64) != 0 {
		t.Errorf("ws_clients = %v, want 0", status["ws_clients"])
	}
}

func TestStateEndpoint(t *testing.T) {
	hub := NewHub(16)
	src := &fakeState{st: testSnapshot(model.SignalBuyCE, time.Now()), ok: true}
	srv := NewServer("", hub, src)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var st model.StateSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Signal.Kind != model.SignalBuyCE {
		t.Errorf("kind = %s, want BUY_CE", st.Signal.Kind)
	}
}

func TestStateEndpointNoContentBeforeFirstEvaluation(t *testing.T) {
	hub := NewHub(16)
	srv := NewServer("", hub, &fakeState{ok: false})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
}

func TestSignalsEndpointEmptyWithoutHistory(t *testing.T) {
	hub := NewHub(16)
	srv := NewServer("", hub, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/signals?count=10")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var sigs []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&sigs); err != nil {
		t.Fatal(err)
	}
	if len(sigs) != 0 {
		t.Errorf("expected empty signal list, got %d", len(sigs))
	}
}

func TestLatencyEndpoint(t *testing.T) {
	hub := NewHub(16)
	hub.Latency.Record(5)
	hub.Latency.Record(15)
	srv := NewServer("", hub, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/latency")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["samples"] != 2 {
		t.Errorf("samples = %v, want 2", out["samples"])
	}
	if out["p50_ms"] < 5 || out["p50_ms"] > 15 {
		t.Errorf("p50 = %v, want within [5,15]", out["p50_ms"])
	}
}
