package smartconnect

import (
	"encoding/binary"
	"testing"
	"time"
)

func buildLTPPayload(mode byte, token string, ltp int64, exTsMillis int64) []byte {
	b := make([]byte, 51)
	b[0] = mode
	b[1] = ExchangeNSECM
	copy(b[2:27], token)
	binary.LittleEndian.PutUint64(b[35:43], uint64(exTsMillis))
	binary.LittleEndian.PutUint64(b[43:51], uint64(ltp))
	return b
}

func TestParseTickLTP(t *testing.T) {
	ts := time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC).UnixMilli()
	payload := buildLTPPayload(ModeLTP, "26000", 2215035, ts)

	tick, err := parseTick(payload)
	if err != nil {
		t.Fatalf("parseTick: %v", err)
	}
	if tick.Token != "26000" {
		t.Errorf("token = %q", tick.Token)
	}
	if tick.LTP != 2215035 {
		t.Errorf("ltp = %d", tick.LTP)
	}
	if tick.ExchangeTS.UnixMilli() != ts {
		t.Errorf("ts = %v", tick.ExchangeTS)
	}
	if tick.Volume != 0 {
		t.Errorf("ltp mode carried volume %d", tick.Volume)
	}
}

func TestParseTickQuoteCarriesVolume(t *testing.T) {
	payload := make([]byte, 123)
	copy(payload, buildLTPPayload(ModeQuote, "43210", 12050, time.Now().UnixMilli()))
	binary.LittleEndian.PutUint64(payload[59:67], 12000) // avg price
	binary.LittleEndian.PutUint64(payload[67:75], 98765) // day volume

	tick, err := parseTick(payload)
	if err != nil {
		t.Fatalf("parseTick: %v", err)
	}
	if tick.Volume != 98765 {
		t.Errorf("volume = %d, want 98765", tick.Volume)
	}
	if tick.AvgPrice != 12000 {
		t.Errorf("avg price = %d, want 12000", tick.AvgPrice)
	}
}

func TestParseTickSnapQuoteCarriesOI(t *testing.T) {
	payload := make([]byte, 139)
	copy(payload, buildLTPPayload(ModeSnapQuote, "43210", 12050, time.Now().UnixMilli()))
	binary.LittleEndian.PutUint64(payload[131:139], 555000)

	tick, err := parseTick(payload)
	if err != nil {
		t.Fatalf("parseTick: %v", err)
	}
	if tick.OpenInterest != 555000 {
		t.Errorf("oi = %d, want 555000", tick.OpenInterest)
	}
}

func TestParseTickRejectsShortPayload(t *testing.T) {
	if _, err := parseTick(make([]byte, 20)); err == nil {
		t.Fatal("expected error for short payload")
	}
}

func TestNewStreamRequiresTokens(t *testing.T) {
	if _, err := NewStream("", "k", "c", "f"); err == nil {
		t.Fatal("expected error for missing auth token")
	}
	if _, err := NewStream("a", "k", "c", "f"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
