package smartconnect

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testTOTPSecret = "JBSWY3DPEHPK3PXP"

func TestGenerateSession(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/auth/angelbroking/user/v1/loginByPassword" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-PrivateKey"); got != "test-key" {
			t.Errorf("X-PrivateKey = %q", got)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data": map[string]any{
				"jwtToken":     "jwt-1",
				"refreshToken": "refresh-1",
				"feedToken":    "feed-1",
			},
		})
	}))
	defer srv.Close()

	sc := New(Config{APIKey: "test-key", RootURL: srv.URL})
	sess, err := sc.GenerateSession("A123", "9999", testTOTPSecret)
	if err != nil {
		t.Fatalf("GenerateSession: %v", err)
	}
	if sess.AccessToken != "jwt-1" || sess.FeedToken != "feed-1" {
		t.Errorf("session = %+v", sess)
	}
	if sc.FeedToken() != "feed-1" {
		t.Errorf("FeedToken = %q", sc.FeedToken())
	}
	if gotBody["clientcode"] != "A123" {
		t.Errorf("clientcode = %v", gotBody["clientcode"])
	}
	if totp, _ := gotBody["totp"].(string); len(totp) != 6 {
		t.Errorf("totp = %v, want 6 digits", gotBody["totp"])
	}
}

func TestLTPConvertsToPaise(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data":   map[string]any{"ltp": 22150.35},
		})
	}))
	defer srv.Close()

	sc := New(Config{APIKey: "k", RootURL: srv.URL})
	ltp, err := sc.LTP("NSE", "NIFTY", "26000")
	if err != nil {
		t.Fatalf("LTP: %v", err)
	}
	if ltp != 2215035 {
		t.Errorf("ltp = %d, want 2215035", ltp)
	}
}

func TestAPIErrorSurfacesMessage(t *testing.T) {
	hookCalled := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    false,
			"errorcode": "AG8001",
			"message":   "Invalid Token",
		})
	}))
	defer srv.Close()

	sc := New(Config{APIKey: "k", RootURL: srv.URL})
	sc.SessionExpiryHook = func() { hookCalled = true }

	_, err := sc.LTP("NSE", "NIFTY", "26000")
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.ErrorCode != "AG8001" {
		t.Errorf("errorcode = %q", apiErr.ErrorCode)
	}
	if !hookCalled {
		t.Error("session expiry hook not called on 403")
	}
}

func TestCandleDataParsesRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data": []any{
				[]any{"2026-08-28T09:15:00+05:30", 22000.0, 22010.5, 21995.0, 22005.0, 125000.0},
			},
		})
	}))
	defer srv.Close()

	sc := New(Config{APIKey: "k", RootURL: srv.URL})
	candles, err := sc.CandleData("NSE", "26000", "ONE_MINUTE", time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("CandleData: %v", err)
	}
	if len(candles) != 1 {
		t.Fatalf("candles = %d, want 1", len(candles))
	}
	c := candles[0]
	if c.Open != 2200000 || c.High != 2201050 || c.Low != 2199500 || c.Close != 2200500 {
		t.Errorf("candle prices = %+v", c)
	}
	if c.Volume != 125000 {
		t.Errorf("volume = %d", c.Volume)
	}
}

func TestOptionGreeksDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data": []any{
				map[string]any{
					"name": "NIFTY", "expiry": "25SEP2026",
					"strikePrice": "22000.000000", "optionType": "CE",
					"delta": "0.4521", "gamma": "0.0012", "theta": "-4.1",
					"vega": "2.3", "impliedVolatility": "13.25", "tradeVolume": "12500",
				},
			},
		})
	}))
	defer srv.Close()

	sc := New(Config{APIKey: "k", RootURL: srv.URL})
	rows, err := sc.OptionGreeks("NIFTY", "25SEP2026")
	if err != nil {
		t.Fatalf("OptionGreeks: %v", err)
	}
	if len(rows) != 1 || rows[0].OptionType != "CE" || rows[0].Delta != "0.4521" {
		t.Errorf("rows = %+v", rows)
	}
}
