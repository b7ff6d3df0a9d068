package notification

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWebhookNotifierPostsJSON(t *testing.T) {
	var got map[string]interface{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("body is not JSON: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	n := NewWebhookNotifier(ts.URL)
	err := n.Send(context.Background(), Alert{Level: AlertWarning, Title: "Risk blocked BUY_CE", Message: "max open legs reached"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if got["source"] != "nifty-optionsbot" {
		t.Errorf("expected source nifty-optionsbot, got %v", got["source"])
	}
	if got["level"] != "WARNING" {
		t.Errorf("expected level WARNING, got %v", got["level"])
	}
	if got["title"] != "Risk blocked BUY_CE" {
		t.Errorf("unexpected title %v", got["title"])
	}
}

func TestWebhookNotifierErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	n := NewWebhookNotifier(ts.URL)
	err := n.Send(context.Background(), Alert{Level: AlertInfo, Title: "t", Message: "m"})
	if err == nil {
		t.Fatal("expected error on 502 response")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestTelegramNotifierEscapesMarkdown(t *testing.T) {
	var got map[string]interface{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/bottest-token/sendMessage") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	n := NewTelegramNotifier("test-token", "42")
	n.apiBase = ts.URL
	err := n.Send(context.Background(), Alert{
		Level:   AlertCritical,
		Title:   "Daily loss limit",
		Message: "Realized P&L -5125.50",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if got["chat_id"] != "42" {
		t.Errorf("expected chat_id 42, got %v", got["chat_id"])
	}
	text, _ := got["text"].(string)
	if !strings.Contains(text, `\-5125\.50`) {
		t.Errorf("expected escaped minus and dot in text, got %q", text)
	}
	if got["parse_mode"] != "MarkdownV2" {
		t.Errorf("expected MarkdownV2, got %v", got["parse_mode"])
	}
}

func TestEscapeMarkdown(t *testing.T) {
	in := "Target 22250.50 / Stop 22100.00 (edge=1.5)"
	out := escapeMarkdown(in)
	for _, want := range []string{`\.`, `\(`, `\)`, `\=`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in escaped output %q", want, out)
		}
	}
}
