package notification

import (
	"context"
	"strings"
	"testing"
	"time"

	"nifty-optionsbot/internal/model"
)

type captureNotifier struct {
	alerts chan Alert
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{alerts: make(chan Alert, 8)}
}

func (c *captureNotifier) Send(ctx context.Context, alert Alert) error {
	c.alerts <- alert
	return nil
}

func (c *captureNotifier) wait(t *testing.T) Alert {
	t.Helper()
	select {
	case a := <-c.alerts:
		return a
	case <-time.After(2 * time.Second):
		t.Fatal("no alert delivered")
		return Alert{}
	}
}

func TestNotifySignalIncludesFactorsAndLevels(t *testing.T) {
	sink := newCaptureNotifier()
	sn := NewSignalNotifier(sink)

	target := 22250.50
	stop := 22100.00
	sig := model.Signal{Kind: model.SignalBuyCE, Confidence: 87.5, TS: time.Now()}
	rec := model.ReasoningRecord{
		Signal:        model.SignalBuyCE,
		Confidence:    87.5,
		KeyFactors:    []string{"RSI 62.1 above 50", "price above VWAP"},
		TargetLevel:   &target,
		StopLossLevel: &stop,
	}

	sn.NotifySignal(context.Background(), sig, rec)

	alert := sink.wait(t)
	if alert.Level != AlertInfo {
		t.Fatalf("level = %s, want INFO", alert.Level)
	}
	if !strings.Contains(alert.Title, "BUY_CE") {
		t.Errorf("title %q missing signal kind", alert.Title)
	}
	if !strings.Contains(alert.Message, "88%") {
		t.Errorf("message %q missing confidence", alert.Message)
	}
	if !strings.Contains(alert.Message, "22250.50") || !strings.Contains(alert.Message, "22100.00") {
		t.Errorf("message %q missing target/stop levels", alert.Message)
	}
	if !strings.Contains(alert.Message, "RSI 62.1 above 50") {
		t.Errorf("message %q missing key factors", alert.Message)
	}
}

func TestNotifyRiskBlockWarns(t *testing.T) {
	sink := newCaptureNotifier()
	sn := NewSignalNotifier(sink)

	sig := model.Signal{Kind: model.SignalBuyPE, Confidence: 72}
	sn.NotifyRiskBlock(context.Background(), sig, "max open positions reached")

	alert := sink.wait(t)
	if alert.Level != AlertWarning {
		t.Fatalf("level = %s, want WARNING", alert.Level)
	}
	if !strings.Contains(alert.Message, "max open positions") {
		t.Errorf("message %q missing reason", alert.Message)
	}
}

func TestNotifyDailyLossLimitIsCritical(t *testing.T) {
	sink := newCaptureNotifier()
	sn := NewSignalNotifier(sink)

	sn.NotifyDailyLossLimit(context.Background(), -512550)

	alert := sink.wait(t)
	if alert.Level != AlertCritical {
		t.Fatalf("level = %s, want CRITICAL", alert.Level)
	}
	if !strings.Contains(alert.Message, "-5125.50") {
		t.Errorf("message %q missing rupee P&L", alert.Message)
	}
}

func TestFanOutReachesAllBackends(t *testing.T) {
	a := newCaptureNotifier()
	b := newCaptureNotifier()
	sn := NewSignalNotifier(a, b)

	sn.NotifyRiskBlock(context.Background(), model.Signal{Kind: model.SignalBuyCE}, "blocked")

	a.wait(t)
	b.wait(t)
}
