package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"nifty-optionsbot/internal/model"
)

// stubRisk is a scriptable RiskGate for gate tests.
type stubRisk struct {
	allowed bool
	reason  string
	err     error
	calls   int
}

func (s *stubRisk) CanTrade(ctx context.Context, sig model.Signal) (bool, string, error) {
	s.calls++
	return s.allowed, s.reason, s.err
}

func buySignal(ts time.Time) model.Signal {
	return model.Signal{Kind: model.SignalBuyCE, Confidence: 100, TS: ts}
}

func TestGate_CooldownSuppressesDuplicate(t *testing.T) {
	risk := &stubRisk{allowed: true}
	gate := NewGate(120*time.Second, risk)
	t0 := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)

	res := gate.Admit(context.Background(), buySignal(t0), t0)
	if !res.Admitted() {
		t.Fatalf("first signal should be admitted, got %s (%s)", res.Verdict, res.Reason)
	}

	// 10 seconds later: inside the window, suppressed.
	res = gate.Admit(context.Background(), buySignal(t0.Add(10*time.Second)), t0.Add(10*time.Second))
	if res.Verdict != VerdictCooldown {
		t.Fatalf("expected COOLDOWN, got %s", res.Verdict)
	}
	if res.Signal.Kind != model.SignalHold {
		t.Errorf("suppressed signal must be HOLD, got %s", res.Signal.Kind)
	}

	// Suppression must not have extended the cooldown: 130s after the
	// first admit the kind is eligible again.
	res = gate.Admit(context.Background(), buySignal(t0.Add(130*time.Second)), t0.Add(130*time.Second))
	if !res.Admitted() {
		t.Errorf("signal 130s after admit should pass a 120s cooldown, got %s", res.Verdict)
	}
}

func TestGate_CooldownIsPerKind(t *testing.T) {
	gate := NewGate(120*time.Second, &stubRisk{allowed: true})
	t0 := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)

	gate.Admit(context.Background(), buySignal(t0), t0)

	pe := model.Signal{Kind: model.SignalBuyPE, Confidence: 90, TS: t0.Add(5 * time.Second)}
	res := gate.Admit(context.Background(), pe, t0.Add(5*time.Second))
	if !res.Admitted() {
		t.Errorf("BUY_PE must not share BUY_CE's cooldown, got %s", res.Verdict)
	}
}

func TestGate_HoldPassesThrough(t *testing.T) {
	risk := &stubRisk{allowed: true}
	gate := NewGate(120*time.Second, risk)
	now := time.Now()

	res := gate.Admit(context.Background(), model.Signal{Kind: model.SignalHold, TS: now}, now)
	if res.Verdict != VerdictPassthrough {
		t.Errorf("HOLD should pass through, got %s", res.Verdict)
	}
	if risk.calls != 0 {
		t.Error("HOLD must not consult the risk manager")
	}
}

func TestGate_RiskBlockedFailsClosed(t *testing.T) {
	risk := &stubRisk{allowed: false, reason: "max daily loss reached"}
	gate := NewGate(120*time.Second, risk)
	now := time.Now()

	res := gate.Admit(context.Background(), buySignal(now), now)
	if res.Verdict != VerdictRiskBlocked {
		t.Fatalf("expected RISK_BLOCKED, got %s", res.Verdict)
	}
	if res.Reason != "max daily loss reached" {
		t.Errorf("risk reason must propagate, got %q", res.Reason)
	}

	// A blocked signal must not start a cooldown.
	if !gate.LastSignalTime(model.SignalBuyCE).IsZero() {
		t.Error("risk-blocked signal must not update last_signal_time")
	}
}

func TestGate_RiskErrorFailsClosed(t *testing.T) {
	risk := &stubRisk{err: errors.New("risk manager timeout")}
	gate := NewGate(120*time.Second, risk)
	now := time.Now()

	res := gate.Admit(context.Background(), buySignal(now), now)
	if res.Verdict != VerdictRiskUnavailable {
		t.Fatalf("risk error must suppress, got %s", res.Verdict)
	}
	if res.Signal.Kind != model.SignalHold {
		t.Errorf("suppressed signal must be HOLD, got %s", res.Signal.Kind)
	}
}

func TestGate_NilRiskManagerFailsClosed(t *testing.T) {
	gate := NewGate(120*time.Second, nil)
	now := time.Now()

	res := gate.Admit(context.Background(), buySignal(now), now)
	if res.Verdict != VerdictRiskUnavailable {
		t.Errorf("nil risk manager must fail closed, got %s", res.Verdict)
	}
}
