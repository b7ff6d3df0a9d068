package strategy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nifty-optionsbot/internal/model"
)

// Verdict classifies the gate's decision for one signal.
type Verdict string

const (
	VerdictAdmitted        Verdict = "ADMITTED"
	VerdictPassthrough     Verdict = "PASSTHROUGH" // HOLD/CLOSE, no gating applied
	VerdictCooldown        Verdict = "COOLDOWN"
	VerdictRiskBlocked     Verdict = "RISK_BLOCKED"
	VerdictRiskUnavailable Verdict = "RISK_UNAVAILABLE"
)

// GateResult is the gate's output: the (possibly downgraded) signal plus
// why. A suppressed directional signal comes back as HOLD.
type GateResult struct {
	Signal  model.Signal
	Verdict Verdict
	Reason  string
}

// Admitted reports whether the original directional signal survived.
func (r GateResult) Admitted() bool { return r.Verdict == VerdictAdmitted }

// Gate rate-limits directional signals with a per-kind cooldown window
// and defers to the risk manager before a signal becomes actionable.
//
// The per-kind last-signal map is the only cross-tick state the gate
// owns. The map is not updated on suppression, so a suppressed signal
// does not extend its own cooldown.
type Gate struct {
	mu          sync.Mutex
	cooldown    time.Duration
	lastSignal  map[model.SignalKind]time.Time
	risk        model.RiskGate
	riskTimeout time.Duration
}

// NewGate creates a gate with the given cooldown window and risk
// collaborator. risk may be nil, in which case every directional signal
// is suppressed: an absent risk manager fails closed, never open.
func NewGate(cooldown time.Duration, risk model.RiskGate) *Gate {
	if cooldown <= 0 {
		cooldown = 120 * time.Second
	}
	return &Gate{
		cooldown:    cooldown,
		lastSignal:  make(map[model.SignalKind]time.Time),
		risk:        risk,
		riskTimeout: 5 * time.Second,
	}
}

// Admit applies the cooldown and risk checks to a signal at time now.
//
// HOLD and CLOSE pass through untouched. A directional signal inside
// its kind's cooldown window is suppressed without touching the map.
// Risk-manager errors suppress too: fail closed, log upstream, never
// admit by default.
func (g *Gate) Admit(ctx context.Context, sig model.Signal, now time.Time) GateResult {
	if !sig.Kind.Directional() {
		return GateResult{Signal: sig, Verdict: VerdictPassthrough}
	}

	g.mu.Lock()
	last, seen := g.lastSignal[sig.Kind]
	if seen && now.Sub(last) < g.cooldown {
		g.mu.Unlock()
		remaining := g.cooldown - now.Sub(last)
		return GateResult{
			Signal:  suppressed(sig, now),
			Verdict: VerdictCooldown,
			Reason:  fmt.Sprintf("%s in cooldown for another %s", sig.Kind, remaining.Round(time.Second)),
		}
	}
	g.mu.Unlock()

	if g.risk == nil {
		return GateResult{
			Signal:  suppressed(sig, now),
			Verdict: VerdictRiskUnavailable,
			Reason:  "no risk manager configured",
		}
	}

	riskCtx, cancel := context.WithTimeout(ctx, g.riskTimeout)
	defer cancel()
	allowed, reason, err := g.risk.CanTrade(riskCtx, sig)
	if err != nil {
		return GateResult{
			Signal:  suppressed(sig, now),
			Verdict: VerdictRiskUnavailable,
			Reason:  fmt.Sprintf("risk manager unavailable: %v", err),
		}
	}
	if !allowed {
		return GateResult{
			Signal:  suppressed(sig, now),
			Verdict: VerdictRiskBlocked,
			Reason:  reason,
		}
	}

	g.mu.Lock()
	g.lastSignal[sig.Kind] = now
	g.mu.Unlock()

	return GateResult{Signal: sig, Verdict: VerdictAdmitted}
}

// LastSignalTime returns the last admitted time for a kind (zero if none).
func (g *Gate) LastSignalTime(kind model.SignalKind) time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastSignal[kind]
}

// suppressed converts a directional signal into the HOLD the pipeline
// publishes in its place, keeping the original confidence for the UI.
func suppressed(sig model.Signal, now time.Time) model.Signal {
	return model.Signal{
		Kind:       model.SignalHold,
		Confidence: sig.Confidence,
		TS:         now,
		Reason:     "suppressed " + string(sig.Kind),
	}
}
