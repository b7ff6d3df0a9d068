package notification

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"nifty-optionsbot/internal/model"
)

// SignalNotifier formats admitted signals and fill results into alerts
// and fans them out to the configured backends. Delivery is best-effort;
// a failing backend never blocks the trading loop.
type SignalNotifier struct {
	backends []Notifier
	timeout  time.Duration
}

// NewSignalNotifier creates a fan-out notifier over the backends.
func NewSignalNotifier(backends ...Notifier) *SignalNotifier {
	return &SignalNotifier{backends: backends, timeout: 10 * time.Second}
}

// NotifySignal sends one alert per admitted signal.
func (s *SignalNotifier) NotifySignal(ctx context.Context, sig model.Signal, rec model.ReasoningRecord) {
	var b strings.Builder
	fmt.Fprintf(&b, "Confidence %.0f%%\n", sig.Confidence)
	if rec.TargetLevel != nil && rec.StopLossLevel != nil {
		fmt.Fprintf(&b, "Target %.2f / Stop %.2f\n", *rec.TargetLevel, *rec.StopLossLevel)
	}
	if len(rec.KeyFactors) > 0 {
		fmt.Fprintf(&b, "Drivers: %s", strings.Join(rec.KeyFactors, "; "))
	}

	s.send(ctx, Alert{
		Level:   AlertInfo,
		Title:   fmt.Sprintf("Signal %s", sig.Kind),
		Message: b.String(),
	})
}

// NotifyRiskBlock raises a warning when the risk manager blocks a signal.
func (s *SignalNotifier) NotifyRiskBlock(ctx context.Context, sig model.Signal, reason string) {
	s.send(ctx, Alert{
		Level:   AlertWarning,
		Title:   fmt.Sprintf("Risk blocked %s", sig.Kind),
		Message: reason,
	})
}

// NotifyDailyLossLimit raises a critical alert when trading halts.
func (s *SignalNotifier) NotifyDailyLossLimit(ctx context.Context, pnl int64) {
	s.send(ctx, Alert{
		Level:   AlertCritical,
		Title:   "Daily loss limit reached",
		Message: fmt.Sprintf("Trading halted for the day. P&L: %.2f", float64(pnl)/100),
	})
}

func (s *SignalNotifier) send(ctx context.Context, alert Alert) {
	for _, backend := range s.backends {
		go func(n Notifier) {
			sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
			defer cancel()
			if err := n.Send(sendCtx, alert); err != nil {
				log.Printf("[notify] delivery failed: %v", err)
			}
		}(backend)
	}
}
