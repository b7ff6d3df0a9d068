// Package notification delivers trading alerts (entry and exit
// signals, risk blocks, daily loss limit breaches) to external
// channels such as Telegram and generic webhooks.
package notification

import (
	"context"
	"log"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"     // signals, fills
	AlertWarning  AlertLevel = "WARNING"  // risk blocks, degraded dependencies
	AlertCritical AlertLevel = "CRITICAL" // daily loss limit, trading halted
)

// Alert is a single notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the process log. It is always
// registered so every alert leaves a local trace even when no
// external channel is configured.
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}
