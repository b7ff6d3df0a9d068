package model

import (
	"context"
	"time"
)

// ── Collaborator Port Interfaces ──
// These interfaces mark the boundary between the decision core and the
// surrounding adapters (broker feed, option chain, risk, execution,
// persistence, dashboard). The core depends only on these.

// StateSnapshot is the tuple the pipeline publishes after every
// evaluation: the latest decision plus everything needed to explain it.
// Field names are part of the dashboard contract.
type StateSnapshot struct {
	Instrument Instrument        `json:"instrument"`
	Bar        Bar               `json:"bar"` // latest closed bar
	Indicators IndicatorSnapshot `json:"indicators"`
	Signal     Signal            `json:"signal"`
	Filters    FilterResult      `json:"filters"`
	Reasoning  ReasoningRecord   `json:"reasoning"`
	Greeks     *GreeksSnapshot   `json:"greeks,omitempty"`
	PCR        *PCRContext       `json:"pcr,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// RiskGate is the risk-manager collaborator consulted before a signal
// becomes actionable. An error return means the gate is unreachable and
// the caller must fail closed (suppress), never admit by default.
type RiskGate interface {
	// CanTrade reports whether the signal may be acted upon.
	// reason is populated when allowed is false.
	CanTrade(ctx context.Context, sig Signal) (allowed bool, reason string, err error)
}

// OptionContext supplies the latest greeks and PCR views on the
// poller's own cadence. Either may be nil when the chain has never
// been read; consumers must treat nil as "filter disabled".
type OptionContext interface {
	Greeks() *GreeksSnapshot
	PCR() *PCRContext
}

// StatePublisher pushes the latest state tuple to external consumers
// (Redis hash for the dashboard, WebSocket hub).
type StatePublisher interface {
	PublishState(ctx context.Context, st StateSnapshot) error
}

// SignalJournal persists admitted signals and their reasoning records.
type SignalJournal interface {
	RecordSignal(ctx context.Context, sig Signal, rec ReasoningRecord) error
	Close() error
}

// BarReader reads persisted bars for replay.
type BarReader interface {
	ReadBars(exchange, token string, afterTS int64) ([]Bar, error)
	Close() error
}

// BarWriter persists closed bars.
type BarWriter interface {
	WriteBar(ctx context.Context, b Bar) error
	Close() error
}
