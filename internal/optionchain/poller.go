// Package optionchain polls the broker's option-chain endpoints and
// maintains the latest ATM greeks and put-call-ratio views.
//
// The poller runs on its own cadence, decoupled from the bar pipeline.
// Broker calls go through a circuit breaker so a flapping endpoint
// degrades to stale data instead of hammering the API; stale snapshots
// disable the dependent filters downstream rather than blocking signals.
package optionchain

import (
	"context"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"nifty-optionsbot/internal/model"
	"nifty-optionsbot/pkg/smartconnect"
)

// ChainSource is the broker surface the poller needs.
type ChainSource interface {
	OptionGreeks(name, expiry string) ([]smartconnect.GreekRow, error)
	PutCallRatio() ([]smartconnect.PCRRow, error)
	LTP(exchange, tradingSymbol, token string) (int64, error)
}

// Config controls what the poller fetches and how often.
type Config struct {
	Name   string // underlying name for the greeks endpoint, e.g. "NIFTY"
	Expiry string // expiry in broker format, e.g. "25SEP2026"

	// ATM legs quoted via LTP.
	CESymbol, CEToken string
	PESymbol, PEToken string
	OptionExchange    string // default NFO

	StrikeInterval int64 // paise between strikes, default 5000 (50 rupees)

	GreeksInterval time.Duration // default 30s
	PCRInterval    time.Duration // default 60s

	// Spot returns the underlying price in paise, used to locate the
	// ATM strike. Typically backed by the index LTP or the latest bar.
	Spot func() (int64, error)
}

// Poller fetches greeks and PCR and serves them as the option context.
type Poller struct {
	src ChainSource
	cfg Config

	breaker *gobreaker.CircuitBreaker[any]

	mu     sync.RWMutex
	greeks *model.GreeksSnapshot
	pcr    *model.PCRContext

	// Optional metrics hooks.
	OnFetch      func(d time.Duration)
	OnFetchError func()
}

// NewPoller creates a poller. Zero config fields get defaults.
func NewPoller(src ChainSource, cfg Config) *Poller {
	if cfg.GreeksInterval == 0 {
		cfg.GreeksInterval = 30 * time.Second
	}
	if cfg.PCRInterval == 0 {
		cfg.PCRInterval = 60 * time.Second
	}
	if cfg.StrikeInterval == 0 {
		cfg.StrikeInterval = 5000
	}
	if cfg.OptionExchange == "" {
		cfg.OptionExchange = "NFO"
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "optionchain",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[optionchain] breaker %s: %s -> %s", name, from, to)
		},
	})

	return &Poller{src: src, cfg: cfg, breaker: breaker}
}

// Greeks returns the latest ATM greeks snapshot, nil before first fetch.
func (p *Poller) Greeks() *model.GreeksSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.greeks
}

// PCR returns the latest put-call-ratio context, nil before first fetch.
func (p *Poller) PCR() *model.PCRContext {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pcr
}

// Run polls until ctx is cancelled. Both views are fetched once up
// front so consumers do not wait a full interval after startup.
func (p *Poller) Run(ctx context.Context) {
	p.RefreshGreeks()
	p.RefreshPCR()

	greeksTicker := time.NewTicker(p.cfg.GreeksInterval)
	pcrTicker := time.NewTicker(p.cfg.PCRInterval)
	defer greeksTicker.Stop()
	defer pcrTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-greeksTicker.C:
			p.RefreshGreeks()
		case <-pcrTicker.C:
			p.RefreshPCR()
		}
	}
}

// RefreshGreeks fetches the chain greeks and quotes for the ATM pair.
// On failure the previous snapshot is kept and will age out.
func (p *Poller) RefreshGreeks() {
	start := time.Now()
	result, err := p.breaker.Execute(func() (any, error) {
		return p.fetchGreeks()
	})
	if err != nil {
		log.Printf("[optionchain] greeks fetch: %v", err)
		if p.OnFetchError != nil {
			p.OnFetchError()
		}
		return
	}
	if p.OnFetch != nil {
		p.OnFetch(time.Since(start))
	}
	snap := result.(*model.GreeksSnapshot)

	p.mu.Lock()
	p.greeks = snap
	p.mu.Unlock()
}

// RefreshPCR fetches the put-call ratio.
func (p *Poller) RefreshPCR() {
	start := time.Now()
	result, err := p.breaker.Execute(func() (any, error) {
		return p.fetchPCR()
	})
	if err != nil {
		log.Printf("[optionchain] pcr fetch: %v", err)
		if p.OnFetchError != nil {
			p.OnFetchError()
		}
		return
	}
	if p.OnFetch != nil {
		p.OnFetch(time.Since(start))
	}
	pcr := result.(*model.PCRContext)

	p.mu.Lock()
	p.pcr = pcr
	p.mu.Unlock()
}

func (p *Poller) fetchGreeks() (*model.GreeksSnapshot, error) {
	spot, err := p.cfg.Spot()
	if err != nil {
		return nil, err
	}
	atm := nearestStrike(spot, p.cfg.StrikeInterval)

	rows, err := p.src.OptionGreeks(p.cfg.Name, p.cfg.Expiry)
	if err != nil {
		return nil, err
	}

	snap := &model.GreeksSnapshot{
		ATMStrike: atm,
		FetchedAt: time.Now(),
	}
	if exp, err := time.Parse("02Jan2006", canonicalExpiry(p.cfg.Expiry)); err == nil {
		snap.ExpiryDate = exp
	}

	for _, row := range rows {
		strike, err := strconv.ParseFloat(row.StrikePrice, 64)
		if err != nil {
			continue
		}
		if int64(strike*100+0.5) != atm {
			continue
		}
		q := quoteFromRow(row)
		switch row.OptionType {
		case "CE":
			snap.CE = q
		case "PE":
			snap.PE = q
		}
	}

	if price, err := p.src.LTP(p.cfg.OptionExchange, p.cfg.CESymbol, p.cfg.CEToken); err == nil {
		snap.CE.Price = price
	}
	if price, err := p.src.LTP(p.cfg.OptionExchange, p.cfg.PESymbol, p.cfg.PEToken); err == nil {
		snap.PE.Price = price
	}
	return snap, nil
}

func (p *Poller) fetchPCR() (*model.PCRContext, error) {
	rows, err := p.src.PutCallRatio()
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if !strings.Contains(strings.ToUpper(row.TradingSymbol), strings.ToUpper(p.cfg.Name)) {
			continue
		}
		pcr := row.PCR
		return &model.PCRContext{
			PCR:       &pcr,
			Sentiment: sentimentFor(pcr),
			FetchedAt: time.Now(),
		}, nil
	}
	// no matching symbol: publish an empty context so staleness applies
	return &model.PCRContext{Sentiment: model.SentimentNeutral, FetchedAt: time.Now()}, nil
}

func quoteFromRow(row smartconnect.GreekRow) model.OptionQuote {
	parse := func(s string) float64 {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	q := model.OptionQuote{
		Delta: parse(row.Delta),
		Gamma: parse(row.Gamma),
		Theta: parse(row.Theta),
		Vega:  parse(row.Vega),
	}
	if row.IV != "" {
		// the endpoint publishes IV as a percentage
		iv := parse(row.IV) / 100
		q.IV = &iv
	}
	return q
}

// nearestStrike rounds spot to the closest strike boundary.
func nearestStrike(spot, interval int64) int64 {
	if interval <= 0 {
		return spot
	}
	half := interval / 2
	return (spot + half) / interval * interval
}

func sentimentFor(pcr float64) model.Sentiment {
	switch {
	case pcr < 0.95:
		return model.SentimentBullish
	case pcr > 1.05:
		return model.SentimentBearish
	default:
		return model.SentimentNeutral
	}
}

// canonicalExpiry normalizes "25SEP2026" to "25Sep2026" for parsing.
func canonicalExpiry(s string) string {
	if len(s) < 5 {
		return s
	}
	mon := s[2:5]
	return s[:2] + strings.ToUpper(mon[:1]) + strings.ToLower(mon[1:]) + s[5:]
}
