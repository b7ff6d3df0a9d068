package marketdata

import (
	"context"
	"fmt"
	"log"
	"time"

	"nifty-optionsbot/internal/model"
	"nifty-optionsbot/internal/ringbuf"
	"nifty-optionsbot/pkg/smartconnect"
)

// exchangeTypeToName maps smart-stream exchange_type ints to names.
var exchangeTypeToName = map[int]string{
	1:  "NSE",
	2:  "NFO",
	3:  "BSE",
	4:  "BFO",
	5:  "MCX",
	7:  "NCX",
	13: "CDE",
}

// FeedConfig holds credentials and subscriptions for the live feed.
type FeedConfig struct {
	AuthToken  string
	APIKey     string
	ClientCode string
	FeedToken  string

	SubscribeMode int
	TokenList     []smartconnect.TokenListEntry

	// RingSize is the tick buffer between the websocket read loop and
	// the bar builder. Defaults to 8192.
	RingSize int
}

// Feed connects to the broker smart-stream and pushes normalized ticks
// into a channel. A lock-free ring buffer decouples the websocket read
// loop from the consumer so a slow bar builder drops ticks instead of
// stalling the connection.
type Feed struct {
	cfg    FeedConfig
	stream *smartconnect.Stream
	ring   *ringbuf.Ring

	// volume deltas derived from the cumulative day volume per token
	lastVolume map[string]int64

	// Optional metrics hooks.
	OnTickDropped func()
	OnReconnect   func()
}

// NewFeed creates a live feed.
func NewFeed(cfg FeedConfig) (*Feed, error) {
	if cfg.RingSize == 0 {
		cfg.RingSize = 8192
	}
	stream, err := smartconnect.NewStream(cfg.AuthToken, cfg.APIKey, cfg.ClientCode, cfg.FeedToken)
	if err != nil {
		return nil, fmt.Errorf("feed: create stream: %w", err)
	}
	return &Feed{
		cfg:        cfg,
		stream:     stream,
		ring:       ringbuf.New(cfg.RingSize),
		lastVolume: make(map[string]int64),
	}, nil
}

// Overflow returns the count of ticks dropped by the ring buffer.
func (f *Feed) Overflow() uint64 { return f.ring.Overflow() }

// Start connects, subscribes, and streams ticks into tickCh. Blocks
// until ctx is cancelled.
func (f *Feed) Start(ctx context.Context, tickCh chan<- model.Tick) error {
	f.stream.OnTick = func(st smartconnect.StreamTick) {
		tick := f.normalize(st)
		if !f.ring.Push(tick) && f.OnTickDropped != nil {
			f.OnTickDropped()
		}
	}
	f.stream.OnError = func(err error) {
		log.Printf("[feed] stream gave up: %v", err)
	}
	f.stream.OnReconnect = f.OnReconnect

	if err := f.stream.Connect(); err != nil {
		return fmt.Errorf("feed: connect: %w", err)
	}
	if err := f.stream.Subscribe("optionsbot", f.cfg.SubscribeMode, f.cfg.TokenList); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	defer f.stream.Close()

	// Drain the ring into tickCh. Poll with a short sleep when empty;
	// the SPSC buffer has no blocking wait.
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		tick, ok := f.ring.Pop()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		select {
		case tickCh <- tick:
		case <-ctx.Done():
			return nil
		}
	}
}

// normalize converts a wire tick, deriving per-tick quantity from the
// cumulative day volume. Index feeds publish zero volume throughout.
func (f *Feed) normalize(st smartconnect.StreamTick) model.Tick {
	exchange, ok := exchangeTypeToName[st.ExchangeType]
	if !ok {
		exchange = "NSE"
	}

	var qty int64
	if st.Volume > 0 {
		if last, seen := f.lastVolume[st.Token]; seen && st.Volume >= last {
			qty = st.Volume - last
		}
		f.lastVolume[st.Token] = st.Volume
	}

	ts := st.ExchangeTS
	if ts.IsZero() || ts.Year() < 2000 {
		ts = time.Now()
	}
	return model.Tick{
		Token:        st.Token,
		Exchange:     exchange,
		Price:        st.LTP,
		Qty:          qty,
		OpenInterest: st.OpenInterest,
		TickTS:       ts.UTC(),
	}
}
