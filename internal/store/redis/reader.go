package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"nifty-optionsbot/internal/model"
)

// Reader serves stored states and signals back out, used by the
// dashboard gateway to warm-start newly connected clients.
type Reader struct {
	client *goredis.Client
}

// NewReader creates a Reader and pings the server.
func NewReader(cfg PublisherConfig) (*Reader, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Reader{client: client}, nil
}

// LatestState returns the most recent snapshot, or nil when none exists.
func (r *Reader) LatestState(ctx context.Context, exchange, token string) (*model.StateSnapshot, error) {
	raw, err := r.client.Get(ctx, stateLatestKey(exchange, token)).Result()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get latest state: %w", err)
	}
	var st model.StateSnapshot
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("redis: decode state: %w", err)
	}
	return &st, nil
}

// RecentStates returns up to count snapshots, oldest first.
func (r *Reader) RecentStates(ctx context.Context, exchange, token string, count int64) ([]model.StateSnapshot, error) {
	msgs, err := r.client.XRevRangeN(ctx, stateStreamKey(exchange, token), "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: xrevrange states: %w", err)
	}

	out := make([]model.StateSnapshot, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		data, ok := msgs[i].Values["data"].(string)
		if !ok {
			continue
		}
		var st model.StateSnapshot
		if err := json.Unmarshal([]byte(data), &st); err != nil {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

// SignalEntry is one journaled signal with its reasoning.
type SignalEntry struct {
	Signal    model.Signal          `json:"signal"`
	Reasoning model.ReasoningRecord `json:"reasoning"`
}

// RecentSignals returns up to count admitted signals, oldest first.
func (r *Reader) RecentSignals(ctx context.Context, exchange, token string, count int64) ([]SignalEntry, error) {
	msgs, err := r.client.XRevRangeN(ctx, signalStreamKey(exchange, token), "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: xrevrange signals: %w", err)
	}

	out := make([]SignalEntry, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		data, ok := msgs[i].Values["data"].(string)
		if !ok {
			continue
		}
		var entry SignalEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// SubscribeStates subscribes to live state updates for the instrument.
// The caller owns the returned PubSub and must Close it.
func (r *Reader) SubscribeStates(ctx context.Context, exchange, token string) *goredis.PubSub {
	return r.client.Subscribe(ctx, statePubSubChannel(exchange, token))
}

// Close closes the Redis client.
func (r *Reader) Close() error {
	return r.client.Close()
}
