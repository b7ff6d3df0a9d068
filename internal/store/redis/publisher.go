// Package redis publishes bot state and signals to Redis for the
// dashboard and any other consumer. Every evaluation lands in three
// places: a latest-value key, a capped stream for warm starts, and a
// pubsub channel for live subscribers.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"nifty-optionsbot/internal/model"
)

const (
	// ~2h of per-minute evaluations plus forming updates
	stateStreamMaxLen  = 7200
	signalStreamMaxLen = 1000
	defaultLatestTTL   = 30 * time.Minute
)

// PublisherConfig configures the Redis publisher.
type PublisherConfig struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Publisher writes state snapshots and admitted signals to Redis.
type Publisher struct {
	client *goredis.Client
}

// Client returns the underlying client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// New creates a Publisher and pings the server.
func New(cfg PublisherConfig) (*Publisher, error) {
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

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{client: client}, nil
}

func stateLatestKey(exchange, token string) string {
	return "state:latest:" + exchange + ":" + token
}

func stateStreamKey(exchange, token string) string {
	return "state:" + exchange + ":" + token
}

func statePubSubChannel(exchange, token string) string {
	return "pub:state:" + exchange + ":" + token
}

func signalStreamKey(exchange, token string) string {
	return "signals:" + exchange + ":" + token
}

// PublishState writes one snapshot: SET latest + XADD + PUBLISH in a
// single pipeline roundtrip.
func (p *Publisher) PublishState(ctx context.Context, st model.StateSnapshot) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("redis: marshal state: %w", err)
	}
	jsonData := string(raw)
	exchange, token := st.Instrument.Exchange, st.Instrument.Token

	pipe := p.client.Pipeline()
	pipe.Set(ctx, stateLatestKey(exchange, token), jsonData, defaultLatestTTL)
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: stateStreamKey(exchange, token),
		MaxLen: stateStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": jsonData},
	})
	pipe.Publish(ctx, statePubSubChannel(exchange, token), jsonData)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: state pipeline for %s:%s: %w", exchange, token, err)
	}
	return nil
}

// PublishSignal appends an admitted signal with its reasoning to the
// signal stream and notifies live subscribers.
func (p *Publisher) PublishSignal(ctx context.Context, exchange, token string, sig model.Signal, rec model.ReasoningRecord) error {
	payload := struct {
		Signal    model.Signal          `json:"signal"`
		Reasoning model.ReasoningRecord `json:"reasoning"`
	}{sig, rec}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("redis: marshal signal: %w", err)
	}
	jsonData := string(raw)

	pipe := p.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: signalStreamKey(exchange, token),
		MaxLen: signalStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": jsonData},
	})
	pipe.Publish(ctx, "pub:signals:"+exchange+":"+token, jsonData)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: signal pipeline for %s:%s: %w", exchange, token, err)
	}
	return nil
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
