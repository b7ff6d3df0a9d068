package marketdata

import (
	"context"
	"math/rand"
	"time"

	"nifty-optionsbot/internal/model"
)

// SimFeed generates a random-walk tick stream for offline and paper
// runs where no broker session exists. The walk is mean-reverting
// around the start price so simulated sessions stay in a plausible band.
type SimFeed struct {
	Token      string
	Exchange   string
	StartPrice int64 // paise
	Interval   time.Duration
	Seed       int64
}

// Start emits ticks into tickCh until ctx is cancelled.
func (s *SimFeed) Start(ctx context.Context, tickCh chan<- model.Tick) error {
	interval := s.Interval
	if interval == 0 {
		interval = 200 * time.Millisecond
	}
	rng := rand.New(rand.NewSource(s.Seed))
	price := s.StartPrice

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// random walk with a mild pull back toward the start
			step := int64(rng.NormFloat64() * float64(s.StartPrice) * 0.0002)
			reversion := (s.StartPrice - price) / 500
			price += step + reversion
			if price <= 0 {
				price = s.StartPrice
			}

			tick := model.Tick{
				Token:    s.Token,
				Exchange: s.Exchange,
				Price:    price,
				TickTS:   time.Now().UTC(),
			}
			select {
			case tickCh <- tick:
			default:
			}
		}
	}
}
