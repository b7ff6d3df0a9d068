package redis

import (
	"context"
	"log"
	"sync"

	"nifty-optionsbot/internal/model"
)

// BufferedPublisher wraps a Publisher with a circuit breaker. While the
// circuit is open, states are held locally and replayed when Redis
// comes back, so a Redis outage never stalls the evaluation loop.
type BufferedPublisher struct {
	pub *Publisher
	cb  *CircuitBreaker
	ctx context.Context

	mu     sync.Mutex
	buffer []model.StateSnapshot
	maxBuf int

	// Callbacks for metrics.
	OnBuffer func()
	OnFlush  func(count int)
}

// NewBufferedPublisher creates a BufferedPublisher. maxBufferSize caps
// the local buffer; when full, the oldest snapshot is dropped.
func NewBufferedPublisher(ctx context.Context, pub *Publisher, cb *CircuitBreaker, maxBufferSize int) *BufferedPublisher {
	if maxBufferSize <= 0 {
		maxBufferSize = 10000
	}
	bp := &BufferedPublisher{
		pub:    pub,
		cb:     cb,
		ctx:    ctx,
		buffer: make([]model.StateSnapshot, 0, 256),
		maxBuf: maxBufferSize,
	}

	prev := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prev != nil {
			prev(from, to)
		}
		if to == StateClosed {
			go bp.flush()
		}
	}
	return bp
}

// PublishState sends through the breaker, buffering on failure.
func (bp *BufferedPublisher) PublishState(ctx context.Context, st model.StateSnapshot) error {
	err := bp.cb.Execute(func() error {
		return bp.pub.PublishState(ctx, st)
	})
	if err != nil {
		bp.bufferState(st)
	}
	return err
}

func (bp *BufferedPublisher) bufferState(st model.StateSnapshot) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if len(bp.buffer) >= bp.maxBuf {
		bp.buffer = bp.buffer[1:]
	}
	bp.buffer = append(bp.buffer, st)
	if bp.OnBuffer != nil {
		bp.OnBuffer()
	}
}

// flush replays buffered snapshots in arrival order.
func (bp *BufferedPublisher) flush() {
	bp.mu.Lock()
	pending := bp.buffer
	bp.buffer = make([]model.StateSnapshot, 0, 256)
	bp.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	flushed := 0
	for _, st := range pending {
		if err := bp.pub.PublishState(bp.ctx, st); err != nil {
			log.Printf("[redis] flush aborted after %d/%d: %v", flushed, len(pending), err)
			// put the rest back
			bp.mu.Lock()
			bp.buffer = append(pending[flushed:], bp.buffer...)
			bp.mu.Unlock()
			return
		}
		flushed++
	}
	if bp.OnFlush != nil {
		bp.OnFlush(flushed)
	}
	log.Printf("[redis] flushed %d buffered snapshots", flushed)
}

// Buffered returns the number of snapshots waiting for replay.
func (bp *BufferedPublisher) Buffered() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.buffer)
}
