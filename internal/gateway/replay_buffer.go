package gateway

import "sync"

type replayEntry struct {
	seq   int64
	frame []byte
}

// ReplayBuffer is a fixed-size ring of recent broadcast frames keyed by
// sequence number. A reconnecting client asks for everything after the
// last seq it saw and the hub backfills from here instead of forcing a
// full refresh. Thread-safe.
type ReplayBuffer struct {
	mu   sync.RWMutex
	buf  []replayEntry
	size int
	pos  int
	full bool
}

// NewReplayBuffer creates a buffer holding the last `size` frames.
func NewReplayBuffer(size int) *ReplayBuffer {
	if size <= 0 {
		size = 512
	}
	return &ReplayBuffer{buf: make([]replayEntry, size), size: size}
}

// Push appends a frame, overwriting the oldest when full. The frame is
// copied so the caller may reuse its slice.
func (rb *ReplayBuffer) Push(seq int64, frame []byte) {
	cp := make([]byte, len(frame))
	copy(cp, frame)

	rb.mu.Lock()
	rb.buf[rb.pos] = replayEntry{seq: seq, frame: cp}
	rb.pos = (rb.pos + 1) % rb.size
	if rb.pos == 0 {
		rb.full = true
	}
	rb.mu.Unlock()
}

// After returns all buffered frames with seq strictly greater than
// afterSeq, oldest first.
func (rb *ReplayBuffer) After(afterSeq int64) [][]byte {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var out [][]byte
	appendRange := func(entries []replayEntry) {
		for _, e := range entries {
			if e.frame != nil && e.seq > afterSeq {
				out = append(out, e.frame)
			}
		}
	}
	if rb.full {
		appendRange(rb.buf[rb.pos:])
	}
	appendRange(rb.buf[:rb.pos])
	return out
}

// Len returns the number of frames currently buffered.
func (rb *ReplayBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if rb.full {
		return rb.size
	}
	return rb.pos
}
