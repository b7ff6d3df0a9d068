package redis

import (
	"errors"
	"testing"
	"time"
)

var errWrite = errors.New("redis write failed")

func trip(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		cb.Execute(func() error { return errWrite })
	}
}

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb := NewCircuitBreaker(3, 100*time.Millisecond)
	if cb.CurrentState() != StateClosed {
		t.Errorf("expected Closed, got %v", cb.CurrentState())
	}
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Errorf("closed breaker should pass calls through, got %v", err)
	}
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, 100*time.Millisecond)

	for i := 0; i < 3; i++ {
		if err := cb.Execute(func() error { return errWrite }); err != errWrite {
			t.Fatalf("call %d: expected errWrite, got %v", i, err)
		}
	}
	if cb.CurrentState() != StateOpen {
		t.Fatalf("expected Open after 3 failures, got %v", cb.CurrentState())
	}

	// While open and inside the reset window, calls are rejected
	// without running fn.
	ran := false
	err := cb.Execute(func() error { ran = true; return nil })
	if err != ErrCircuitOpen {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if ran {
		t.Error("fn should not run while the breaker is open")
	}
}

func TestCircuitBreaker_ProbeOutcomes(t *testing.T) {
	cases := []struct {
		name     string
		probeErr error
		want     State
	}{
		{"successful probe closes", nil, StateClosed},
		{"failed probe reopens", errWrite, StateOpen},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cb := NewCircuitBreaker(2, 50*time.Millisecond)
			trip(cb, 2)
			if cb.CurrentState() != StateOpen {
				t.Fatal("expected Open after tripping")
			}

			time.Sleep(60 * time.Millisecond)

			cb.Execute(func() error { return tc.probeErr })
			if cb.CurrentState() != tc.want {
				t.Errorf("expected %v after probe, got %v", tc.want, cb.CurrentState())
			}
		})
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(3, 100*time.Millisecond)

	trip(cb, 2)
	cb.Execute(func() error { return nil }) // resets counter
	trip(cb, 2)

	if cb.CurrentState() != StateClosed {
		t.Errorf("expected Closed (counter should have reset), got %v", cb.CurrentState())
	}
}

func TestCircuitBreaker_OnStateChangeCallback(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker(1, 50*time.Millisecond)
	cb.OnStateChange = func(from, to State) {
		transitions = append(transitions, to)
	}

	trip(cb, 1)
	if len(transitions) != 1 || transitions[0] != StateOpen {
		t.Fatalf("expected [open], got %v", transitions)
	}

	time.Sleep(60 * time.Millisecond)
	cb.Execute(func() error { return nil })

	if len(transitions) != 3 {
		t.Fatalf("expected 3 transitions, got %d: %v", len(transitions), transitions)
	}
	if transitions[1] != StateHalfOpen || transitions[2] != StateClosed {
		t.Errorf("expected [open, half-open, closed], got %v", transitions)
	}
}
