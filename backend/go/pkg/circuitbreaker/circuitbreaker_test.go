package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errRemote = errors.New("remote failure")

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	cb := New(2, 1, time.Minute)

	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return errRemote }); !errors.Is(err, errRemote) {
			t.Fatalf("call %d: expected remote error, got %v", i+1, err)
		}
	}
	if cb.State() != Open {
		t.Fatalf("expected Open, got %s", cb.State())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Errorf("request must not run while the circuit is open")
	}
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	b := New(1, 2, time.Second).(*breaker)
	current := time.Now()
	b.now = func() time.Time { return current }

	_ = b.Execute(func() error { return errRemote })
	if b.State() != Open {
		t.Fatalf("expected Open, got %s", b.State())
	}

	current = current.Add(2 * time.Second)
	if b.State() != HalfOpen {
		t.Fatalf("expected Half-Open after timeout, got %s", b.State())
	}

	for i := 0; i < 2; i++ {
		if err := b.Execute(func() error { return nil }); err != nil {
			t.Fatalf("trial %d: unexpected error %v", i+1, err)
		}
	}
	if b.State() != Closed {
		t.Errorf("expected Closed after successful trials, got %s", b.State())
	}
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	cb := New(2, 1, time.Minute)

	_ = cb.Execute(func() error { return errRemote })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return errRemote })

	if cb.State() != Closed {
		t.Errorf("non-consecutive failures must not trip the circuit, state %s", cb.State())
	}
}
