package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

type fakeMaintainer struct {
	mu       sync.Mutex
	ttls     []time.Duration
	maxAges  []time.Duration
	expired  int
	evicted  int
	sweepHit chan struct{}
}

func (f *fakeMaintainer) ExpirePending(ttl time.Duration) int {
	f.mu.Lock()
	f.ttls = append(f.ttls, ttl)
	f.mu.Unlock()
	if f.sweepHit != nil {
		select {
		case f.sweepHit <- struct{}{}:
		default:
		}
	}
	return f.expired
}

func (f *fakeMaintainer) CleanupSessions(maxAge time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.maxAges = append(f.maxAges, maxAge)
	return f.evicted
}

func testOptions() Options {
	return Options{
		PendingTTL:      5 * time.Minute,
		SweepInterval:   time.Second,
		SessionMaxAge:   time.Hour,
		CleanupInterval: time.Hour,
	}
}

func TestScheduler_Jobs(t *testing.T) {
	f := &fakeMaintainer{expired: 2, evicted: 1}
	s := New(f, testOptions(), nil)

	s.SweepPending()
	s.CleanupSessions()

	if len(f.ttls) != 1 || f.ttls[0] != 5*time.Minute {
		t.Errorf("expected one sweep with the ttl, got %v", f.ttls)
	}
	if len(f.maxAges) != 1 || f.maxAges[0] != time.Hour {
		t.Errorf("expected one cleanup with the max age, got %v", f.maxAges)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := &fakeMaintainer{sweepHit: make(chan struct{}, 1)}
	s := New(f, testOptions(), nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case <-f.sweepHit:
	case <-time.After(5 * time.Second):
		t.Error("sweep job never ran")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	// A second Stop is a no-op.
	if err := s.Stop(ctx); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}
}

func TestScheduler_InvalidIntervals(t *testing.T) {
	opts := testOptions()
	opts.SweepInterval = 0
	if err := New(&fakeMaintainer{}, opts, nil).Start(); err == nil {
		t.Error("expected error for zero interval")
	}
}
