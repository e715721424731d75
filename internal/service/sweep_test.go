package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestReservationSweeper_RunsOnStartAndStops(t *testing.T) {
	inv := newFakeInventory(map[string]int{})
	inv.reclaimN = 2
	sweeper := NewReservationSweeper(inv, time.Hour, 15*time.Minute, zap.NewNop())

	done := make(chan struct{})
	go func() {
		sweeper.Start(context.Background())
		close(done)
	}()
	sweeper.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("sweeper did not stop")
	}

	// One pass happens before the first tick.
	inv.mu.Lock()
	calls := inv.reclaimCalls
	inv.mu.Unlock()
	if calls < 1 {
		t.Fatalf("reclaim calls=%d, want >=1", calls)
	}
}

func TestReservationSweeper_StopsOnContextCancel(t *testing.T) {
	inv := newFakeInventory(map[string]int{})
	inv.reclaimErr = errors.New("db down") // errors must not kill the loop
	sweeper := NewReservationSweeper(inv, time.Hour, 15*time.Minute, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("sweeper did not honor context cancellation")
	}
}
