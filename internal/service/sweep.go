package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/avetisov/flashmenu/internal/repository"
)

// ReservationSweeper reclaims held reservations that were never confirmed or
// cancelled (client disconnect, crash). The 15-minute default bound matches
// the gate's rate-limit window; the reclaim itself is idempotent so multiple
// server instances may run the sweep concurrently.
type ReservationSweeper struct {
	inventory repository.InventoryRepository
	interval  time.Duration
	maxAge    time.Duration
	log       *zap.Logger
	stop      chan struct{}
}

// NewReservationSweeper constructs the sweep job.
func NewReservationSweeper(inventory repository.InventoryRepository, interval, maxAge time.Duration, log *zap.Logger) *ReservationSweeper {
	return &ReservationSweeper{
		inventory: inventory,
		interval:  interval,
		maxAge:    maxAge,
		log:       log,
		stop:      make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called or ctx is cancelled.
func (j *ReservationSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.log.Info("reservation sweeper started",
		zap.Duration("interval", j.interval),
		zap.Duration("max_age", j.maxAge),
	)

	j.run(ctx)

	for {
		select {
		case <-ticker.C:
			j.run(ctx)
		case <-j.stop:
			j.log.Info("reservation sweeper stopped")
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop terminates the loop.
func (j *ReservationSweeper) Stop() { close(j.stop) }

func (j *ReservationSweeper) run(ctx context.Context) {
	n, err := j.inventory.ReclaimStale(ctx, j.maxAge)
	if err != nil {
		j.log.Error("stale reservation sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		j.log.Info("stale reservations reclaimed", zap.Int("count", n))
	}
}
