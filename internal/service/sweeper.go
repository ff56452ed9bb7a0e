package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/iliyamo/seat-hold-service/internal/clock"
	"github.com/iliyamo/seat-hold-service/internal/model"
	"github.com/iliyamo/seat-hold-service/internal/queue"
	"github.com/iliyamo/seat-hold-service/internal/repository"
)

// DefaultSweepInterval is how often expired holds are released.
const DefaultSweepInterval = time.Second

// Sweeper flips HELD reservations past their expiry to EXPIRED, returning
// their seats to the pool.
type Sweeper struct {
	store    *repository.ReservationStore
	clock    clock.Clock
	interval time.Duration
	pub      EventPublisher
	log      *slog.Logger
}

// NewSweeper returns a sweeper ticking every interval.  pub may be nil.
func NewSweeper(store *repository.ReservationStore, clk clock.Clock, interval time.Duration, pub EventPublisher, log *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{store: store, clock: clk, interval: interval, pub: pub, log: log}
}

// Run sweeps on every tick until ctx is done.
func (w *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	w.log.Info("sweeper started", "interval", w.interval)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("sweeper stopped")
			return
		case <-t.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep expires every overdue hold at the front of the pending queue and
// returns how many it expired.  It stops at the first hold that is still
// valid, or when a write races a confirmation; the next tick picks up
// whatever is left.
func (w *Sweeper) Sweep(ctx context.Context) int {
	expired := 0
	for ctx.Err() == nil {
		r, ok := w.store.OldestPending()
		if !ok {
			break
		}
		now := w.clock.Now()
		if now.Before(r.ExpiresAt) {
			break
		}
		r.State = model.StateExpired
		stored, err := w.store.Update(r)
		if err != nil {
			if errors.Is(err, repository.ErrOptimisticLock) {
				w.log.Info("expiry raced another write", "reservation_id", r.ID, "err", err)
			} else {
				w.log.Error("expire reservation failed", "reservation_id", r.ID, "err", err)
			}
			break
		}
		expired++
		w.log.Info("hold expired", "hold_id", stored.HoldID, "reservation_id", stored.ID, "seats", len(stored.Seats))
		w.publish(ctx, stored, now)
	}
	return expired
}

func (w *Sweeper) publish(ctx context.Context, r model.Reservation, at time.Time) {
	if w.pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := w.pub.Publish(ctx, queue.NewReservationEvent(queue.EventExpired, r, at)); err != nil {
		w.log.Warn("publish expiry event failed", "reservation_id", r.ID, "err", err)
	}
}
