package service

import (
	"context"
	"testing"
	"time"

	"github.com/iliyamo/seat-hold-service/internal/model"
	"github.com/iliyamo/seat-hold-service/internal/queue"
)

func TestSweep_StopsAtFirstValidHold(t *testing.T) {
	f := newFixture(t, rect(4, 10), nil, time.Second)
	ctx := context.Background()

	first, err := f.svc.FindAndHoldSeats(ctx, 2, "a")
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	f.clock.Advance(500 * time.Millisecond)
	second, err := f.svc.FindAndHoldSeats(ctx, 3, "b")
	if err != nil {
		t.Fatalf("hold: %v", err)
	}

	sw := NewSweeper(f.store, f.clock, time.Second, f.pub, f.svc.log)
	if n := sw.Sweep(ctx); n != 0 {
		t.Fatalf("swept %d before any expiry", n)
	}

	f.clock.Advance(600 * time.Millisecond)
	if n := sw.Sweep(ctx); n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}
	if r, _ := f.store.FindByHoldID(first.ID); r.State != model.StateExpired {
		t.Fatalf("first hold state = %s", r.State)
	}
	if r, _ := f.store.FindByHoldID(second.ID); r.State != model.StateHeld {
		t.Fatalf("second hold state = %s", r.State)
	}

	events := f.pub.Events()
	if len(events) != 1 || events[0].Type != queue.EventExpired || events[0].HoldID != first.ID {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestSweep_SkipsConfirmedHolds(t *testing.T) {
	f := newFixture(t, rect(2, 10), nil, time.Second)
	ctx := context.Background()

	hold, err := f.svc.FindAndHoldSeats(ctx, 2, "a")
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if _, err := f.svc.ReserveSeats(ctx, hold.ID, "a"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	f.svc.Wait()

	f.clock.Advance(time.Hour)
	sw := NewSweeper(f.store, f.clock, time.Second, nil, f.svc.log)
	if n := sw.Sweep(ctx); n != 0 {
		t.Fatalf("swept %d confirmed holds", n)
	}
	if got := available(t, f.svc); got != 18 {
		t.Fatalf("available = %d, want 18", got)
	}
}

func TestRun_ExpiresWithinATick(t *testing.T) {
	f := newFixture(t, rect(2, 10), nil, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := f.svc.FindAndHoldSeats(ctx, 4, "a"); err != nil {
		t.Fatalf("hold: %v", err)
	}
	f.clock.Advance(time.Second)

	sw := NewSweeper(f.store, f.clock, 10*time.Millisecond, nil, f.svc.log)
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for available(t, f.svc) != 20 {
		if time.Now().After(deadline) {
			t.Fatalf("hold was not swept in time")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("sweeper did not stop after cancel")
	}
}
