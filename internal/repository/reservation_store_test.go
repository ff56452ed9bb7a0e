package repository

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/seat-hold-service/internal/clock"
	"github.com/iliyamo/seat-hold-service/internal/model"
)

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func held(id int64, holdID int, expires time.Time, seats ...model.SeatCoord) model.Reservation {
	return model.Reservation{
		ID:        id,
		HoldID:    holdID,
		Email:     "a@example.com",
		State:     model.StateHeld,
		ExpiresAt: expires,
		Seats:     seats,
	}
}

func seat(r, s int) model.SeatCoord { return model.SeatCoord{Row: r, Seat: s} }

func newStore() *ReservationStore { return NewReservationStore(clock.NewManual(t0)) }

func TestReservationStore_Create(t *testing.T) {
	t.Parallel()

	t.Run("stores reservation and occupies seats", func(t *testing.T) {
		s := newStore()
		got, err := s.Create(held(1, 100, t0.Add(time.Minute), seat(0, 0), seat(0, 1)))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.Version == 0 {
			t.Fatalf("expected version to be assigned")
		}
		h, c := s.Counts()
		if h != 2 || c != 0 {
			t.Fatalf("expected 2 held 0 confirmed, got %d/%d", h, c)
		}
		found, ok := s.FindByHoldID(100)
		if !ok || found.ID != 1 {
			t.Fatalf("expected to find reservation by hold id, got %+v %v", found, ok)
		}
		if err := s.CheckConsistency(); err != nil {
			t.Fatalf("consistency: %v", err)
		}
	})

	t.Run("overlapping seats fail with optimistic lock", func(t *testing.T) {
		s := newStore()
		if _, err := s.Create(held(1, 100, t0.Add(time.Minute), seat(0, 0), seat(0, 1))); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		_, err := s.Create(held(2, 101, t0.Add(time.Minute), seat(0, 1), seat(0, 2)))
		if !errors.Is(err, ErrOptimisticLock) {
			t.Fatalf("expected ErrOptimisticLock, got %v", err)
		}
		if _, ok := s.FindByHoldID(101); ok {
			t.Fatalf("expected failed reservation not to be stored")
		}
	})

	t.Run("rejects duplicate seats and empty reservations", func(t *testing.T) {
		s := newStore()
		if _, err := s.Create(held(1, 100, t0, seat(0, 0), seat(0, 0))); !errors.Is(err, model.ErrInternal) {
			t.Fatalf("expected ErrInternal for duplicate seat, got %v", err)
		}
		if _, err := s.Create(held(2, 101, t0)); !errors.Is(err, model.ErrInternal) {
			t.Fatalf("expected ErrInternal for empty seats, got %v", err)
		}
	})

	t.Run("rejects duplicate hold id", func(t *testing.T) {
		s := newStore()
		_, _ = s.Create(held(1, 100, t0, seat(0, 0)))
		if _, err := s.Create(held(2, 100, t0, seat(0, 1))); !errors.Is(err, model.ErrInternal) {
			t.Fatalf("expected ErrInternal, got %v", err)
		}
	})
}

func TestReservationStore_Update(t *testing.T) {
	t.Parallel()

	t.Run("confirm moves seats from held to confirmed", func(t *testing.T) {
		s := newStore()
		r, _ := s.Create(held(1, 100, t0.Add(time.Minute), seat(1, 0), seat(1, 1)))
		r.State = model.StateConfirmed
		r.ConfirmationHash = "hash"
		got, err := s.Update(r)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.Version <= r.Version {
			t.Fatalf("expected version bump, got %d after %d", got.Version, r.Version)
		}
		h, c := s.Counts()
		if h != 0 || c != 2 {
			t.Fatalf("expected 0 held 2 confirmed, got %d/%d", h, c)
		}
		if err := s.CheckConsistency(); err != nil {
			t.Fatalf("consistency: %v", err)
		}
	})

	t.Run("expire and abort release seats", func(t *testing.T) {
		for _, st := range []model.State{model.StateExpired, model.StateAborted} {
			s := newStore()
			r, _ := s.Create(held(1, 100, t0, seat(0, 0)))
			r.State = st
			if _, err := s.Update(r); err != nil {
				t.Fatalf("%s: expected no error, got %v", st, err)
			}
			if h, c := s.Counts(); h != 0 || c != 0 {
				t.Fatalf("%s: expected seats released, got %d/%d", st, h, c)
			}
			if _, err := s.Create(held(2, 101, t0, seat(0, 0))); err != nil {
				t.Fatalf("%s: expected released seat to be holdable, got %v", st, err)
			}
		}
	})

	t.Run("stale version fails with optimistic lock", func(t *testing.T) {
		s := newStore()
		r, _ := s.Create(held(1, 100, t0, seat(0, 0)))
		stale := r.Clone()

		r.State = model.StateExpired
		if _, err := s.Update(r); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		stale.State = model.StateConfirmed
		stale.ConfirmationHash = "hash"
		if _, err := s.Update(stale); !errors.Is(err, ErrOptimisticLock) {
			t.Fatalf("expected ErrOptimisticLock, got %v", err)
		}
		if h, c := s.Counts(); h != 0 || c != 0 {
			t.Fatalf("expected no seats occupied, got %d/%d", h, c)
		}
	})

	t.Run("terminal states cannot transition", func(t *testing.T) {
		s := newStore()
		r, _ := s.Create(held(1, 100, t0, seat(0, 0)))
		r.State = model.StateExpired
		r, _ = s.Update(r)
		r.State = model.StateAborted
		if _, err := s.Update(r); !errors.Is(err, model.ErrInternal) {
			t.Fatalf("expected ErrInternal, got %v", err)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		s := newStore()
		if _, err := s.Update(held(9, 9, t0, seat(0, 0))); !errors.Is(err, ErrReservationNotFound) {
			t.Fatalf("expected ErrReservationNotFound, got %v", err)
		}
	})
}

func TestReservationStore_OldestPending(t *testing.T) {
	t.Parallel()

	s := newStore()
	if _, ok := s.OldestPending(); ok {
		t.Fatalf("expected empty queue")
	}

	late, _ := s.Create(held(1, 100, t0.Add(3*time.Minute), seat(0, 0)))
	early, _ := s.Create(held(2, 101, t0.Add(1*time.Minute), seat(0, 1)))
	_, _ = s.Create(held(3, 102, t0.Add(2*time.Minute), seat(0, 2)))

	top, ok := s.OldestPending()
	if !ok || top.ID != early.ID {
		t.Fatalf("expected reservation %d first, got %+v", early.ID, top)
	}

	top.State = model.StateConfirmed
	top.ConfirmationHash = "hash"
	if _, err := s.Update(top); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	top, ok = s.OldestPending()
	if !ok || top.ID != 3 {
		t.Fatalf("expected reservation 3 after lazy cleanup, got %+v", top)
	}
	if st := s.Stats(); st.PendingQueue != 2 {
		t.Fatalf("expected stale entry popped, queue size %d", st.PendingQueue)
	}

	// Mutating the returned copy must not leak into the store.
	top.Seats[0] = seat(9, 9)
	again, _ := s.OldestPending()
	if again.Seats[0] != seat(0, 2) {
		t.Fatalf("expected a copy, got %+v", again.Seats)
	}
	_ = late
}

func TestReservationStore_ConcurrentCreates(t *testing.T) {
	t.Parallel()

	s := newStore()
	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Every worker wants seat (0,0) plus a private seat.
			_, err := s.Create(held(int64(i+1), 1000+i, t0, seat(0, 0), seat(1, i)))
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else if !errors.Is(err, ErrOptimisticLock) {
				t.Errorf("unexpected error %v", err)
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	if err := s.CheckConsistency(); err != nil {
		t.Fatalf("consistency: %v", err)
	}
}

func TestReservationStore_DisjointCreatesNeverConflict(t *testing.T) {
	t.Parallel()

	s := newStore()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.Create(held(int64(i+1), 2000+i, t0, seat(i, 0), seat(i, 1))); err != nil {
				t.Errorf("worker %d: unexpected error %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	if h, _ := s.Counts(); h != 64 {
		t.Fatalf("expected 64 held seats, got %d", h)
	}
}
