package repository

import (
	"container/heap"
	"fmt"
	"sync"

	"github.com/iliyamo/seat-hold-service/internal/clock"
	"github.com/iliyamo/seat-hold-service/internal/model"
)

// ReservationStore keeps reservations and seat occupancy in memory.  A
// single read/write lock guards every index.  Callers only ever receive
// copies, and writers re-validate against the stored state, so a stale
// copy can never corrupt the store: it fails with ErrOptimisticLock.
type ReservationStore struct {
	clock clock.Clock

	mu        sync.RWMutex
	byID      map[int64]*model.Reservation
	byHoldID  map[int]*model.Reservation
	pending   pendingQueue
	held      map[model.SeatCoord]int64 // seat -> owning reservation id
	confirmed map[model.SeatCoord]int64
	version   uint64
}

// StoreStats summarises the store for operators.
type StoreStats struct {
	Reservations int                 `json:"reservations"`
	ByState      map[model.State]int `json:"by_state"`
	HeldSeats    int                 `json:"held_seats"`
	Confirmed    int                 `json:"confirmed_seats"`
	PendingQueue int                 `json:"pending_queue"`
	Version      uint64              `json:"version"`
}

// NewReservationStore returns an empty store.
func NewReservationStore(clk clock.Clock) *ReservationStore {
	return &ReservationStore{
		clock:     clk,
		byID:      make(map[int64]*model.Reservation),
		byHoldID:  make(map[int]*model.Reservation),
		held:      make(map[model.SeatCoord]int64),
		confirmed: make(map[model.SeatCoord]int64),
	}
}

// SeatMap returns a consistent copy of the held and confirmed seat sets.
func (s *ReservationStore) SeatMap() model.SeatMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := model.SeatMap{
		Held:      make(map[model.SeatCoord]struct{}, len(s.held)),
		Confirmed: make(map[model.SeatCoord]struct{}, len(s.confirmed)),
	}
	for c := range s.held {
		m.Held[c] = struct{}{}
	}
	for c := range s.confirmed {
		m.Confirmed[c] = struct{}{}
	}
	return m
}

// Counts returns the number of held and confirmed seats.
func (s *ReservationStore) Counts() (held, confirmed int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.held), len(s.confirmed)
}

// FindByHoldID returns a copy of the reservation with the given hold id.
func (s *ReservationStore) FindByHoldID(holdID int) (model.Reservation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byHoldID[holdID]
	if !ok {
		return model.Reservation{}, false
	}
	return r.Clone(), true
}

// OldestPending returns a copy of the HELD reservation that expires first.
// Heap entries that are no longer HELD are discarded on the way.
func (s *ReservationStore) OldestPending() (model.Reservation, bool) {
	s.mu.RLock()
	if len(s.pending) == 0 {
		s.mu.RUnlock()
		return model.Reservation{}, false
	}
	if top := s.pending[0]; top.State == model.StateHeld {
		c := top.Clone()
		s.mu.RUnlock()
		return c, true
	}
	s.mu.RUnlock()

	// Stale top: popping needs the write lock.
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.pending) > 0 {
		top := s.pending[0]
		if top.State == model.StateHeld {
			return top.Clone(), true
		}
		heap.Pop(&s.pending)
	}
	return model.Reservation{}, false
}

// Create inserts a new HELD reservation.  It fails with ErrOptimisticLock
// when any of its seats is already held or confirmed.  The returned copy
// carries the assigned version.
func (s *ReservationStore) Create(r model.Reservation) (model.Reservation, error) {
	if r.State != model.StateHeld {
		return model.Reservation{}, fmt.Errorf("%w: new reservation must be %s, got %s", model.ErrInternal, model.StateHeld, r.State)
	}
	if len(r.Seats) == 0 {
		return model.Reservation{}, fmt.Errorf("%w: reservation %d has no seats", model.ErrInternal, r.ID)
	}
	distinct := make(map[model.SeatCoord]struct{}, len(r.Seats))
	for _, c := range r.Seats {
		if _, dup := distinct[c]; dup {
			return model.Reservation{}, fmt.Errorf("%w: seat %s listed twice", model.ErrInternal, c.Label())
		}
		distinct[c] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[r.ID]; ok {
		return model.Reservation{}, fmt.Errorf("%w: reservation with id %d already exists", model.ErrInternal, r.ID)
	}
	if _, ok := s.byHoldID[r.HoldID]; ok {
		return model.Reservation{}, fmt.Errorf("%w: reservation with hold id %d already exists", model.ErrInternal, r.HoldID)
	}
	for _, c := range r.Seats {
		if _, taken := s.held[c]; taken {
			return model.Reservation{}, fmt.Errorf("%w: seat %s already held", ErrOptimisticLock, c.Label())
		}
		if _, taken := s.confirmed[c]; taken {
			return model.Reservation{}, fmt.Errorf("%w: seat %s already confirmed", ErrOptimisticLock, c.Label())
		}
	}

	stored := r.Clone()
	s.version++
	stored.Version = s.version
	stored.ConfirmationHash = ""
	stored.CreatedAt = s.clock.Now()
	stored.UpdatedAt = stored.CreatedAt

	s.byID[stored.ID] = &stored
	s.byHoldID[stored.HoldID] = &stored
	heap.Push(&s.pending, &stored)
	for _, c := range stored.Seats {
		s.held[c] = stored.ID
	}
	return stored.Clone(), nil
}

// Update applies a state transition computed from a copy of r.  Only the
// state and confirmation hash are taken from r; seats are always those
// stored.  It fails with ErrReservationNotFound for unknown ids and with
// ErrOptimisticLock when the stored version is newer than r's.
func (s *ReservationStore) Update(r model.Reservation) (model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byID[r.ID]
	if !ok {
		return model.Reservation{}, fmt.Errorf("%w: id %d", ErrReservationNotFound, r.ID)
	}
	if stored.Version > r.Version {
		return model.Reservation{}, fmt.Errorf("%w: reservation %d at version %d, update based on %d",
			ErrOptimisticLock, r.ID, stored.Version, r.Version)
	}
	if !stored.State.CanTransition(r.State) {
		return model.Reservation{}, fmt.Errorf("%w: illegal transition %s -> %s for reservation %d",
			model.ErrInternal, stored.State, r.State, r.ID)
	}

	switch r.State {
	case model.StateConfirmed:
		if r.ConfirmationHash == "" {
			return model.Reservation{}, fmt.Errorf("%w: confirmation hash required", model.ErrInternal)
		}
		for _, c := range stored.Seats {
			if owner, ok := s.held[c]; !ok || owner != stored.ID {
				return model.Reservation{}, fmt.Errorf("%w: seat %s is not held by reservation %d", model.ErrInternal, c.Label(), stored.ID)
			}
		}
		for _, c := range stored.Seats {
			delete(s.held, c)
			s.confirmed[c] = stored.ID
		}
		stored.ConfirmationHash = r.ConfirmationHash
	case model.StateExpired, model.StateAborted:
		for _, c := range stored.Seats {
			if owner, ok := s.held[c]; ok && owner == stored.ID {
				delete(s.held, c)
			}
		}
	}

	stored.State = r.State
	s.version++
	stored.Version = s.version
	stored.UpdatedAt = s.clock.Now()
	return stored.Clone(), nil
}

// CheckConsistency verifies the occupancy indexes against the stored
// reservations.  It is meant for tests and operator diagnostics.
func (s *ReservationStore) CheckConsistency() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wantHeld := make(map[model.SeatCoord]int64)
	wantConfirmed := make(map[model.SeatCoord]int64)
	for _, r := range s.byID {
		var target map[model.SeatCoord]int64
		switch r.State {
		case model.StateHeld:
			target = wantHeld
		case model.StateConfirmed:
			target = wantConfirmed
		default:
			continue
		}
		for _, c := range r.Seats {
			if other, dup := wantHeld[c]; dup {
				return fmt.Errorf("seat %s booked by reservations %d and %d", c.Label(), other, r.ID)
			}
			if other, dup := wantConfirmed[c]; dup {
				return fmt.Errorf("seat %s booked by reservations %d and %d", c.Label(), other, r.ID)
			}
			target[c] = r.ID
		}
	}
	if err := sameSeats("held", wantHeld, s.held); err != nil {
		return err
	}
	if err := sameSeats("confirmed", wantConfirmed, s.confirmed); err != nil {
		return err
	}
	for c := range s.held {
		if _, both := s.confirmed[c]; both {
			return fmt.Errorf("seat %s is both held and confirmed", c.Label())
		}
	}

	inQueue := make(map[int64]bool, len(s.pending))
	for _, r := range s.pending {
		inQueue[r.ID] = true
	}
	for id, r := range s.byID {
		if r.State == model.StateHeld && !inQueue[id] {
			return fmt.Errorf("held reservation %d missing from pending queue", id)
		}
	}
	return nil
}

func sameSeats(name string, want, got map[model.SeatCoord]int64) error {
	if len(want) != len(got) {
		return fmt.Errorf("%s index has %d seats, reservations account for %d", name, len(got), len(want))
	}
	for c, id := range want {
		if owner, ok := got[c]; !ok || owner != id {
			return fmt.Errorf("%s index disagrees for seat %s", name, c.Label())
		}
	}
	return nil
}

// Stats returns counters describing the store contents.
func (s *ReservationStore) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := StoreStats{
		Reservations: len(s.byID),
		ByState:      make(map[model.State]int),
		HeldSeats:    len(s.held),
		Confirmed:    len(s.confirmed),
		PendingQueue: len(s.pending),
		Version:      s.version,
	}
	for _, r := range s.byID {
		st.ByState[r.State]++
	}
	return st
}
