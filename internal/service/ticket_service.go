// Package service contains the reservation coordinator, the expiry sweeper
// and the event publisher used by both.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/seat-hold-service/internal/clock"
	"github.com/iliyamo/seat-hold-service/internal/finder"
	"github.com/iliyamo/seat-hold-service/internal/ids"
	"github.com/iliyamo/seat-hold-service/internal/model"
	"github.com/iliyamo/seat-hold-service/internal/queue"
	"github.com/iliyamo/seat-hold-service/internal/repository"
	"github.com/iliyamo/seat-hold-service/internal/token"
)

// maxRetries is the number of optimistic attempts whose conflicts are
// absorbed; one final attempt follows and its error is returned.
const maxRetries = 10

const publishTimeout = 5 * time.Second

// errHoldNotFound is deliberately the same for unknown holds, wrong emails
// and holds in a state that cannot be confirmed.
var errHoldNotFound = fmt.Errorf("%w: seat hold not found", model.ErrBadRequest)

// Store is the reservation store the coordinator reads snapshots from and
// submits optimistic writes to.
type Store interface {
	SeatMap() model.SeatMap
	Counts() (held, confirmed int)
	FindByHoldID(holdID int) (model.Reservation, bool)
	Create(r model.Reservation) (model.Reservation, error)
	Update(r model.Reservation) (model.Reservation, error)
	Stats() repository.StoreStats
	CheckConsistency() error
}

// EventPublisher delivers reservation events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

// TicketService coordinates holds and confirmations on top of the
// reservation store.  It holds no seat state of its own: every operation
// snapshots the store, works without locks and submits a write that the
// store re-validates.
type TicketService struct {
	store  Store
	finder *finder.SeatFinder
	ids    *ids.Allocator
	mint   *token.Mint
	clock  clock.Clock
	pub    EventPublisher
	log    *slog.Logger

	mu    sync.RWMutex
	venue *model.Venue

	events sync.WaitGroup
}

// Option configures a TicketService.
type Option func(*TicketService)

// WithPublisher sends confirmed and expired events to p.
func WithPublisher(p EventPublisher) Option { return func(s *TicketService) { s.pub = p } }

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option { return func(s *TicketService) { s.log = l } }

// NewTicketService wires the coordinator.  It refuses all operations until
// Configure has been called.
func NewTicketService(store Store, f *finder.SeatFinder, alloc *ids.Allocator,
	mint *token.Mint, clk clock.Clock, opts ...Option) *TicketService {
	s := &TicketService{store: store, finder: f, ids: alloc, mint: mint, clock: clk, log: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Configure installs the venue the service sells from.
func (s *TicketService) Configure(v *model.Venue) error {
	if v == nil {
		return fmt.Errorf("%w: venue is required", model.ErrServiceNotReady)
	}
	s.mu.Lock()
	s.venue = v
	s.mu.Unlock()
	s.log.Info("venue configured", "rows", len(v.Rows), "capacity", v.Capacity(), "max_hold", v.MaxHold)
	return nil
}

// Venue returns the configured venue.
func (s *TicketService) Venue() (*model.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.venue == nil {
		return nil, fmt.Errorf("%w: venue not configured", model.ErrServiceNotReady)
	}
	return s.venue, nil
}

// NumSeatsAvailable returns the number of seats neither held nor confirmed.
func (s *TicketService) NumSeatsAvailable(ctx context.Context) (int, error) {
	v, err := s.Venue()
	if err != nil {
		return 0, err
	}
	held, confirmed := s.store.Counts()
	return v.Capacity() - held - confirmed, nil
}

// SeatMap returns the current occupancy snapshot.
func (s *TicketService) SeatMap(ctx context.Context) (model.SeatMap, error) {
	if _, err := s.Venue(); err != nil {
		return model.SeatMap{}, err
	}
	return s.store.SeatMap(), nil
}

// FindAndHoldSeats picks the best n seats and holds them for email until
// the venue's max hold duration elapses.
func (s *TicketService) FindAndHoldSeats(ctx context.Context, n int, email string) (model.SeatHold, error) {
	if n <= 0 {
		return model.SeatHold{}, fmt.Errorf("%w: numSeats must be positive", model.ErrBadRequest)
	}
	if strings.TrimSpace(email) == "" {
		return model.SeatHold{}, fmt.Errorf("%w: email is required", model.ErrBadRequest)
	}
	v, err := s.Venue()
	if err != nil {
		return model.SeatHold{}, err
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		hold, err := s.tryHold(v, n, email)
		if !errors.Is(err, repository.ErrOptimisticLock) {
			return hold, err
		}
		s.log.Debug("hold conflicted, retrying", "attempt", attempt, "seats", n, "err", err)
		if err := ctx.Err(); err != nil {
			return model.SeatHold{}, err
		}
	}
	hold, err := s.tryHold(v, n, email)
	if errors.Is(err, repository.ErrOptimisticLock) {
		s.log.Warn("hold gave up after repeated conflicts", "seats", n)
		return model.SeatHold{}, fmt.Errorf("%w: seats kept changing, try again", model.ErrNoSeatsAvailable)
	}
	return hold, err
}

func (s *TicketService) tryHold(v *model.Venue, n int, email string) (model.SeatHold, error) {
	seats := s.store.SeatMap()
	if free := v.Capacity() - seats.Occupied(); free < n {
		return model.SeatHold{}, fmt.Errorf("%w: requested %d, available %d", model.ErrNoSeatsAvailable, n, free)
	}

	holdID, err := s.ids.NextHoldID()
	if err != nil {
		return model.SeatHold{}, err
	}
	blocks, err := s.finder.Find(v, seats, n)
	if err != nil {
		s.ids.Release(holdID)
		return model.SeatHold{}, err
	}

	coords := make([]model.SeatCoord, 0, n)
	seen := make(map[model.SeatCoord]struct{}, n)
	for _, b := range blocks {
		for _, c := range b.Coords() {
			if _, dup := seen[c]; dup || !v.Contains(c) {
				s.ids.Release(holdID)
				return model.SeatHold{}, fmt.Errorf("%w: seat finder returned seat %s twice or out of bounds", model.ErrInternal, c.Label())
			}
			seen[c] = struct{}{}
			coords = append(coords, c)
		}
	}
	if len(coords) != n {
		s.ids.Release(holdID)
		return model.SeatHold{}, fmt.Errorf("%w: seat finder returned %d seats for %d", model.ErrInternal, len(coords), n)
	}

	now := s.clock.Now()
	r := model.Reservation{
		ID:        s.ids.NextReservationID(),
		HoldID:    holdID,
		Email:     email,
		State:     model.StateHeld,
		ExpiresAt: now.Add(v.MaxHold),
		Seats:     coords,
	}
	stored, err := s.store.Create(r)
	if err != nil {
		s.ids.Release(holdID)
		return model.SeatHold{}, err
	}
	s.log.Info("seats held", "hold_id", stored.HoldID, "reservation_id", stored.ID, "seats", n, "blocks", len(blocks))
	return model.NewSeatHold(stored), nil
}

// ReserveSeats confirms the hold and returns the confirmation token.  The
// token is only ever returned here; the store keeps its salted hash.
func (s *TicketService) ReserveSeats(ctx context.Context, holdID int, email string) (string, error) {
	if holdID < 0 {
		return "", fmt.Errorf("%w: hold id must not be negative", model.ErrBadRequest)
	}
	if strings.TrimSpace(email) == "" {
		return "", fmt.Errorf("%w: email is required", model.ErrBadRequest)
	}
	if _, err := s.Venue(); err != nil {
		return "", err
	}

	for attempt := 1; ; attempt++ {
		tok, err := s.tryConfirm(holdID, email)
		if !errors.Is(err, repository.ErrOptimisticLock) {
			return tok, err
		}
		// Re-read to find out what moved underneath us.
		cur, ok := s.store.FindByHoldID(holdID)
		switch {
		case !ok || cur.Email != email:
			return "", errHoldNotFound
		case cur.ExpiredAt(s.clock.Now()):
			return "", fmt.Errorf("%w: hold %d", model.ErrExpired, holdID)
		case cur.State != model.StateHeld || attempt > maxRetries:
			return "", errHoldNotFound
		}
		s.log.Debug("confirm conflicted, retrying", "attempt", attempt, "hold_id", holdID)
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}
}

func (s *TicketService) tryConfirm(holdID int, email string) (string, error) {
	r, ok := s.store.FindByHoldID(holdID)
	if !ok || r.Email != email {
		return "", errHoldNotFound
	}
	if r.State != model.StateHeld && r.State != model.StateExpired {
		return "", errHoldNotFound
	}
	if r.ExpiredAt(s.clock.Now()) {
		return "", fmt.Errorf("%w: hold %d", model.ErrExpired, holdID)
	}

	buf := s.mint.Generate()
	defer token.Wipe(buf)
	hash, err := s.mint.Hash(buf)
	if err != nil {
		s.abort(r, err)
		return "", err
	}

	r.State = model.StateConfirmed
	r.ConfirmationHash = hash
	stored, err := s.store.Update(r)
	if err != nil {
		if errors.Is(err, model.ErrInternal) {
			s.abort(r, err)
		}
		return "", err
	}
	tok := string(buf)

	s.log.Info("hold confirmed", "hold_id", holdID, "reservation_id", stored.ID, "seats", len(stored.Seats))
	s.publish(queue.EventConfirmed, stored)
	return tok, nil
}

// abort moves a reservation that hit an internal error to ABORTED so its
// seats are released.  Failures are logged; the sweeper cannot help here
// because the reservation may not be expired yet.
func (s *TicketService) abort(r model.Reservation, cause error) {
	r.State = model.StateAborted
	r.ConfirmationHash = ""
	if _, err := s.store.Update(r); err != nil {
		s.log.Error("abort reservation failed", "reservation_id", r.ID, "cause", cause, "err", err)
		return
	}
	s.log.Error("reservation aborted", "reservation_id", r.ID, "hold_id", r.HoldID, "cause", cause)
}

// Reservation returns the reservation behind a hold id for operators.
func (s *TicketService) Reservation(ctx context.Context, holdID int) (model.Reservation, error) {
	if _, err := s.Venue(); err != nil {
		return model.Reservation{}, err
	}
	r, ok := s.store.FindByHoldID(holdID)
	if !ok {
		return model.Reservation{}, errHoldNotFound
	}
	return r, nil
}

// Stats exposes store counters for operators.
func (s *TicketService) Stats() repository.StoreStats { return s.store.Stats() }

// CheckConsistency runs the store self-check.
func (s *TicketService) CheckConsistency() error { return s.store.CheckConsistency() }

// publish sends an event in the background.  Delivery is best effort: a
// broker outage must never fail a hold or confirmation.
func (s *TicketService) publish(typ string, r model.Reservation) {
	if s.pub == nil {
		return
	}
	ev := queue.NewReservationEvent(typ, r, s.clock.Now())
	s.events.Add(1)
	go func() {
		defer s.events.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.pub.Publish(ctx, ev); err != nil {
			s.log.Warn("publish reservation event failed", "type", typ, "reservation_id", r.ID, "err", err)
		}
	}()
}

// Wait blocks until in-flight event deliveries have finished.
func (s *TicketService) Wait() { s.events.Wait() }
