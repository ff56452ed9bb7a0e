package model

import "time"

// State is the lifecycle state of a reservation.
type State string

const (
	StateHeld      State = "HELD"
	StateExpired   State = "EXPIRED"
	StateConfirmed State = "CONFIRMED"
	StateAborted   State = "ABORTED"
)

// Terminal reports whether no further transition is allowed from s.
func (s State) Terminal() bool { return s != StateHeld }

// CanTransition reports whether s → to is a legal reservation transition.
// Only HELD reservations move, and only to one of the terminal states.
func (s State) CanTransition(to State) bool {
	return !s.Terminal() && to != StateHeld && to.valid()
}

func (s State) valid() bool {
	switch s {
	case StateHeld, StateExpired, StateConfirmed, StateAborted:
		return true
	}
	return false
}

// Reservation records a customer's claim on a set of seats.  It is only
// mutated through the reservation store; everything handed out by the
// store is a copy.
//
// Fields:
//  ID               – internal monotonic identifier.
//  HoldID           – externally visible, hard to guess identifier.
//  Email            – supplied at hold time, compared verbatim on confirm.
//  State            – HELD, EXPIRED, CONFIRMED or ABORTED.
//  ExpiresAt        – a HELD reservation is treated as expired from this instant.
//  Seats            – distinct seats claimed by the reservation.
//  ConfirmationHash – salted hash of the confirmation token (CONFIRMED only).
//  Version          – store-assigned version used for optimistic locking.
//  CreatedAt        – when the store accepted the reservation.
//  UpdatedAt        – last store-side write.
type Reservation struct {
	ID               int64
	HoldID           int
	Email            string
	State            State
	ExpiresAt        time.Time
	Seats            []SeatCoord
	ConfirmationHash string
	Version          uint64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Clone returns a deep copy of r.
func (r Reservation) Clone() Reservation {
	c := r
	c.Seats = append([]SeatCoord(nil), r.Seats...)
	return c
}

// ExpiredAt reports whether a HELD reservation must be treated as expired at now.
func (r Reservation) ExpiredAt(now time.Time) bool {
	return r.State == StateExpired || (r.State == StateHeld && !now.Before(r.ExpiresAt))
}
