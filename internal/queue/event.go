// Package queue defines message payloads exchanged over the message broker
// and the background consumer for confirmed reservations.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/seat-hold-service/internal/model"
)

// Queue names double as routing keys on the default exchange.
const (
	ConfirmedQueue = "reservation.confirmed"
	ExpiredQueue   = "reservation.expired"
)

// Event types carried in ReservationEvent.Type.
const (
	EventConfirmed = "confirmed"
	EventExpired   = "expired"
)

// ReservationEvent is published when a hold is confirmed or expires.  It
// carries enough information for downstream consumers to log or archive
// the reservation without calling back into the service.  The cleartext
// confirmation token is never included, only its salted hash.
type ReservationEvent struct {
	EventID          string   `json:"event_id"`
	Type             string   `json:"type"`
	ReservationID    int64    `json:"reservation_id"`
	HoldID           int      `json:"hold_id"`
	Email            string   `json:"email"`
	SeatLabels       []string `json:"seats"`
	ConfirmationHash string   `json:"confirmation_hash,omitempty"`
	ExpiresAt        string   `json:"expires_at"`
	OccurredAt       string   `json:"occurred_at"`
}

// NewReservationEvent builds an event of the given type for r.  Each call
// gets a fresh event id so consumers can de-duplicate redeliveries.
func NewReservationEvent(typ string, r model.Reservation, at time.Time) ReservationEvent {
	labels := make([]string, 0, len(r.Seats))
	for _, c := range r.Seats {
		labels = append(labels, c.Label())
	}
	return ReservationEvent{
		EventID:          uuid.NewString(),
		Type:             typ,
		ReservationID:    r.ID,
		HoldID:           r.HoldID,
		Email:            r.Email,
		SeatLabels:       labels,
		ConfirmationHash: r.ConfirmationHash,
		ExpiresAt:        r.ExpiresAt.UTC().Format(time.RFC3339),
		OccurredAt:       at.UTC().Format(time.RFC3339),
	}
}
