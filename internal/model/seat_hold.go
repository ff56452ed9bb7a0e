package model

// SeatHold is what a customer receives after a successful hold.  The ID
// together with the email used at hold time is required to confirm.
//
// Fields:
//  ID        – the hold identifier.
//  ExpiresAt – expiration as milliseconds since the Unix epoch.
//  Seats     – the seats assigned to the hold, in block order.
type SeatHold struct {
	ID        int    `json:"hold_id"`
	ExpiresAt int64  `json:"expires_at"`
	Seats     []Seat `json:"seats"`
}

// Seat is the external representation of a held seat.
type Seat struct {
	Row   int    `json:"row"`
	Seat  int    `json:"seat"`
	Label string `json:"label"`
}

// NewSeatHold builds the external view of a HELD reservation.
func NewSeatHold(r Reservation) SeatHold {
	seats := make([]Seat, 0, len(r.Seats))
	for _, c := range r.Seats {
		seats = append(seats, Seat{Row: c.Row, Seat: c.Seat, Label: c.Label()})
	}
	return SeatHold{
		ID:        r.HoldID,
		ExpiresAt: r.ExpiresAt.UnixMilli(),
		Seats:     seats,
	}
}
