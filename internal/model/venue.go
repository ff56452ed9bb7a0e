package model

import (
	"fmt"
	"time"
)

// DefaultSeatValue is the desirability assigned to every seat when a venue
// is configured without an explicit value grid.
const DefaultSeatValue = 1.0

// Venue describes the seating layout the service sells from.  It is
// immutable once returned by NewVenue; the reservation store owns all
// mutable occupancy state.
//
// Fields:
//  Rows    – number of seats in each row, front row first.
//  Values  – desirability per seat; Values[r] has at least Rows[r] entries.
//  MaxHold – how long an unconfirmed hold stays valid.
type Venue struct {
	Rows    []int
	Values  [][]float64
	MaxHold time.Duration
}

// NewVenue validates the layout and returns a private copy of it.  When
// values is nil a uniform grid of DefaultSeatValue is used.  Any violation
// is reported as ErrServiceNotReady since the service cannot start
// selling seats from an invalid configuration.
func NewVenue(rows []int, values [][]float64, maxHold time.Duration) (*Venue, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: invalid configuration - venue rows must not be empty", ErrServiceNotReady)
	}
	for i, n := range rows {
		if n <= 0 {
			return nil, fmt.Errorf("%w: invalid configuration - row %d must not be empty", ErrServiceNotReady, i)
		}
	}
	if values == nil {
		values = UniformValues(rows, DefaultSeatValue)
	}
	if len(values) < len(rows) {
		return nil, fmt.Errorf("%w: invalid configuration - values has %d rows, venue has %d", ErrServiceNotReady, len(values), len(rows))
	}
	for i, n := range rows {
		if len(values[i]) < n {
			return nil, fmt.Errorf("%w: invalid configuration - row %d has %d values for %d seats", ErrServiceNotReady, i, len(values[i]), n)
		}
	}
	if maxHold <= 0 {
		return nil, fmt.Errorf("%w: invalid configuration - max hold duration must be positive", ErrServiceNotReady)
	}

	v := &Venue{
		Rows:    append([]int(nil), rows...),
		Values:  make([][]float64, len(rows)),
		MaxHold: maxHold,
	}
	for i := range rows {
		v.Values[i] = append([]float64(nil), values[i]...)
	}
	return v, nil
}

// UniformValues builds a value grid matching rows where every seat has
// the given value.
func UniformValues(rows []int, value float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, n := range rows {
		out[i] = make([]float64, n)
		for j := range out[i] {
			out[i][j] = value
		}
	}
	return out
}

// Capacity is the total number of seats in the venue.
func (v *Venue) Capacity() int {
	total := 0
	for _, n := range v.Rows {
		total += n
	}
	return total
}

// Contains reports whether c lies within the venue bounds.
func (v *Venue) Contains(c SeatCoord) bool {
	return c.Row >= 0 && c.Row < len(v.Rows) && c.Seat >= 0 && c.Seat < v.Rows[c.Row]
}
