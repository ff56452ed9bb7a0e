package finder

import "github.com/iliyamo/seat-hold-service/internal/model"

// ValueFunction scores the desirability of a single seat.  Higher is better.
type ValueFunction interface {
	Value(row, seat int) float64
}

// Uniform gives every seat the same value.
type Uniform float64

func (u Uniform) Value(int, int) float64 { return float64(u) }

// Grid looks values up in a per-seat table.
type Grid [][]float64

func (g Grid) Value(row, seat int) float64 { return g[row][seat] }

// ValueFunctionFor returns the value function configured for a venue.
// Venues without a value grid score every seat with model.DefaultSeatValue.
func ValueFunctionFor(v *model.Venue) ValueFunction {
	if v.Values == nil {
		return Uniform(model.DefaultSeatValue)
	}
	return Grid(v.Values)
}
