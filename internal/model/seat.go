package model

import "strconv"

// SeatCoord identifies a single seat in a venue by its zero-based row and
// seat index.  It is comparable and is used directly as a map key by the
// reservation store's occupancy indexes.
//
// Fields:
//  Row  – zero-based row index; 0 ≤ Row < len(venue.Rows).
//  Seat – zero-based seat index; 0 ≤ Seat < venue.Rows[Row].
type SeatCoord struct {
	Row  int
	Seat int
}

// Label renders the coordinate as a human readable seat label such as
// "A1" or "AB12".  Rows use base-26 letters and seats are 1-based.
func (c SeatCoord) Label() string {
	return RowLabel(c.Row) + strconv.Itoa(c.Seat+1)
}

// RowLabel converts a zero-based index to an alphabetical row label like A, B, AA.
func RowLabel(i int) string {
	if i < 0 {
		return ""
	}
	res := []rune{}
	for {
		rem := i % 26
		res = append(res, rune('A'+rem))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
		res[j], res[k] = res[k], res[j]
	}
	return string(res)
}

// Block is a contiguous run of seats inside one row.  The seat finder
// emits blocks; a reservation's seats are the union of its blocks.
type Block struct {
	Row    int
	Start  int
	Length int
}

// End returns the exclusive end index of the block.
func (b Block) End() int { return b.Start + b.Length }

// Coords expands the block into individual seat coordinates.
func (b Block) Coords() []SeatCoord {
	out := make([]SeatCoord, 0, b.Length)
	for s := b.Start; s < b.End(); s++ {
		out = append(out, SeatCoord{Row: b.Row, Seat: s})
	}
	return out
}

// SeatMap is a point-in-time view of seat occupancy.  Seats absent from
// both sets are available.
type SeatMap struct {
	Held      map[SeatCoord]struct{}
	Confirmed map[SeatCoord]struct{}
}

// NewSeatMap returns an empty seat map.
func NewSeatMap() SeatMap {
	return SeatMap{
		Held:      make(map[SeatCoord]struct{}),
		Confirmed: make(map[SeatCoord]struct{}),
	}
}

// IsFree reports whether the seat is neither held nor confirmed.
func (m SeatMap) IsFree(c SeatCoord) bool {
	if _, ok := m.Held[c]; ok {
		return false
	}
	_, ok := m.Confirmed[c]
	return !ok
}

// Occupied returns the number of seats that are held or confirmed.
func (m SeatMap) Occupied() int { return len(m.Held) + len(m.Confirmed) }
