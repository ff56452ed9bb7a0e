package handler

import (
	"fmt"
	"strings"

	"github.com/iliyamo/seat-hold-service/internal/model"
)

// Seat glyphs used by RenderLayout.
const (
	glyphFree      = '.'
	glyphHeld      = 'h'
	glyphConfirmed = 'X'
)

// RenderLayout draws one line per row, front row first, prefixed with the
// row label.  Seats are separated by a space.
func RenderLayout(v *model.Venue, seats model.SeatMap) string {
	width := len(model.RowLabel(len(v.Rows) - 1))
	var b strings.Builder
	for r, n := range v.Rows {
		fmt.Fprintf(&b, "%-*s ", width, model.RowLabel(r))
		for s := 0; s < n; s++ {
			if s > 0 {
				b.WriteByte(' ')
			}
			c := model.SeatCoord{Row: r, Seat: s}
			switch {
			case hasSeat(seats.Confirmed, c):
				b.WriteByte(glyphConfirmed)
			case hasSeat(seats.Held, c):
				b.WriteByte(glyphHeld)
			default:
				b.WriteByte(glyphFree)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func hasSeat(set map[model.SeatCoord]struct{}, c model.SeatCoord) bool {
	_, ok := set[c]
	return ok
}
