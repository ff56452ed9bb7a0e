package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/seat-hold-service/internal/model"
)

var errVenueFormat = errors.New("invalid venue format")

// ParseRows accepts either "ROWSxSEATS" for a rectangular venue or a comma
// separated list of row lengths, front row first.
func ParseRows(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty row layout", errVenueFormat)
	}
	if r, c, ok := strings.Cut(strings.ToLower(s), "x"); ok {
		rows, err1 := strconv.Atoi(strings.TrimSpace(r))
		seats, err2 := strconv.Atoi(strings.TrimSpace(c))
		if err1 != nil || err2 != nil || rows <= 0 || seats <= 0 {
			return nil, fmt.Errorf("%w: %q", errVenueFormat, s)
		}
		out := make([]int, rows)
		for i := range out {
			out[i] = seats
		}
		return out, nil
	}
	var out []int
	for _, p := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: row length %q", errVenueFormat, p)
		}
		out = append(out, n)
	}
	return out, nil
}

// ParseHotspots overlays "row:seat=value" entries on a uniform grid for
// rows.  Coordinates are zero-based.  An empty string yields nil, which
// lets model.NewVenue apply its default grid.
func ParseHotspots(s string, rows []int) ([][]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	values := model.UniformValues(rows, model.DefaultSeatValue)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		coord, val, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("%w: hotspot %q", errVenueFormat, entry)
		}
		rs, ss, ok := strings.Cut(coord, ":")
		if !ok {
			return nil, fmt.Errorf("%w: hotspot %q", errVenueFormat, entry)
		}
		row, err1 := strconv.Atoi(strings.TrimSpace(rs))
		seat, err2 := strconv.Atoi(strings.TrimSpace(ss))
		v, err3 := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("%w: hotspot %q", errVenueFormat, entry)
		}
		if row < 0 || row >= len(rows) || seat < 0 || seat >= rows[row] {
			return nil, fmt.Errorf("%w: hotspot %q outside venue", errVenueFormat, entry)
		}
		values[row][seat] = v
	}
	return values, nil
}

// BuildVenue turns the raw layout settings into a validated venue.
func BuildVenue(rowsSpec, hotspots string, maxHold time.Duration) (*model.Venue, error) {
	rows, err := ParseRows(rowsSpec)
	if err != nil {
		return nil, err
	}
	values, err := ParseHotspots(hotspots, rows)
	if err != nil {
		return nil, err
	}
	return model.NewVenue(rows, values, maxHold)
}

// Venue builds the venue described by c.
func (c Config) Venue() (*model.Venue, error) {
	return BuildVenue(c.VenueRows, c.VenueHotspots, c.HoldMaxDuration)
}
