// Package finder picks seats for a hold request.  Given the current seat
// map it places the request as one contiguous block where possible and
// splits it across rows when no single free run is long enough.
package finder

import (
	"fmt"
	"log/slog"

	"github.com/iliyamo/seat-hold-service/internal/model"
	"github.com/iliyamo/seat-hold-service/internal/random"
)

// run is a maximal stretch of free seats within one row.
type run struct {
	row, start, length int
}

func (r run) end() int { return r.start + r.length }

// SeatFinder computes seat placements.  It keeps no state between calls
// and is safe for concurrent use as long as its random source is.
type SeatFinder struct {
	src random.Source
	log *slog.Logger
}

// New returns a SeatFinder that breaks ties with src.
func New(src random.Source, log *slog.Logger) *SeatFinder {
	if log == nil {
		log = slog.Default()
	}
	return &SeatFinder{src: src, log: log}
}

// Find returns blocks whose lengths sum to n, chosen to maximise total
// seat value.  It fails with ErrNoSeatsAvailable when fewer than n seats
// are free and with ErrInternal when n is not positive.
func (f *SeatFinder) Find(venue *model.Venue, seats model.SeatMap, n int) ([]model.Block, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: numSeats must be positive", model.ErrInternal)
	}
	runs, free := freeRuns(venue, seats)
	if expected := venue.Capacity() - seats.Occupied(); expected != free {
		f.log.Warn("seat map disagrees with venue layout", "expected_free", expected, "derived_free", free)
	}
	if free < n {
		return nil, fmt.Errorf("%w: requested %d, available %d, reserved %d",
			model.ErrNoSeatsAvailable, n, free, venue.Capacity()-free)
	}

	values := ValueFunctionFor(venue)
	var blocks []model.Block
	queue := []int{n}
	for len(queue) > 0 {
		want := queue[0]
		queue = queue[1:]

		best, ok := f.bestPlacement(runs, values, want)
		if !ok {
			if want <= 1 {
				return nil, fmt.Errorf("%w: no placement for %d seats with %d free", model.ErrInternal, want, free)
			}
			half := want / 2
			queue = append(queue, want-half, half)
			continue
		}
		runs = splitRun(runs, best.runIndex, best.block)
		blocks = append(blocks, best.block)
	}
	return blocks, nil
}

// freeRuns scans each row left to right and returns its maximal free runs
// together with the total free count.
func freeRuns(venue *model.Venue, seats model.SeatMap) ([]run, int) {
	var runs []run
	total := 0
	for r, length := range venue.Rows {
		start := -1
		for s := 0; s < length; s++ {
			if seats.IsFree(model.SeatCoord{Row: r, Seat: s}) {
				total++
				if start < 0 {
					start = s
				}
				continue
			}
			if start >= 0 {
				runs = append(runs, run{row: r, start: start, length: s - start})
				start = -1
			}
		}
		if start >= 0 {
			runs = append(runs, run{row: r, start: start, length: length - start})
		}
	}
	return runs, total
}

type placement struct {
	runIndex  int
	runLength int
	score     float64
	block     model.Block
}

// bestPlacement finds the highest scoring window of width want across all
// runs that can hold it.
func (f *SeatFinder) bestPlacement(runs []run, values ValueFunction, want int) (placement, bool) {
	var best placement
	found := false
	for i, r := range runs {
		if r.length < want {
			continue
		}
		p := bestWindow(r, values, want)
		p.runIndex = i
		if !found || f.better(p, best) {
			best = p
			found = true
		}
	}
	return best, found
}

// better reports whether candidate should replace the incumbent.  Higher
// score wins; on equal scores the shorter run wins so long runs stay
// available for large requests; remaining ties are a coin flip, which
// spreads concurrent identical requests over equivalent seats.
func (f *SeatFinder) better(candidate, incumbent placement) bool {
	switch {
	case candidate.score > incumbent.score:
		return true
	case candidate.score < incumbent.score:
		return false
	case candidate.runLength < incumbent.runLength:
		return true
	case candidate.runLength > incumbent.runLength:
		return false
	}
	return f.src.Intn(2) == 1
}

// bestWindow slides a window of width want across r and keeps the leftmost
// position with the highest sum.
func bestWindow(r run, values ValueFunction, want int) placement {
	score := 0.0
	for s := r.start; s < r.start+want; s++ {
		score += values.Value(r.row, s)
	}
	bestScore, bestStart := score, r.start
	for start := r.start + 1; start+want <= r.end(); start++ {
		score -= values.Value(r.row, start-1)
		score += values.Value(r.row, start+want-1)
		if score > bestScore {
			bestScore, bestStart = score, start
		}
	}
	return placement{
		runLength: r.length,
		score:     bestScore,
		block:     model.Block{Row: r.row, Start: bestStart, Length: want},
	}
}

// splitRun removes the run at index i and appends the free residue left
// and right of b.
func splitRun(runs []run, i int, b model.Block) []run {
	r := runs[i]
	runs = append(runs[:i], runs[i+1:]...)
	if left := b.Start - r.start; left > 0 {
		runs = append(runs, run{row: r.row, start: r.start, length: left})
	}
	if right := r.end() - b.End(); right > 0 {
		runs = append(runs, run{row: r.row, start: b.End(), length: right})
	}
	return runs
}
