package finder

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/iliyamo/seat-hold-service/internal/model"
	"github.com/iliyamo/seat-hold-service/internal/random"
)

var stepRows = []int{5, 6, 7, 8, 9, 10}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newFinder() *SeatFinder { return New(random.NewSeeded(42), quietLogger()) }

func mustVenue(t *testing.T, rows []int, values [][]float64) *model.Venue {
	t.Helper()
	v, err := model.NewVenue(rows, values, time.Second)
	if err != nil {
		t.Fatalf("venue: %v", err)
	}
	return v
}

// seatMapFrom builds a seat map from a grid where 0 is free, 1 held and 2 confirmed.
func seatMapFrom(grid [][]int) model.SeatMap {
	m := model.NewSeatMap()
	for r, row := range grid {
		for s, v := range row {
			c := model.SeatCoord{Row: r, Seat: s}
			switch v {
			case 1:
				m.Held[c] = struct{}{}
			case 2:
				m.Confirmed[c] = struct{}{}
			}
		}
	}
	return m
}

func assertBlocks(t *testing.T, venue *model.Venue, seats model.SeatMap, blocks []model.Block, n int) {
	t.Helper()
	total := 0
	seen := make(map[model.SeatCoord]bool)
	for _, b := range blocks {
		total += b.Length
		for _, c := range b.Coords() {
			if !venue.Contains(c) {
				t.Fatalf("seat %+v outside venue", c)
			}
			if !seats.IsFree(c) {
				t.Fatalf("seat %+v is not free", c)
			}
			if seen[c] {
				t.Fatalf("seat %+v assigned twice", c)
			}
			seen[c] = true
		}
	}
	if total != n {
		t.Fatalf("expected %d seats, got %d", n, total)
	}
}

func TestSeatFinder_Find(t *testing.T) {
	t.Parallel()

	venue := mustVenue(t, stepRows, nil)
	empty := model.NewSeatMap()

	tests := []struct {
		name string
		n    int
		want []model.Block
	}{
		{name: "one seat goes to the shortest row", n: 1, want: []model.Block{{Row: 0, Start: 0, Length: 1}}},
		{name: "five fills the first row", n: 5, want: []model.Block{{Row: 0, Start: 0, Length: 5}}},
		{name: "six fits the second row exactly", n: 6, want: []model.Block{{Row: 1, Start: 0, Length: 6}}},
		{name: "ten needs the longest row", n: 10, want: []model.Block{{Row: 5, Start: 0, Length: 10}}},
		{name: "eleven splits into six and five", n: 11, want: []model.Block{
			{Row: 1, Start: 0, Length: 6},
			{Row: 0, Start: 0, Length: 5},
		}},
		{name: "twelve splits into two sixes", n: 12, want: []model.Block{
			{Row: 1, Start: 0, Length: 6},
			{Row: 2, Start: 0, Length: 6},
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			blocks, err := newFinder().Find(venue, empty, tc.n)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(blocks) != len(tc.want) {
				t.Fatalf("expected %d blocks, got %+v", len(tc.want), blocks)
			}
			for i := range tc.want {
				if blocks[i] != tc.want[i] {
					t.Fatalf("block %d: expected %+v, got %+v", i, tc.want[i], blocks[i])
				}
			}
			assertBlocks(t, venue, empty, blocks, tc.n)
		})
	}
}

func TestSeatFinder_HotSpot(t *testing.T) {
	t.Parallel()

	values := model.UniformValues(stepRows, 1)
	values[3][5] = 2
	venue := mustVenue(t, stepRows, values)

	blocks, err := newFinder().Find(venue, model.NewSeatMap(), 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := model.Block{Row: 3, Start: 5, Length: 1}
	if len(blocks) != 1 || blocks[0] != want {
		t.Fatalf("expected %+v, got %+v", want, blocks)
	}
}

func TestSeatFinder_BestWindowInsideRun(t *testing.T) {
	t.Parallel()

	values := [][]float64{{1, 1, 3, 4, 1, 1, 1, 1}}
	venue := mustVenue(t, []int{8}, values)

	blocks, err := newFinder().Find(venue, model.NewSeatMap(), 3)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := model.Block{Row: 0, Start: 1, Length: 3}
	if blocks[0] != want {
		t.Fatalf("expected %+v, got %+v", want, blocks[0])
	}
}

func TestSeatFinder_SkipsOccupiedSeats(t *testing.T) {
	t.Parallel()

	venue := mustVenue(t, stepRows, nil)
	seats := seatMapFrom([][]int{{0, 0, 1}})

	blocks, err := newFinder().Find(venue, seats, 5)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := model.Block{Row: 1, Start: 0, Length: 5}
	if len(blocks) != 1 || blocks[0] != want {
		t.Fatalf("expected %+v, got %+v", want, blocks)
	}
}

func TestSeatFinder_FullFill(t *testing.T) {
	t.Parallel()

	venue := mustVenue(t, stepRows, nil)
	empty := model.NewSeatMap()

	blocks, err := newFinder().Find(venue, empty, 45)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(blocks) != 10 {
		t.Fatalf("expected 10 blocks, got %d: %+v", len(blocks), blocks)
	}
	assertBlocks(t, venue, empty, blocks, 45)
}

func TestSeatFinder_PotHoles(t *testing.T) {
	t.Parallel()

	venue := mustVenue(t, stepRows, nil)
	seats := seatMapFrom([][]int{
		{0, 1, 0, 2, 0},
		{1, 0, 2, 0, 1, 0},
		{0, 2, 0, 1, 0, 1, 0},
		{2, 0, 1, 0, 1, 0, 1, 0},
		{0, 1, 0, 1, 0, 2, 0, 1, 0},
		{1, 0, 1, 0, 2, 0, 1, 0, 1, 0},
	})

	blocks, err := newFinder().Find(venue, seats, 24)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(blocks) != 24 {
		t.Fatalf("expected 24 single seat blocks, got %d", len(blocks))
	}
	assertBlocks(t, venue, seats, blocks, 24)
}

func TestSeatFinder_Errors(t *testing.T) {
	t.Parallel()

	venue := mustVenue(t, stepRows, nil)

	if _, err := newFinder().Find(venue, model.NewSeatMap(), 1000); !errors.Is(err, model.ErrNoSeatsAvailable) {
		t.Fatalf("expected ErrNoSeatsAvailable, got %v", err)
	}
	if _, err := newFinder().Find(venue, model.NewSeatMap(), 0); !errors.Is(err, model.ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
}

func TestSeatFinder_DeterministicWithSeed(t *testing.T) {
	t.Parallel()

	venue := mustVenue(t, []int{20, 20, 20, 20}, nil)
	a, err := New(random.NewSeeded(5), quietLogger()).Find(venue, model.NewSeatMap(), 7)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	b, _ := New(random.NewSeeded(5), quietLogger()).Find(venue, model.NewSeatMap(), 7)
	if len(a) != len(b) || a[0] != b[0] {
		t.Fatalf("expected identical placements, got %+v and %+v", a, b)
	}
}

func TestSplitRun_RightResidual(t *testing.T) {
	runs := []run{{row: 2, start: 0, length: 10}}
	got := splitRun(runs, 0, model.Block{Row: 2, Start: 2, Length: 3})
	if len(got) != 2 {
		t.Fatalf("expected two residual runs, got %+v", got)
	}
	if got[0] != (run{row: 2, start: 0, length: 2}) {
		t.Fatalf("unexpected left residual %+v", got[0])
	}
	if got[1] != (run{row: 2, start: 5, length: 5}) {
		t.Fatalf("unexpected right residual %+v", got[1])
	}
}
