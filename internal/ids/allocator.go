// Package ids hands out reservation identifiers.  Hold ids are shown to
// customers, so they are drawn at random instead of from a sequence that
// could be guessed.
package ids

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/iliyamo/seat-hold-service/internal/model"
	"github.com/iliyamo/seat-hold-service/internal/random"
)

const maxHoldIDTries = 32

// Allocator manages hold ids and internal reservation ids.
type Allocator struct {
	src    random.Source
	mu     sync.Mutex
	live   map[int]struct{}
	nextID atomic.Int64
}

// NewAllocator returns an allocator drawing hold ids from src.
func NewAllocator(src random.Source) *Allocator {
	a := &Allocator{src: src, live: make(map[int]struct{})}
	a.nextID.Store(1)
	return a
}

// NextHoldID returns a random non-negative 31-bit id that is not currently
// live.  It gives up with ErrInternal after a bounded number of collisions.
func (a *Allocator) NextHoldID() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := 0; i < maxHoldIDTries; i++ {
		id := a.src.Intn(math.MaxInt32)
		if _, used := a.live[id]; !used {
			a.live[id] = struct{}{}
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: failed to generate hold id after %d tries", model.ErrInternal, maxHoldIDTries)
}

// Release returns a hold id to the pool.  Releasing an unknown id is a no-op.
func (a *Allocator) Release(id int) {
	a.mu.Lock()
	delete(a.live, id)
	a.mu.Unlock()
}

// Live returns the number of hold ids currently allocated.
func (a *Allocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// NextReservationID returns the next internal reservation id.
func (a *Allocator) NextReservationID() int64 {
	return a.nextID.Add(1) - 1
}
