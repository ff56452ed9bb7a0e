// Package random provides the random sources used for hold ids,
// confirmation tokens and seat finder tie-breaks.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"
	mrand "math/rand/v2"
	"sync"
)

// Source is a goroutine-safe source of random ints and bytes.
type Source interface {
	// Intn returns a uniform value in [0, n).  n must be positive.
	Intn(n int) int
	// Read fills b with random bytes.
	Read(b []byte) error
}

type cryptoSource struct{}

// NewCrypto returns a Source backed by crypto/rand.
func NewCrypto() Source { return cryptoSource{} }

func (cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic(fmt.Sprintf("random: invalid bound %d", n))
	}
	v, err := crand.Int(crand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		panic(fmt.Sprintf("random: crypto source failed: %v", err))
	}
	return int(v.Int64())
}

func (cryptoSource) Read(b []byte) error {
	if _, err := crand.Read(b); err != nil {
		return fmt.Errorf("random: read: %w", err)
	}
	return nil
}

// Seeded is a deterministic Source for tests.  The same seed always yields
// the same sequence.
type Seeded struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSeeded returns a deterministic source seeded with seed.
func NewSeeded(seed uint64) *Seeded {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:8], seed)
	return &Seeded{rng: mrand.New(mrand.NewChaCha8(key))}
}

func (s *Seeded) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

func (s *Seeded) Read(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range b {
		b[i] = byte(s.rng.Uint32())
	}
	return nil
}
