package imagegen

import (
	"crypto/rand"
	"math/big"
)

// MaxSeed is the largest seed drawn; seeds stay within a signed 32-bit
// range that every seeded backend accepts.
const MaxSeed = 2147483647

// SeedAllocator draws one consistency seed per batch.
type SeedAllocator struct {
	draw func() (int64, error)
}

// NewSeedAllocator returns an allocator backed by crypto/rand.
func NewSeedAllocator() *SeedAllocator {
	return &SeedAllocator{draw: cryptoSeed}
}

// NewSeedAllocatorWithSource uses draw instead of crypto/rand. draw must
// return values in [1, MaxSeed].
func NewSeedAllocatorWithSource(draw func() (int64, error)) *SeedAllocator {
	return &SeedAllocator{draw: draw}
}

// Allocate returns a fresh seed in [1, MaxSeed] when p honors seeds, and
// nil otherwise. Every slide of the batch shares the returned value.
func (a *SeedAllocator) Allocate(p Provider) *int64 {
	if p == nil || !p.SupportsSeed() {
		return nil
	}
	seed, err := a.draw()
	if err != nil || seed < 1 || seed > MaxSeed {
		// crypto/rand failing is close to impossible; a fixed seed still
		// keeps the batch consistent.
		seed = 42
	}
	return &seed
}

func cryptoSeed() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(MaxSeed))
	if err != nil {
		return 0, err
	}
	return n.Int64() + 1, nil
}
