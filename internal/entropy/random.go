// Package entropy provides the random source threaded through the simulation.
// Every stochastic decision draws from an injected Source so that a seeded
// game replays identically.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
)

// Source is the random number service consumed by the simulation.
type Source interface {
	Float64() float64 // uniform in [0, 1)
	Intn(n int) int   // uniform in [0, n); n must be > 0
}

// Rand is a seedable Source. Not safe for concurrent use; the engine only
// touches it from inside a tick.
type Rand struct {
	seed int64
	r    *mrand.Rand
}

// New returns a Source seeded with seed. A zero seed draws one from crypto/rand.
func New(seed int64) *Rand {
	if seed == 0 {
		seed = CryptoSeed()
	}
	return &Rand{seed: seed, r: mrand.New(mrand.NewSource(seed))}
}

// Seed returns the seed the source was created with.
func (r *Rand) Seed() int64 { return r.seed }

func (r *Rand) Float64() float64 { return r.r.Float64() }

func (r *Rand) Intn(n int) int { return r.r.Intn(n) }

// Between returns a uniform value in [lo, hi).
func Between(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}

// Signed returns a uniform value in [-1, 1).
func Signed(src Source) float64 {
	return src.Float64()*2 - 1
}

// CryptoSeed returns a non-zero seed from crypto/rand.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen; fall back to a fixed seed.
		return 1
	}
	seed := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if seed == 0 {
		seed = 1
	}
	return seed
}

// Fixed is a Source that replays a fixed sequence of floats, cycling when
// exhausted. Intn maps the next float onto [0, n). Useful for pinning down
// jitter in scenarios.
type Fixed struct {
	Values []float64
	next   int
}

func (f *Fixed) Float64() float64 {
	if len(f.Values) == 0 {
		return 0.5
	}
	v := f.Values[f.next%len(f.Values)]
	f.next++
	return v
}

func (f *Fixed) Intn(n int) int {
	i := int(f.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
