package rng

import (
	"hash/fnv"
	"math/rand"
	"sync"
	"time"
)

// Source is the random draw used by generators and simulators.
// *rand.Rand satisfies it.
type Source interface {
	Float64() float64
	Intn(n int) int
}

type Mode int

const (
	Deterministic Mode = iota
	Real
)

// Factory hands out named random streams. In Deterministic mode every stream
// is derived from the base seed, so runs are reproducible.
type Factory struct {
	baseSeed int64
	mode     Mode

	mu      sync.Mutex
	streams map[string]*rand.Rand
}

func New(mode Mode, seed int64) *Factory {
	if mode == Real {
		seed = time.Now().UnixNano()
	}
	return &Factory{
		baseSeed: seed,
		mode:     mode,
		streams:  make(map[string]*rand.Rand),
	}
}

// R returns the named stream, creating it on first use. A stream is not safe
// for concurrent use; give each goroutine its own name.
func (f *Factory) R(name string) *rand.Rand {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r, ok := f.streams[name]; ok {
		return r
	}
	r := rand.New(rand.NewSource(deriveSeed(f.baseSeed, name)))
	f.streams[name] = r
	return r
}

// Fresh returns a new uncached stream seeded like R(name). Use it for short
// lived owners such as connections, which R would otherwise keep forever.
func (f *Factory) Fresh(name string) *rand.Rand {
	return rand.New(rand.NewSource(deriveSeed(f.baseSeed, name)))
}

func (f *Factory) Mode() Mode { return f.mode }

func deriveSeed(base int64, name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64()) ^ base
}

// Uniform draws from [lo, hi).
func Uniform(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}

// IntBetween draws an integer from [lo, hi] inclusive.
func IntBetween(src Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + src.Intn(hi-lo+1)
}
