package dice

import (
	"math/rand"
	"sync"
	"time"
)

// Source is the randomness consumed by the progression engine.
// *rand.Rand satisfies it.
type Source interface {
	Intn(n int) int
	Float64() float64
}

// New returns a seeded source. A zero seed is replaced with the clock.
func New(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Locked wraps a Source for use from many goroutines.
type Locked struct {
	mu  sync.Mutex
	src *rand.Rand
}

func NewLocked(seed int64) *Locked {
	return &Locked{src: New(seed)}
}

func (l *Locked) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Intn(n)
}

func (l *Locked) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Float64()
}

// Int63 draws a seed for a derived source.
func (l *Locked) Int63() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Int63()
}

// Between returns a uniform integer in [lo, hi].
func Between(src Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	if s, ok := src.(*Script); ok {
		return s.face(lo, hi)
	}
	return lo + src.Intn(hi-lo+1)
}

// Uniform returns a float in [lo, hi).
func Uniform(src Source, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + src.Float64()*(hi-lo)
}

func D20(src Source) int  { return Between(src, 1, 20) }
func D100(src Source) int { return Between(src, 1, 100) }
