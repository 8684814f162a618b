package status

import (
	"math"
	"sync/atomic"
)

// Gauge is a float64 level readable without locks
// Zero value is ready to use (represents 0.0)
type Gauge struct {
	bits atomic.Uint64
}

// Set stores the level
func (g *Gauge) Set(val float64) {
	g.bits.Store(math.Float64bits(val))
}

// Get loads the level
func (g *Gauge) Get() float64 {
	return math.Float64frombits(g.bits.Load())
}

// Add adjusts the level by delta and returns the new level
func (g *Gauge) Add(delta float64) float64 {
	for {
		old := g.bits.Load()
		next := math.Float64frombits(old) + delta
		if g.bits.CompareAndSwap(old, math.Float64bits(next)) {
			return next
		}
	}
}
