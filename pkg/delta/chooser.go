package delta

import (
	"math/rand/v2"
	"sync"
)

// Chooser picks an index from a discrete weight distribution.
type Chooser interface {
	Choose(weights []float64) int
}

// WeightedChooser draws proportionally to the weights. Weights need not sum
// to one; a distribution with no positive weight is treated as uniform.
type WeightedChooser struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewWeightedChooser returns a chooser with a deterministic seed.
func NewWeightedChooser(seed uint64) *WeightedChooser {
	return &WeightedChooser{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Choose implements Chooser.
func (c *WeightedChooser) Choose(weights []float64) int {
	if len(weights) == 0 {
		return 0
	}
	var total float64
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if total <= 0 {
		return c.rng.IntN(len(weights))
	}
	r := c.rng.Float64() * total
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		if r < w {
			return i
		}
		r -= w
	}
	return len(weights) - 1
}

// FirstChoice always picks the first option. The validator uses it to
// resolve rng operations to a representative value.
type FirstChoice struct{}

// Choose implements Chooser.
func (FirstChoice) Choose([]float64) int { return 0 }

// FixedChoice always picks the same index, clamped to the range.
type FixedChoice int

// Choose implements Chooser.
func (f FixedChoice) Choose(weights []float64) int {
	i := int(f)
	if i < 0 {
		return 0
	}
	if i >= len(weights) {
		return len(weights) - 1
	}
	return i
}
