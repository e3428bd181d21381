package cycle

import (
	"math/rand"

	"github.com/aescanero/hubcycle/pkg/domain"
)

// Bounds is the region approach targets are drawn from. X and Y are sampled
// uniformly on every call; Z and the orientation are fixed.
type Bounds struct {
	XMin, XMax  float64
	YMin, YMax  float64
	Z           float64
	Orientation [3]float64
}

// DefaultBounds is the pick area shared by both agents of the cell.
func DefaultBounds() Bounds {
	return Bounds{
		XMin:        -0.6,
		XMax:        -0.4,
		YMin:        0.4,
		YMax:        0.6,
		Z:           0.05,
		Orientation: [3]float64{0.0, 3.14, 0.0},
	}
}

// TargetGenerator produces approach poses. It is not safe for concurrent use;
// the scheduler loop is its only caller.
type TargetGenerator struct {
	bounds   Bounds
	perAgent map[string]Bounds
	rng      *rand.Rand
}

// NewTargetGenerator creates a generator over bounds using rng.
func NewTargetGenerator(bounds Bounds, rng *rand.Rand) *TargetGenerator {
	return &TargetGenerator{
		bounds:   bounds,
		perAgent: make(map[string]Bounds),
		rng:      rng,
	}
}

// SetAgentBounds overrides the region for one agent.
func (g *TargetGenerator) SetAgentBounds(agent string, b Bounds) {
	g.perAgent[agent] = b
}

// Acquire returns a fresh target pose for agent.
func (g *TargetGenerator) Acquire(agent string) domain.Pose {
	b, ok := g.perAgent[agent]
	if !ok {
		b = g.bounds
	}
	return domain.Pose{
		uniform(g.rng, b.XMin, b.XMax),
		uniform(g.rng, b.YMin, b.YMax),
		b.Z,
		b.Orientation[0],
		b.Orientation[1],
		b.Orientation[2],
	}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + rng.Float64()*(hi-lo)
}
