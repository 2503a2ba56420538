package systems

import (
	"math"
	"math/rand"
)

// fleeEpsilon avoids division by zero for a co-located threat.
const fleeEpsilon = 0.001

// Threat is a nearby predator with its precomputed toroidal delta from
// the fleeing agent.
type Threat struct {
	DX, DY int
	DistSq int
}

// FleeStep combines all threats into a single step away from them, each
// weighted inversely by squared distance. The summed vector is rounded
// and clamped to a single-cell step per axis; distant threats can round
// to a null step.
func FleeStep(threats []Threat) (dx, dy int) {
	var vx, vy float64
	for _, t := range threats {
		w := 1.0 / (float64(t.DistSq) + fleeEpsilon)
		vx -= float64(t.DX) * w
		vy -= float64(t.DY) * w
	}
	return clampStep(int(math.Round(vx))), clampStep(int(math.Round(vy)))
}

// PursueStep steps toward a target delta, bounded to one cell per axis.
func PursueStep(dx, dy int) (int, int) {
	return sign(dx), sign(dy)
}

// RandomStep is a uniform single-cell step in each axis, including the
// null step.
func RandomStep(rng *rand.Rand) (dx, dy int) {
	return rng.Intn(3) - 1, rng.Intn(3) - 1
}

func clampStep(v int) int {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
