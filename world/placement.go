package world

import (
	"log/slog"
	"math/rand"
)

// placeNodes runs the configured placement strategy and initializes
// every node cell to the node baseline.
func (g *Grid) placeNodes(rng *rand.Rand) error {
	switch g.p.Placement {
	case PlaceManual:
		g.placeManual()
	case PlaceClustered:
		g.placeClustered(rng)
	default:
		g.placeRandom(rng)
	}

	for coord := range g.nodes {
		c := g.At(coord.X, coord.Y)
		c.Node = true
		c.Resources = g.p.NodeBaseline
	}
	return nil
}

// placeRandom makes each cell a node independently at the configured density.
func (g *Grid) placeRandom(rng *rand.Rand) {
	for y := 0; y < g.p.Height; y++ {
		for x := 0; x < g.p.Width; x++ {
			if rng.Float64() < g.p.NodeDensity {
				g.nodes[Coord{X: x, Y: y}] = struct{}{}
			}
		}
	}
}

// placeManual uses exactly the caller-supplied coordinates, wrapped.
func (g *Grid) placeManual() {
	for _, c := range g.p.ManualNodes {
		x, y := g.Wrap(c.X, c.Y)
		g.nodes[Coord{X: x, Y: y}] = struct{}{}
	}
}

// placeClustered draws cluster centers by rejection sampling with a
// minimum pairwise distance. If the retry budget runs out it proceeds
// with fewer clusters than requested; degradation is logged, not fatal.
func (g *Grid) placeClustered(rng *rand.Rand) {
	minDistSq := g.p.ClusterMinDist * g.p.ClusterMinDist

	var centers []Coord
	attempts := 0
	for len(centers) < g.p.ClusterCount && attempts < g.p.ClusterRetryBudget {
		attempts++
		cand := Coord{X: rng.Intn(g.p.Width), Y: rng.Intn(g.p.Height)}

		ok := true
		for _, c := range centers {
			dx, dy := g.toroidalDelta(cand, c)
			if float64(dx*dx+dy*dy) < minDistSq {
				ok = false
				break
			}
		}
		if ok {
			centers = append(centers, cand)
		}
	}

	if len(centers) < g.p.ClusterCount {
		slog.Warn("cluster placement degraded",
			"requested", g.p.ClusterCount,
			"placed", len(centers),
			"retry_budget", g.p.ClusterRetryBudget,
		)
	}

	r := g.p.ClusterRadius
	for _, c := range centers {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if dx*dx+dy*dy > r*r {
					continue
				}
				x, y := g.Wrap(c.X+dx, c.Y+dy)
				g.nodes[Coord{X: x, Y: y}] = struct{}{}
			}
		}
	}
}

// toroidalDelta returns the shortest wrapped delta between two coordinates.
func (g *Grid) toroidalDelta(a, b Coord) (dx, dy int) {
	dx = b.X - a.X
	dy = b.Y - a.Y
	if dx > g.p.Width/2 {
		dx -= g.p.Width
	} else if dx < -g.p.Width/2 {
		dx += g.p.Width
	}
	if dy > g.p.Height/2 {
		dy -= g.p.Height
	} else if dy < -g.p.Height/2 {
		dy += g.p.Height
	}
	return dx, dy
}
