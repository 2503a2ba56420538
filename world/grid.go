// Package world implements the environment grid: a toroidal cell
// lattice with biomes, per-cell temperature, and regenerating resource
// nodes.
package world

import (
	"fmt"
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/veld/config"
)

// BiomeMode selects how cells are assigned a biome at construction.
type BiomeMode uint8

const (
	// QuadrantBiomes partitions the grid into four quadrants, one biome each.
	QuadrantBiomes BiomeMode = iota
	// NoiseBiomes assigns biomes from thresholded opensimplex noise.
	NoiseBiomes
)

// PlacementMode selects the resource node placement strategy.
type PlacementMode uint8

const (
	PlaceRandom PlacementMode = iota
	PlaceManual
	PlaceClustered
)

// Coord is a grid coordinate.
type Coord struct {
	X, Y int
}

// Params holds the grid construction parameters.
type Params struct {
	Width, Height int

	BiomeMode  BiomeMode
	NoiseScale float64
	Seed       int64

	SeasonalPeriod     float64 // ticks per full seasonal cycle
	SeasonalAmplitude  float64
	TempNoiseScale     float64
	TempNoiseAmplitude float64 // 0 disables micro-variation

	Climates [NumBiomes]Climate

	Placement          PlacementMode
	NodeDensity        float64
	ManualNodes        []Coord
	ClusterCount       int
	ClusterRadius      int
	ClusterMinDist     float64
	ClusterRetryBudget int

	ReplenishRate float64
	CellMax       float64
	NodeBaseline  float64
}

// ParamsFromConfig resolves the validated configuration into grid params.
func ParamsFromConfig(cfg *config.Config) (Params, error) {
	p := Params{
		Width:              cfg.World.Width,
		Height:             cfg.World.Height,
		NoiseScale:         cfg.World.NoiseScale,
		Seed:               cfg.World.Seed,
		SeasonalPeriod:     cfg.World.SeasonalPeriod,
		SeasonalAmplitude:  cfg.World.SeasonalAmplitude,
		TempNoiseScale:     cfg.World.TempNoiseScale,
		TempNoiseAmplitude: cfg.World.TempNoiseAmplitude,
		NodeDensity:        cfg.Resources.NodeDensity,
		ClusterCount:       cfg.Resources.ClusterCount,
		ClusterRadius:      cfg.Resources.ClusterRadius,
		ClusterMinDist:     cfg.Resources.ClusterMinDist,
		ClusterRetryBudget: cfg.Resources.ClusterRetryBudget,
		ReplenishRate:      cfg.Resources.ReplenishRate,
		CellMax:            cfg.Resources.CellMax,
		NodeBaseline:       cfg.Resources.NodeBaseline,
	}

	switch cfg.World.BiomeMode {
	case "quadrant":
		p.BiomeMode = QuadrantBiomes
	case "noise":
		p.BiomeMode = NoiseBiomes
	default:
		return Params{}, fmt.Errorf("world: unknown biome_mode %q", cfg.World.BiomeMode)
	}

	switch cfg.Resources.Placement {
	case "random":
		p.Placement = PlaceRandom
	case "manual":
		p.Placement = PlaceManual
	case "clustered":
		p.Placement = PlaceClustered
	default:
		return Params{}, fmt.Errorf("world: unknown placement %q", cfg.Resources.Placement)
	}

	for i, name := range []string{"plains", "forest", "desert", "tundra"} {
		bc, ok := cfg.World.Biomes[name]
		if !ok {
			return Params{}, fmt.Errorf("world: missing biome %q", name)
		}
		p.Climates[i] = Climate{BaseTemp: bc.BaseTemp, Amplitude: bc.Amplitude, MoveCost: bc.MoveCost}
	}

	for _, c := range cfg.Resources.ManualNodes {
		p.ManualNodes = append(p.ManualNodes, Coord{X: c.X, Y: c.Y})
	}

	return p, nil
}

// Cell is one lattice cell. Resources stays within [0, CellMax];
// non-node cells never self-replenish.
type Cell struct {
	Biome       Biome
	Resources   float64
	Node        bool
	Temperature float64
}

// Grid is the environment lattice. Coordinates wrap toroidally.
type Grid struct {
	p     Params
	cells []Cell
	nodes map[Coord]struct{} // authoritative set of replenishing cells
	noise opensimplex.Noise
}

// New builds the grid: biome assignment, initial temperatures, and node
// placement per the configured strategy.
func New(p Params, rng *rand.Rand) (*Grid, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("world: grid dimensions must be positive, got %dx%d", p.Width, p.Height)
	}

	g := &Grid{
		p:     p,
		cells: make([]Cell, p.Width*p.Height),
		nodes: make(map[Coord]struct{}),
		noise: opensimplex.NewNormalized(p.Seed),
	}

	g.assignBiomes()
	if err := g.placeNodes(rng); err != nil {
		return nil, err
	}
	g.updateTemperatures(0)

	return g, nil
}

// Width returns the grid width in cells.
func (g *Grid) Width() int { return g.p.Width }

// Height returns the grid height in cells.
func (g *Grid) Height() int { return g.p.Height }

// Wrap reduces a coordinate into [0,w)×[0,h).
func (g *Grid) Wrap(x, y int) (int, int) {
	x = ((x % g.p.Width) + g.p.Width) % g.p.Width
	y = ((y % g.p.Height) + g.p.Height) % g.p.Height
	return x, y
}

// At returns the cell at the toroidally wrapped coordinate. It always
// returns a valid cell.
func (g *Grid) At(x, y int) *Cell {
	x, y = g.Wrap(x, y)
	return &g.cells[y*g.p.Width+x]
}

// CellAt is the defensive unwrapped accessor: out-of-range coordinates
// return (nil, false) instead of wrapping. Toroidal arithmetic should
// make that unreachable, but callers handling external input use this.
func (g *Grid) CellAt(x, y int) (*Cell, bool) {
	if x < 0 || x >= g.p.Width || y < 0 || y >= g.p.Height {
		return nil, false
	}
	return &g.cells[y*g.p.Width+x], true
}

// Climate returns the climate table entry for a biome.
func (g *Grid) Climate(b Biome) Climate { return g.p.Climates[b] }

// MoveCost returns the movement cost multiplier of the (wrapped) cell.
func (g *Grid) MoveCost(x, y int) float64 {
	return g.p.Climates[g.At(x, y).Biome].MoveCost
}

// Update advances the environment one tick: recomputes the global
// seasonal offset and every cell's temperature, then replenishes nodes.
func (g *Grid) Update(tick int64) {
	g.updateTemperatures(tick)

	for coord := range g.nodes {
		c := g.At(coord.X, coord.Y)
		c.Resources += g.p.ReplenishRate
		if c.Resources > g.p.CellMax {
			c.Resources = g.p.CellMax
		}
	}
}

func (g *Grid) updateTemperatures(tick int64) {
	phase := 0.0
	if g.p.SeasonalPeriod > 0 {
		phase = 2 * math.Pi * float64(tick) / g.p.SeasonalPeriod
	}
	seasonal := g.p.SeasonalAmplitude * math.Sin(phase)

	for y := 0; y < g.p.Height; y++ {
		for x := 0; x < g.p.Width; x++ {
			c := &g.cells[y*g.p.Width+x]
			clim := g.p.Climates[c.Biome]
			// Biome fluctuation runs at double the seasonal frequency,
			// phase-shifted per biome so regions do not swing in lockstep.
			local := clim.Amplitude * math.Sin(2*phase+float64(c.Biome)*math.Pi/2)
			t := clim.BaseTemp + seasonal + local
			if g.p.TempNoiseAmplitude > 0 {
				n := g.noise.Eval3(float64(x)*g.p.TempNoiseScale, float64(y)*g.p.TempNoiseScale, phase)
				t += (n*2 - 1) * g.p.TempNoiseAmplitude
			}
			c.Temperature = t
		}
	}
}

// ConsumeResourceAt removes up to amount from the (wrapped) cell and
// returns the amount actually consumed. Callers must use the return
// value, not the requested amount, to compute energy gain.
func (g *Grid) ConsumeResourceAt(x, y int, amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	c := g.At(x, y)
	consumed := amount
	if c.Resources < consumed {
		consumed = c.Resources
	}
	c.Resources -= consumed
	return consumed
}

// ToggleNode flips the (wrapped) cell's node status and resets its
// resource amount to the node/non-node baseline. The node set is the
// only source of truth for which cells replenish.
func (g *Grid) ToggleNode(x, y int) {
	x, y = g.Wrap(x, y)
	c := &g.cells[y*g.p.Width+x]
	coord := Coord{X: x, Y: y}
	if c.Node {
		c.Node = false
		c.Resources = 0
		delete(g.nodes, coord)
	} else {
		c.Node = true
		c.Resources = g.p.NodeBaseline
		g.nodes[coord] = struct{}{}
	}
}

// Nodes returns a copy of the current node coordinate set.
func (g *Grid) Nodes() []Coord {
	out := make([]Coord, 0, len(g.nodes))
	for c := range g.nodes {
		out = append(out, c)
	}
	return out
}

// NodeCount returns the number of resource nodes.
func (g *Grid) NodeCount() int { return len(g.nodes) }

// TotalResources sums the resource pool across all cells.
func (g *Grid) TotalResources() float64 {
	var total float64
	for i := range g.cells {
		total += g.cells[i].Resources
	}
	return total
}

// EachCell iterates all cells in row-major order. Read-only access for
// the drawing collaborator; callers must not retain the pointer.
func (g *Grid) EachCell(fn func(x, y int, c *Cell)) {
	for y := 0; y < g.p.Height; y++ {
		for x := 0; x < g.p.Width; x++ {
			fn(x, y, &g.cells[y*g.p.Width+x])
		}
	}
}

// assignBiomes gives every cell exactly one biome.
func (g *Grid) assignBiomes() {
	halfW := g.p.Width / 2
	halfH := g.p.Height / 2

	for y := 0; y < g.p.Height; y++ {
		for x := 0; x < g.p.Width; x++ {
			var b Biome
			switch g.p.BiomeMode {
			case NoiseBiomes:
				n := g.noise.Eval2(float64(x)*g.p.NoiseScale, float64(y)*g.p.NoiseScale)
				b = Biome(int(n * float64(NumBiomes)))
				if b >= NumBiomes {
					b = NumBiomes - 1
				}
			default:
				quad := 0
				if x >= halfW {
					quad++
				}
				if y >= halfH {
					quad += 2
				}
				b = Biome(quad)
			}
			g.cells[y*g.p.Width+x].Biome = b
		}
	}
}
