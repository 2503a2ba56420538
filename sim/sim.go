// Package sim is the tick orchestrator: it owns the entity store, the
// environment grid, and the strict per-tick pipeline, and exposes the
// read-only iteration surface outer layers consume.
package sim

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/veld/components"
	"github.com/pthm-cable/veld/config"
	"github.com/pthm-cable/veld/genome"
	"github.com/pthm-cable/veld/systems"
	"github.com/pthm-cable/veld/telemetry"
	"github.com/pthm-cable/veld/world"
)

// State is the orchestrator lifecycle state.
type State uint8

const (
	StateIdle State = iota
	StateRunning
)

// String returns the state name.
func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

// StopCause records why the last run stopped.
type StopCause uint8

const (
	CauseNone StopCause = iota
	CauseManual
	CauseExtinction // no agents left at all
	CauseNoPrey     // predators alive but nothing to hunt
)

// String returns the cause name.
func (c StopCause) String() string {
	switch c {
	case CauseManual:
		return "manual"
	case CauseExtinction:
		return "extinction"
	case CauseNoPrey:
		return "no-prey"
	default:
		return "none"
	}
}

// AgentView is a read-only snapshot of one agent for external iteration.
type AgentView struct {
	ID     uint64
	Kind   components.Kind
	X, Y   int
	Energy float64
	Age    int
	Genome genome.Genome
}

// Simulation holds the complete simulation state.
type Simulation struct {
	cfg *config.Config
	rng *rand.Rand

	world  *ecs.World
	mapper *ecs.Map4[components.Position, components.Energy, components.Agent, components.Genotype]
	filter *ecs.Filter4[components.Position, components.Energy, components.Agent, components.Genotype]

	posMap    *ecs.Map1[components.Position]
	energyMap *ecs.Map1[components.Energy]
	agentMap  *ecs.Map1[components.Agent]
	genoMap   *ecs.Map1[components.Genotype]

	grid      *world.Grid
	occupancy *systems.OccupancyGrid
	tempRule  systems.TempRule

	preySchema *genome.Schema
	predSchema *genome.Schema
	preyIdx    traitIndexes
	predIdx    traitIndexes

	collector *telemetry.Collector
	lastStats telemetry.TickStats

	state     State
	stopCause StopCause
	tick      int64
	nextID    uint64
	numPrey   int
	numPred   int
}

// New creates a simulation from a validated configuration. A zero world
// seed is replaced with a wall-clock seed.
func New(cfg *config.Config) (*Simulation, error) {
	seed := cfg.World.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	slog.Info("seeding simulation", "seed", seed)
	rng := rand.New(rand.NewSource(seed))

	params, err := world.ParamsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	params.Seed = seed

	grid, err := world.New(params, rng)
	if err != nil {
		return nil, err
	}

	s := &Simulation{
		cfg:        cfg,
		rng:        rng,
		world:      ecs.NewWorld(),
		grid:       grid,
		occupancy:  systems.NewOccupancyGrid(grid.Width(), grid.Height()),
		preySchema: preySchema(cfg),
		predSchema: predatorSchema(cfg),
		collector:  telemetry.NewCollector(),
		tempRule: systems.TempRule{
			ColdBelow:       cfg.Temperature.ColdBelow,
			HotAbove:        cfg.Temperature.HotAbove,
			MatchDiscount:   cfg.Temperature.MatchDiscount,
			BoundaryPenalty: cfg.Temperature.BoundaryPenalty,
			MismatchPenalty: cfg.Temperature.MismatchPenalty,
		},
	}
	s.initMappers()
	s.preyIdx = indexesFor(s.preySchema)
	s.predIdx = indexesFor(s.predSchema)

	s.seedPopulation()

	return s, nil
}

func (s *Simulation) initMappers() {
	s.mapper = ecs.NewMap4[components.Position, components.Energy, components.Agent, components.Genotype](s.world)
	s.filter = ecs.NewFilter4[components.Position, components.Energy, components.Agent, components.Genotype](s.world)
	s.posMap = ecs.NewMap1[components.Position](s.world)
	s.energyMap = ecs.NewMap1[components.Energy](s.world)
	s.agentMap = ecs.NewMap1[components.Agent](s.world)
	s.genoMap = ecs.NewMap1[components.Genotype](s.world)
}

// seedPopulation spawns the initial agents at random positions with
// genomes drawn around the configured seed means.
func (s *Simulation) seedPopulation() {
	for i := 0; i < s.cfg.Derived.InitialPrey; i++ {
		g := s.preySchema.Seed(s.rng, s.cfg.Traits.SeedMeans, s.cfg.Traits.SeedSpread, s.cfg.Traits.TempHighBias)
		s.spawnAgent(components.KindPrey, s.rng.Intn(s.grid.Width()), s.rng.Intn(s.grid.Height()), g)
	}
	for i := 0; i < s.cfg.Derived.InitialPred; i++ {
		g := s.predSchema.Seed(s.rng, s.cfg.Traits.SeedMeans, s.cfg.Traits.SeedSpread, s.cfg.Traits.TempHighBias)
		s.spawnAgent(components.KindPredator, s.rng.Intn(s.grid.Width()), s.rng.Intn(s.grid.Height()), g)
	}
	slog.Info("population seeded", "prey", s.numPrey, "predators", s.numPred)
}

// spawnAgent creates one agent entity with a fresh identity.
func (s *Simulation) spawnAgent(kind components.Kind, x, y int, g genome.Genome) ecs.Entity {
	sp := s.species(kind)

	id := s.nextID
	s.nextID++

	pos := components.Position{X: x, Y: y}
	energy := components.Energy{Value: sp.InitialEnergy, Max: sp.MaxEnergy, Alive: true}
	agent := components.Agent{ID: id, Kind: kind}
	geno := components.Genotype{G: g}

	e := s.mapper.NewEntity(&pos, &energy, &agent, &geno)

	if kind == components.KindPrey {
		s.numPrey++
	} else {
		s.numPred++
	}
	return e
}

// species returns the kind's lifecycle parameters.
func (s *Simulation) species(kind components.Kind) *config.SpeciesConfig {
	if kind == components.KindPredator {
		return &s.cfg.Predator
	}
	return &s.cfg.Prey
}

// indexes returns the kind's cached trait positions.
func (s *Simulation) indexes(kind components.Kind) traitIndexes {
	if kind == components.KindPredator {
		return s.predIdx
	}
	return s.preyIdx
}

// Start transitions Idle to Running. Running is a no-op.
func (s *Simulation) Start() {
	if s.state == StateRunning {
		return
	}
	s.state = StateRunning
	s.stopCause = CauseNone
	slog.Info("simulation started", "tick", s.tick)
}

// Stop transitions Running to Idle with a manual cause.
func (s *Simulation) Stop() {
	if s.state != StateRunning {
		return
	}
	s.state = StateIdle
	s.stopCause = CauseManual
	slog.Info("simulation stopped", "tick", s.tick, "cause", s.stopCause.String())
}

// Reset rebuilds the environment and population from the configuration.
// With preserveManualNodes the current node layout carries over as a
// manual placement; otherwise nodes are placed per the configured
// strategy. Reset requires the Idle state.
func (s *Simulation) Reset(preserveManualNodes bool) error {
	if s.state != StateIdle {
		return fmt.Errorf("sim: reset requires the idle state, currently %s", s.state)
	}

	params, err := world.ParamsFromConfig(s.cfg)
	if err != nil {
		return err
	}
	if preserveManualNodes {
		params.Placement = world.PlaceManual
		params.ManualNodes = s.grid.Nodes()
	}

	grid, err := world.New(params, s.rng)
	if err != nil {
		return err
	}
	s.grid = grid
	s.occupancy = systems.NewOccupancyGrid(grid.Width(), grid.Height())

	// Fresh entity store; IDs stay monotonic across resets.
	s.world = ecs.NewWorld()
	s.initMappers()
	s.numPrey = 0
	s.numPred = 0
	s.tick = 0
	s.stopCause = CauseNone
	s.collector = telemetry.NewCollector()
	s.lastStats = telemetry.TickStats{}

	s.seedPopulation()
	slog.Info("simulation reset", "preserve_nodes", preserveManualNodes)
	return nil
}

// ToggleNode flips a resource node. Node editing is an authoring
// operation: it is gated to the Idle state and manual placement so a
// running experiment's resource layout stays attributable to its config.
func (s *Simulation) ToggleNode(x, y int) error {
	if s.state != StateIdle {
		return fmt.Errorf("sim: node editing requires the idle state, currently %s", s.state)
	}
	if s.cfg.Resources.Placement != "manual" {
		return fmt.Errorf("sim: node editing requires manual placement, configured %q", s.cfg.Resources.Placement)
	}
	s.grid.ToggleNode(x, y)
	return nil
}

// EachAgent visits a read-only view of every living agent.
func (s *Simulation) EachAgent(fn func(v AgentView)) {
	query := s.filter.Query()
	for query.Next() {
		pos, energy, agent, geno := query.Get()
		if !energy.Alive {
			continue
		}
		fn(AgentView{
			ID:     agent.ID,
			Kind:   agent.Kind,
			X:      pos.X,
			Y:      pos.Y,
			Energy: energy.Value,
			Age:    energy.Age,
			Genome: geno.G,
		})
	}
}

// Grid exposes the environment for read-only iteration.
func (s *Simulation) Grid() *world.Grid { return s.grid }

// Stats returns the snapshot collected at the end of the last tick.
func (s *Simulation) Stats() telemetry.TickStats { return s.lastStats }

// State returns the lifecycle state.
func (s *Simulation) State() State { return s.state }

// Cause returns why the last run stopped.
func (s *Simulation) Cause() StopCause { return s.stopCause }

// Tick returns the current tick number.
func (s *Simulation) Tick() int64 { return s.tick }

// Counts returns the living population per kind.
func (s *Simulation) Counts() (prey, predators int) {
	return s.numPrey, s.numPred
}
