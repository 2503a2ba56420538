package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/veld/components"
	"github.com/pthm-cable/veld/config"
	"github.com/pthm-cable/veld/genome"
	"github.com/pthm-cable/veld/systems"
)

// Step runs one tick of the strict pipeline: environment, occupancy
// index, predators, prey, reproduction, stats, extinction check. A
// panicking tick transitions to Idle and surfaces as an error; the tick
// is not retried.
func (s *Simulation) Step() (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.state = StateIdle
			err = fmt.Errorf("sim: tick %d panicked: %v", s.tick, r)
		}
	}()

	s.tick++

	s.resetBredFlags()
	s.grid.Update(s.tick)
	s.rebuildOccupancy()

	s.predatorPhase()
	s.removeDead(components.KindPredator)

	s.preyPhase()
	s.removeDead(components.KindPrey)

	s.reproductionPhase()

	s.collectStats()
	s.checkExtinction()

	return nil
}

// Run drives Step on a ticker until the context is cancelled, the
// simulation stops, or a tick fails. Each interval runs the configured
// number of steps.
func (s *Simulation) Run(ctx context.Context, interval time.Duration) error {
	s.Start()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return ctx.Err()
		case <-ticker.C:
			for i := 0; i < s.cfg.Tick.Speed; i++ {
				if err := s.Step(); err != nil {
					return err
				}
				if s.state != StateRunning {
					return nil
				}
			}
		}
	}
}

func (s *Simulation) resetBredFlags() {
	query := s.filter.Query()
	for query.Next() {
		_, _, agent, _ := query.Get()
		agent.Bred = false
	}
}

func (s *Simulation) rebuildOccupancy() {
	s.occupancy.Clear()
	query := s.filter.Query()
	for query.Next() {
		pos, energy, _, _ := query.Get()
		if energy.Alive {
			s.occupancy.Insert(query.Entity(), pos.X, pos.Y)
		}
	}
}

// predatorPhase moves, metabolizes, and hunts for every living predator.
func (s *Simulation) predatorPhase() {
	sp := &s.cfg.Predator

	query := s.filter.Query()
	for query.Next() {
		pos, energy, agent, geno := query.Get()
		if agent.Kind != components.KindPredator || !energy.Alive {
			continue
		}
		g := geno.G

		dx, dy := s.predatorStep(pos, g)
		s.move(pos, energy, g.Value(s.predIdx.size), dx, dy, sp)
		s.metabolize(pos, energy, g, s.predIdx, sp)

		if energy.Alive {
			s.hunt(pos, energy, g)
		}
		s.checkDeath(energy, g, s.predIdx, sp, components.KindPredator)
	}
}

// predatorStep pursues the nearest living prey within the detection
// range phenotype, falling back to a random step.
func (s *Simulation) predatorStep(pos *components.Position, g genome.Genome) (dx, dy int) {
	radius := int(math.Round(g.Value(s.predIdx.detect)))
	if radius < 0 {
		radius = 0
	}

	var target ecs.Entity
	found := false
	s.occupancy.EachInRadius(pos.X, pos.Y, radius, func(e ecs.Entity) bool {
		a := s.agentMap.Get(e)
		en := s.energyMap.Get(e)
		if a.Kind == components.KindPrey && en.Alive {
			target = e
			found = true
			return false
		}
		return true
	})
	if !found {
		return systems.RandomStep(s.rng)
	}

	tp := s.posMap.Get(target)
	tdx, tdy := systems.ToroidalDelta(pos.X, pos.Y, tp.X, tp.Y, s.grid.Width(), s.grid.Height())
	return systems.PursueStep(tdx, tdy)
}

// hunt attempts co-located living prey in turn; the first successful
// roll kills, transfers energy, and ends the hunt for this tick.
func (s *Simulation) hunt(pos *components.Position, energy *components.Energy, g genome.Genome) {
	huntEff := g.Value(s.predIdx.hunt)
	if huntEff > 1 {
		huntEff = 1
	}

	for _, e := range s.occupancy.At(pos.X, pos.Y) {
		a := s.agentMap.Get(e)
		if a.Kind != components.KindPrey {
			continue
		}
		prey := s.energyMap.Get(e)
		if !prey.Alive {
			continue
		}
		if s.rng.Float64() < huntEff {
			systems.TransferKill(energy, prey, s.cfg.Predator.HuntGainFraction)
			s.collector.RecordKill()
			s.collector.RecordDeath(components.KindPrey)
			return
		}
	}
}

// preyPhase moves, metabolizes, and feeds every living prey. Prey
// killed earlier this tick take no action at all.
func (s *Simulation) preyPhase() {
	sp := &s.cfg.Prey

	query := s.filter.Query()
	for query.Next() {
		pos, energy, agent, geno := query.Get()
		if agent.Kind != components.KindPrey || !energy.Alive {
			continue
		}
		g := geno.G

		dx, dy := s.preyStep(pos)
		s.move(pos, energy, g.Value(s.preyIdx.size), dx, dy, sp)
		s.metabolize(pos, energy, g, s.preyIdx, sp)

		if energy.Alive {
			consumed := s.grid.ConsumeResourceAt(pos.X, pos.Y, sp.FeedRate)
			energy.Value += consumed * s.cfg.Resources.FoodEnergyValue * g.Value(s.preyIdx.feed)
			if energy.Value > energy.Max {
				energy.Value = energy.Max
			}
		}
		s.checkDeath(energy, g, s.preyIdx, sp, components.KindPrey)
	}
}

// preyStep flees predators within the detection radius, falling back to
// a random step. Predator positions are as of the start of the tick; the
// index still holds handles of predators removed earlier this tick, so
// entity liveness is checked before any component access.
func (s *Simulation) preyStep(pos *components.Position) (dx, dy int) {
	var threats []systems.Threat
	s.occupancy.EachInRadius(pos.X, pos.Y, s.cfg.Prey.DetectionRadius, func(e ecs.Entity) bool {
		if !s.world.Alive(e) {
			return true
		}
		a := s.agentMap.Get(e)
		en := s.energyMap.Get(e)
		if a.Kind != components.KindPredator || !en.Alive {
			return true
		}
		tp := s.posMap.Get(e)
		tdx, tdy := systems.ToroidalDelta(pos.X, pos.Y, tp.X, tp.Y, s.grid.Width(), s.grid.Height())
		threats = append(threats, systems.Threat{DX: tdx, DY: tdy, DistSq: tdx*tdx + tdy*tdy})
		return true
	})
	if len(threats) == 0 {
		return systems.RandomStep(s.rng)
	}
	return systems.FleeStep(threats)
}

// move applies a step with toroidal wrap and charges the move cost:
// base times the destination biome multiplier times the size phenotype.
// A null step is free.
func (s *Simulation) move(pos *components.Position, energy *components.Energy, size float64, dx, dy int, sp *config.SpeciesConfig) {
	if dx == 0 && dy == 0 {
		return
	}
	pos.X, pos.Y = s.grid.Wrap(pos.X+dx, pos.Y+dy)
	energy.Value -= sp.BaseMoveCost * s.grid.MoveCost(pos.X, pos.Y) * size
}

// metabolize charges the per-tick drain and advances age.
func (s *Simulation) metabolize(pos *components.Position, energy *components.Energy, g genome.Genome, idx traitIndexes, sp *config.SpeciesConfig) {
	cell := s.grid.At(pos.X, pos.Y)
	penalty := s.tempRule.Penalty(g.Cat(idx.tol), cell.Temperature)
	energy.Value -= systems.MetabolicCost(sp.BaseMetabolicCost, g.Value(idx.metab), penalty)
	energy.Age++
}

// checkDeath applies lifespan and starvation death. Starvation gets a
// resistance roll that resets energy to the survival floor; lifespan
// death is unconditional.
func (s *Simulation) checkDeath(energy *components.Energy, g genome.Genome, idx traitIndexes, sp *config.SpeciesConfig, kind components.Kind) {
	if !energy.Alive {
		return
	}
	if energy.Age > sp.MaxLifespan {
		energy.Alive = false
		s.collector.RecordDeath(kind)
		return
	}
	if energy.Value <= 0 {
		if s.rng.Float64() < g.Value(idx.resist) {
			energy.Value = sp.SurvivalFloor
			return
		}
		energy.Value = 0
		energy.Alive = false
		s.collector.RecordDeath(kind)
	}
}

// removeDead deletes dead entities of one kind. Removal is two-pass:
// the query must finish before any structural change.
func (s *Simulation) removeDead(kind components.Kind) {
	var toRemove []ecs.Entity

	query := s.filter.Query()
	for query.Next() {
		_, energy, agent, _ := query.Get()
		if agent.Kind == kind && !energy.Alive {
			toRemove = append(toRemove, query.Entity())
		}
	}

	for _, e := range toRemove {
		s.world.RemoveEntity(e)
		if kind == components.KindPrey {
			s.numPrey--
		} else {
			s.numPred--
		}
	}
}

// reproductionPhase pairs eligible agents and spawns their offspring.
// Births are queued and spawned after the pairing loop; growth stops
// the instant the combined population would reach the cap.
func (s *Simulation) reproductionPhase() {
	// Re-index so mate search sees post-move positions.
	s.rebuildOccupancy()

	var eligible []ecs.Entity
	query := s.filter.Query()
	for query.Next() {
		_, energy, agent, geno := query.Get()
		if energy.Alive && !agent.Bred && s.eligibleToBreed(agent.Kind, energy, geno.G) {
			eligible = append(eligible, query.Entity())
		}
	}
	s.rng.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})

	type birth struct {
		kind components.Kind
		x, y int
		g    genome.Genome
	}
	var births []birth

	total := s.numPrey + s.numPred
	for _, e := range eligible {
		if total+len(births) >= s.cfg.Population.Max {
			break
		}
		agent := s.agentMap.Get(e)
		if agent.Bred {
			continue
		}
		pos := s.posMap.Get(e)

		mate, found := s.findMate(e, pos, agent.Kind)
		if !found {
			continue
		}

		energy := s.energyMap.Get(e)
		mateAgent := s.agentMap.Get(mate)
		mateEnergy := s.energyMap.Get(mate)
		sp := s.species(agent.Kind)

		child := genome.Offspring(s.rng, s.genoMap.Get(e).G, s.genoMap.Get(mate).G)
		energy.Value -= sp.ReproCost
		mateEnergy.Value -= sp.ReproCost
		agent.Bred = true
		mateAgent.Bred = true

		s.collector.RecordBirth(agent.Kind)
		births = append(births, birth{kind: agent.Kind, x: pos.X, y: pos.Y, g: child})
	}

	for _, b := range births {
		s.spawnAgent(b.kind, b.x, b.y, b.g)
	}
}

// findMate searches the expanding neighborhood for an eligible,
// not-yet-bred partner of the same kind.
func (s *Simulation) findMate(self ecs.Entity, pos *components.Position, kind components.Kind) (ecs.Entity, bool) {
	var mate ecs.Entity
	found := false
	s.occupancy.EachInRadius(pos.X, pos.Y, s.cfg.Reproduction.SearchRadius, func(e ecs.Entity) bool {
		if e == self {
			return true
		}
		a := s.agentMap.Get(e)
		if a.Kind != kind || a.Bred {
			return true
		}
		en := s.energyMap.Get(e)
		if !en.Alive || !s.eligibleToBreed(kind, en, s.genoMap.Get(e).G) {
			return true
		}
		mate = e
		found = true
		return false
	})
	return mate, found
}

// eligibleToBreed checks the effective reproduction age, scaled down by
// the reproductive-rate phenotype, and the energy threshold.
func (s *Simulation) eligibleToBreed(kind components.Kind, energy *components.Energy, g genome.Genome) bool {
	sp := s.species(kind)
	idx := s.indexes(kind)

	rate := g.Value(idx.repro)
	if rate < 1e-6 {
		rate = 1e-6
	}
	effAge := sp.ReproAge / rate

	return float64(energy.Age) >= effAge && energy.Value >= sp.ReproThreshold
}

// collectStats samples the surviving population and flushes the tick's
// snapshot.
func (s *Simulation) collectStats() {
	query := s.filter.Query()
	for query.Next() {
		_, energy, agent, geno := query.Get()
		if energy.Alive {
			s.collector.Observe(agent.Kind, energy.Value, geno.G)
		}
	}
	s.lastStats = s.collector.Flush(s.tick, s.numPrey, s.numPred, s.grid.TotalResources())

	if every := s.cfg.Telemetry.LogEvery; every > 0 && s.tick%int64(every) == 0 {
		slog.Info("tick stats", "stats", s.lastStats)
	}
}

// checkExtinction stops the run when nothing is left, or when predators
// have nothing to hunt. A prey-only world keeps running.
func (s *Simulation) checkExtinction() {
	switch {
	case s.numPrey+s.numPred == 0:
		s.state = StateIdle
		s.stopCause = CauseExtinction
		slog.Info("population extinct", "tick", s.tick)
	case s.numPrey == 0 && s.numPred > 0:
		s.state = StateIdle
		s.stopCause = CauseNoPrey
		slog.Info("prey extinct with predators remaining", "tick", s.tick)
	}
}
