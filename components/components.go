// Package components defines the ECS components agents are composed of.
package components

import "github.com/pthm-cable/veld/genome"

// Kind tags an agent as prey or predator. Membership in a population
// count and the per-kind schema both key off it; there is no other
// runtime kind inspection.
type Kind uint8

const (
	KindPrey Kind = iota
	KindPredator
)

// String returns the kind name.
func (k Kind) String() string {
	if k == KindPredator {
		return "predator"
	}
	return "prey"
}

// Position is an agent's grid coordinate. Coordinates are kept wrapped
// into the grid bounds; all arithmetic goes through the grid's Wrap.
type Position struct {
	X, Y int
}

// Energy tracks an agent's metabolic state.
// Value stays within [0, Max]; Age increments once per tick while alive.
type Energy struct {
	Value float64
	Max   float64
	Age   int
	Alive bool
}

// Agent bundles identity and per-tick reproduction state.
// IDs are globally unique, monotonically assigned, never reused.
type Agent struct {
	ID   uint64
	Kind Kind
	Bred bool // reproduced this tick; reset at the start of every tick
}

// Genotype wraps the heritable genome as a component.
type Genotype struct {
	G genome.Genome
}
