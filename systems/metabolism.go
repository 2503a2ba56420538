package systems

import (
	"github.com/pthm-cable/veld/components"
	"github.com/pthm-cable/veld/genome"
)

// Zone is a temperature band of the environment.
type Zone uint8

const (
	ZoneCold Zone = iota
	ZoneTemperate
	ZoneHot
)

// TempRule maps cell temperatures to zones and tolerance mismatches to
// metabolic multipliers. An agent in its preferred zone gets the
// discount, one zone away the boundary penalty, and in the opposite
// zone the full mismatch penalty. Specialists thrive in place and pay
// sharply for being in the wrong region; that mismatch cost is the
// selective pressure on the tolerance trait.
type TempRule struct {
	ColdBelow float64
	HotAbove  float64

	MatchDiscount   float64
	BoundaryPenalty float64
	MismatchPenalty float64
}

// Zone classifies a temperature.
func (r TempRule) Zone(temp float64) Zone {
	switch {
	case temp < r.ColdBelow:
		return ZoneCold
	case temp > r.HotAbove:
		return ZoneHot
	default:
		return ZoneTemperate
	}
}

// PreferredZone maps a tolerance phenotype to the zone it is adapted to.
func PreferredZone(tol genome.Category) Zone {
	switch tol {
	case genome.CategoryHigh:
		return ZoneHot
	case genome.CategoryLow:
		return ZoneCold
	default:
		return ZoneTemperate
	}
}

// Penalty returns the metabolic multiplier for a tolerance phenotype at
// a cell temperature.
func (r TempRule) Penalty(tol genome.Category, temp float64) float64 {
	pref := PreferredZone(tol)
	zone := r.Zone(temp)

	diff := int(zone) - int(pref)
	if diff < 0 {
		diff = -diff
	}
	switch diff {
	case 0:
		return r.MatchDiscount
	case 1:
		return r.BoundaryPenalty
	default:
		return r.MismatchPenalty
	}
}

// MetabolicCost is the per-tick energy drain: base cost divided by the
// metabolism-efficiency phenotype, scaled by the temperature penalty.
func MetabolicCost(base, efficiency, penalty float64) float64 {
	if efficiency < 1e-6 {
		efficiency = 1e-6
	}
	return base / efficiency * penalty
}

// TransferKill moves a fraction of the prey's energy to the predator,
// clamped to the predator's capacity, and marks the prey dead.
// Returns the energy the predator gained.
func TransferKill(pred, prey *components.Energy, gainFraction float64) float64 {
	if !pred.Alive || !prey.Alive {
		return 0
	}

	gain := prey.Value * gainFraction
	if pred.Value+gain > pred.Max {
		gain = pred.Max - pred.Value
	}
	if gain < 0 {
		gain = 0
	}
	pred.Value += gain

	prey.Value = 0
	prey.Alive = false

	return gain
}
