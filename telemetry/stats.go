// Package telemetry aggregates per-tick population statistics and writes
// structured experiment output.
package telemetry

import (
	"log/slog"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/veld/components"
	"github.com/pthm-cable/veld/genome"
)

// TickStats is one row of the stats CSV: population, event counters, and
// per-kind trait distributions for the tick it was collected on.
type TickStats struct {
	Tick int64 `csv:"tick"`

	PreyCount int `csv:"prey"`
	PredCount int `csv:"pred"`

	PreyBirths int `csv:"prey_births"`
	PredBirths int `csv:"pred_births"`
	PreyDeaths int `csv:"prey_deaths"`
	PredDeaths int `csv:"pred_deaths"`
	Kills      int `csv:"kills"`

	TotalResources float64 `csv:"total_resources"`
	PreyEnergyMean float64 `csv:"prey_energy_mean"`
	PredEnergyMean float64 `csv:"pred_energy_mean"`

	// Prey trait distributions
	PreySizeMean   float64 `csv:"prey_size_mean"`
	PreySizeStd    float64 `csv:"prey_size_std"`
	PreyMetabMean  float64 `csv:"prey_metab_mean"`
	PreyMetabStd   float64 `csv:"prey_metab_std"`
	PreyFeedMean   float64 `csv:"prey_feed_mean"`
	PreyFeedStd    float64 `csv:"prey_feed_std"`
	PreyReproMean  float64 `csv:"prey_repro_mean"`
	PreyReproStd   float64 `csv:"prey_repro_std"`
	PreyResistMean float64 `csv:"prey_resist_mean"`
	PreyResistStd  float64 `csv:"prey_resist_std"`
	PreyTolLow     int     `csv:"prey_tol_low"`
	PreyTolMedium  int     `csv:"prey_tol_medium"`
	PreyTolHigh    int     `csv:"prey_tol_high"`

	// Predator trait distributions
	PredSizeMean   float64 `csv:"pred_size_mean"`
	PredSizeStd    float64 `csv:"pred_size_std"`
	PredMetabMean  float64 `csv:"pred_metab_mean"`
	PredMetabStd   float64 `csv:"pred_metab_std"`
	PredHuntMean   float64 `csv:"pred_hunt_mean"`
	PredHuntStd    float64 `csv:"pred_hunt_std"`
	PredDetectMean float64 `csv:"pred_detect_mean"`
	PredDetectStd  float64 `csv:"pred_detect_std"`
	PredReproMean  float64 `csv:"pred_repro_mean"`
	PredReproStd   float64 `csv:"pred_repro_std"`
	PredResistMean float64 `csv:"pred_resist_mean"`
	PredResistStd  float64 `csv:"pred_resist_std"`
	PredTolLow     int     `csv:"pred_tol_low"`
	PredTolMedium  int     `csv:"pred_tol_medium"`
	PredTolHigh    int     `csv:"pred_tol_high"`
}

// LogValue implements slog.LogValuer for structured logging.
func (s TickStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("tick", s.Tick),
		slog.Int("prey", s.PreyCount),
		slog.Int("pred", s.PredCount),
		slog.Int("prey_births", s.PreyBirths),
		slog.Int("pred_births", s.PredBirths),
		slog.Int("prey_deaths", s.PreyDeaths),
		slog.Int("pred_deaths", s.PredDeaths),
		slog.Int("kills", s.Kills),
		slog.Float64("total_resources", s.TotalResources),
		slog.Float64("prey_energy_mean", s.PreyEnergyMean),
		slog.Float64("pred_energy_mean", s.PredEnergyMean),
		slog.Float64("prey_size_mean", s.PreySizeMean),
		slog.Float64("prey_metab_mean", s.PreyMetabMean),
		slog.Float64("prey_feed_mean", s.PreyFeedMean),
		slog.Float64("prey_resist_mean", s.PreyResistMean),
		slog.Float64("pred_size_mean", s.PredSizeMean),
		slog.Float64("pred_hunt_mean", s.PredHuntMean),
		slog.Float64("pred_detect_mean", s.PredDetectMean),
		slog.Int("prey_tol_high", s.PreyTolHigh),
		slog.Int("pred_tol_high", s.PredTolHigh),
	)
}

// kindAcc accumulates one kind's samples within a tick.
type kindAcc struct {
	energy []float64
	traits map[string][]float64
	tol    [4]int // indexed by genome.Category
}

func newKindAcc() kindAcc {
	return kindAcc{traits: make(map[string][]float64)}
}

func (a *kindAcc) reset() {
	a.energy = a.energy[:0]
	for k := range a.traits {
		a.traits[k] = a.traits[k][:0]
	}
	a.tol = [4]int{}
}

// Collector accumulates events and population samples and produces a
// TickStats per flush.
type Collector struct {
	preyBirths int
	predBirths int
	preyDeaths int
	predDeaths int
	kills      int

	prey kindAcc
	pred kindAcc
}

// NewCollector creates an empty stats collector.
func NewCollector() *Collector {
	return &Collector{prey: newKindAcc(), pred: newKindAcc()}
}

// RecordBirth records a birth event.
func (c *Collector) RecordBirth(kind components.Kind) {
	if kind == components.KindPrey {
		c.preyBirths++
	} else {
		c.predBirths++
	}
}

// RecordDeath records a death event. Hunted prey count as deaths too;
// kills are tracked separately.
func (c *Collector) RecordDeath(kind components.Kind) {
	if kind == components.KindPrey {
		c.preyDeaths++
	} else {
		c.predDeaths++
	}
}

// RecordKill records a successful hunt.
func (c *Collector) RecordKill() {
	c.kills++
}

// Observe samples one living agent: its energy and every trait in its
// genome's schema.
func (c *Collector) Observe(kind components.Kind, energy float64, g genome.Genome) {
	acc := &c.prey
	if kind == components.KindPredator {
		acc = &c.pred
	}
	acc.energy = append(acc.energy, energy)

	s := g.Schema()
	for i := 0; i < s.Len(); i++ {
		t := s.Trait(i)
		switch t.Expr {
		case genome.Additive:
			acc.traits[t.Name] = append(acc.traits[t.Name], g.Value(i))
		case genome.DominantRecessive:
			acc.tol[g.Cat(i)]++
		}
	}
}

// Flush produces the tick's stats and resets all counters and samples.
func (c *Collector) Flush(tick int64, preyCount, predCount int, totalResources float64) TickStats {
	s := TickStats{
		Tick:      tick,
		PreyCount: preyCount,
		PredCount: predCount,

		PreyBirths: c.preyBirths,
		PredBirths: c.predBirths,
		PreyDeaths: c.preyDeaths,
		PredDeaths: c.predDeaths,
		Kills:      c.kills,

		TotalResources: totalResources,
	}

	s.PreyEnergyMean, _ = meanStd(c.prey.energy)
	s.PredEnergyMean, _ = meanStd(c.pred.energy)

	s.PreySizeMean, s.PreySizeStd = meanStd(c.prey.traits[genome.TraitSize])
	s.PreyMetabMean, s.PreyMetabStd = meanStd(c.prey.traits[genome.TraitMetabolismEfficiency])
	s.PreyFeedMean, s.PreyFeedStd = meanStd(c.prey.traits[genome.TraitFeedingEfficiency])
	s.PreyReproMean, s.PreyReproStd = meanStd(c.prey.traits[genome.TraitReproductiveRate])
	s.PreyResistMean, s.PreyResistStd = meanStd(c.prey.traits[genome.TraitResistance])
	s.PreyTolLow = c.prey.tol[genome.CategoryLow]
	s.PreyTolMedium = c.prey.tol[genome.CategoryMedium]
	s.PreyTolHigh = c.prey.tol[genome.CategoryHigh]

	s.PredSizeMean, s.PredSizeStd = meanStd(c.pred.traits[genome.TraitSize])
	s.PredMetabMean, s.PredMetabStd = meanStd(c.pred.traits[genome.TraitMetabolismEfficiency])
	s.PredHuntMean, s.PredHuntStd = meanStd(c.pred.traits[genome.TraitHuntingEfficiency])
	s.PredDetectMean, s.PredDetectStd = meanStd(c.pred.traits[genome.TraitDetectionRange])
	s.PredReproMean, s.PredReproStd = meanStd(c.pred.traits[genome.TraitReproductiveRate])
	s.PredResistMean, s.PredResistStd = meanStd(c.pred.traits[genome.TraitResistance])
	s.PredTolLow = c.pred.tol[genome.CategoryLow]
	s.PredTolMedium = c.pred.tol[genome.CategoryMedium]
	s.PredTolHigh = c.pred.tol[genome.CategoryHigh]

	c.preyBirths = 0
	c.predBirths = 0
	c.preyDeaths = 0
	c.predDeaths = 0
	c.kills = 0
	c.prey.reset()
	c.pred.reset()

	return s
}

// meanStd returns sample mean and standard deviation. Fewer than two
// samples yield a zero deviation.
func meanStd(vals []float64) (mean, std float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	mean = stat.Mean(vals, nil)
	if len(vals) < 2 {
		return mean, 0
	}
	return mean, stat.StdDev(vals, nil)
}
