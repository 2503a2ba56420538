package sim

import (
	"github.com/pthm-cable/veld/config"
	"github.com/pthm-cable/veld/genome"
)

// traitRange bounds each additive trait's phenotype space. Mutation
// steps are expressed as a fraction of this range, so the bounds double
// as the mutation scale.
type traitRange struct {
	min, max float64
}

var traitRanges = map[string]traitRange{
	genome.TraitSize:                 {0.5, 2.0},
	genome.TraitMetabolismEfficiency: {0.2, 3.0},
	genome.TraitFeedingEfficiency:    {0.2, 2.0},
	genome.TraitHuntingEfficiency:    {0.05, 0.95},
	genome.TraitDetectionRange:       {1.0, 15.0},
	genome.TraitReproductiveRate:     {0.5, 2.0},
	genome.TraitResistance:           {0.0, 0.9},
}

func additiveTrait(cfg *config.Config, name string) genome.Trait {
	r := traitRanges[name]
	return genome.Trait{
		Name: name,
		Expr: genome.Additive,
		Min:  r.min,
		Max:  r.max,
		Rate: cfg.Mutation.Rate,
		Step: cfg.Mutation.Step * (r.max - r.min),
	}
}

func toleranceTrait(cfg *config.Config) genome.Trait {
	return genome.Trait{
		Name:     genome.TraitTempTolerance,
		Expr:     genome.DominantRecessive,
		FlipRate: cfg.Mutation.Rate * cfg.Mutation.FlipFactor,
		BothDom:  genome.CategoryHigh,
		BothRec:  genome.CategoryLow,
		Hetero:   genome.CategoryMedium,
	}
}

// preySchema builds the prey trait roster.
func preySchema(cfg *config.Config) *genome.Schema {
	return genome.NewSchema([]genome.Trait{
		additiveTrait(cfg, genome.TraitSize),
		additiveTrait(cfg, genome.TraitMetabolismEfficiency),
		additiveTrait(cfg, genome.TraitFeedingEfficiency),
		additiveTrait(cfg, genome.TraitReproductiveRate),
		additiveTrait(cfg, genome.TraitResistance),
		toleranceTrait(cfg),
	})
}

// predatorSchema builds the predator trait roster.
func predatorSchema(cfg *config.Config) *genome.Schema {
	return genome.NewSchema([]genome.Trait{
		additiveTrait(cfg, genome.TraitSize),
		additiveTrait(cfg, genome.TraitMetabolismEfficiency),
		additiveTrait(cfg, genome.TraitHuntingEfficiency),
		additiveTrait(cfg, genome.TraitDetectionRange),
		additiveTrait(cfg, genome.TraitReproductiveRate),
		additiveTrait(cfg, genome.TraitResistance),
		toleranceTrait(cfg),
	})
}

// traitIndexes caches per-schema trait positions so the hot per-tick
// loops never do name lookups. Traits a kind does not carry are -1.
type traitIndexes struct {
	size   int
	metab  int
	feed   int
	hunt   int
	detect int
	repro  int
	resist int
	tol    int
}

func indexesFor(s *genome.Schema) traitIndexes {
	at := func(name string) int {
		i, ok := s.Index(name)
		if !ok {
			return -1
		}
		return i
	}
	return traitIndexes{
		size:   at(genome.TraitSize),
		metab:  at(genome.TraitMetabolismEfficiency),
		feed:   at(genome.TraitFeedingEfficiency),
		hunt:   at(genome.TraitHuntingEfficiency),
		detect: at(genome.TraitDetectionRange),
		repro:  at(genome.TraitReproductiveRate),
		resist: at(genome.TraitResistance),
		tol:    at(genome.TraitTempTolerance),
	}
}
