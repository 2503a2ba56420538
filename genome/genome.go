// Package genome implements allele-pair genetics: trait schemas,
// phenotype expression, mutation, and sexual inheritance.
package genome

import (
	"fmt"
	"math/rand"
)

// Expression selects how a trait's allele pair resolves to a phenotype.
type Expression uint8

const (
	// Additive traits carry two real-valued alleles; the phenotype is
	// their arithmetic mean.
	Additive Expression = iota
	// DominantRecessive traits carry two symbolic alleles; the phenotype
	// is a category resolved by the trait's dominance table.
	DominantRecessive
)

// Category is the expressed phenotype of a dominant/recessive trait.
type Category uint8

const (
	CategoryNone Category = iota
	CategoryLow
	CategoryMedium
	CategoryHigh
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryLow:
		return "Low"
	case CategoryMedium:
		return "Medium"
	case CategoryHigh:
		return "High"
	default:
		return "None"
	}
}

// Trait names shared by the schema builders and the config seed table.
const (
	TraitSize                 = "size"
	TraitMetabolismEfficiency = "metabolism_efficiency"
	TraitFeedingEfficiency    = "feeding_efficiency"
	TraitHuntingEfficiency    = "hunting_efficiency"
	TraitDetectionRange       = "detection_range"
	TraitReproductiveRate     = "reproductive_rate"
	TraitResistance           = "resistance"
	TraitTempTolerance        = "temp_tolerance"
)

// Trait is a tagged variant: Additive traits use Min/Max/Rate/Step,
// DominantRecessive traits use FlipRate and the dominance table.
// The table's heterozygous entry may equal BothDom for plain dominance,
// or name a third intermediate category.
type Trait struct {
	Name string
	Expr Expression

	// Additive
	Min, Max float64
	Rate     float64 // per-allele mutation probability
	Step     float64 // perturbation half-width in phenotype units

	// DominantRecessive
	FlipRate float64  // per-allele symbol flip probability
	BothDom  Category // homozygous dominant phenotype
	BothRec  Category // homozygous recessive phenotype
	Hetero   Category // heterozygous phenotype
}

// Schema is an ordered trait list with name lookup resolved once at
// construction. Every agent of a kind carries an allele pair for every
// trait in its kind's schema; partial genomes cannot be constructed.
type Schema struct {
	traits []Trait
	index  map[string]int
	slot   []int // per trait: index into the float or bool allele array
	nFloat int
	nBool  int
}

// NewSchema builds a schema from a trait list.
func NewSchema(traits []Trait) *Schema {
	s := &Schema{
		traits: traits,
		index:  make(map[string]int, len(traits)),
		slot:   make([]int, len(traits)),
	}
	for i, t := range traits {
		if _, dup := s.index[t.Name]; dup {
			panic(fmt.Sprintf("genome: duplicate trait %q", t.Name))
		}
		s.index[t.Name] = i
		if t.Expr == Additive {
			s.slot[i] = s.nFloat
			s.nFloat++
		} else {
			s.slot[i] = s.nBool
			s.nBool++
		}
	}
	return s
}

// Len returns the number of traits.
func (s *Schema) Len() int { return len(s.traits) }

// Trait returns the trait definition at index i.
func (s *Schema) Trait(i int) Trait { return s.traits[i] }

// Index returns the index of the named trait.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// MustIndex returns the index of the named trait, panicking if absent.
// A missing required trait is a schema definition bug, not a runtime
// condition.
func (s *Schema) MustIndex(name string) int {
	i, ok := s.index[name]
	if !ok {
		panic(fmt.Sprintf("genome: schema has no trait %q", name))
	}
	return i
}

// Genome is an agent's allele pairs, laid out per the schema.
type Genome struct {
	schema *Schema
	floats [][2]float64
	bools  [][2]bool
}

// Seed creates a genome with alleles drawn around the per-trait means.
// Additive alleles are uniform in mean ± spread*(Max-Min), clamped to
// the trait bounds; a missing mean defaults to the range midpoint.
// Categorical alleles are dominant with probability highBias.
func (s *Schema) Seed(rng *rand.Rand, means map[string]float64, spread, highBias float64) Genome {
	g := Genome{
		schema: s,
		floats: make([][2]float64, s.nFloat),
		bools:  make([][2]bool, s.nBool),
	}
	for i, t := range s.traits {
		slot := s.slot[i]
		switch t.Expr {
		case Additive:
			mean, ok := means[t.Name]
			if !ok {
				mean = (t.Min + t.Max) / 2
			}
			halfWidth := spread * (t.Max - t.Min)
			for a := 0; a < 2; a++ {
				v := mean + (rng.Float64()*2-1)*halfWidth
				g.floats[slot][a] = clamp(v, t.Min, t.Max)
			}
		case DominantRecessive:
			for a := 0; a < 2; a++ {
				g.bools[slot][a] = rng.Float64() < highBias
			}
		}
	}
	return g
}

// Schema returns the genome's trait schema.
func (g Genome) Schema() *Schema { return g.schema }

// Value returns the phenotype of the additive trait at index i: the
// arithmetic mean of its allele pair. Calling it on a categorical trait
// is an invariant violation and panics.
func (g Genome) Value(i int) float64 {
	t := g.schema.traits[i]
	if t.Expr != Additive {
		panic(fmt.Sprintf("genome: trait %q is not additive", t.Name))
	}
	p := g.floats[g.schema.slot[i]]
	return (p[0] + p[1]) / 2
}

// Cat returns the phenotype category of the dominant/recessive trait at
// index i, resolved via the trait's dominance table. Calling it on an
// additive trait panics.
func (g Genome) Cat(i int) Category {
	t := g.schema.traits[i]
	if t.Expr != DominantRecessive {
		panic(fmt.Sprintf("genome: trait %q is not dominant/recessive", t.Name))
	}
	p := g.bools[g.schema.slot[i]]
	switch {
	case p[0] && p[1]:
		return t.BothDom
	case !p[0] && !p[1]:
		return t.BothRec
	default:
		return t.Hetero
	}
}

// ValueByName is the defensive by-name lookup. Absence returns (0, false);
// callers must treat absence as a configuration bug, not a runtime branch.
func (g Genome) ValueByName(name string) (float64, bool) {
	i, ok := g.schema.index[name]
	if !ok || g.schema.traits[i].Expr != Additive {
		return 0, false
	}
	return g.Value(i), true
}

// CatByName is the categorical counterpart of ValueByName.
func (g Genome) CatByName(name string) (Category, bool) {
	i, ok := g.schema.index[name]
	if !ok || g.schema.traits[i].Expr != DominantRecessive {
		return CategoryNone, false
	}
	return g.Cat(i), true
}

// FloatPair returns the raw allele pair of an additive trait (for tests
// and the inspector-facing iteration API).
func (g Genome) FloatPair(i int) [2]float64 {
	return g.floats[g.schema.slot[i]]
}

// BoolPair returns the raw allele pair of a categorical trait.
func (g Genome) BoolPair(i int) [2]bool {
	return g.bools[g.schema.slot[i]]
}

// Mutate returns a copy with each allele independently perturbed at its
// trait's rate. Additive alleles get bounded uniform noise and are
// re-clamped; categorical alleles flip at the trait's (lower) flip rate.
func (g Genome) Mutate(rng *rand.Rand) Genome {
	out := Genome{
		schema: g.schema,
		floats: make([][2]float64, len(g.floats)),
		bools:  make([][2]bool, len(g.bools)),
	}
	copy(out.floats, g.floats)
	copy(out.bools, g.bools)

	for i, t := range g.schema.traits {
		slot := g.schema.slot[i]
		switch t.Expr {
		case Additive:
			for a := 0; a < 2; a++ {
				if rng.Float64() < t.Rate {
					v := out.floats[slot][a] + (rng.Float64()*2-1)*t.Step
					out.floats[slot][a] = clamp(v, t.Min, t.Max)
				}
			}
		case DominantRecessive:
			for a := 0; a < 2; a++ {
				if rng.Float64() < t.FlipRate {
					out.bools[slot][a] = !out.bools[slot][a]
				}
			}
		}
	}
	return out
}

// Inherit builds an offspring genome on parent a's schema: per trait,
// one allele chosen uniformly from each parent. A trait absent from
// parent b's schema duplicates a's pair verbatim. Same-kind mating is
// enforced upstream, so the fallback is expected-unreachable but kept
// as defined behavior.
func Inherit(rng *rand.Rand, a, b Genome) Genome {
	out := Genome{
		schema: a.schema,
		floats: make([][2]float64, len(a.floats)),
		bools:  make([][2]bool, len(a.bools)),
	}
	for i, t := range a.schema.traits {
		slot := a.schema.slot[i]
		bi, ok := b.schema.index[t.Name]
		if ok && b.schema.traits[bi].Expr != t.Expr {
			ok = false
		}
		switch t.Expr {
		case Additive:
			if !ok {
				out.floats[slot] = a.floats[slot]
				continue
			}
			bp := b.floats[b.schema.slot[bi]]
			out.floats[slot] = [2]float64{
				a.floats[slot][rng.Intn(2)],
				bp[rng.Intn(2)],
			}
		case DominantRecessive:
			if !ok {
				out.bools[slot] = a.bools[slot]
				continue
			}
			bp := b.bools[b.schema.slot[bi]]
			out.bools[slot] = [2]bool{
				a.bools[slot][rng.Intn(2)],
				bp[rng.Intn(2)],
			}
		}
	}
	return out
}

// Offspring is the full reproduction pipeline: inherit, then mutate.
func Offspring(rng *rand.Rand, a, b Genome) Genome {
	return Inherit(rng, a, b).Mutate(rng)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
