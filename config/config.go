// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	World        WorldConfig        `yaml:"world"`
	Resources    ResourceConfig     `yaml:"resources"`
	Temperature  TemperatureConfig  `yaml:"temperature"`
	Population   PopulationConfig   `yaml:"population"`
	Prey         SpeciesConfig      `yaml:"prey"`
	Predator     SpeciesConfig      `yaml:"predator"`
	Reproduction ReproductionConfig `yaml:"reproduction"`
	Mutation     MutationConfig     `yaml:"mutation"`
	Traits       TraitsConfig       `yaml:"traits"`
	Tick         TickConfig         `yaml:"tick"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// WorldConfig holds grid dimensions and biome/climate parameters.
type WorldConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// BiomeMode selects how cells are assigned a biome:
	// "quadrant" (one biome per grid quadrant) or "noise" (opensimplex).
	BiomeMode  string  `yaml:"biome_mode"`
	NoiseScale float64 `yaml:"noise_scale"` // noise frequency for biome_mode: noise
	Seed       int64   `yaml:"seed"`        // 0 = seeded from wall clock

	SeasonalPeriod    float64 `yaml:"seasonal_period"`     // ticks per full seasonal cycle
	SeasonalAmplitude float64 `yaml:"seasonal_amplitude"`  // degrees added at season peak
	TempNoiseScale    float64 `yaml:"temp_noise_scale"`    // spatial frequency of temperature micro-variation
	TempNoiseAmplitude float64 `yaml:"temp_noise_amplitude"` // degrees of micro-variation (0 disables)

	Biomes map[string]BiomeConfig `yaml:"biomes"`
}

// BiomeConfig describes one biome's climate and terrain.
type BiomeConfig struct {
	BaseTemp  float64 `yaml:"base_temp"` // degrees C
	Amplitude float64 `yaml:"amplitude"` // biome-local temperature swing
	MoveCost  float64 `yaml:"move_cost"` // movement cost multiplier
}

// Coord is an explicit grid coordinate for manual node placement.
type Coord struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// ResourceConfig holds resource node placement and regeneration parameters.
type ResourceConfig struct {
	NodeDensity float64 `yaml:"node_density"` // fraction of cells that become nodes (random mode)
	Placement   string  `yaml:"placement"`    // random | manual | clustered
	ManualNodes []Coord `yaml:"manual_nodes"`

	ClusterCount       int     `yaml:"cluster_count"`
	ClusterRadius      int     `yaml:"cluster_radius"`
	ClusterMinDist     float64 `yaml:"cluster_min_dist"`     // minimum distance between cluster centers
	ClusterRetryBudget int     `yaml:"cluster_retry_budget"` // rejection sampling attempts before degrading

	ReplenishRate   float64 `yaml:"replenish_rate"`    // resource added to each node per tick
	CellMax         float64 `yaml:"cell_max"`          // per-cell resource cap
	NodeBaseline    float64 `yaml:"node_baseline"`     // resource amount a cell resets to when toggled to a node
	FoodEnergyValue float64 `yaml:"food_energy_value"` // energy per unit of consumed resource
}

// TemperatureConfig holds the zone thresholds and metabolic penalty multipliers.
type TemperatureConfig struct {
	ColdBelow float64 `yaml:"cold_below"` // temps below this are the cold zone
	HotAbove  float64 `yaml:"hot_above"`  // temps above this are the hot zone

	MatchDiscount   float64 `yaml:"match_discount"`   // multiplier in the preferred zone
	BoundaryPenalty float64 `yaml:"boundary_penalty"` // multiplier one zone away
	MismatchPenalty float64 `yaml:"mismatch_penalty"` // multiplier in the opposite zone
}

// PopulationConfig holds seeding and cap parameters.
type PopulationConfig struct {
	Density          float64 `yaml:"density"`           // fraction of cells seeded with an agent
	PredatorFraction float64 `yaml:"predator_fraction"` // fraction of seeded agents that are predators
	Max              int     `yaml:"max"`               // combined population cap
}

// SpeciesConfig holds per-kind lifecycle parameters.
// FeedRate and DetectionRadius apply to prey; HuntGainFraction to predators.
type SpeciesConfig struct {
	MaxEnergy         float64 `yaml:"max_energy"`
	InitialEnergy     float64 `yaml:"initial_energy"`
	MaxLifespan       int     `yaml:"max_lifespan"` // ticks
	BaseMoveCost      float64 `yaml:"base_move_cost"`
	BaseMetabolicCost float64 `yaml:"base_metabolic_cost"`
	DetectionRadius   int     `yaml:"detection_radius"`
	FeedRate          float64 `yaml:"feed_rate"`
	HuntGainFraction  float64 `yaml:"hunt_gain_fraction"`
	ReproAge          float64 `yaml:"repro_age"`       // base reproduction age in ticks
	ReproThreshold    float64 `yaml:"repro_threshold"` // minimum energy to breed
	ReproCost         float64 `yaml:"repro_cost"`      // energy paid by each parent
	SurvivalFloor     float64 `yaml:"survival_floor"`  // energy after a resisted death
}

// ReproductionConfig holds mate search parameters.
type ReproductionConfig struct {
	SearchRadius int `yaml:"search_radius"` // cells around own cell searched for a mate
}

// MutationConfig holds genome mutation parameters.
type MutationConfig struct {
	Rate       float64 `yaml:"rate"`        // per-allele mutation probability
	Step       float64 `yaml:"step"`        // uniform noise half-width as a fraction of the trait range
	FlipFactor float64 `yaml:"flip_factor"` // categorical flip probability = rate * flip_factor
}

// TraitsConfig holds genome seeding parameters.
type TraitsConfig struct {
	SeedMeans    map[string]float64 `yaml:"seed_means"`     // per-trait average initial phenotype
	SeedSpread   float64            `yaml:"seed_spread"`    // initial alleles drawn uniform in mean ± spread*range
	TempHighBias float64            `yaml:"temp_high_bias"` // probability an initial tolerance allele is High
}

// TickConfig holds the run loop cadence.
type TickConfig struct {
	IntervalMS int `yaml:"interval_ms"`
	Speed      int `yaml:"speed"` // steps per interval
}

// TelemetryConfig holds output parameters.
type TelemetryConfig struct {
	Dir      string `yaml:"dir"`       // output directory ("" disables CSV output)
	LogEvery int    `yaml:"log_every"` // ticks between stats log lines (0 disables)
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Cells       int // Width * Height
	InitialPrey int
	InitialPred int
}

// BiomeNames lists the biomes every configuration must define.
var BiomeNames = []string{"plains", "forest", "desert", "tundra"}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used. The result is validated.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate clamps soft fields into range and rejects configurations the
// simulation cannot run with. Clamping covers percentage-like inputs the
// UI layer may pass through unconstrained; structural problems fail fast.
func (c *Config) Validate() error {
	if c.World.Width <= 0 || c.World.Height <= 0 {
		return fmt.Errorf("config: world dimensions must be positive, got %dx%d", c.World.Width, c.World.Height)
	}
	if c.Population.Max <= 0 {
		return fmt.Errorf("config: population max must be positive, got %d", c.Population.Max)
	}

	switch c.World.BiomeMode {
	case "quadrant", "noise":
	default:
		return fmt.Errorf("config: unknown biome_mode %q", c.World.BiomeMode)
	}

	switch c.Resources.Placement {
	case "random", "clustered":
	case "manual":
		if len(c.Resources.ManualNodes) == 0 {
			return fmt.Errorf("config: manual placement requires manual_nodes")
		}
	default:
		return fmt.Errorf("config: unknown placement %q", c.Resources.Placement)
	}

	for _, name := range BiomeNames {
		if _, ok := c.World.Biomes[name]; !ok {
			return fmt.Errorf("config: missing biome %q", name)
		}
	}

	c.Resources.NodeDensity = clamp01(c.Resources.NodeDensity)
	c.Population.Density = clamp01(c.Population.Density)
	c.Population.PredatorFraction = clamp01(c.Population.PredatorFraction)
	c.Mutation.Rate = clamp01(c.Mutation.Rate)
	c.Mutation.FlipFactor = clamp01(c.Mutation.FlipFactor)
	c.Traits.TempHighBias = clamp01(c.Traits.TempHighBias)

	if c.Tick.Speed < 1 {
		c.Tick.Speed = 1
	}
	if c.Reproduction.SearchRadius < 0 {
		c.Reproduction.SearchRadius = 0
	}

	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.Cells = c.World.Width * c.World.Height

	seeded := int(float64(c.Derived.Cells) * c.Population.Density)
	if seeded > c.Population.Max {
		seeded = c.Population.Max
	}
	c.Derived.InitialPred = int(float64(seeded) * c.Population.PredatorFraction)
	c.Derived.InitialPrey = seeded - c.Derived.InitialPred
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
