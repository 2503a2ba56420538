package world

// Biome is a fixed regional classification of a cell.
type Biome uint8

const (
	BiomePlains Biome = iota
	BiomeForest
	BiomeDesert
	BiomeTundra
	NumBiomes
)

// String returns the biome name.
func (b Biome) String() string {
	switch b {
	case BiomePlains:
		return "Plains"
	case BiomeForest:
		return "Forest"
	case BiomeDesert:
		return "Desert"
	case BiomeTundra:
		return "Tundra"
	default:
		return "Unknown"
	}
}

// Climate holds a biome's temperature and terrain parameters.
type Climate struct {
	BaseTemp  float64 // degrees C
	Amplitude float64 // biome-local temperature swing
	MoveCost  float64 // movement cost multiplier
}
