package anchoring

// Config holds all configuration for anchor placement.
type Config struct {
	Selector    SelectorConfig
	Environment EnvironmentConfig
}

// SelectorConfig holds the confidence weights and spatial policy constants
// used when ranking candidate placements.
type SelectorConfig struct {
	TableConfidence    float64
	FloorConfidence    float64
	WallConfidence     float64
	FloatingConfidence float64

	DefaultScale float64 // Uniform model scale for every suggestion.
	TableLiftM   float64 // Height above the table anchor point.
	FloorLiftM   float64 // Height above the floor anchor point.
	WallOffsetM  float64 // Stand-off from the wall along its normal.
	EyeHeightM   float64 // Viewing height for floating placements.
}

// EnvironmentConfig holds parameters for building context snapshots.
type EnvironmentConfig struct {
	MinSurfaceConfidence float64 // Surfaces below this are ignored.
	MinRoomExtentM       float64 // Smallest room span for walk-around viewing.
	PoorLuxBelow         float64
	FairLuxBelow         float64
	GoodLuxBelow         float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Selector: SelectorConfig{
			TableConfidence:    0.9,
			FloorConfidence:    0.8,
			WallConfidence:     0.7,
			FloatingConfidence: 0.6,
			DefaultScale:       1.0,
			TableLiftM:         0.25,
			FloorLiftM:         1.0,
			WallOffsetM:        0.4,
			EyeHeightM:         1.5,
		},
		Environment: EnvironmentConfig{
			MinSurfaceConfidence: 0.5,
			MinRoomExtentM:       1.5,
			PoorLuxBelow:         50,
			FairLuxBelow:         150,
			GoodLuxBelow:         400,
		},
	}
}
