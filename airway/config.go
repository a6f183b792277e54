package airway

// Config holds all configuration for the airway navigation core.
type Config struct {
	Navigator NavigatorConfig
	Ingest    IngestConfig
}

// NavigatorConfig holds tunable parameters for the navigation cursor.
type NavigatorConfig struct {
	BranchThreshold   float64 // Progress beyond which child branches become selectable.
	HistoryCapacity   int     // Max back-navigation entries; oldest evicted first.
	MinSpeed          float64 // Lower bound for the step speed multiplier.
	MaxSpeed          float64 // Upper bound for the step speed multiplier.
	MinFOVDegrees     float64 // Narrowest allowed field of view.
	MaxFOVDegrees     float64 // Widest allowed field of view.
	DefaultSpeed      float64 // Speed multiplier at session start.
	DefaultFOVDegrees float64 // Field of view at session start.
}

// IngestConfig holds parameters for centerline ingestion.
type IngestConfig struct {
	MaxParentDistanceM float64 // Max first-point distance when inferring a parent branch; 0 = no cap.
	DeriveDiameters    bool    // Fill missing diameter ranges from observed radii.
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Navigator: NavigatorConfig{
			BranchThreshold:   0.9,
			HistoryCapacity:   20,
			MinSpeed:          0.1,
			MaxSpeed:          5.0,
			MinFOVDegrees:     30.0,
			MaxFOVDegrees:     120.0,
			DefaultSpeed:      1.0,
			DefaultFOVDegrees: 60.0,
		},
		Ingest: IngestConfig{
			MaxParentDistanceM: 0.05,
			DeriveDiameters:    true,
		},
	}
}
