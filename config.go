package airwayvision

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config configures the workstation shell. Library-level tuning (navigation
// thresholds, placement policy) keeps its package defaults; the knobs
// operators actually adjust are surfaced here.
type Config struct {
	// DataDir holds the model catalog: manifest.json plus centerline assets.
	DataDir string `toml:"data_dir"`
	// PlansDir persists computed tour plans. Empty disables the cache.
	PlansDir string `toml:"plans_dir"`
	// StorePath is the anchor database file.
	StorePath string `toml:"store_path"`

	// StepsPerSecond is the automatic fly-through cadence.
	StepsPerSecond float64 `toml:"steps_per_second"`
	// TourFrameDelayMs is the delay between interpolated tour animation frames.
	TourFrameDelayMs int `toml:"tour_frame_delay_ms"`

	// DefaultSpeed and DefaultFOVDegrees override the navigator defaults.
	DefaultSpeed      float64 `toml:"default_speed"`
	DefaultFOVDegrees float64 `toml:"default_fov_degrees"`
}

// DefaultConfig returns the workstation defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:           "models",
		PlansDir:          "plans",
		StorePath:         "anchors.db",
		StepsPerSecond:    10,
		TourFrameDelayMs:  50,
		DefaultSpeed:      1.0,
		DefaultFOVDegrees: 60,
	}
}

// LoadConfig reads a TOML config file, filling unset fields from
// DefaultConfig. A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}
