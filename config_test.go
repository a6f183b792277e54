package airwayvision

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("expected defaults for missing file, got %+v", cfg)
	}
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airwayvision.toml")
	doc := `
data_dir = "/srv/airway/models"
steps_per_second = 24.0
tour_frame_delay_ms = 16
default_speed = 2.5
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.DataDir != "/srv/airway/models" {
		t.Errorf("expected data_dir override, got %q", cfg.DataDir)
	}
	if cfg.StepsPerSecond != 24.0 || cfg.TourFrameDelayMs != 16 {
		t.Errorf("unexpected stepping config: %+v", cfg)
	}
	if cfg.DefaultSpeed != 2.5 {
		t.Errorf("expected default_speed 2.5, got %v", cfg.DefaultSpeed)
	}
	// Keys absent from the file keep their defaults.
	if cfg.StorePath != DefaultConfig().StorePath {
		t.Errorf("expected default store path, got %q", cfg.StorePath)
	}
	if cfg.DefaultFOVDegrees != DefaultConfig().DefaultFOVDegrees {
		t.Errorf("expected default fov, got %v", cfg.DefaultFOVDegrees)
	}
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airwayvision.toml")
	if err := os.WriteFile(path, []byte("data_dir = [not toml"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for malformed config")
	}
}
