package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Port              int      `yaml:"port"`
	FrameInterval     Duration `yaml:"frameInterval"`
	TelemetryInterval Duration `yaml:"telemetryInterval"`
	MaxStreamWidth    int      `yaml:"maxStreamWidth"`
	JPEGQuality       int      `yaml:"jpegQuality"`
	CameraDevice      int      `yaml:"cameraDevice"`
	ThermalRoot       string   `yaml:"thermalRoot"`
	SlamCommand       string   `yaml:"slamCommand"`
	CmdVelEndpoint    string   `yaml:"cmdVelEndpoint"`
	LinearSpeed       float64  `yaml:"linearSpeed"`
	AngularSpeed      float64  `yaml:"angularSpeed"`
}

// Duration accepts YAML values in time.ParseDuration notation ("12.5ms").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Load overlays values from a YAML file onto cfg. Fields absent from the
// file keep their current, flag-derived values.
func Load(path string, cfg *AppConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}
