package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/tape/internal/scale"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds the session and scale tuning parameters. Every field is
// optional; the Get* methods supply defaults for anything left out.
type TuningConfig struct {
	// Driver cadence, duration strings like "40ms"
	FrameInterval    *string `json:"frame_interval,omitempty"`
	EstimateInterval *string `json:"estimate_interval,omitempty"`

	// Scale estimator
	ScalePercentile *float64 `json:"scale_percentile,omitempty"`
	ScaleFloor      *float64 `json:"scale_floor,omitempty"`
	ScaleMaxRise    *float64 `json:"scale_max_rise,omitempty"`
	ScaleMinSamples *int     `json:"scale_min_samples,omitempty"`

	// Grid and mock generator
	GridRows      *int     `json:"grid_rows,omitempty"`
	GridCols      *int     `json:"grid_cols,omitempty"`
	MockAmplitude *float64 `json:"mock_amplitude,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file fall back to their defaults.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	for name, v := range map[string]*string{
		"frame_interval":    c.FrameInterval,
		"estimate_interval": c.EstimateInterval,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if c.ScalePercentile != nil {
		if *c.ScalePercentile < 0 || *c.ScalePercentile > 1 {
			return fmt.Errorf("scale_percentile must be between 0 and 1, got %f", *c.ScalePercentile)
		}
	}
	if c.ScaleFloor != nil && *c.ScaleFloor < 0 {
		return fmt.Errorf("scale_floor must be non-negative, got %f", *c.ScaleFloor)
	}
	if c.ScaleMaxRise != nil && *c.ScaleMaxRise < 1 {
		return fmt.Errorf("scale_max_rise must be at least 1, got %f", *c.ScaleMaxRise)
	}
	if c.ScaleMinSamples != nil && *c.ScaleMinSamples < 0 {
		return fmt.Errorf("scale_min_samples must be non-negative, got %d", *c.ScaleMinSamples)
	}
	if c.GridRows != nil && *c.GridRows <= 0 {
		return fmt.Errorf("grid_rows must be positive, got %d", *c.GridRows)
	}
	if c.GridCols != nil && *c.GridCols <= 0 {
		return fmt.Errorf("grid_cols must be positive, got %d", *c.GridCols)
	}
	if c.MockAmplitude != nil && *c.MockAmplitude < 0 {
		return fmt.Errorf("mock_amplitude must be non-negative, got %f", *c.MockAmplitude)
	}

	return nil
}

func parseDurationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GetFrameInterval returns the mock producer period (default 40ms, ~25Hz).
func (c *TuningConfig) GetFrameInterval() time.Duration {
	return parseDurationOr(c.FrameInterval, 40*time.Millisecond)
}

// GetEstimateInterval returns the scale update period (default 1s).
func (c *TuningConfig) GetEstimateInterval() time.Duration {
	return parseDurationOr(c.EstimateInterval, time.Second)
}

// ScaleParams returns the estimator parameters with defaults applied.
func (c *TuningConfig) ScaleParams() scale.Params {
	p := scale.DefaultParams()
	if c.ScalePercentile != nil {
		p.Percentile = *c.ScalePercentile
	}
	if c.ScaleFloor != nil {
		p.Floor = *c.ScaleFloor
	}
	if c.ScaleMaxRise != nil {
		p.MaxRise = *c.ScaleMaxRise
	}
	if c.ScaleMinSamples != nil {
		p.MinSamples = *c.ScaleMinSamples
	}
	return p
}

// GetGridRows returns grid_rows or the default of 4.
func (c *TuningConfig) GetGridRows() int {
	if c.GridRows == nil {
		return 4
	}
	return *c.GridRows
}

// GetGridCols returns grid_cols or the default of 4.
func (c *TuningConfig) GetGridCols() int {
	if c.GridCols == nil {
		return 4
	}
	return *c.GridCols
}

// GetMockAmplitude returns mock_amplitude or the default of 800.
func (c *TuningConfig) GetMockAmplitude() float64 {
	if c.MockAmplitude == nil {
		return 800
	}
	return *c.MockAmplitude
}
