package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical viewer defaults file.
const DefaultConfigPath = "config/viewer.defaults.json"

// ViewerConfig holds the read-only scalars the viewer is constructed with.
// Every field is optional; the Get* accessors fall back to the built-in
// defaults, which match DefaultConfigPath.
type ViewerConfig struct {
	// Draw styling
	PointSize       *float64 `json:"point_size,omitempty"`
	LandmarkSize    *float64 `json:"landmark_size,omitempty"`
	LineWidth       *float64 `json:"line_width,omitempty"`
	CameraSize      *float64 `json:"camera_size,omitempty"`
	CameraLineWidth *float64 `json:"camera_line_width,omitempty"`

	// Viewpoint
	ViewpointX *float64 `json:"viewpoint_x,omitempty"`
	ViewpointY *float64 `json:"viewpoint_y,omitempty"`
	ViewpointZ *float64 `json:"viewpoint_z,omitempty"`
	ViewpointF *float64 `json:"viewpoint_f,omitempty"`

	// AxisDirection selects the up-axis preset: 0=none, 1=-X, 2=+X, 3=-Y,
	// 4=+Y, 5=-Z, 6=+Z.
	AxisDirection *int `json:"axis_direction,omitempty"`
	// Background is 0 for black, 1 for white.
	Background *int `json:"background,omitempty"`

	// WindowSize is the number of trailing trajectory samples the estimator
	// keeps re-optimising.
	WindowSize *int `json:"window_size,omitempty"`

	// Host params
	FrameRate *float64 `json:"frame_rate,omitempty"`
	OutputDir *string  `json:"output_dir,omitempty"`
}

// EmptyViewerConfig returns a ViewerConfig with all fields set to nil.
func EmptyViewerConfig() *ViewerConfig {
	return &ViewerConfig{}
}

// LoadViewerConfig loads a ViewerConfig from a JSON file.
// Fields omitted from the file keep their defaults, so partial configs are safe.
func LoadViewerConfig(path string) (*ViewerConfig, error) {
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

	cfg := EmptyViewerConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents. Intended for test setup.
func MustLoadDefaultConfig() *ViewerConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadViewerConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *ViewerConfig) Validate() error {
	nonNegative := []struct {
		name string
		v    *float64
	}{
		{"point_size", c.PointSize},
		{"landmark_size", c.LandmarkSize},
		{"line_width", c.LineWidth},
		{"camera_size", c.CameraSize},
		{"camera_line_width", c.CameraLineWidth},
	}
	for _, f := range nonNegative {
		if f.v != nil && *f.v < 0 {
			return fmt.Errorf("%s must be non-negative, got %f", f.name, *f.v)
		}
	}

	if c.ViewpointF != nil && *c.ViewpointF <= 0 {
		return fmt.Errorf("viewpoint_f must be positive, got %f", *c.ViewpointF)
	}
	if c.AxisDirection != nil && (*c.AxisDirection < 0 || *c.AxisDirection > 6) {
		return fmt.Errorf("axis_direction must be 0-6, got %d", *c.AxisDirection)
	}
	if c.Background != nil && *c.Background != 0 && *c.Background != 1 {
		return fmt.Errorf("background must be 0 (black) or 1 (white), got %d", *c.Background)
	}
	if c.WindowSize != nil && *c.WindowSize < 1 {
		return fmt.Errorf("window_size must be at least 1, got %d", *c.WindowSize)
	}
	if c.FrameRate != nil && (*c.FrameRate <= 0 || *c.FrameRate > 240) {
		return fmt.Errorf("frame_rate must be in (0, 240], got %f", *c.FrameRate)
	}
	return nil
}

// GetPointSize returns the point_size value or the default.
func (c *ViewerConfig) GetPointSize() float64 {
	if c.PointSize == nil {
		return 3
	}
	return *c.PointSize
}

// GetLandmarkSize returns the landmark_size value or the default.
func (c *ViewerConfig) GetLandmarkSize() float64 {
	if c.LandmarkSize == nil {
		return 2
	}
	return *c.LandmarkSize
}

// GetLineWidth returns the line_width value or the default.
func (c *ViewerConfig) GetLineWidth() float64 {
	if c.LineWidth == nil {
		return 1
	}
	return *c.LineWidth
}

// GetCameraSize returns the camera_size value or the default.
func (c *ViewerConfig) GetCameraSize() float64 {
	if c.CameraSize == nil {
		return 0.1
	}
	return *c.CameraSize
}

// GetCameraLineWidth returns the camera_line_width value or the default.
func (c *ViewerConfig) GetCameraLineWidth() float64 {
	if c.CameraLineWidth == nil {
		return 2
	}
	return *c.CameraLineWidth
}

// GetViewpointX returns the viewpoint_x value or the default.
func (c *ViewerConfig) GetViewpointX() float64 {
	if c.ViewpointX == nil {
		return 0
	}
	return *c.ViewpointX
}

// GetViewpointY returns the viewpoint_y value or the default.
func (c *ViewerConfig) GetViewpointY() float64 {
	if c.ViewpointY == nil {
		return -0.7
	}
	return *c.ViewpointY
}

// GetViewpointZ returns the viewpoint_z value or the default.
func (c *ViewerConfig) GetViewpointZ() float64 {
	if c.ViewpointZ == nil {
		return -1.8
	}
	return *c.ViewpointZ
}

// GetViewpointF returns the viewpoint_f value or the default.
func (c *ViewerConfig) GetViewpointF() float64 {
	if c.ViewpointF == nil {
		return 500
	}
	return *c.ViewpointF
}

// GetAxisDirection returns the axis_direction value or the default.
func (c *ViewerConfig) GetAxisDirection() int {
	if c.AxisDirection == nil {
		return 0
	}
	return *c.AxisDirection
}

// GetBackground returns the background value or the default (black).
func (c *ViewerConfig) GetBackground() int {
	if c.Background == nil {
		return 0
	}
	return *c.Background
}

// GetWindowSize returns the window_size value or the default.
func (c *ViewerConfig) GetWindowSize() int {
	if c.WindowSize == nil {
		return 10
	}
	return *c.WindowSize
}

// GetFrameRate returns the frame_rate value or the default.
func (c *ViewerConfig) GetFrameRate() float64 {
	if c.FrameRate == nil {
		return 30
	}
	return *c.FrameRate
}

// GetOutputDir returns the output_dir value or the default.
func (c *ViewerConfig) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return "."
	}
	return *c.OutputDir
}
