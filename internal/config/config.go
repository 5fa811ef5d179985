// Package config handles explorer configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Config holds all explorer settings.
type Config struct {
	Graphics  GraphicsConfig  `yaml:"graphics"`
	Asset     AssetConfig     `yaml:"asset"`
	Camera    CameraConfig    `yaml:"camera"`
	Flight    FlightConfig    `yaml:"flight"`
	Selection SelectionConfig `yaml:"selection"`
	Controls  ControlsConfig  `yaml:"controls"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// GraphicsConfig holds display and rendering settings.
type GraphicsConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
	FPSLimit   int  `yaml:"fps_limit"`

	// ScreenshotDir receives PNG captures. Empty means the working directory.
	ScreenshotDir string `yaml:"screenshot_dir"`
}

// TextureChannels maps a channel (diffuse, normal, metalness, roughness,
// height) to an image path.
type TextureChannels map[string]string

// AssetConfig names the model to load and where to find it.
type AssetConfig struct {
	Mesh        string   `yaml:"mesh"`
	Material    string   `yaml:"material"`
	SearchPaths []string `yaml:"search_paths"`
	// Textures is keyed by category ("parts", "frame").
	Textures map[string]TextureChannels `yaml:"textures"`
}

// CameraConfig holds the focus animation tuning.
type CameraConfig struct {
	FOVDegrees        float32    `yaml:"fov_degrees"`
	HomePosition      [3]float32 `yaml:"home_position"`
	HomeLookAt        [3]float32 `yaml:"home_look_at"`
	Epsilon           float32    `yaml:"epsilon"`
	ReturnSmoothing   float32    `yaml:"return_smoothing"`
	LookSmoothing     float32    `yaml:"look_smoothing"`
	ApproachSmoothing float32    `yaml:"approach_smoothing"`
	MinStandoff       float32    `yaml:"min_standoff"`
	StandoffFactor    float32    `yaml:"standoff_factor"`
}

// FlightConfig holds the rigid-body flight tuning. All gains are tunable.
type FlightConfig struct {
	Mass              float32       `yaml:"mass"`
	Gravity           float32       `yaml:"gravity"`
	MaxThrust         float32       `yaml:"max_thrust"`
	ThrustStep        float32       `yaml:"thrust_step"`
	MoveSpeed         float32       `yaml:"move_speed"`
	RotationSpeed     float32       `yaml:"rotation_speed"`
	Stability         float32       `yaml:"stability"`
	LinearDamping     float32       `yaml:"linear_damping"`
	AngularDamping    float32       `yaml:"angular_damping"`
	PropellerSpinRate float32       `yaml:"propeller_spin_rate"`
	FixedStep         time.Duration `yaml:"fixed_step"`
}

// SelectionConfig holds highlight and pointer settings.
type SelectionConfig struct {
	HighlightColor    [3]float32 `yaml:"highlight_color"`
	HighlightEmissive [3]float32 `yaml:"highlight_emissive"`
	DragThresholdPx   float32    `yaml:"drag_threshold_px"`
}

// ControlsConfig binds logical controls to SDL scancode names.
type ControlsConfig struct {
	ThrustUp      string `yaml:"thrust_up"`
	ThrustDown    string `yaml:"thrust_down"`
	YawLeft       string `yaml:"yaw_left"`
	YawRight      string `yaml:"yaw_right"`
	PitchUp       string `yaml:"pitch_up"`
	PitchDown     string `yaml:"pitch_down"`
	StrafeForward string `yaml:"strafe_forward"`
	StrafeBack    string `yaml:"strafe_back"`
	StrafeLeft    string `yaml:"strafe_left"`
	StrafeRight   string `yaml:"strafe_right"`
	StartStop     string `yaml:"start_stop"`
	Reset         string `yaml:"reset"`
	Reload        string `yaml:"reload"`
	CyclePart     string `yaml:"cycle_part"`
	OpenModel     string `yaml:"open_model"`
	FreeView      string `yaml:"free_view"`
	Screenshot    string `yaml:"screenshot"`
}

// MetricsConfig controls the prometheus endpoint. Empty address disables it.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// TracingConfig controls load-stage tracing.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "stdout" or "none"
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
			FPSLimit:   0,

			ScreenshotDir: "screenshots",
		},
		Asset: AssetConfig{
			Mesh:        "models/drone.obj",
			Material:    "models/drone.mtl",
			SearchPaths: []string{".", "assets"},
			Textures: map[string]TextureChannels{
				"parts": {
					"diffuse":   "textures/parts/Diffuse_Part.jpg",
					"height":    "textures/parts/Height_Part.png",
					"metalness": "textures/parts/Metalness_Part.png",
					"normal":    "textures/parts/Normal_Part.png",
					"roughness": "textures/parts/Roughness_Part.png",
				},
				"frame": {
					"diffuse":   "textures/frame/Diffuse_Quadcopter.png",
					"height":    "textures/frame/Height_Quadcopter.png",
					"metalness": "textures/frame/Metalness_Quadcopter.png",
					"normal":    "textures/frame/Normal_Quadcopter.png",
					"roughness": "textures/frame/Roughness_Quadcopter.png",
				},
			},
		},
		Camera: CameraConfig{
			FOVDegrees:        50,
			HomePosition:      [3]float32{0, 0, 200},
			HomeLookAt:        [3]float32{0, 0, 0},
			Epsilon:           0.5,
			ReturnSmoothing:   0.05,
			LookSmoothing:     0.08,
			ApproachSmoothing: 0.08,
			MinStandoff:       20,
			StandoffFactor:    1.5,
		},
		Flight: FlightConfig{
			Mass:              1,
			Gravity:           9.82,
			MaxThrust:         20,
			ThrustStep:        0.2,
			MoveSpeed:         5,
			RotationSpeed:     2,
			Stability:         5,
			LinearDamping:     0.1,
			AngularDamping:    0.5,
			PropellerSpinRate: 12,
			FixedStep:         time.Second / 60,
		},
		Selection: SelectionConfig{
			HighlightColor:    [3]float32{1, 0.55, 0},
			HighlightEmissive: [3]float32{0.6, 0.3, 0},
			DragThresholdPx:   4,
		},
		Controls: ControlsConfig{
			ThrustUp:      "Space",
			ThrustDown:    "Left Shift",
			YawLeft:       "Q",
			YawRight:      "E",
			PitchUp:       "Up",
			PitchDown:     "Down",
			StrafeForward: "W",
			StrafeBack:    "S",
			StrafeLeft:    "A",
			StrafeRight:   "D",
			StartStop:     "Return",
			Reset:         "R",
			Reload:        "F5",
			CyclePart:     "Tab",
			OpenModel:     "O",
			FreeView:      "F",
			Screenshot:    "F12",
		},
		Metrics: MetricsConfig{
			ListenAddr: "",
		},
		Tracing: TracingConfig{
			Enabled:  false,
			Exporter: "stdout",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate rejects settings the simulation cannot run with.
func (c *Config) Validate() error {
	var err error
	if c.Flight.Mass <= 0 {
		err = multierr.Append(err, fmt.Errorf("flight.mass must be positive, got %v", c.Flight.Mass))
	}
	if c.Flight.MaxThrust < 0 {
		err = multierr.Append(err, fmt.Errorf("flight.max_thrust must not be negative, got %v", c.Flight.MaxThrust))
	}
	if c.Flight.FixedStep <= 0 {
		err = multierr.Append(err, fmt.Errorf("flight.fixed_step must be positive, got %v", c.Flight.FixedStep))
	}
	if c.Camera.FOVDegrees <= 0 || c.Camera.FOVDegrees >= 180 {
		err = multierr.Append(err, fmt.Errorf("camera.fov_degrees must be in (0, 180), got %v", c.Camera.FOVDegrees))
	}
	if c.Camera.Epsilon <= 0 {
		err = multierr.Append(err, fmt.Errorf("camera.epsilon must be positive, got %v", c.Camera.Epsilon))
	}
	for _, f := range []struct {
		name  string
		value float32
	}{
		{"camera.return_smoothing", c.Camera.ReturnSmoothing},
		{"camera.approach_smoothing", c.Camera.ApproachSmoothing},
		{"camera.look_smoothing", c.Camera.LookSmoothing},
	} {
		// Outside (0, 1] the camera either stalls or overshoots and never arrives.
		if f.value <= 0 || f.value > 1 {
			err = multierr.Append(err, fmt.Errorf("%s must be in (0, 1], got %v", f.name, f.value))
		}
	}
	if c.Asset.Mesh == "" {
		err = multierr.Append(err, errors.New("asset.mesh is required"))
	}
	return err
}
