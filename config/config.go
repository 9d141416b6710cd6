// Package config loads the run parameters from defaults, an optional TOML
// file and FINISHLINE_* environment variables, in increasing precedence.
// Command-line flags bound to the same viper instance override all three.
package config

import (
	"strings"

	"github.com/nvr-ai/finishline/images"
	"github.com/nvr-ai/finishline/recognition"
	"github.com/nvr-ai/finishline/tracking"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gocv.io/x/gocv"
)

// ErrInvalid is returned when a loaded value is out of range.
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix prefixes every environment override, e.g. FINISHLINE_MOTION_THRESHOLD.
const EnvPrefix = "FINISHLINE"

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type MotionConfig struct {
	Threshold  float32 `mapstructure:"threshold"`
	BlurKernel int     `mapstructure:"blur_kernel"`
	Dilate     int     `mapstructure:"dilate_kernel"`
	MinArea    float64 `mapstructure:"min_area"`
	MaxArea    float64 `mapstructure:"max_area"`
}

type FinishLineConfig struct {
	CannyLow  float32 `mapstructure:"canny_low"`
	CannyHigh float32 `mapstructure:"canny_high"`
	Dilate    int     `mapstructure:"dilate_kernel"`
	MinArea   float64 `mapstructure:"min_area"`
}

type CrossingConfig struct {
	Tolerance float64 `mapstructure:"tolerance"`
}

type ClassifierConfig struct {
	ColorTolerance   float64 `mapstructure:"color_tolerance"`
	MaxShapeDistance float64 `mapstructure:"max_shape_distance"`
	ShapeThreshold   float32 `mapstructure:"shape_threshold"`
	ShapeDilate      int     `mapstructure:"shape_dilate_kernel"`
}

type CalibrationConfig struct {
	RotationAngle     float64 `mapstructure:"rotation_angle"`
	DownsampleLevels  int     `mapstructure:"downsample_levels"`
	Threshold         float32 `mapstructure:"threshold"`
	Dilate            int     `mapstructure:"dilate_kernel"`
	MinArea           float64 `mapstructure:"min_area"`
	MaxArea           float64 `mapstructure:"max_area"`
	TemplateThreshold float32 `mapstructure:"template_threshold"`
	TemplateOpen      int     `mapstructure:"template_open_kernel"`
}

// ProfileConfig names one catalog entry and how it is matched.
type ProfileConfig struct {
	Name string `mapstructure:"name"`
	Kind string `mapstructure:"kind"`
}

type RunConfig struct {
	Parallelism  int    `mapstructure:"parallelism"`
	Display      bool   `mapstructure:"display"`
	FrameDelayMS int    `mapstructure:"frame_delay_ms"`
	SnapshotDir  string `mapstructure:"snapshot_dir"`
	SnapshotSize uint   `mapstructure:"snapshot_size"`
}

// Config is the complete parameter set of a run.
type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Motion      MotionConfig      `mapstructure:"motion"`
	FinishLine  FinishLineConfig  `mapstructure:"finish_line"`
	Crossing    CrossingConfig    `mapstructure:"crossing"`
	Classifier  ClassifierConfig  `mapstructure:"classifier"`
	Calibration CalibrationConfig `mapstructure:"calibration"`
	Catalog     []ProfileConfig   `mapstructure:"catalog"`
	Run         RunConfig         `mapstructure:"run"`
}

// New returns a viper instance carrying every default, the config search
// path and the environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigName("finishline")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.config/finishline")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	motion := images.DefaultMotionConfig()
	finish := tracking.DefaultFinishLineConfig()
	classifier := recognition.DefaultClassifierConfig()
	calibration := recognition.DefaultCalibrationConfig()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)

	v.SetDefault("motion.threshold", motion.DifferenceThreshold)
	v.SetDefault("motion.blur_kernel", motion.BlurKernelSize)
	v.SetDefault("motion.dilate_kernel", motion.DilateKernelSize)
	v.SetDefault("motion.min_area", motion.Area.Min)
	v.SetDefault("motion.max_area", motion.Area.Max)

	v.SetDefault("finish_line.canny_low", finish.CannyLow)
	v.SetDefault("finish_line.canny_high", finish.CannyHigh)
	v.SetDefault("finish_line.dilate_kernel", finish.DilateKernelSize)
	v.SetDefault("finish_line.min_area", finish.MinArea)

	v.SetDefault("crossing.tolerance", tracking.DefaultCrossingDetector().Tolerance)

	v.SetDefault("classifier.color_tolerance", classifier.ColorTolerance)
	v.SetDefault("classifier.max_shape_distance", classifier.MaxShapeDistance)
	v.SetDefault("classifier.shape_threshold", classifier.Shape.Threshold)
	v.SetDefault("classifier.shape_dilate_kernel", classifier.Shape.KernelSize)

	v.SetDefault("calibration.rotation_angle", calibration.RotationAngle)
	v.SetDefault("calibration.downsample_levels", calibration.DownsampleLevels)
	v.SetDefault("calibration.threshold", calibration.Threshold)
	v.SetDefault("calibration.dilate_kernel", calibration.DilateKernelSize)
	v.SetDefault("calibration.min_area", calibration.Area.Min)
	v.SetDefault("calibration.max_area", calibration.Area.Max)
	v.SetDefault("calibration.template_threshold", calibration.Template.Threshold)
	v.SetDefault("calibration.template_open_kernel", calibration.Template.KernelSize)

	var catalog []map[string]any
	for _, p := range recognition.DefaultBlueprint() {
		catalog = append(catalog, map[string]any{"name": p.Name, "kind": string(p.Kind)})
	}
	v.SetDefault("catalog", catalog)

	v.SetDefault("run.parallelism", 1)
	v.SetDefault("run.display", false)
	v.SetDefault("run.frame_delay_ms", 10)
	v.SetDefault("run.snapshot_dir", "")
	v.SetDefault("run.snapshot_size", 320)
}

// Load reads the configuration held by v. When file is set it is read
// instead of searching the default locations; a missing default file is
// not an error.
//
// Arguments:
//   - v: An instance from New, possibly with flags bound.
//   - file: Optional explicit config file.
//
// Returns:
//   - *Config: The validated configuration.
//   - error: A read error, or ErrInvalid.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every stage's parameters.
func (c *Config) Validate() error {
	if err := c.Tracking().Validate(); err != nil {
		return errors.Wrapf(ErrInvalid, "%v", err)
	}
	if c.Classifier.ColorTolerance < 0 {
		return errors.Wrapf(ErrInvalid, "classifier.color_tolerance must be non-negative, got %v", c.Classifier.ColorTolerance)
	}
	if c.Classifier.ShapeDilate <= 0 {
		return errors.Wrapf(ErrInvalid, "classifier.shape_dilate_kernel must be positive, got %d", c.Classifier.ShapeDilate)
	}
	if c.Calibration.DownsampleLevels < 0 {
		return errors.Wrapf(ErrInvalid, "calibration.downsample_levels must be non-negative, got %d", c.Calibration.DownsampleLevels)
	}
	if c.Calibration.Dilate <= 0 || c.Calibration.TemplateOpen <= 0 {
		return errors.Wrapf(ErrInvalid, "calibration kernels must be positive")
	}
	if err := c.CalibrationParams().Area.Validate(); err != nil {
		return errors.Wrapf(ErrInvalid, "calibration: %v", err)
	}
	if err := c.Blueprint().Validate(); err != nil {
		return errors.Wrapf(ErrInvalid, "catalog: %v", err)
	}
	cascade := recognition.DefaultCascade(0, 0)
	if err := cascade.Check(len(c.Catalog)); err != nil {
		return errors.Wrapf(ErrInvalid, "catalog: %v", err)
	}
	for _, r := range cascade.Rules {
		if r.Shape != nil && c.Catalog[r.Shape.Template].Kind != string(recognition.KindTemplate) {
			return errors.Wrapf(ErrInvalid, "catalog: entry %d must be the template profile", r.Shape.Template)
		}
	}
	if c.Run.Parallelism < 1 {
		return errors.Wrapf(ErrInvalid, "run.parallelism must be at least 1, got %d", c.Run.Parallelism)
	}
	if c.Run.Display && c.Run.Parallelism > 1 {
		return errors.Wrap(ErrInvalid, "run.display needs run.parallelism = 1")
	}
	return nil
}

// Tracking returns the per-frame parameters.
func (c *Config) Tracking() tracking.Config {
	return tracking.Config{
		FinishLine: tracking.FinishLineConfig{
			CannyLow:         c.FinishLine.CannyLow,
			CannyHigh:        c.FinishLine.CannyHigh,
			DilateKernelSize: c.FinishLine.Dilate,
			MinArea:          c.FinishLine.MinArea,
		},
		Motion: images.MotionConfig{
			DifferenceThreshold: c.Motion.Threshold,
			BlurKernelSize:      c.Motion.BlurKernel,
			DilateKernelSize:    c.Motion.Dilate,
			Area:                images.AreaBand{Min: c.Motion.MinArea, Max: c.Motion.MaxArea},
		},
		Crossing: tracking.CrossingDetector{Tolerance: c.Crossing.Tolerance},
	}
}

// ClassifierParams returns the live-matching parameters.
func (c *Config) ClassifierParams() recognition.ClassifierConfig {
	return recognition.ClassifierConfig{
		ColorTolerance:   c.Classifier.ColorTolerance,
		MaxShapeDistance: c.Classifier.MaxShapeDistance,
		Shape: images.ShapeConfig{
			Threshold:  c.Classifier.ShapeThreshold,
			Morph:      gocv.MorphDilate,
			KernelSize: c.Classifier.ShapeDilate,
		},
	}
}

// CalibrationParams returns the static-image recognizer parameters.
func (c *Config) CalibrationParams() recognition.CalibrationConfig {
	return recognition.CalibrationConfig{
		RotationAngle:    c.Calibration.RotationAngle,
		DownsampleLevels: c.Calibration.DownsampleLevels,
		Threshold:        c.Calibration.Threshold,
		DilateKernelSize: c.Calibration.Dilate,
		Area:             images.AreaBand{Min: c.Calibration.MinArea, Max: c.Calibration.MaxArea},
		Template: images.ShapeConfig{
			Threshold:  c.Calibration.TemplateThreshold,
			Morph:      gocv.MorphOpen,
			KernelSize: c.Calibration.TemplateOpen,
		},
	}
}

// Blueprint returns the uncalibrated catalog in configured order.
func (c *Config) Blueprint() recognition.Catalog {
	catalog := make(recognition.Catalog, 0, len(c.Catalog))
	for _, p := range c.Catalog {
		catalog = append(catalog, recognition.ObjectProfile{Name: p.Name, Kind: recognition.ProfileKind(p.Kind)})
	}
	return catalog
}
