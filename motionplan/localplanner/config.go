package localplanner

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/gapnav/localplanner/control"
	"github.com/gapnav/localplanner/logging"
	"github.com/gapnav/localplanner/motionplan/gap"
	"github.com/gapnav/localplanner/utils"
)

// Config holds every tuned constant of the planner. The defaults were tuned on a single platform
// with a 163 degree, 344 sample range finder and should be recalibrated for other sensors.
type Config struct {
	// LookAhead is the index into the global path used as the local target.
	LookAhead int `json:"look_ahead"`
	// GoalTolerance is the distance, in meters, under which the final goal counts as reached.
	GoalTolerance float64 `json:"goal_tolerance"`

	// InflationMargin is subtracted from every range sample.
	InflationMargin float64 `json:"inflation_margin"`
	// SectorMargin is the number of samples dropped from each side of the scan when looking for
	// the closest obstacle.
	SectorMargin int `json:"sector_margin"`
	// ClearanceFloor is the smallest clearance ever reported.
	ClearanceFloor float64 `json:"clearance_floor"`
	// DiscontinuityThreshold is the jump between neighboring ranges that marks a gap edge.
	DiscontinuityThreshold float64 `json:"discontinuity_threshold"`
	// FieldOfViewDeg is the angle covered by a full scan.
	FieldOfViewDeg float64 `json:"field_of_view_deg"`
	// BearingOffsetDeg is the scan bearing of the robot's leftmost ray.
	BearingOffsetDeg float64 `json:"bearing_offset_deg"`
	// ScanSamples pins the expected scan length. Zero takes it from the first usable scan.
	ScanSamples int `json:"scan_samples"`
	// SensorOffset is the distance, in meters, from the pose to the range finder along the heading.
	SensorOffset float64 `json:"sensor_offset"`

	GapSlew      float64 `json:"gap_slew"`
	GapExpansion float64 `json:"gap_expansion"`
	// FusionWeight scales how strongly the chosen gap pulls the heading away from the goal.
	FusionWeight float64 `json:"fusion_weight"`

	// VelocityGain scales both velocity laws.
	VelocityGain float64 `json:"velocity_gain"`
	// ClearanceSaturation caps the clearance fed to the velocity laws.
	ClearanceSaturation float64 `json:"clearance_saturation"`
	// SafetyFloor is the clearance at or below which the velocity laws use ClearanceMin, and
	// below which a robot with no gap rotates in place.
	SafetyFloor  float64 `json:"safety_floor"`
	ClearanceMin float64 `json:"clearance_min"`
	// ClearanceOffset is subtracted from the clearance inside the linear law's logarithm. It may
	// not exceed SafetyFloor and may not equal ClearanceMin.
	ClearanceOffset float64 `json:"clearance_offset"`
	// LinearSmoothing and AngularSmoothing are the low pass constants of each channel.
	LinearSmoothing  float64 `json:"linear_smoothing"`
	AngularSmoothing float64 `json:"angular_smoothing"`
	// UnstickAngular is the yaw rate, in rad/s, of the in place rotation.
	UnstickAngular float64 `json:"unstick_angular"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		LookAhead:              30,
		GoalTolerance:          0.25,
		InflationMargin:        0.25,
		SectorMargin:           75,
		ClearanceFloor:         0.01,
		DiscontinuityThreshold: 1.0,
		FieldOfViewDeg:         163,
		BearingOffsetDeg:       8.5,
		SensorOffset:           0.722,
		GapSlew:                0.5,
		GapExpansion:           0.5,
		FusionWeight:           0.5,
		VelocityGain:           1.0,
		ClearanceSaturation:    6,
		SafetyFloor:            0.15,
		ClearanceMin:           0.151,
		ClearanceOffset:        0.15,
		LinearSmoothing:        0.1535,
		AngularSmoothing:       0.8,
		UnstickAngular:         -0.5,
	}
}

// Validate returns every problem with the config, each tagged with path.
func (cfg *Config) Validate(path string) error {
	var errs error
	positive := func(field string, v float64) {
		switch {
		case v == 0:
			errs = multierr.Append(errs, goutils.NewConfigValidationFieldRequiredError(path, field))
		case !utils.IsFinite(v) || v < 0:
			errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
				errors.Errorf("%q must be a positive number, got %v", field, v)))
		}
	}
	nonNegative := func(field string, v float64) {
		if !utils.IsFinite(v) || v < 0 {
			errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
				errors.Errorf("%q must not be negative, got %v", field, v)))
		}
	}

	if cfg.LookAhead < 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("%q must not be negative, got %d", "look_ahead", cfg.LookAhead)))
	}
	if cfg.SectorMargin < 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("%q must not be negative, got %d", "sector_margin", cfg.SectorMargin)))
	}
	if cfg.ScanSamples < 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("%q must not be negative, got %d", "scan_samples", cfg.ScanSamples)))
	}
	if cfg.ScanSamples > 0 && cfg.ScanSamples < 2*cfg.SectorMargin+1 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("%q of %d leaves no forward sector with a %q of %d",
				"scan_samples", cfg.ScanSamples, "sector_margin", cfg.SectorMargin)))
	}

	positive("goal_tolerance", cfg.GoalTolerance)
	positive("clearance_floor", cfg.ClearanceFloor)
	positive("discontinuity_threshold", cfg.DiscontinuityThreshold)
	positive("field_of_view_deg", cfg.FieldOfViewDeg)
	positive("velocity_gain", cfg.VelocityGain)
	positive("clearance_saturation", cfg.ClearanceSaturation)
	positive("clearance_min", cfg.ClearanceMin)
	nonNegative("inflation_margin", cfg.InflationMargin)
	nonNegative("sensor_offset", cfg.SensorOffset)
	nonNegative("gap_slew", cfg.GapSlew)
	nonNegative("gap_expansion", cfg.GapExpansion)
	nonNegative("fusion_weight", cfg.FusionWeight)
	nonNegative("safety_floor", cfg.SafetyFloor)
	nonNegative("clearance_offset", cfg.ClearanceOffset)
	if !utils.IsFinite(cfg.BearingOffsetDeg) {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("%q must be finite", "bearing_offset_deg")))
	}
	if !utils.IsFinite(cfg.UnstickAngular) {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("%q must be finite", "unstick_angular")))
	}
	if cfg.ClearanceMin > cfg.ClearanceSaturation {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("%q must not exceed %q", "clearance_min", "clearance_saturation")))
	}
	// The linear law takes the log of |d - clearance_offset|, where d is either clearance_min or a
	// clearance above safety_floor.
	if cfg.ClearanceOffset > cfg.SafetyFloor {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("%q must not exceed %q", "clearance_offset", "safety_floor")))
	}
	if cfg.ClearanceMin == cfg.ClearanceOffset {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("%q must differ from %q, got %v for both", "clearance_min", "clearance_offset", cfg.ClearanceMin)))
	}
	for field, k := range map[string]float64{
		"linear_smoothing":  cfg.LinearSmoothing,
		"angular_smoothing": cfg.AngularSmoothing,
	} {
		if _, err := control.NewLowPass(k); err != nil {
			errs = multierr.Append(errs, goutils.NewConfigValidationError(path, errors.Wrap(err, field)))
		}
	}
	return errs
}

// ConfigFromAttributes decodes attributes over the defaults. Attributes that match no field are
// reported to logger and otherwise ignored.
func ConfigFromAttributes(attrs utils.AttributeMap, logger logging.Logger) (Config, error) {
	cfg := DefaultConfig()
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: &cfg, Metadata: &md})
	if err != nil {
		return Config{}, err
	}
	if err := decoder.Decode(map[string]interface{}(attrs)); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode planner attributes")
	}
	if len(md.Unused) > 0 {
		logger.Warnw("ignoring unknown planner attributes", "keys", md.Unused)
	}
	if err := cfg.Validate("planner"); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// StepDeg is the angle between neighboring samples of a scan with the given number of samples.
func (cfg *Config) StepDeg(samples int) float64 {
	if samples <= 0 {
		return 0
	}
	return cfg.FieldOfViewDeg / float64(samples)
}

func (cfg *Config) gapConfig(samples int) gap.Config {
	return gap.Config{
		Threshold:        cfg.DiscontinuityThreshold,
		BearingOffsetDeg: cfg.BearingOffsetDeg,
		StepDeg:          cfg.StepDeg(samples),
	}
}

func (cfg *Config) scoring() gap.Scoring {
	return gap.Scoring{Slew: cfg.GapSlew, Expansion: cfg.GapExpansion}
}
