package localplanner

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"github.com/gapnav/localplanner/control"
	"github.com/gapnav/localplanner/utils"
)

// VelocityCommand is a base velocity. Linear.X is the forward speed in m/s and Angular.Z is the
// yaw rate in rad/s; all other components are zero.
type VelocityCommand struct {
	Linear  r3.Vector `json:"linear"`
	Angular r3.Vector `json:"angular"`
}

// NewVelocityCommand builds a planar command.
func NewVelocityCommand(linear, angular float64) VelocityCommand {
	return VelocityCommand{Linear: r3.Vector{X: linear}, Angular: r3.Vector{Z: angular}}
}

// Forward is the commanded forward speed.
func (c VelocityCommand) Forward() float64 {
	return c.Linear.X
}

// YawRate is the commanded yaw rate.
func (c VelocityCommand) YawRate() float64 {
	return c.Angular.Z
}

// IsZero is true for a full stop.
func (c VelocityCommand) IsZero() bool {
	return c.Linear == (r3.Vector{}) && c.Angular == (r3.Vector{})
}

func (c VelocityCommand) String() string {
	return fmt.Sprintf("linear=%.3f m/s angular=%.3f rad/s", c.Linear.X, c.Angular.Z)
}

// ClampClearance bounds dmin to the range the velocity laws are tuned for.
func (cfg *Config) ClampClearance(dmin float64) float64 {
	switch {
	case dmin > cfg.ClearanceSaturation:
		return cfg.ClearanceSaturation
	case dmin <= cfg.SafetyFloor:
		return cfg.ClearanceMin
	default:
		return dmin
	}
}

// LinearLaw grows with clearance and falls off with the heading error phi.
func (cfg *Config) LinearLaw(phi, dmin float64) float64 {
	d := cfg.ClampClearance(dmin)
	absPhi := math.Abs(phi)
	clearanceTerm := 0.7 * math.Log(3.5*math.Abs(d-cfg.ClearanceOffset)) / math.Exp(0.883*absPhi)
	headingTerm := math.Exp(1.57-absPhi) / 6.5
	return cfg.VelocityGain*(clearanceTerm+headingTerm) + 0.01
}

// AngularLaw scales phi, turning harder as the clearance closes in.
func (cfg *Config) AngularLaw(phi, dmin float64) float64 {
	d := cfg.ClampClearance(dmin)
	return 0.75 * phi * cfg.VelocityGain * (math.Exp(-4*d)/2 + 1)
}

// synthesizer turns a heading error and a clearance into a smoothed command. It owns the filter
// memories, which persist across cycles.
type synthesizer struct {
	cfg     *Config
	filters *control.FilterState
}

func newSynthesizer(cfg *Config) (*synthesizer, error) {
	filters, err := control.NewFilterState(cfg.LinearSmoothing, cfg.AngularSmoothing)
	if err != nil {
		return nil, err
	}
	return &synthesizer{cfg: cfg, filters: filters}, nil
}

// step runs both laws, caps the linear speed at linearLimit and floors it at zero, then advances
// the filters. A non-finite law output leaves the filters untouched and returns their previous
// output with ErrNonFiniteOutput.
func (s *synthesizer) step(phi, dmin, linearLimit float64) (VelocityCommand, error) {
	lin := s.cfg.LinearLaw(phi, dmin)
	ang := s.cfg.AngularLaw(phi, dmin)
	if !utils.AllFinite(lin, ang) {
		return NewVelocityCommand(s.filters.Output()), ErrNonFiniteOutput
	}
	lin = math.Max(0, math.Min(lin, linearLimit))

	fLin, fAng, ok := s.filters.Next(lin, ang)
	if !ok {
		return NewVelocityCommand(fLin, fAng), ErrNonFiniteOutput
	}
	return NewVelocityCommand(fLin, fAng), nil
}

func (s *synthesizer) reset() error {
	return s.filters.Reset()
}
