// Package control holds the signal filters and the fixed rate loop that drive the planner.
package control

import (
	"github.com/pkg/errors"

	"github.com/gapnav/localplanner/utils"
)

type filter interface {
	Reset() error
	Next(x float64) (float64, bool)
}

var _ filter = (*LowPass)(nil)

// LowPass is a single pole low pass filter, y = y_prev*(1-k) + k*x. It remembers the last two raw
// and filtered samples, newest first. The memory starts at zero.
type LowPass struct {
	k        float64
	raw      [2]float64
	filtered [2]float64
}

// NewLowPass returns a filter with smoothing constant k in (0, 1]. Larger k tracks the input
// faster.
func NewLowPass(k float64) (*LowPass, error) {
	if !utils.IsFinite(k) || k <= 0 || k > 1 {
		return nil, errors.Errorf("low pass smoothing constant must be in (0, 1], got %v", k)
	}
	return &LowPass{k: k}, nil
}

// Reset clears the filter memory.
func (lp *LowPass) Reset() error {
	lp.raw = [2]float64{}
	lp.filtered = [2]float64{}
	return nil
}

// Next feeds x through the filter. A non-finite x is rejected: the memory is left untouched and
// the previous output is returned with false.
func (lp *LowPass) Next(x float64) (float64, bool) {
	if !utils.IsFinite(x) {
		return lp.filtered[0], false
	}
	y := lp.filtered[0]*(1-lp.k) + lp.k*x
	lp.raw[1], lp.raw[0] = lp.raw[0], x
	lp.filtered[1], lp.filtered[0] = lp.filtered[0], y
	return y, true
}

// Output is the most recent filtered value.
func (lp *LowPass) Output() float64 {
	return lp.filtered[0]
}

// History returns the last two raw and filtered samples, newest first.
func (lp *LowPass) History() (raw, filtered [2]float64) {
	return lp.raw, lp.filtered
}

// FilterState smooths the linear and angular channels of a velocity command independently.
type FilterState struct {
	Linear  *LowPass
	Angular *LowPass
}

// NewFilterState builds the two channel filters.
func NewFilterState(kLinear, kAngular float64) (*FilterState, error) {
	linear, err := NewLowPass(kLinear)
	if err != nil {
		return nil, errors.Wrap(err, "linear filter")
	}
	angular, err := NewLowPass(kAngular)
	if err != nil {
		return nil, errors.Wrap(err, "angular filter")
	}
	return &FilterState{Linear: linear, Angular: angular}, nil
}

// Next advances both channels together. If either sample is non-finite neither filter moves and
// the previous outputs are returned with false.
func (fs *FilterState) Next(linear, angular float64) (float64, float64, bool) {
	if !utils.AllFinite(linear, angular) {
		return fs.Linear.Output(), fs.Angular.Output(), false
	}
	lin, _ := fs.Linear.Next(linear)
	ang, _ := fs.Angular.Next(angular)
	return lin, ang, true
}

// Output returns the most recent filtered pair.
func (fs *FilterState) Output() (float64, float64) {
	return fs.Linear.Output(), fs.Angular.Output()
}

// Reset clears both channels.
func (fs *FilterState) Reset() error {
	if err := fs.Linear.Reset(); err != nil {
		return err
	}
	return fs.Angular.Reset()
}
