// Package lidar holds planar range scans and the preprocessing the planner applies to them.
package lidar

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/gapnav/localplanner/utils"
)

// DefaultRangeMax is the ceiling applied to samples of a scan that does not report its own
// maximum range.
const DefaultRangeMax = 30.0

// ErrDegenerateScan is returned when a scan has too few samples to form the forward sector.
var ErrDegenerateScan = errors.New("scan too short for the forward sector")

// RangeScan is a single sweep of a planar range finder. Samples are ordered counter-clockwise, so
// index 0 is the rightmost ray. Angles are in radians and ranges in meters.
type RangeScan struct {
	AngleMin       float64   `json:"angle_min"`
	AngleIncrement float64   `json:"angle_increment"`
	RangeMin       float64   `json:"range_min"`
	RangeMax       float64   `json:"range_max"`
	Ranges         []float64 `json:"ranges"`
}

// Len is the number of samples in the scan.
func (s RangeScan) Len() int {
	return len(s.Ranges)
}

func (s RangeScan) ceiling() float64 {
	if utils.IsFinite(s.RangeMax) && s.RangeMax > 0 && s.RangeMax > s.RangeMin {
		return s.RangeMax
	}
	return DefaultRangeMax
}

// Sample returns the i'th range clipped to the scan's limits. NaN and infinite readings are no
// returns and read as the maximum range.
func (s RangeScan) Sample(i int) float64 {
	r := s.Ranges[i]
	ceiling := s.ceiling()
	switch {
	case !utils.IsFinite(r), r > ceiling:
		return ceiling
	case r < s.RangeMin:
		return s.RangeMin
	default:
		return r
	}
}

// Canonical returns a sanitized copy of the ranges in left-to-right order, so index 0 is the
// robot's leftmost ray, with inflation subtracted from every sample.
func (s RangeScan) Canonical(inflation float64) []float64 {
	n := s.Len()
	out := make([]float64, n)
	for i := range out {
		out[i] = s.Sample(n - 1 - i)
	}
	floats.AddConst(-inflation, out)
	return out
}

// Clearance is the closest obstacle in the forward sector of a canonical scan.
type Clearance struct {
	// DMin is the deflated range to the closest obstacle, never below the configured floor.
	DMin float64
	// Index is the canonical scan index of the closest sample, -1 if the scan is empty.
	Index int
}

// ForwardClearance finds the closest sample over the ranges with margin samples dropped from each
// edge. A scan with fewer than 2*margin+1 samples returns ErrDegenerateScan together with the
// clearance over whatever samples it has; an empty scan reports the floor.
func ForwardClearance(ranges []float64, margin int, floor float64) (Clearance, error) {
	if margin < 0 {
		margin = 0
	}
	if len(ranges) < 2*margin+1 {
		if len(ranges) == 0 {
			return Clearance{DMin: floor, Index: -1}, ErrDegenerateScan
		}
		idx := floats.MinIdx(ranges)
		return Clearance{DMin: math.Max(ranges[idx], floor), Index: idx}, ErrDegenerateScan
	}

	sector := ranges[margin : len(ranges)-margin]
	idx := floats.MinIdx(sector)
	return Clearance{DMin: math.Max(sector[idx], floor), Index: idx + margin}, nil
}
