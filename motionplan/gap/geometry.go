package gap

import (
	"math"

	"github.com/golang/geo/r2"

	"github.com/gapnav/localplanner/spatialmath"
	"github.com/gapnav/localplanner/utils"
)

// EdgeInput is everything needed to place a gap's edges, independent of the scan it came from.
// Bearings are scan bearings in degrees.
type EdgeInput struct {
	StartBearing float64
	EndBearing   float64
	StartRange   float64
	EndRange     float64

	// Pose is the robot pose the scan was taken from.
	Pose spatialmath.Pose2D
	// SensorOffset is how far ahead of the pose the range finder sits.
	SensorOffset float64
	// RangeFloor is the smallest range used, keeping deflated ranges positive.
	RangeFloor float64
}

// Geometry locates a gap in the world.
type Geometry struct {
	StartPoint r2.Point
	EndPoint   r2.Point
	// MidBearing is the scan bearing, in degrees, of the point halfway between both edges.
	MidBearing float64
	// Width is the angle between the edges, in degrees.
	Width float64
}

// Input returns the edge input of the gap for a scan taken at pose.
func (g Gap) Input(pose spatialmath.Pose2D, sensorOffset, rangeFloor float64) EdgeInput {
	return EdgeInput{
		StartBearing: g.StartBearing,
		EndBearing:   g.EndBearing,
		StartRange:   g.StartRange,
		EndRange:     g.EndRange,
		Pose:         pose,
		SensorOffset: sensorOffset,
		RangeFloor:   rangeFloor,
	}
}

// ComputeGeometry places both edges in the world frame and finds the bearing of the midpoint
// between them. With edge ranges d1 and d2 and the angle delta between the edges, the midpoint
// lies acos((d1 + d2 cos(delta)) / sqrt(d1² + d2² + 2 d1 d2 cos(delta))) past the start edge.
func ComputeGeometry(in EdgeInput) Geometry {
	d1 := math.Max(in.StartRange, in.RangeFloor)
	d2 := math.Max(in.EndRange, in.RangeFloor)
	delta := utils.DegToRad(in.EndBearing - in.StartBearing)
	cosDelta := math.Cos(delta)

	mid := (in.StartBearing + in.EndBearing) / 2
	if denom := math.Sqrt(d1*d1 + d2*d2 + 2*d1*d2*cosDelta); denom > 1e-9 && !math.IsNaN(denom) {
		offset := utils.RadToDeg(math.Acos(utils.Clamp((d1+d2*cosDelta)/denom, -1, 1)))
		if delta < 0 {
			offset = -offset
		}
		mid = in.StartBearing + offset
	}

	origin := in.Pose.Forward(in.SensorOffset)
	return Geometry{
		StartPoint: edgePoint(in.Pose, origin, in.StartBearing, d1),
		EndPoint:   edgePoint(in.Pose, origin, in.EndBearing, d2),
		MidBearing: mid,
		Width:      math.Abs(in.EndBearing - in.StartBearing),
	}
}

func edgePoint(pose spatialmath.Pose2D, origin r2.Point, bearing, distance float64) r2.Point {
	yaw := spatialmath.ScanBearingToWorld(pose, bearing)
	return origin.Add(r2.Point{X: math.Cos(yaw), Y: math.Sin(yaw)}.Mul(distance))
}
