package spatialmath

import (
	"math"

	"github.com/golang/geo/r2"

	"github.com/gapnav/localplanner/utils"
)

// ScanAhead is the scan bearing of the robot's forward direction.
const ScanAhead = 90.0

// scanBearingLower bounds the scan bearing window (-90, 270], which puts the only discontinuity
// directly behind the robot.
const scanBearingLower = -90.0

// CompassBearing returns the compass bearing, in degrees, of the offset (dx, dy). Offsets along an
// axis are answered exactly. ok is false when the offset is zero and no bearing exists.
func CompassBearing(dx, dy float64) (bearing float64, ok bool) {
	switch {
	case dx == 0 && dy == 0:
		return 0, false
	case dx == 0 && dy > 0:
		return 0, true
	case dx == 0 && dy < 0:
		return 180, true
	case dy == 0 && dx > 0:
		return 90, true
	case dy == 0 && dx < 0:
		return 270, true
	}
	return utils.ModAngDeg(90 - utils.RadToDeg(math.Atan2(dy, dx))), true
}

// ScanBearing returns the bearing of target as seen from pose, in the scan frame, normalized into
// (-90, 270]. A target at the pose's position is reported dead ahead.
func ScanBearing(pose Pose2D, target r2.Point) float64 {
	offset := target.Sub(pose.Point())
	compass, ok := CompassBearing(offset.X, offset.Y)
	if !ok {
		return ScanAhead
	}
	return NormalizeScanBearing(compass - pose.CompassHeading() + ScanAhead)
}

// NormalizeScanBearing maps a scan bearing in degrees into (-90, 270].
func NormalizeScanBearing(bearing float64) float64 {
	return utils.WrapDeg(bearing, scanBearingLower)
}

// ScanBearingToWorld converts a scan bearing into a world yaw in radians for a robot at pose.
func ScanBearingToWorld(pose Pose2D, bearing float64) float64 {
	return utils.WrapRad(pose.Theta + utils.DegToRad(ScanAhead-bearing))
}

// HeadingError converts a scan bearing into the signed turn, in radians and in (-pi, pi], that
// points the robot at it. Positive values turn left.
func HeadingError(bearing float64) float64 {
	return utils.WrapRad(utils.DegToRad(ScanAhead - bearing))
}
