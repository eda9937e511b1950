package localplanner

import (
	"math"

	"github.com/gapnav/localplanner/spatialmath"
)

// GoalBearing is the scan bearing, in degrees, of target as seen from pose. A target on top of
// the pose is dead ahead.
func GoalBearing(pose, target spatialmath.Pose2D) float64 {
	return spatialmath.ScanBearing(pose, target.Point())
}

// GoalOnlyHeading is the heading error, in radians, that turns the robot straight at the goal.
func GoalOnlyHeading(goalBearing float64) float64 {
	return spatialmath.HeadingError(goalBearing)
}

// FusedBearing blends the goal and gap bearings. The gap's weight is fusionWeight/e^dmin, so close
// obstacles hand control to the gap and open space hands it back to the goal.
func FusedBearing(goalBearing, gapBearing, dmin, fusionWeight float64) float64 {
	w := fusionWeight / math.Exp(dmin)
	return (w*gapBearing + goalBearing) / (w + 1)
}

// FuseHeading is the heading error, in radians, toward the fused bearing.
func FuseHeading(goalBearing, gapBearing, dmin, fusionWeight float64) float64 {
	return spatialmath.HeadingError(FusedBearing(goalBearing, gapBearing, dmin, fusionWeight))
}
