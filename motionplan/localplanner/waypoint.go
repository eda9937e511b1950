package localplanner

import (
	"github.com/gapnav/localplanner/spatialmath"
)

// SelectWaypoint picks the local target from path: the waypoint at index lookAhead while the path
// is longer than that, otherwise the final waypoint. Once the pose is within tolerance of the
// final waypoint, the final waypoint is always chosen.
func SelectWaypoint(path []spatialmath.Pose2D, pose spatialmath.Pose2D, lookAhead int, tolerance float64) (
	spatialmath.Pose2D, int, error,
) {
	if len(path) == 0 {
		return spatialmath.Pose2D{}, -1, ErrEmptyPath
	}
	last := len(path) - 1
	if pose.DistanceTo(path[last]) < tolerance || len(path) <= lookAhead {
		return path[last], last, nil
	}
	return path[lookAhead], lookAhead, nil
}
