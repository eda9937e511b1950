// Package spatialmath defines planar poses and the bearing conventions the planner reasons in.
//
// Two angular frames are used:
//   - compass bearings in degrees, measured clockwise from the world +Y axis, in [0, 360).
//   - scan bearings in degrees relative to the robot: 0 is the robot's left, 90 is dead ahead
//     and 180 is the robot's right.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"

	"github.com/gapnav/localplanner/utils"
)

// Pose2D is a planar pose. Theta is the yaw in radians, counter-clockwise from the world +X axis,
// normalized into (-pi, pi].
type Pose2D struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// NewPose2D returns a pose with a normalized heading.
func NewPose2D(x, y, theta float64) Pose2D {
	return Pose2D{X: x, Y: y, Theta: utils.WrapRad(theta)}
}

// Point returns the position of the pose.
func (p Pose2D) Point() r2.Point {
	return r2.Point{X: p.X, Y: p.Y}
}

// DistanceTo is the euclidean distance between the positions of two poses.
func (p Pose2D) DistanceTo(other Pose2D) float64 {
	return p.Point().Sub(other.Point()).Norm()
}

// IsFinite is false if any component is NaN or infinite.
func (p Pose2D) IsFinite() bool {
	return utils.AllFinite(p.X, p.Y, p.Theta)
}

// Forward returns the point `distance` meters ahead of the pose along its heading.
func (p Pose2D) Forward(distance float64) r2.Point {
	return p.Point().Add(r2.Point{X: math.Cos(p.Theta), Y: math.Sin(p.Theta)}.Mul(distance))
}

// CompassHeading converts the pose's yaw into a compass bearing in degrees.
func (p Pose2D) CompassHeading() float64 {
	return utils.ModAngDeg(90 - utils.RadToDeg(p.Theta))
}

func (p Pose2D) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.1f°)", p.X, p.Y, utils.RadToDeg(p.Theta))
}
