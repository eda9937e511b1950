package navigation

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/gapnav/localplanner/spatialmath"
)

// Path describes a series of poses the robot will travel through.
type Path struct {
	destinationID string
	poses         []spatialmath.Pose2D
}

type pathJSON struct {
	DestinationID string               `json:"destination_id"`
	Poses         []spatialmath.Pose2D `json:"poses"`
}

// NewPath constructs a Path from a slice of poses and ID. The poses are copied.
func NewPath(id string, poses []spatialmath.Pose2D) (*Path, error) {
	if len(poses) == 0 {
		return nil, errors.New("cannot construct a path with no poses")
	}
	return &Path{
		destinationID: id,
		poses:         append([]spatialmath.Pose2D(nil), poses...),
	}, nil
}

// DestinationID returns the ID of the Path.
func (p *Path) DestinationID() string {
	return p.destinationID
}

// Poses returns a copy of the poses the Path is comprised of.
func (p *Path) Poses() []spatialmath.Pose2D {
	return append([]spatialmath.Pose2D(nil), p.poses...)
}

// Destination is the final pose of the Path.
func (p *Path) Destination() spatialmath.Pose2D {
	return p.poses[len(p.poses)-1]
}

// Len is the number of poses in the Path.
func (p *Path) Len() int {
	return len(p.poses)
}

// MarshalJSON encodes the path as its ID and poses.
func (p *Path) MarshalJSON() ([]byte, error) {
	return json.Marshal(pathJSON{DestinationID: p.destinationID, Poses: p.poses})
}

// UnmarshalJSON decodes a path, rejecting one without poses.
func (p *Path) UnmarshalJSON(data []byte) error {
	var raw pathJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	path, err := NewPath(raw.DestinationID, raw.Poses)
	if err != nil {
		return errors.Wrapf(err, "path %q", raw.DestinationID)
	}
	*p = *path
	return nil
}
