// Package navigation drives a robot base with the local planner, feeding it the latest pose, scan
// and path received from the robot.
package navigation

import (
	"context"

	goutils "go.viam.com/utils"

	"github.com/gapnav/localplanner/control"
	"github.com/gapnav/localplanner/spatialmath"
	"github.com/gapnav/localplanner/utils"
)

// Mode describes what mode to operate the service in.
type Mode uint8

// The set of known modes.
const (
	ModeManual = Mode(iota)
	ModeWaypoint
)

func (m Mode) String() string {
	switch m {
	case ModeManual:
		return "manual"
	case ModeWaypoint:
		return "waypoint"
	default:
		return "unknown"
	}
}

// A Service controls the navigation of a robot along a global path.
type Service interface {
	Mode(ctx context.Context) (Mode, error)
	SetMode(ctx context.Context, mode Mode) error

	Location(ctx context.Context) (spatialmath.Pose2D, error)

	Path(ctx context.Context) (*Path, error)
	SetPath(ctx context.Context, path *Path) error

	Close(ctx context.Context) error
}

// Config describes how to configure the service.
type Config struct {
	// FrequencyHz is the planning rate.
	FrequencyHz float64 `json:"frequency_hz"`
	// Planner holds planner attributes; missing attributes take their defaults.
	Planner utils.AttributeMap `json:"planner,omitempty"`
	// StopOnGoal switches the service to manual mode once the goal is reached.
	StopOnGoal bool `json:"stop_on_goal"`
}

// Validate ensures all parts of the config are valid.
func (config *Config) Validate(path string) error {
	if config.FrequencyHz == 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "frequency_hz")
	}
	if err := (control.LoopConfig{Frequency: config.FrequencyHz}).Validate(); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	return nil
}
