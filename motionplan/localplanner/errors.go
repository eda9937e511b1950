package localplanner

import (
	"github.com/pkg/errors"

	"github.com/gapnav/localplanner/lidar"
)

var (
	// ErrUninitialized is returned when the planner was not constructed with NewLocalPlanner, or a
	// cycle is missing a usable pose or speed limit. No command is issued.
	ErrUninitialized = errors.New("local planner is missing required inputs")

	// ErrEmptyPath is returned when a path has no waypoints, or a cycle runs before any path was
	// set. The previous command is returned alongside it.
	ErrEmptyPath = errors.New("global path has no waypoints")

	// ErrDegenerateScan is returned when a scan is too short for the forward sector. The cycle
	// still produces a command, steering for the goal alone.
	ErrDegenerateScan = lidar.ErrDegenerateScan

	// ErrScanMismatch is returned when a scan's length or angular step differs from the sensor
	// geometry the planner latched. The previous command is returned alongside it.
	ErrScanMismatch = errors.New("scan geometry changed")

	// ErrNonFiniteOutput marks a cycle whose velocity law produced NaN or infinity. The planner
	// recovers by repeating its last good command, so it is only seen in logs and diagnostics.
	ErrNonFiniteOutput = errors.New("velocity output is not finite")
)
