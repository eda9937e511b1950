package localplanner

import (
	"context"

	"github.com/google/uuid"
)

// Status is the planner's progress along the active path.
type Status int

const (
	// StatusTracking means the planner is driving toward the goal.
	StatusTracking Status = iota
	// StatusGoalReached means the robot came within tolerance of the final waypoint. It is sticky
	// until the next SetPath.
	StatusGoalReached
)

func (s Status) String() string {
	switch s {
	case StatusTracking:
		return "tracking"
	case StatusGoalReached:
		return "goal_reached"
	default:
		return "unknown"
	}
}

// Outcome names the branch a cycle's command came from.
type Outcome string

// The branches a cycle can end in.
const (
	OutcomeGap         Outcome = "gap"
	OutcomeGoalOnly    Outcome = "goal_only"
	OutcomeUnstick     Outcome = "unstick"
	OutcomeGoalReached Outcome = "goal_reached"
	OutcomeHeld        Outcome = "held"
)

// State is a snapshot of the planner's cross-cycle state.
type State struct {
	Status       Status
	GapAvailable bool
	PlanID       uuid.UUID
	PathLength   int
	LastCommand  VelocityCommand
	// Cycles counts ComputeCommand calls that produced a command.
	Cycles uint64
	// NonFinite counts cycles whose velocity output was rejected.
	NonFinite uint64
}

// Diagnostics describes one planning cycle for visualization and logging. Bearings are scan
// bearings in degrees; PhiFinal is in radians.
type Diagnostics struct {
	PlanID     uuid.UUID `json:"plan_id"`
	PathLength int       `json:"path_length"`
	Cycle      uint64    `json:"cycle"`

	TargetIndex    int     `json:"target_index"`
	DistanceToGoal float64 `json:"distance_to_goal"`
	GoalBearing    float64 `json:"goal_bearing"`
	// MovingTo is the bearing the robot is steering for: the fused bearing when a gap was chosen,
	// the goal bearing otherwise.
	MovingTo float64 `json:"moving_to"`
	PhiFinal float64 `json:"phi_final"`

	DMin         float64 `json:"dmin"`
	GapAvailable bool    `json:"gap_available"`
	GapCount     int     `json:"gap_count"`
	// ChosenGap indexes the selected gap, -1 when none was.
	ChosenGap int     `json:"chosen_gap"`
	GapScore  float64 `json:"gap_score"`

	DegenerateScan bool `json:"degenerate_scan"`
	NonFinite      bool `json:"non_finite"`

	Outcome Outcome         `json:"outcome"`
	Status  Status          `json:"status"`
	Command VelocityCommand `json:"command"`
}

// DiagnosticsSink receives the diagnostics of every cycle. Publishing must not block for long;
// errors are logged and otherwise ignored.
type DiagnosticsSink interface {
	PublishDiagnostics(ctx context.Context, diag Diagnostics) error
}
