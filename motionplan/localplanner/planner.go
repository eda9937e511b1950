// Package localplanner turns a global path, a pose and a planar range scan into one velocity
// command per control cycle. Each cycle picks a look-ahead waypoint, segments the scan into free
// gaps, scores the gaps against the goal, blends the best gap's bearing with the goal bearing by
// obstacle proximity, and feeds the resulting heading error through smoothed velocity laws.
package localplanner

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"golang.org/x/time/rate"

	"github.com/gapnav/localplanner/lidar"
	"github.com/gapnav/localplanner/logging"
	"github.com/gapnav/localplanner/motionplan/gap"
	"github.com/gapnav/localplanner/spatialmath"
	"github.com/gapnav/localplanner/utils"
)

// scanIncrementTolerance is how far, in radians, a scan's angular step may drift from the latched
// step before the scan is rejected.
const scanIncrementTolerance = 1e-9

// nonFiniteLogInterval throttles the warning logged for discarded velocity outputs.
const nonFiniteLogInterval = time.Second

// PoseSource reports whether a localized pose is currently available. ok is false until the first
// pose arrives.
type PoseSource interface {
	LatestPose(ctx context.Context) (pose spatialmath.Pose2D, ok bool, err error)
}

// Option customizes a LocalPlanner.
type Option func(*LocalPlanner)

// WithPoseSource makes IsGoalReached confirm pose availability with src.
func WithPoseSource(src PoseSource) Option {
	return func(lp *LocalPlanner) {
		lp.poseSource = src
	}
}

// WithDiagnosticsSink publishes the diagnostics of every cycle to sink.
func WithDiagnosticsSink(sink DiagnosticsSink) Option {
	return func(lp *LocalPlanner) {
		lp.sink = sink
	}
}

// LocalPlanner is a reactive gap following planner. It runs one cycle at a time; its methods are
// safe to call from multiple goroutines. The zero value is unusable and reports ErrUninitialized.
type LocalPlanner struct {
	cfg        Config
	logger     logging.Logger
	poseSource PoseSource
	sink       DiagnosticsSink

	mu          sync.Mutex
	initialized bool
	synth       *synthesizer

	path   []spatialmath.Pose2D
	planID uuid.UUID

	status       Status
	gapAvailable bool
	lastCommand  VelocityCommand
	lastOutcome  Outcome
	poseSeen     bool

	scanSamples   int
	scanIncrement float64
	incrementSet  bool

	cycles       uint64
	nonFinite    uint64
	nonFiniteLog rate.Sometimes
}

// NewLocalPlanner validates cfg and returns a planner with no path.
func NewLocalPlanner(cfg Config, logger logging.Logger, opts ...Option) (*LocalPlanner, error) {
	if err := cfg.Validate("planner"); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewBlankLogger("localplanner")
	}
	lp := &LocalPlanner{
		cfg:          cfg,
		logger:       logger,
		nonFiniteLog: rate.Sometimes{Interval: nonFiniteLogInterval},
	}
	for _, opt := range opts {
		opt(lp)
	}
	synth, err := newSynthesizer(&lp.cfg)
	if err != nil {
		return nil, err
	}
	lp.synth = synth
	lp.scanSamples = cfg.ScanSamples
	lp.initialized = true
	return lp, nil
}

// Config returns a copy of the planner's configuration.
func (lp *LocalPlanner) Config() Config {
	return lp.cfg
}

// SetPath replaces the active path and resets the status to tracking. The planner keeps its own
// copy of path. An empty path is rejected with ErrEmptyPath and the active path is kept.
func (lp *LocalPlanner) SetPath(path []spatialmath.Pose2D) error {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if !lp.initialized {
		return ErrUninitialized
	}
	if len(path) == 0 {
		return ErrEmptyPath
	}
	for i, wp := range path {
		if !wp.IsFinite() {
			return errors.Errorf("waypoint %d of the global path is not finite: %v", i, wp)
		}
	}

	lp.path = append([]spatialmath.Pose2D(nil), path...)
	lp.planID = uuid.New()
	lp.status = StatusTracking
	lp.gapAvailable = false
	lp.logger.Infow("received global path",
		"plan_id", lp.planID.String(),
		"waypoints", len(lp.path),
		"goal", lp.path[len(lp.path)-1].String(),
	)
	return nil
}

// ComputeCommand runs one planning cycle against pose and scan. linearLimit caps the forward
// speed, usually at the speed last commanded by the host's controller; +Inf leaves it uncapped
// and NaN means no limit has been received yet.
//
// A cycle that cannot run returns the previous command with ErrEmptyPath or ErrScanMismatch, or a
// zero command with ErrUninitialized. A scan too short for the forward sector still produces a
// command, steering for the goal alone, returned together with ErrDegenerateScan.
func (lp *LocalPlanner) ComputeCommand(
	ctx context.Context,
	pose spatialmath.Pose2D,
	scan lidar.RangeScan,
	linearLimit float64,
) (VelocityCommand, error) {
	ctx, span := trace.StartSpan(ctx, "localplanner::ComputeCommand")
	defer span.End()

	lp.mu.Lock()
	defer lp.mu.Unlock()

	if !lp.initialized {
		return VelocityCommand{}, ErrUninitialized
	}
	if !pose.IsFinite() {
		return VelocityCommand{}, errors.Wrapf(ErrUninitialized, "pose %v is not finite", pose)
	}
	if math.IsNaN(linearLimit) {
		return VelocityCommand{}, errors.Wrap(ErrUninitialized, "no linear speed limit received")
	}
	lp.poseSeen = true

	diag := Diagnostics{
		PlanID:      lp.planID,
		PathLength:  len(lp.path),
		Cycle:       lp.cycles,
		TargetIndex: -1,
		ChosenGap:   -1,
		Status:      lp.status,
		Outcome:     OutcomeHeld,
		Command:     lp.lastCommand,
	}
	if len(lp.path) == 0 {
		lp.publish(ctx, diag)
		return lp.lastCommand, ErrEmptyPath
	}

	ranges := scan.Canonical(lp.cfg.InflationMargin)
	clearance, scanErr := lidar.ForwardClearance(ranges, lp.cfg.SectorMargin, lp.cfg.ClearanceFloor)
	degenerate := scanErr != nil
	if !degenerate {
		if err := lp.checkScanGeometry(scan); err != nil {
			lp.publish(ctx, diag)
			return lp.lastCommand, err
		}
	}

	target, targetIndex, err := SelectWaypoint(lp.path, pose, lp.cfg.LookAhead, lp.cfg.GoalTolerance)
	if err != nil {
		return lp.lastCommand, err
	}
	distToGoal := pose.DistanceTo(lp.path[len(lp.path)-1])
	goalBearing := GoalBearing(pose, target)

	phi := GoalOnlyHeading(goalBearing)
	movingTo := goalBearing
	var gaps gap.Result
	if !degenerate {
		gaps = gap.Extract(ranges, lp.cfg.gapConfig(len(ranges)))
	}
	if gaps.Available {
		geoms := make([]gap.Geometry, 0, len(gaps.Gaps))
		for _, g := range gaps.Gaps {
			geoms = append(geoms, gap.ComputeGeometry(g.Input(pose, lp.cfg.SensorOffset, lp.cfg.ClearanceFloor)))
		}
		chosen, scores := lp.cfg.scoring().Select(geoms, goalBearing)
		movingTo = FusedBearing(goalBearing, geoms[chosen].MidBearing, clearance.DMin, lp.cfg.FusionWeight)
		phi = spatialmath.HeadingError(movingTo)
		diag.ChosenGap = chosen
		diag.GapScore = scores[chosen]
	}
	lp.gapAvailable = gaps.Available

	// The filters advance every cycle, even when a terminal condition overrides their output.
	cmd, synthErr := lp.synth.step(phi, clearance.DMin, linearLimit)
	if synthErr != nil {
		lp.nonFinite++
		diag.NonFinite = true
		lp.nonFiniteLog.Do(func() {
			lp.logger.CWarnw(ctx, "discarding non-finite velocity output",
				"phi_final", phi, "dmin", clearance.DMin, "held", cmd.String(), "total", lp.nonFinite)
		})
	}

	outcome := OutcomeGoalOnly
	if gaps.Available {
		outcome = OutcomeGap
	}
	switch {
	case lp.status == StatusGoalReached || distToGoal < lp.cfg.GoalTolerance:
		if lp.status != StatusGoalReached {
			lp.logger.CInfow(ctx, "goal reached", "plan_id", lp.planID.String(), "distance", distToGoal)
		}
		lp.status = StatusGoalReached
		cmd = VelocityCommand{}
		outcome = OutcomeGoalReached
	case gaps.Available:
		// steer through the chosen gap
	case distToGoal > lp.cfg.GoalTolerance && clearance.DMin > lp.cfg.SafetyFloor:
		// open space, steer for the goal
	default:
		if lp.lastOutcome != OutcomeUnstick {
			lp.logger.CInfow(ctx, "no gap and obstacle too close, rotating in place", "dmin", clearance.DMin)
		}
		cmd = NewVelocityCommand(0, lp.cfg.UnstickAngular)
		outcome = OutcomeUnstick
	}

	lp.lastCommand = cmd
	lp.cycles++

	diag.TargetIndex = targetIndex
	diag.DistanceToGoal = distToGoal
	diag.GoalBearing = goalBearing
	diag.MovingTo = movingTo
	diag.PhiFinal = phi
	diag.DMin = clearance.DMin
	diag.GapAvailable = gaps.Available
	diag.GapCount = len(gaps.Gaps)
	diag.DegenerateScan = degenerate
	diag.Outcome = outcome
	diag.Status = lp.status
	diag.Command = cmd
	lp.lastOutcome = outcome

	lp.logger.CDebugw(ctx, "planning cycle",
		"cycle", diag.Cycle,
		"target_index", targetIndex,
		"distance_to_goal", distToGoal,
		"goal_bearing", goalBearing,
		"moving_to", movingTo,
		"phi_final", phi,
		"dmin", clearance.DMin,
		"gaps", diag.GapCount,
		"chosen_gap", diag.ChosenGap,
		"outcome", string(outcome),
		"linear", cmd.Forward(),
		"angular", cmd.YawRate(),
	)
	lp.publish(ctx, diag)

	if degenerate {
		return cmd, errors.Wrapf(scanErr, "%d samples with a %d sample sector margin", scan.Len(), lp.cfg.SectorMargin)
	}
	return cmd, nil
}

// checkScanGeometry latches the sensor geometry from the first usable scan and rejects any later
// scan that disagrees with it.
func (lp *LocalPlanner) checkScanGeometry(scan lidar.RangeScan) error {
	n := scan.Len()
	if lp.scanSamples == 0 {
		lp.scanSamples = n
		lp.logger.Infow("latched scan geometry", "samples", n, "angle_increment", scan.AngleIncrement)
	} else if n != lp.scanSamples {
		return errors.Wrapf(ErrScanMismatch, "got %d samples, expected %d", n, lp.scanSamples)
	}
	if !lp.incrementSet {
		lp.scanIncrement = scan.AngleIncrement
		lp.incrementSet = true
		return nil
	}
	if !utils.Float64AlmostEqual(scan.AngleIncrement, lp.scanIncrement, scanIncrementTolerance) {
		return errors.Wrapf(ErrScanMismatch, "got an angle increment of %v, expected %v",
			scan.AngleIncrement, lp.scanIncrement)
	}
	return nil
}

func (lp *LocalPlanner) publish(ctx context.Context, diag Diagnostics) {
	if lp.sink == nil {
		return
	}
	if err := lp.sink.PublishDiagnostics(ctx, diag); err != nil {
		lp.logger.CDebugw(ctx, "failed to publish diagnostics", "error", err)
	}
}

// IsGoalReached is true once the robot came within tolerance of the final waypoint and a pose is
// still available. Without a PoseSource, any pose passed to ComputeCommand counts.
func (lp *LocalPlanner) IsGoalReached(ctx context.Context) bool {
	lp.mu.Lock()
	reached := lp.initialized && lp.status == StatusGoalReached
	poseSeen := lp.poseSeen
	src := lp.poseSource
	lp.mu.Unlock()

	if !reached {
		return false
	}
	if src == nil {
		return poseSeen
	}
	_, ok, err := src.LatestPose(ctx)
	if err != nil {
		lp.logger.CDebugw(ctx, "pose unavailable for goal check", "error", err)
		return false
	}
	return ok
}

// State returns a snapshot of the planner's state.
func (lp *LocalPlanner) State() State {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return State{
		Status:       lp.status,
		GapAvailable: lp.gapAvailable,
		PlanID:       lp.planID,
		PathLength:   len(lp.path),
		LastCommand:  lp.lastCommand,
		Cycles:       lp.cycles,
		NonFinite:    lp.nonFinite,
	}
}

// Reset re-initializes the planner: filter memories, status, last command and the latched scan
// geometry are cleared. The active path is kept.
func (lp *LocalPlanner) Reset() error {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if !lp.initialized {
		return ErrUninitialized
	}
	if err := lp.synth.reset(); err != nil {
		return err
	}
	lp.status = StatusTracking
	lp.gapAvailable = false
	lp.lastCommand = VelocityCommand{}
	lp.lastOutcome = ""
	lp.scanSamples = lp.cfg.ScanSamples
	lp.scanIncrement = 0
	lp.incrementSet = false
	lp.logger.Debug("planner reset")
	return nil
}
