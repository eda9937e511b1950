package navigation

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.uber.org/multierr"

	"github.com/gapnav/localplanner/control"
	"github.com/gapnav/localplanner/logging"
	"github.com/gapnav/localplanner/motionplan/localplanner"
	"github.com/gapnav/localplanner/spatialmath"
)

var _ Service = (*Runner)(nil)

// Dependencies are the collaborators a Runner reads from and writes to.
type Dependencies struct {
	Snapshot *Snapshot
	Base     Base
	// Diagnostics is optional.
	Diagnostics localplanner.DiagnosticsSink
	// Clock drives the planning loop. Nil uses the wall clock.
	Clock clock.Clock
}

// Runner plans at a fixed rate while in waypoint mode, reading the snapshot at the start of every
// cycle and sending the resulting command to the base.
type Runner struct {
	logger     logging.Logger
	conf       Config
	snapshot   *Snapshot
	base       Base
	planner    *localplanner.LocalPlanner
	loop       *control.Loop
	stopOnGoal bool

	mu          sync.Mutex
	mode        Mode
	pathVersion uint64
	goalLogged  bool
}

// NewRunner builds the planner described by conf and a stopped planning loop. Call Start to begin
// planning.
func NewRunner(conf Config, deps Dependencies, logger logging.Logger) (*Runner, error) {
	if err := conf.Validate("navigation"); err != nil {
		return nil, err
	}
	if deps.Snapshot == nil || deps.Base == nil {
		return nil, errors.New("navigation needs a snapshot and a base")
	}
	plannerCfg, err := localplanner.ConfigFromAttributes(conf.Planner, logger)
	if err != nil {
		return nil, err
	}
	opts := []localplanner.Option{localplanner.WithPoseSource(deps.Snapshot)}
	if deps.Diagnostics != nil {
		opts = append(opts, localplanner.WithDiagnosticsSink(deps.Diagnostics))
	}
	planner, err := localplanner.NewLocalPlanner(plannerCfg, logger.Sublogger("planner"), opts...)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		logger:     logger,
		conf:       conf,
		snapshot:   deps.Snapshot,
		base:       deps.Base,
		planner:    planner,
		stopOnGoal: conf.StopOnGoal,
	}
	loop, err := control.NewLoop(logger.Sublogger("loop"), control.LoopConfig{Frequency: conf.FrequencyHz}, r, deps.Clock)
	if err != nil {
		return nil, err
	}
	r.loop = loop
	return r, nil
}

// Planner exposes the underlying planner.
func (r *Runner) Planner() *localplanner.LocalPlanner {
	return r.planner
}

// Period is the time between planning cycles.
func (r *Runner) Period() time.Duration {
	return r.loop.Period()
}

// Start begins the planning loop.
func (r *Runner) Start(ctx context.Context) error {
	return r.loop.Start(ctx)
}

// Step runs one planning cycle. Outside waypoint mode it does nothing.
func (r *Runner) Step(ctx context.Context, _ time.Duration) error {
	ctx, span := trace.StartSpan(ctx, "navigation::Step")
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mode != ModeWaypoint {
		return nil
	}

	path, version := r.snapshot.LatestPath()
	if path != nil && version != r.pathVersion {
		if err := r.planner.SetPath(path.Poses()); err != nil {
			return errors.Wrapf(err, "rejected path %q", path.DestinationID())
		}
		r.pathVersion = version
		r.goalLogged = false
	}

	pose, ok, err := r.snapshot.LatestPose(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrap(localplanner.ErrUninitialized, "no pose received yet")
	}
	scan, ok, err := r.snapshot.LatestScan(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrap(localplanner.ErrUninitialized, "no scan received yet")
	}

	cmd, planErr := r.planner.ComputeCommand(ctx, pose, scan, r.snapshot.LinearLimit())
	if errors.Is(planErr, localplanner.ErrUninitialized) {
		return planErr
	}
	if err := r.base.SetVelocity(ctx, cmd.Linear, cmd.Angular, nil); err != nil {
		return multierr.Combine(planErr, errors.Wrap(err, "failed to command base"))
	}

	if r.planner.IsGoalReached(ctx) && !r.goalLogged {
		r.goalLogged = true
		r.logger.CInfow(ctx, "reached destination", "destination", destinationID(path))
		if r.stopOnGoal {
			r.mode = ModeManual
		}
	}
	return planErr
}

func destinationID(path *Path) string {
	if path == nil {
		return ""
	}
	return path.DestinationID()
}

// Mode returns the current mode.
func (r *Runner) Mode(ctx context.Context) (Mode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode, nil
}

// SetMode switches modes. Entering manual mode stops the base; entering waypoint mode starts from
// fresh filter memories.
func (r *Runner) SetMode(ctx context.Context, mode Mode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if mode == r.mode {
		return nil
	}
	r.logger.CInfow(ctx, "switching navigation mode", "from", r.mode.String(), "to", mode.String())
	switch mode {
	case ModeManual:
		r.mode = mode
		return r.base.Stop(ctx, nil)
	case ModeWaypoint:
		if err := r.planner.Reset(); err != nil {
			return err
		}
		r.mode = mode
		return nil
	default:
		return errors.Errorf("unknown navigation mode %d", mode)
	}
}

// Location returns the latest pose.
func (r *Runner) Location(ctx context.Context) (spatialmath.Pose2D, error) {
	pose, ok, err := r.snapshot.LatestPose(ctx)
	if err != nil {
		return spatialmath.Pose2D{}, err
	}
	if !ok {
		return spatialmath.Pose2D{}, errors.New("no pose received yet")
	}
	return pose, nil
}

// Path returns the latest path, nil if none was set.
func (r *Runner) Path(ctx context.Context) (*Path, error) {
	path, _ := r.snapshot.LatestPath()
	return path, nil
}

// SetPath hands a new path to the planner on its next cycle.
func (r *Runner) SetPath(ctx context.Context, path *Path) error {
	if path == nil {
		return localplanner.ErrEmptyPath
	}
	r.snapshot.UpdatePath(path)
	return nil
}

// Close stops the planning loop and the base.
func (r *Runner) Close(ctx context.Context) error {
	r.loop.Stop()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = ModeManual
	return r.base.Stop(ctx, nil)
}
