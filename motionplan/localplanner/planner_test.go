package localplanner

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/gapnav/localplanner/lidar"
	"github.com/gapnav/localplanner/logging"
	"github.com/gapnav/localplanner/spatialmath"
	"github.com/gapnav/localplanner/utils"
)

const testSamples = 344

type recordingSink struct {
	mu    sync.Mutex
	diags []Diagnostics
}

func (s *recordingSink) PublishDiagnostics(_ context.Context, diag Diagnostics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diags = append(s.diags, diag)
	return nil
}

func (s *recordingSink) last() Diagnostics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diags[len(s.diags)-1]
}

type fakePoseSource struct {
	ok  bool
	err error
}

func (f fakePoseSource) LatestPose(context.Context) (spatialmath.Pose2D, bool, error) {
	return spatialmath.Pose2D{}, f.ok, f.err
}

// scanFromCanonical builds a raw, counter-clockwise scan whose canonical order is ranges.
func scanFromCanonical(ranges []float64) lidar.RangeScan {
	raw := make([]float64, len(ranges))
	for i, r := range ranges {
		raw[len(ranges)-1-i] = r
	}
	return lidar.RangeScan{
		AngleMin:       -utils.DegToRad(81.5),
		AngleIncrement: utils.DegToRad(163) / testSamples,
		RangeMin:       0.1,
		RangeMax:       30,
		Ranges:         raw,
	}
}

func flatScan(r float64) lidar.RangeScan {
	ranges := make([]float64, testSamples)
	for i := range ranges {
		ranges[i] = r
	}
	return scanFromCanonical(ranges)
}

func windowScan(wall, far float64, from, to int) lidar.RangeScan {
	ranges := make([]float64, testSamples)
	for i := range ranges {
		ranges[i] = wall
		if i >= from && i <= to {
			ranges[i] = far
		}
	}
	return scanFromCanonical(ranges)
}

func straightPath(length float64, n int) []spatialmath.Pose2D {
	path := make([]spatialmath.Pose2D, n)
	for i := range path {
		path[i] = spatialmath.NewPose2D(0, length*float64(i+1)/float64(n), math.Pi/2)
	}
	return path
}

func newTestPlanner(t *testing.T, cfg Config, opts ...Option) (*LocalPlanner, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	opts = append(opts, WithDiagnosticsSink(sink))
	lp, err := NewLocalPlanner(cfg, logging.NewTestLogger(t), opts...)
	test.That(t, err, test.ShouldBeNil)
	return lp, sink
}

var facingNorth = spatialmath.NewPose2D(0, 0, math.Pi/2)

func TestGoalAheadWithoutGaps(t *testing.T) {
	ctx := context.Background()
	lp, sink := newTestPlanner(t, DefaultConfig())
	test.That(t, lp.SetPath(straightPath(5, 10)), test.ShouldBeNil)

	cmd, err := lp.ComputeCommand(ctx, facingNorth, flatScan(10), 0.5)
	test.That(t, err, test.ShouldBeNil)

	diag := sink.last()
	test.That(t, diag.GapAvailable, test.ShouldBeFalse)
	test.That(t, diag.GapCount, test.ShouldEqual, 0)
	test.That(t, diag.ChosenGap, test.ShouldEqual, -1)
	test.That(t, diag.Outcome, test.ShouldEqual, OutcomeGoalOnly)
	test.That(t, diag.TargetIndex, test.ShouldEqual, 9)
	test.That(t, diag.GoalBearing, test.ShouldAlmostEqual, 90, 1e-9)
	test.That(t, diag.PhiFinal, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, diag.DMin, test.ShouldAlmostEqual, 9.75)
	test.That(t, diag.DistanceToGoal, test.ShouldAlmostEqual, 5)

	// The law saturates above the 0.5 m/s limit, so the first filtered sample is k_lin*0.5.
	test.That(t, cmd.Forward(), test.ShouldAlmostEqual, 0.1535*0.5, 1e-12)
	test.That(t, cmd.YawRate(), test.ShouldAlmostEqual, 0, 1e-9)

	state := lp.State()
	test.That(t, state.GapAvailable, test.ShouldBeFalse)
	test.That(t, state.Status, test.ShouldEqual, StatusTracking)
	test.That(t, state.Cycles, test.ShouldEqual, uint64(1))
	test.That(t, state.LastCommand, test.ShouldResemble, cmd)
	test.That(t, lp.IsGoalReached(ctx), test.ShouldBeFalse)
}

func TestGoalWithinTolerance(t *testing.T) {
	ctx := context.Background()
	lp, sink := newTestPlanner(t, DefaultConfig())
	test.That(t, lp.SetPath(straightPath(5, 10)), test.ShouldBeNil)

	// Build up some filter memory first.
	_, err := lp.ComputeCommand(ctx, facingNorth, flatScan(10), 1)
	test.That(t, err, test.ShouldBeNil)

	near := spatialmath.NewPose2D(0.1, 4.9, 0)
	cmd, err := lp.ComputeCommand(ctx, near, flatScan(10), 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cmd.IsZero(), test.ShouldBeTrue)
	test.That(t, cmd, test.ShouldResemble, VelocityCommand{})
	test.That(t, sink.last().Outcome, test.ShouldEqual, OutcomeGoalReached)
	test.That(t, lp.State().Status, test.ShouldEqual, StatusGoalReached)
	test.That(t, lp.IsGoalReached(ctx), test.ShouldBeTrue)

	// The status is sticky until a new path arrives.
	cmd, err = lp.ComputeCommand(ctx, facingNorth, flatScan(10), 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cmd.IsZero(), test.ShouldBeTrue)

	test.That(t, lp.SetPath(straightPath(5, 10)), test.ShouldBeNil)
	test.That(t, lp.IsGoalReached(ctx), test.ShouldBeFalse)
	test.That(t, lp.State().Status, test.ShouldEqual, StatusTracking)
}

func TestGoalReachedNeedsPose(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name   string
		source fakePoseSource
		want   bool
	}{
		{"pose available", fakePoseSource{ok: true}, true},
		{"no pose yet", fakePoseSource{}, false},
		{"source failing", fakePoseSource{ok: true, err: errors.New("localization lost")}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			lp, _ := newTestPlanner(t, DefaultConfig(), WithPoseSource(tc.source))
			test.That(t, lp.SetPath([]spatialmath.Pose2D{spatialmath.NewPose2D(0, 0.1, 0)}), test.ShouldBeNil)
			_, err := lp.ComputeCommand(ctx, facingNorth, flatScan(10), 1)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, lp.State().Status, test.ShouldEqual, StatusGoalReached)
			test.That(t, lp.IsGoalReached(ctx), test.ShouldEqual, tc.want)
		})
	}
}

func TestUnstickRotation(t *testing.T) {
	ctx := context.Background()
	for _, pose := range []spatialmath.Pose2D{
		facingNorth,
		spatialmath.NewPose2D(0, 0, 0),
		spatialmath.NewPose2D(0, 0, -math.Pi/2),
		spatialmath.NewPose2D(0, 0, 3),
	} {
		lp, sink := newTestPlanner(t, DefaultConfig())
		test.That(t, lp.SetPath(straightPath(5, 10)), test.ShouldBeNil)

		// 0.3 m deflates to 0.05 m, under the 0.15 m safety floor, and a flat wall has no gaps.
		cmd, err := lp.ComputeCommand(ctx, pose, flatScan(0.3), 1)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, cmd, test.ShouldResemble, NewVelocityCommand(0, -0.5))
		diag := sink.last()
		test.That(t, diag.Outcome, test.ShouldEqual, OutcomeUnstick)
		test.That(t, diag.GapAvailable, test.ShouldBeFalse)
		test.That(t, diag.DMin, test.ShouldBeLessThanOrEqualTo, 0.15)
	}
}

func TestEmptyScanRoundTrip(t *testing.T) {
	ctx := context.Background()
	lp, sink := newTestPlanner(t, DefaultConfig())
	test.That(t, lp.SetPath(straightPath(5, 10)), test.ShouldBeNil)

	cmd, err := lp.ComputeCommand(ctx, facingNorth, lidar.RangeScan{}, 1)
	test.That(t, errors.Is(err, ErrDegenerateScan), test.ShouldBeTrue)
	test.That(t, cmd, test.ShouldResemble, NewVelocityCommand(0, -0.5))
	diag := sink.last()
	test.That(t, diag.DegenerateScan, test.ShouldBeTrue)
	test.That(t, diag.DMin, test.ShouldEqual, 0.01)

	// A goal on top of the robot must not trip the bearing math.
	lp, _ = newTestPlanner(t, DefaultConfig())
	test.That(t, lp.SetPath([]spatialmath.Pose2D{spatialmath.NewPose2D(0, 0, 0)}), test.ShouldBeNil)
	cmd, err = lp.ComputeCommand(ctx, spatialmath.NewPose2D(0, 0, 0), lidar.RangeScan{}, 1)
	test.That(t, errors.Is(err, ErrDegenerateScan), test.ShouldBeTrue)
	test.That(t, cmd.IsZero(), test.ShouldBeTrue)
	test.That(t, lp.IsGoalReached(ctx), test.ShouldBeTrue)
}

func TestShortScanSteersForGoal(t *testing.T) {
	lp, sink := newTestPlanner(t, DefaultConfig())
	test.That(t, lp.SetPath(straightPath(5, 10)), test.ShouldBeNil)

	// 100 samples cannot hold the 151 sample sector, but every sample is clear.
	scan := flatScan(10)
	scan.Ranges = scan.Ranges[:100]
	cmd, err := lp.ComputeCommand(context.Background(), facingNorth, scan, 1)
	test.That(t, errors.Is(err, ErrDegenerateScan), test.ShouldBeTrue)
	test.That(t, cmd.Forward(), test.ShouldBeGreaterThan, 0)
	test.That(t, sink.last().Outcome, test.ShouldEqual, OutcomeGoalOnly)
	test.That(t, sink.last().DMin, test.ShouldAlmostEqual, 9.75)

	// Short scans do not latch the sensor geometry.
	_, err = lp.ComputeCommand(context.Background(), facingNorth, flatScan(10), 1)
	test.That(t, err, test.ShouldBeNil)
}

func TestGapSteering(t *testing.T) {
	ctx := context.Background()
	lp, sink := newTestPlanner(t, DefaultConfig())
	test.That(t, lp.SetPath(straightPath(5, 10)), test.ShouldBeNil)

	_, err := lp.ComputeCommand(ctx, facingNorth, windowScan(2, 10, 150, 200), 1)
	test.That(t, err, test.ShouldBeNil)

	diag := sink.last()
	test.That(t, diag.GapAvailable, test.ShouldBeTrue)
	test.That(t, diag.GapCount, test.ShouldEqual, 1)
	test.That(t, diag.ChosenGap, test.ShouldEqual, 0)
	test.That(t, diag.Outcome, test.ShouldEqual, OutcomeGap)
	test.That(t, diag.DMin, test.ShouldAlmostEqual, 1.75)
	test.That(t, diag.GapScore, test.ShouldBeGreaterThan, 0)
	// The window is centered slightly right of dead ahead, so the fused bearing sits between it and
	// the goal.
	test.That(t, diag.MovingTo, test.ShouldBeGreaterThan, 90)
	test.That(t, diag.MovingTo, test.ShouldBeLessThan, 95)
	test.That(t, diag.PhiFinal, test.ShouldBeLessThan, 0)
	test.That(t, lp.State().GapAvailable, test.ShouldBeTrue)

	// A gap keeps the robot moving even when the wall is inside the safety floor.
	cmd, err := lp.ComputeCommand(ctx, facingNorth, windowScan(0.3, 10, 150, 200), 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sink.last().Outcome, test.ShouldEqual, OutcomeGap)
	test.That(t, cmd.Forward(), test.ShouldBeGreaterThan, 0)
}

func TestClampedClearanceKeepsMoving(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.ClearanceMin = cfg.SafetyFloor
	_, err := NewLocalPlanner(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "clearance_min")

	cfg = DefaultConfig()
	cfg.SafetyFloor = 0.3
	cfg.ClearanceMin = 0.3
	lp, sink := newTestPlanner(t, cfg)
	test.That(t, lp.SetPath(straightPath(5, 10)), test.ShouldBeNil)

	var cmd VelocityCommand
	for i := 0; i < 3; i++ {
		cmd, err = lp.ComputeCommand(ctx, facingNorth, windowScan(0.3, 10, 150, 200), 1)
		test.That(t, err, test.ShouldBeNil)
		diag := sink.last()
		test.That(t, diag.NonFinite, test.ShouldBeFalse)
		test.That(t, diag.Outcome, test.ShouldEqual, OutcomeGap)
	}
	test.That(t, cmd.Forward(), test.ShouldBeGreaterThan, 0)
	test.That(t, lp.State().NonFinite, test.ShouldEqual, uint64(0))
}

func TestScanMismatch(t *testing.T) {
	ctx := context.Background()
	lp, _ := newTestPlanner(t, DefaultConfig())
	test.That(t, lp.SetPath(straightPath(5, 10)), test.ShouldBeNil)

	first, err := lp.ComputeCommand(ctx, facingNorth, flatScan(10), 1)
	test.That(t, err, test.ShouldBeNil)

	short := flatScan(10)
	short.Ranges = short.Ranges[:300]
	cmd, err := lp.ComputeCommand(ctx, facingNorth, short, 1)
	test.That(t, errors.Is(err, ErrScanMismatch), test.ShouldBeTrue)
	test.That(t, cmd, test.ShouldResemble, first)

	coarse := flatScan(10)
	coarse.AngleIncrement *= 2
	cmd, err = lp.ComputeCommand(ctx, facingNorth, coarse, 1)
	test.That(t, errors.Is(err, ErrScanMismatch), test.ShouldBeTrue)
	test.That(t, cmd, test.ShouldResemble, first)
	test.That(t, lp.State().Cycles, test.ShouldEqual, uint64(1))

	// After a reset any geometry is accepted again.
	test.That(t, lp.Reset(), test.ShouldBeNil)
	_, err = lp.ComputeCommand(ctx, facingNorth, short, 1)
	test.That(t, err, test.ShouldBeNil)
}

func TestPinnedScanSamples(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ScanSamples = 360
	lp, _ := newTestPlanner(t, cfg)
	test.That(t, lp.SetPath(straightPath(5, 10)), test.ShouldBeNil)
	_, err := lp.ComputeCommand(context.Background(), facingNorth, flatScan(10), 1)
	test.That(t, errors.Is(err, ErrScanMismatch), test.ShouldBeTrue)
}

func TestMissingInputs(t *testing.T) {
	ctx := context.Background()

	var zero LocalPlanner
	_, err := zero.ComputeCommand(ctx, facingNorth, flatScan(10), 1)
	test.That(t, err, test.ShouldEqual, ErrUninitialized)
	test.That(t, zero.SetPath(straightPath(5, 10)), test.ShouldEqual, ErrUninitialized)
	test.That(t, zero.IsGoalReached(ctx), test.ShouldBeFalse)

	lp, _ := newTestPlanner(t, DefaultConfig())
	cmd, err := lp.ComputeCommand(ctx, facingNorth, flatScan(10), 1)
	test.That(t, err, test.ShouldEqual, ErrEmptyPath)
	test.That(t, cmd, test.ShouldResemble, VelocityCommand{})
	test.That(t, lp.SetPath(nil), test.ShouldEqual, ErrEmptyPath)

	test.That(t, lp.SetPath(straightPath(5, 10)), test.ShouldBeNil)
	_, err = lp.ComputeCommand(ctx, spatialmath.Pose2D{X: math.NaN()}, flatScan(10), 1)
	test.That(t, errors.Is(err, ErrUninitialized), test.ShouldBeTrue)
	_, err = lp.ComputeCommand(ctx, facingNorth, flatScan(10), math.NaN())
	test.That(t, errors.Is(err, ErrUninitialized), test.ShouldBeTrue)
	test.That(t, lp.State().Cycles, test.ShouldEqual, uint64(0))

	badPath := straightPath(5, 3)
	badPath[1].Y = math.Inf(1)
	err = lp.SetPath(badPath)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "waypoint 1")
	test.That(t, lp.State().PathLength, test.ShouldEqual, 10)
}

func TestSetPathCopies(t *testing.T) {
	lp, sink := newTestPlanner(t, DefaultConfig())
	path := straightPath(5, 10)
	test.That(t, lp.SetPath(path), test.ShouldBeNil)
	firstID := lp.State().PlanID
	test.That(t, firstID, test.ShouldNotEqual, uuid.Nil)

	// Mutating the caller's slice must not move the goal.
	path[9] = spatialmath.NewPose2D(0, 0, 0)
	_, err := lp.ComputeCommand(context.Background(), facingNorth, flatScan(10), 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sink.last().DistanceToGoal, test.ShouldAlmostEqual, 5)
	test.That(t, sink.last().PlanID, test.ShouldEqual, firstID)

	test.That(t, lp.SetPath(path), test.ShouldBeNil)
	test.That(t, lp.State().PlanID, test.ShouldNotEqual, firstID)
}

func TestNonFiniteOutputHeld(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.VelocityGain = math.MaxFloat64
	logger, logs := logging.NewObservedTestLogger(t)
	sink := &recordingSink{}
	lp, err := NewLocalPlanner(cfg, logger, WithDiagnosticsSink(sink))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, lp.SetPath(straightPath(5, 10)), test.ShouldBeNil)

	cmd, err := lp.ComputeCommand(ctx, facingNorth, flatScan(10), 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cmd, test.ShouldResemble, VelocityCommand{})
	test.That(t, sink.last().NonFinite, test.ShouldBeTrue)
	test.That(t, lp.State().NonFinite, test.ShouldEqual, uint64(1))
	test.That(t, logs.FilterMessage("discarding non-finite velocity output").Len(), test.ShouldEqual, 1)

	// Repeats within the throttle interval are counted but not logged.
	_, err = lp.ComputeCommand(ctx, facingNorth, flatScan(10), 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, lp.State().NonFinite, test.ShouldEqual, uint64(2))
	test.That(t, logs.FilterMessage("discarding non-finite velocity output").Len(), test.ShouldEqual, 1)

	lin, ang := lp.synth.filters.Output()
	test.That(t, utils.AllFinite(lin, ang), test.ShouldBeTrue)
}

func TestResetClearsFilters(t *testing.T) {
	ctx := context.Background()
	lp, _ := newTestPlanner(t, DefaultConfig())
	test.That(t, lp.SetPath(straightPath(5, 10)), test.ShouldBeNil)

	first, err := lp.ComputeCommand(ctx, facingNorth, flatScan(10), 1)
	test.That(t, err, test.ShouldBeNil)
	second, err := lp.ComputeCommand(ctx, facingNorth, flatScan(10), 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, second.Forward(), test.ShouldBeGreaterThan, first.Forward())

	test.That(t, lp.Reset(), test.ShouldBeNil)
	test.That(t, lp.State().LastCommand, test.ShouldResemble, VelocityCommand{})
	test.That(t, lp.State().PathLength, test.ShouldEqual, 10)
	again, err := lp.ComputeCommand(ctx, facingNorth, flatScan(10), 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again, test.ShouldResemble, first)
}
