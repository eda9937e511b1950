// Package main replays a recorded drive through the local planner and prints what it commanded.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/invopop/jsonschema"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.viam.com/utils"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/gapnav/localplanner/lidar"
	"github.com/gapnav/localplanner/logging"
	"github.com/gapnav/localplanner/motionplan/localplanner"
	"github.com/gapnav/localplanner/services/navigation"
	"github.com/gapnav/localplanner/spatialmath"
	rutils "github.com/gapnav/localplanner/utils"
)

var logger = logging.NewLogger("replay")

// Arguments for the command.
type Arguments struct {
	Scenario string `flag:"0,usage=scenario json file"`
	Config   string `flag:"config,usage=planner attributes json file"`
	Debug    bool   `flag:"debug,usage=log every planning cycle regardless of --log-level"`
	LogLevel string `flag:"log-level,default=info,usage=minimum level of the remaining logs"`
	Plot     string `flag:"plot,usage=write the path and the driven poses to this png"`
	LogFile  string `flag:"log-file,usage=also write logs to this rotated file"`
	Schema   bool   `flag:"schema,usage=print the planner attribute json schema and exit"`
}

// speedBins is the number of histogram buckets for commanded forward speeds.
const speedBins = 8

// Frame is one recorded planning cycle. A frame without a scan reuses the previous frame's scan,
// and a frame without a linear limit reuses the previous limit.
type Frame struct {
	Pose        spatialmath.Pose2D `json:"pose"`
	Scan        *lidar.RangeScan   `json:"scan,omitempty"`
	LinearLimit *float64           `json:"linear_limit,omitempty"`
}

// Scenario is a recorded drive.
type Scenario struct {
	FrequencyHz float64 `json:"frequency_hz"`
	// LinearLimit caps the forward speed until a frame changes it. Omitted means uncapped.
	LinearLimit *float64         `json:"linear_limit,omitempty"`
	Path        *navigation.Path `json:"path"`
	Frames      []Frame          `json:"frames"`
}

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.Schema {
		return printSchema(os.Stdout)
	}
	if argsParsed.Scenario == "" {
		return errors.New("a scenario file is required")
	}
	level, err := logging.LevelFromString(argsParsed.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	if argsParsed.Debug {
		// Tags this run's cycle logs with a random key.
		ctx = logging.EnableDebugMode(ctx, "")
	}
	if argsParsed.LogFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   argsParsed.LogFile,
			MaxSize:    64,
			MaxBackups: 2,
		}
		defer utils.UncheckedErrorFunc(rotating.Close)
		logger.AddAppender(logging.NewWriterAppender(rotating))
	}

	scenario, err := readScenario(argsParsed.Scenario)
	if err != nil {
		return err
	}
	var attrs rutils.AttributeMap
	if argsParsed.Config != "" {
		if attrs, err = rutils.ReadAttributeMapFile(argsParsed.Config); err != nil {
			return err
		}
	}
	_, err = replay(ctx, scenario, attrs, logger, os.Stdout)
	if err != nil {
		return err
	}
	if argsParsed.Plot != "" {
		return plotDrive(scenario, argsParsed.Plot)
	}
	return nil
}

func printSchema(out io.Writer) error {
	schema := jsonschema.Reflect(&localplanner.Config{})
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func readScenario(path string) (*Scenario, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scenario")
	}
	var scenario Scenario
	if err := json.Unmarshal(data, &scenario); err != nil {
		return nil, errors.Wrapf(err, "failed to parse scenario %q", path)
	}
	if scenario.Path == nil {
		return nil, errors.Wrapf(localplanner.ErrEmptyPath, "scenario %q", path)
	}
	if scenario.FrequencyHz == 0 {
		scenario.FrequencyHz = 10
	}
	return &scenario, nil
}

// collector keeps every cycle's diagnostics.
type collector struct {
	diags []localplanner.Diagnostics
}

func (c *collector) PublishDiagnostics(_ context.Context, diag localplanner.Diagnostics) error {
	c.diags = append(c.diags, diag)
	return nil
}

// Summary aggregates a replay.
type Summary struct {
	Cycles      int
	GoalReached bool
	Unstick     int
	MeanLinear  float64
	MaxLinear   float64
	MinDMin     float64
	MedianDMin  float64
}

func replay(
	ctx context.Context,
	scenario *Scenario,
	attrs rutils.AttributeMap,
	logger logging.Logger,
	out io.Writer,
) (Summary, error) {
	snapshot := navigation.NewSnapshot()
	base := &navigation.RecordingBase{}
	diags := &collector{}
	runner, err := navigation.NewRunner(navigation.Config{
		FrequencyHz: scenario.FrequencyHz,
		Planner:     attrs,
	}, navigation.Dependencies{
		Snapshot:    snapshot,
		Base:        base,
		Diagnostics: navigation.DiagnosticsFanout{diags, navigation.LoggingDiagnostics{Logger: logger}},
	}, logger)
	if err != nil {
		return Summary{}, err
	}
	if err := runner.SetPath(ctx, scenario.Path); err != nil {
		return Summary{}, err
	}
	if err := runner.SetMode(ctx, navigation.ModeWaypoint); err != nil {
		return Summary{}, err
	}

	limit := math.Inf(1)
	if scenario.LinearLimit != nil {
		limit = *scenario.LinearLimit
	}
	snapshot.UpdateLinearLimit(limit)
	for i, frame := range scenario.Frames {
		snapshot.UpdatePose(frame.Pose)
		if frame.Scan != nil {
			snapshot.UpdateScan(*frame.Scan)
		}
		if frame.LinearLimit != nil {
			snapshot.UpdateLinearLimit(*frame.LinearLimit)
		}
		if err := runner.Step(ctx, runner.Period()); err != nil {
			logger.CWarnw(ctx, "cycle failed", "frame", i, "error", err)
		}
	}

	summary, err := summarize(diags.diags, runner.Planner().IsGoalReached(ctx))
	if err != nil {
		return Summary{}, err
	}
	fmt.Fprintln(out, cycleTable(diags.diags))
	fmt.Fprintln(out, summaryTable(summary))
	if err := speedHistogram(out, diags.diags); err != nil {
		return Summary{}, err
	}
	return summary, runner.Close(ctx)
}

func summarize(diags []localplanner.Diagnostics, goalReached bool) (Summary, error) {
	summary := Summary{Cycles: len(diags), GoalReached: goalReached}
	if len(diags) == 0 {
		return summary, nil
	}
	linear := stats.Float64Data(forwardSpeeds(diags))
	dmin := stats.Float64Data(lo.Map(diags, func(diag localplanner.Diagnostics, _ int) float64 {
		return diag.DMin
	}))
	summary.Unstick = lo.CountBy(diags, func(diag localplanner.Diagnostics) bool {
		return diag.Outcome == localplanner.OutcomeUnstick
	})
	var err error
	if summary.MeanLinear, err = stats.Mean(linear); err != nil {
		return Summary{}, err
	}
	if summary.MaxLinear, err = stats.Max(linear); err != nil {
		return Summary{}, err
	}
	if summary.MinDMin, err = stats.Min(dmin); err != nil {
		return Summary{}, err
	}
	if summary.MedianDMin, err = stats.Median(dmin); err != nil {
		return Summary{}, err
	}
	return summary, nil
}

func forwardSpeeds(diags []localplanner.Diagnostics) []float64 {
	return lo.Map(diags, func(diag localplanner.Diagnostics, _ int) float64 {
		return diag.Command.Forward()
	})
}

// speedHistogram prints how the commanded forward speeds were distributed. A drive at a single
// speed has nothing to bucket and prints nothing.
func speedHistogram(out io.Writer, diags []localplanner.Diagnostics) error {
	speeds := forwardSpeeds(diags)
	if len(speeds) == 0 || lo.Min(speeds) == lo.Max(speeds) {
		return nil
	}
	fmt.Fprintln(out, "forward speed (m/s)")
	return histogram.Fprint(out, histogram.Hist(speedBins, speeds), histogram.Linear(40))
}

// plotDrive draws the global path and the recorded poses into a png.
func plotDrive(scenario *Scenario, file string) error {
	poses := scenario.Path.Poses()
	path := make(plotter.XYs, len(poses))
	for i, pose := range poses {
		path[i].X, path[i].Y = pose.X, pose.Y
	}
	driven := make(plotter.XYs, len(scenario.Frames))
	for i, frame := range scenario.Frames {
		driven[i].X, driven[i].Y = frame.Pose.X, frame.Pose.Y
	}

	p := plot.New()
	p.Title.Text = "replay"
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"
	if err := plotutil.AddLinePoints(p, "path", path, "driven", driven); err != nil {
		return errors.Wrap(err, "failed to plot drive")
	}
	return errors.Wrap(p.Save(6*vg.Inch, 6*vg.Inch, file), "failed to save plot")
}

func cycleTable(diags []localplanner.Diagnostics) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Outcome", "Gaps", "DMin", "Goal", "Moving To", "Phi", "Linear", "Angular"})
	for _, diag := range diags {
		t.AppendRow(table.Row{
			diag.Cycle,
			string(diag.Outcome),
			diag.GapCount,
			fmt.Sprintf("%.2f", diag.DMin),
			fmt.Sprintf("%.2f", diag.DistanceToGoal),
			fmt.Sprintf("%.1f", diag.MovingTo),
			fmt.Sprintf("%.3f", diag.PhiFinal),
			fmt.Sprintf("%.3f", diag.Command.Forward()),
			fmt.Sprintf("%.3f", diag.Command.YawRate()),
		})
	}
	return t.Render()
}

func summaryTable(s Summary) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Cycles", "Goal Reached", "Unstick", "Mean Linear", "Max Linear", "Min DMin", "Median DMin"})
	t.AppendRow(table.Row{
		s.Cycles,
		s.GoalReached,
		s.Unstick,
		fmt.Sprintf("%.3f", s.MeanLinear),
		fmt.Sprintf("%.3f", s.MaxLinear),
		fmt.Sprintf("%.2f", s.MinDMin),
		fmt.Sprintf("%.2f", s.MedianDMin),
	})
	return t.Render()
}
