package navigation

import (
	"context"
	"sync"

	"github.com/golang/geo/r3"
	"go.uber.org/multierr"

	"github.com/gapnav/localplanner/logging"
	"github.com/gapnav/localplanner/motionplan/localplanner"
)

// A Base is whatever executes velocity commands.
type Base interface {
	// SetVelocity sets the linear velocity in m/s and the angular velocity in rad/s.
	SetVelocity(ctx context.Context, linear, angular r3.Vector, extra map[string]interface{}) error
	// Stop halts the base.
	Stop(ctx context.Context, extra map[string]interface{}) error
}

// RecordingBase is an in memory Base that remembers every command sent to it.
type RecordingBase struct {
	mu       sync.Mutex
	commands []localplanner.VelocityCommand
	stops    int
}

// SetVelocity records the command.
func (b *RecordingBase) SetVelocity(_ context.Context, linear, angular r3.Vector, _ map[string]interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands = append(b.commands, localplanner.VelocityCommand{Linear: linear, Angular: angular})
	return nil
}

// Stop records a zero command.
func (b *RecordingBase) Stop(_ context.Context, _ map[string]interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands = append(b.commands, localplanner.VelocityCommand{})
	b.stops++
	return nil
}

// Commands returns every recorded command, oldest first.
func (b *RecordingBase) Commands() []localplanner.VelocityCommand {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]localplanner.VelocityCommand(nil), b.commands...)
}

// Stops counts the calls to Stop.
func (b *RecordingBase) Stops() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stops
}

// LoggingDiagnostics writes each cycle's diagnostics to a logger at debug level.
type LoggingDiagnostics struct {
	Logger logging.Logger
}

// PublishDiagnostics logs diag.
func (ld LoggingDiagnostics) PublishDiagnostics(ctx context.Context, diag localplanner.Diagnostics) error {
	ld.Logger.CDebugw(ctx, "planner diagnostics",
		"plan_id", diag.PlanID.String(),
		"cycle", diag.Cycle,
		"distance_to_goal", diag.DistanceToGoal,
		"moving_to", diag.MovingTo,
		"phi_final", diag.PhiFinal,
		"dmin", diag.DMin,
		"gaps", diag.GapCount,
		"outcome", string(diag.Outcome),
		"angular", diag.Command.YawRate(),
	)
	return nil
}

// DiagnosticsFanout publishes to every sink it holds, in order.
type DiagnosticsFanout []localplanner.DiagnosticsSink

// PublishDiagnostics publishes to every sink and combines their errors.
func (f DiagnosticsFanout) PublishDiagnostics(ctx context.Context, diag localplanner.Diagnostics) error {
	var errs error
	for _, sink := range f {
		errs = multierr.Combine(errs, sink.PublishDiagnostics(ctx, diag))
	}
	return errs
}
