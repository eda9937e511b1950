package control

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/gapnav/localplanner/logging"
	"github.com/gapnav/localplanner/utils"
)

// MaxLoopFrequency is the fastest rate a Loop may run at, in Hz.
const MaxLoopFrequency = 200.0

// Stepper is run once per loop tick with the nominal tick period.
type Stepper interface {
	Step(ctx context.Context, dt time.Duration) error
}

// StepperFunc adapts a function into a Stepper.
type StepperFunc func(ctx context.Context, dt time.Duration) error

// Step calls f.
func (f StepperFunc) Step(ctx context.Context, dt time.Duration) error {
	return f(ctx, dt)
}

// LoopConfig configures a Loop.
type LoopConfig struct {
	// Frequency is the tick rate in Hz.
	Frequency float64 `json:"frequency_hz"`
}

// Validate checks the loop can run at the configured rate.
func (cfg LoopConfig) Validate() error {
	if !utils.IsFinite(cfg.Frequency) || cfg.Frequency <= 0 || cfg.Frequency > MaxLoopFrequency {
		return errors.New("loop frequency shouldn't be 0 or above 200Hz")
	}
	return nil
}

// Loop calls a Stepper at a fixed rate on a background worker. Steps never overlap; a step that
// overruns its period delays the next one.
type Loop struct {
	cfg     LoopConfig
	dt      time.Duration
	clk     clock.Clock
	stepper Stepper
	logger  logging.Logger

	mu      sync.Mutex
	workers utils.StoppableWorkers
}

// NewLoop constructs a stopped loop. A nil clock uses the wall clock.
func NewLoop(logger logging.Logger, cfg LoopConfig, stepper Stepper, clk clock.Clock) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if stepper == nil {
		return nil, errors.New("control loop needs a stepper")
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Loop{
		cfg:     cfg,
		dt:      time.Duration(float64(time.Second) / cfg.Frequency),
		clk:     clk,
		stepper: stepper,
		logger:  logger,
	}, nil
}

// Period is the time between ticks.
func (l *Loop) Period() time.Duration {
	return l.dt
}

// Frequency returns the loop's frequency.
func (l *Loop) Frequency() float64 {
	return l.cfg.Frequency
}

// Running reports whether the loop has been started and not stopped.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.workers != nil
}

// Start begins ticking. The loop also stops when ctx is done.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.workers != nil {
		return errors.New("control loop already running")
	}
	l.logger.Infow("starting control loop", "frequency_hz", l.cfg.Frequency, "period", l.dt.String())
	l.workers = utils.NewStoppableWorkersWithContext(ctx, l.run)
	return nil
}

func (l *Loop) run(ctx context.Context) {
	ticker := l.clk.Ticker(l.dt)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := l.stepper.Step(ctx, l.dt); err != nil && ctx.Err() == nil {
			l.logger.CWarnw(ctx, "control loop step failed", "error", err)
		}
	}
}

// Stop halts the loop and waits for an in flight step to return.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.workers == nil {
		return
	}
	l.logger.Debug("closing loop")
	l.workers.Stop()
	l.workers = nil
}
