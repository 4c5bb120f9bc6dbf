package auto

import (
	"context"
	"fmt"
	"time"

	clk "github.com/benbjohnson/clock"
)

// WaitSeconds finishes once its duration has elapsed since Init.
type WaitSeconds struct {
	clock    clk.Clock
	duration time.Duration
	started  time.Time
}

// NewWaitSeconds returns a timer step. A nil clock uses the wall clock.
func NewWaitSeconds(clock clk.Clock, seconds float64) *WaitSeconds {
	if clock == nil {
		clock = clk.New()
	}
	return &WaitSeconds{clock: clock, duration: time.Duration(seconds * float64(time.Second))}
}

func (s *WaitSeconds) String() string { return fmt.Sprintf("wait %s", s.duration) }

// Init starts the timer.
func (s *WaitSeconds) Init(ctx context.Context) error {
	s.started = s.clock.Now()
	return nil
}

// Execute reports whether the duration has elapsed.
func (s *WaitSeconds) Execute(ctx context.Context) (bool, error) {
	return s.clock.Since(s.started) >= s.duration, nil
}

// Cleanup does nothing.
func (s *WaitSeconds) Cleanup(ctx context.Context) error { return nil }

// Mechanism is an auxiliary subsystem run at a speed setpoint, such as an intake or a
// launcher.
type Mechanism interface {
	SetSpeed(ctx context.Context, speed float64) error
}

// RunMechanism holds a mechanism at a speed for a duration and then zeroes it.
type RunMechanism struct {
	clock     clk.Clock
	mechanism Mechanism
	speed     float64
	duration  time.Duration
	started   time.Time
}

// NewRunMechanism returns a timed mechanism step. A nil clock uses the wall clock.
func NewRunMechanism(clock clk.Clock, mechanism Mechanism, speed float64, duration time.Duration) *RunMechanism {
	if clock == nil {
		clock = clk.New()
	}
	return &RunMechanism{clock: clock, mechanism: mechanism, speed: clampUnit(speed), duration: duration}
}

// NewCalibratedMechanism runs a mechanism at the speed cal derives from input, for
// example a launcher speed for a target distance.
func NewCalibratedMechanism(
	clock clk.Clock,
	mechanism Mechanism,
	cal Calibration,
	input float64,
	duration time.Duration,
) *RunMechanism {
	return NewRunMechanism(clock, mechanism, cal.Eval(input), duration)
}

func (s *RunMechanism) String() string {
	return fmt.Sprintf("run mechanism at %.2f for %s", s.speed, s.duration)
}

// Speed returns the setpoint.
func (s *RunMechanism) Speed() float64 { return s.speed }

// Init starts the timer.
func (s *RunMechanism) Init(ctx context.Context) error {
	s.started = s.clock.Now()
	return nil
}

// Execute holds the setpoint until the duration elapses, then zeroes the mechanism.
func (s *RunMechanism) Execute(ctx context.Context) (bool, error) {
	if s.clock.Since(s.started) >= s.duration {
		return true, s.mechanism.SetSpeed(ctx, 0)
	}
	return false, s.mechanism.SetSpeed(ctx, s.speed)
}

// Cleanup does nothing.
func (s *RunMechanism) Cleanup(ctx context.Context) error { return nil }

// Calibration is an empirically fit polynomial. Coefficients are in ascending order of
// power. Min and Max clamp the output when they differ.
type Calibration struct {
	Coefficients []float64 `json:"coefficients"`
	Min          float64   `json:"min,omitempty"`
	Max          float64   `json:"max,omitempty"`
}

// Eval evaluates the polynomial at x.
func (c Calibration) Eval(x float64) float64 {
	var y float64
	for i := len(c.Coefficients) - 1; i >= 0; i-- {
		y = y*x + c.Coefficients[i]
	}
	if c.Min < c.Max {
		if y < c.Min {
			return c.Min
		}
		if y > c.Max {
			return c.Max
		}
	}
	return y
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
