package swerve

import (
	"context"
	"math"

	"go.viam.com/rdk/logging"
)

// Module is one steerable wheel. It is commanded by exactly one train.
type Module struct {
	name   string
	act    Actuator
	cfg    *Config
	logger logging.Logger

	zeroOffset float64
	driveBrake bool
	steerBrake bool
	arrived    bool
}

// NewModule binds a module to its actuator pair.
func NewModule(name string, act Actuator, cfg *Config, logger logging.Logger) *Module {
	return &Module{name: name, act: act, cfg: cfg, logger: logger}
}

// Name returns the module's name.
func (m *Module) Name() string { return m.name }

// ZeroOffset returns the absolute position captured as "wheel forward".
func (m *Module) ZeroOffset() float64 { return m.zeroOffset }

// SetZeroOffset sets the calibrated zero directly, e.g. from stored calibration.
func (m *Module) SetZeroOffset(offset float64) {
	m.zeroOffset = offset
}

// SetZero captures the current absolute position as the module's zero.
func (m *Module) SetZero(ctx context.Context) error {
	abs, err := m.AbsolutePosition(ctx)
	if err != nil {
		return err
	}
	m.zeroOffset = abs
	m.logger.Infow("module zeroed", "module", m.name, "offset", abs)
	return nil
}

// AbsolutePosition returns the accumulated steering count.
func (m *Module) AbsolutePosition(ctx context.Context) (float64, error) {
	abs, err := m.act.SteerPosition(ctx)
	if err != nil {
		return 0, &PositionError{Module: m.name, Err: err}
	}
	if math.IsNaN(abs) || math.IsInf(abs, 0) {
		return 0, &PositionError{Module: m.name, Err: ErrPositionUnavailable}
	}
	return abs, nil
}

// Position returns the single-rotation position relative to zero, in
// [0, UnitsPerRev).
func (m *Module) Position(ctx context.Context) (float64, error) {
	abs, err := m.AbsolutePosition(ctx)
	if err != nil {
		return 0, err
	}
	return normalize(abs-m.zeroOffset, m.cfg.UnitsPerRev), nil
}

// AssumePosition steers toward target along the shortest way around and reports
// whether the module is within tolerance. It commands the steering actuator on every
// call. A failed position read stops steering and is returned as an error.
func (m *Module) AssumePosition(ctx context.Context, target float64) (bool, error) {
	current, err := m.Position(ctx)
	if err != nil {
		if stopErr := m.act.SetSteerSpeed(ctx, 0); stopErr != nil {
			m.logger.Errorw("failed to stop steering after position error", "module", m.name, "error", stopErr)
		}
		return false, err
	}
	units := m.cfg.UnitsPerRev
	if target < 0 || target > units {
		target = normalize(target, units)
	}

	delta := target - current
	if ringDistance(delta, units) <= m.cfg.Tolerance {
		if !m.arrived {
			m.logger.Debugw("module arrived", "module", m.name, "target", target, "position", current)
		}
		m.arrived = true
		return true, m.act.SetSteerSpeed(ctx, 0)
	}
	m.arrived = false

	remaining := delta
	if math.Abs(delta) > units/2 {
		if target < current {
			remaining = units - (current - target)
		} else {
			remaining = -(units - (target - current))
		}
	}
	return false, m.act.SetSteerSpeed(ctx, m.cfg.SteerProfile.Speed(remaining))
}

// NearestZero returns 0 or UnitsPerRev, whichever is the shorter rotation from the
// current position.
func (m *Module) NearestZero(ctx context.Context) (float64, error) {
	current, err := m.Position(ctx)
	if err != nil {
		return 0, err
	}
	if current <= m.cfg.UnitsPerRev/2 {
		return 0, nil
	}
	return m.cfg.UnitsPerRev, nil
}

// AssumeNearestZero steers back to the calibrated zero the short way.
func (m *Module) AssumeNearestZero(ctx context.Context) (bool, error) {
	zero, err := m.NearestZero(ctx)
	if err != nil {
		if stopErr := m.act.SetSteerSpeed(ctx, 0); stopErr != nil {
			m.logger.Errorw("failed to stop steering after position error", "module", m.name, "error", stopErr)
		}
		return false, err
	}
	return m.AssumePosition(ctx, zero)
}

// SetDriveSpeed sets the drive motor output in [-1, 1].
func (m *Module) SetDriveSpeed(ctx context.Context, speed float64) error {
	return m.act.SetDriveSpeed(ctx, clamp(speed, -1, 1))
}

// SetSteerSpeed sets the steering motor output directly, bypassing the control law.
func (m *Module) SetSteerSpeed(ctx context.Context, speed float64) error {
	return m.act.SetSteerSpeed(ctx, clamp(speed, -1, 1))
}

// DrivePosition returns the accumulated drive encoder count.
func (m *Module) DrivePosition(ctx context.Context) (float64, error) {
	pos, err := m.act.DrivePosition(ctx)
	if err != nil {
		return 0, &PositionError{Module: m.name, Err: err}
	}
	return pos, nil
}

// SetBrakeMode sets the idle behaviour of both motors. The setting persists until
// changed.
func (m *Module) SetBrakeMode(ctx context.Context, drive, steer bool) error {
	if err := m.act.SetBrakeMode(ctx, drive, steer); err != nil {
		return err
	}
	m.driveBrake, m.steerBrake = drive, steer
	return nil
}

// BrakeModes returns the last brake modes that were applied.
func (m *Module) BrakeModes() (drive, steer bool) {
	return m.driveBrake, m.steerBrake
}

// Stop zeroes both motor outputs.
func (m *Module) Stop(ctx context.Context) error {
	if err := m.act.SetDriveSpeed(ctx, 0); err != nil {
		return err
	}
	return m.act.SetSteerSpeed(ctx, 0)
}

// ringDistance is the shorter of the two ways around the ring for delta.
func ringDistance(delta, units float64) float64 {
	d := math.Abs(delta)
	if d > units/2 {
		d = units - d
	}
	return d
}

func clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
