package swerve

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"

	"github.com/owatonnarobotics/2021-Robot-sub000/recorder"
	"github.com/owatonnarobotics/2021-Robot-sub000/vector"
)

// DriveCommand is one tick of operator or autonomous intent. Axes are in [-1, 1]; X is
// right, Y is forward (away from the operator) and Z is clockwise rotation.
type DriveCommand struct {
	X, Y, Z     float64
	Precision   bool
	Record      bool
	HeadingLock bool
	// Flags carries any extra operator state into recordings.
	Flags recorder.Flags
}

// CommandFromSample rebuilds the drive command a recorded sample came from.
func CommandFromSample(s recorder.Sample) DriveCommand {
	return DriveCommand{
		X:           s.X,
		Y:           s.Y,
		Z:           s.Z,
		Precision:   s.Flags.Has(recorder.FlagPrecision),
		HeadingLock: s.Flags.Has(recorder.FlagHeadingLock),
		Flags:       s.Flags,
	}
}

// Parts are the collaborators a train is built from. Modules and Heading are
// required; the rest are optional.
type Parts struct {
	FrontRight *Module
	FrontLeft  *Module
	RearLeft   *Module
	RearRight  *Module

	Heading   Heading
	Vision    Vision
	Recorder  Recorder
	Telemetry Telemetry
}

// LockState is the result of one heading-lock evaluation.
type LockState struct {
	HasTarget bool
	Offset    float64
	Z         float64
	Locked    bool
}

// Train resolves drive intent into per-module steering targets and drive speeds.
type Train struct {
	cfg         *Config
	modules     [NumCorners]*Module
	heading     Heading
	vision      Vision
	recorder    Recorder
	telemetry   Telemetry
	conditioner Conditioner
	logger      logging.Logger
}

// NewTrain assembles a train. The modules are lent to the train, which becomes their
// only writer.
func NewTrain(cfg *Config, parts Parts, logger logging.Logger) (*Train, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid swerve config")
	}
	t := &Train{
		cfg:       cfg,
		modules:   [NumCorners]*Module{parts.FrontRight, parts.FrontLeft, parts.RearLeft, parts.RearRight},
		heading:   parts.Heading,
		vision:    parts.Vision,
		recorder:  parts.Recorder,
		telemetry: parts.Telemetry,
		conditioner: Conditioner{
			Deadzone:        cfg.Deadzone,
			RotationDamping: cfg.RotationDamping,
		},
		logger: logger,
	}
	for c, m := range t.modules {
		if m == nil {
			return nil, errors.Errorf("missing %s module", Corner(c))
		}
	}
	if t.heading == nil {
		return nil, errors.New("a heading source is required")
	}
	return t, nil
}

// Config returns the train's configuration.
func (t *Train) Config() *Config { return t.cfg }

// Vision returns the vision collaborator, which may be nil.
func (t *Train) Vision() Vision { return t.vision }

// Modules exposes the modules in command order through their narrow control
// interface.
func (t *Train) Modules() []ModuleControl {
	out := make([]ModuleControl, 0, NumCorners)
	for _, m := range t.modules {
		out = append(out, m)
	}
	return out
}

// Heading returns the current yaw in degrees.
func (t *Train) Heading(ctx context.Context) (float64, error) {
	return t.heading.Yaw(ctx)
}

// ResetHeading makes the current orientation the field's forward.
func (t *Train) ResetHeading(ctx context.Context) error {
	return t.heading.ResetYaw(ctx)
}

// Drive runs one tick of field-oriented driving.
func (t *Train) Drive(ctx context.Context, cmd DriveCommand) error {
	t.record(cmd)

	x, y, z := t.conditioner.Condition(cmd.X, cmd.Y, cmd.Z)
	var lockErr error
	if cmd.HeadingLock {
		state, err := t.TrackTarget(ctx)
		switch {
		case err != nil:
			lockErr = err
		case state.HasTarget:
			z = state.Z
		}
	}

	if x == 0 && y == 0 && z == 0 {
		return multierr.Combine(lockErr, t.idle(ctx))
	}

	heading, err := t.heading.Yaw(ctx)
	if err != nil {
		return multierr.Combine(lockErr, errors.Wrap(err, "reading heading"), t.Stop(ctx))
	}
	t.publish("heading", heading)

	execCap := t.cfg.ExecutionCap
	if cmd.Precision {
		execCap = t.cfg.PrecisionCap
	}
	return multierr.Combine(lockErr, t.apply(ctx, t.compose(x, y, z, heading), heading, execCap))
}

// compose sums the translation and per-wheel rotation vectors, scaling every wheel
// down together when any of them would exceed full speed.
func (t *Train) compose(x, y, z, heading float64) [NumCorners]vector.Vector2 {
	translation := vector.New(-x, y)
	var results [NumCorners]vector.Vector2
	largest := 1.0
	for c := range t.modules {
		results[c] = translation.Add(t.rotationVector(Corner(c), z, heading))
		largest = math.Max(largest, results[c].Magnitude())
	}
	for c := range results {
		results[c] = results[c].Scale(1 / largest)
	}
	return results
}

// rotationVector is the field-relative contribution of a clockwise spin of magnitude z
// at corner c.
func (t *Train) rotationVector(c Corner, z, heading float64) vector.Vector2 {
	a := degToRad(t.cfg.RotationAngles[c] - heading)
	return vector.New(z*math.Cos(a), z*math.Sin(a))
}

// fieldTarget converts a field-relative direction into the robot-relative steering
// target of a module, in actuator units.
func (t *Train) fieldTarget(v vector.Vector2, heading float64) float64 {
	robotRelative := v.Angle() - degToRad(heading)
	return normalize(robotRelative/(2*math.Pi)*t.cfg.UnitsPerRev, t.cfg.UnitsPerRev)
}

// turnTarget is the steering target that puts corner c tangent to a clockwise spin.
func (t *Train) turnTarget(c Corner) float64 {
	return normalize((90-t.cfg.RotationAngles[c])/360*t.cfg.UnitsPerRev, t.cfg.UnitsPerRev)
}

func (t *Train) apply(ctx context.Context, results [NumCorners]vector.Vector2, heading, execCap float64) error {
	var err error
	for c, m := range t.modules {
		v := results[c]
		if v.IsZero() {
			err = multierr.Append(err, m.Stop(ctx))
			continue
		}
		target := t.fieldTarget(v, heading)
		if _, aerr := m.AssumePosition(ctx, target); aerr != nil {
			err = multierr.Combine(err, aerr, m.SetDriveSpeed(ctx, 0))
			continue
		}
		speed := v.Magnitude() * execCap
		err = multierr.Append(err, m.SetDriveSpeed(ctx, speed))
		t.publish(m.name+".target", target)
		t.publish(m.name+".drive", speed)
	}
	return err
}

// idle stops every drive motor and either re-centres or stops steering.
func (t *Train) idle(ctx context.Context) error {
	var err error
	for _, m := range t.modules {
		err = multierr.Append(err, m.SetDriveSpeed(ctx, 0))
		if t.cfg.IdleRecenter {
			_, aerr := m.AssumeNearestZero(ctx)
			err = multierr.Append(err, aerr)
		} else {
			err = multierr.Append(err, m.act.SetSteerSpeed(ctx, 0))
		}
		t.publish(m.name+".drive", 0.0)
	}
	return err
}

// TrackTarget evaluates the heading-lock law against the vision offset. Z is the
// rotation command to substitute for the operator's.
func (t *Train) TrackTarget(ctx context.Context) (LockState, error) {
	var state LockState
	if t.vision == nil {
		return state, nil
	}
	has, err := t.vision.HasTarget(ctx)
	if err != nil {
		return state, errors.Wrap(err, "reading vision target")
	}
	if !has {
		t.publish("lock.locked", false)
		return state, nil
	}
	offset, err := t.vision.HorizontalOffset(ctx)
	if err != nil {
		return state, errors.Wrap(err, "reading vision offset")
	}
	state.HasTarget = true
	state.Offset = offset
	if math.Abs(offset) <= t.cfg.LockTolerance {
		state.Locked = true
	} else {
		state.Z = t.cfg.LockProfile.Speed(offset)
	}
	t.publish("lock.offset", offset)
	t.publish("lock.locked", state.Locked)
	return state, nil
}

func (t *Train) record(cmd DriveCommand) {
	if t.recorder == nil {
		return
	}
	if !cmd.Record {
		t.recorder.Publish()
		return
	}
	flags := cmd.Flags
	if cmd.Precision {
		flags |= recorder.FlagPrecision
	}
	if cmd.HeadingLock {
		flags |= recorder.FlagHeadingLock
	}
	t.recorder.Record(recorder.Sample{X: cmd.X, Y: cmd.Y, Z: cmd.Z, Flags: flags})
}

// Stop zeroes every motor output.
func (t *Train) Stop(ctx context.Context) error {
	var err error
	for _, m := range t.modules {
		err = multierr.Append(err, m.Stop(ctx))
	}
	return err
}

// SetZero captures every module's current position as its zero.
func (t *Train) SetZero(ctx context.Context) error {
	var err error
	for _, m := range t.modules {
		err = multierr.Append(err, m.SetZero(ctx))
	}
	return err
}

// SetBrakeMode applies brake modes to every module.
func (t *Train) SetBrakeMode(ctx context.Context, drive, steer bool) error {
	var err error
	for _, m := range t.modules {
		err = multierr.Append(err, m.SetBrakeMode(ctx, drive, steer))
	}
	return err
}

// AssumeNearestZero re-centres every module with the drive stopped.
func (t *Train) AssumeNearestZero(ctx context.Context) (bool, error) {
	return t.steerAll(ctx, func(_ Corner, m *Module) (bool, error) {
		return m.AssumeNearestZero(ctx)
	})
}

// AssumeTurnPose steers every module tangent to a spin about the train's center with
// the drive stopped.
func (t *Train) AssumeTurnPose(ctx context.Context) (bool, error) {
	return t.steerAll(ctx, func(c Corner, m *Module) (bool, error) {
		return m.AssumePosition(ctx, t.turnTarget(c))
	})
}

// InTurnPose reports whether every module is tangent to a spin. It commands nothing.
func (t *Train) InTurnPose(ctx context.Context) (bool, error) {
	for c, m := range t.modules {
		pos, err := m.Position(ctx)
		if err != nil {
			return false, err
		}
		if ringDistance(pos-t.turnTarget(Corner(c)), t.cfg.UnitsPerRev) > t.cfg.Tolerance {
			return false, nil
		}
	}
	return true, nil
}

// AssumeDirection points every module along a field-relative direction with the drive
// stopped. A zero direction requests no change.
func (t *Train) AssumeDirection(ctx context.Context, dir vector.Vector2) (bool, error) {
	if dir.IsZero() {
		return true, t.Stop(ctx)
	}
	heading, err := t.heading.Yaw(ctx)
	if err != nil {
		return false, multierr.Combine(errors.Wrap(err, "reading heading"), t.Stop(ctx))
	}
	target := t.fieldTarget(dir, heading)
	return t.steerAll(ctx, func(_ Corner, m *Module) (bool, error) {
		return m.AssumePosition(ctx, target)
	})
}

// Translate points every module along a field-relative direction and drives at speed
// once all of them have arrived. It reports whether the modules were aligned.
func (t *Train) Translate(ctx context.Context, dir vector.Vector2, speed float64) (bool, error) {
	aligned, err := t.AssumeDirection(ctx, dir)
	if err != nil || !aligned {
		return false, err
	}
	return true, t.driveAll(ctx, speed)
}

// Rotate holds the turn pose and, once every module is tangent, spins at speed
// (positive is clockwise). It reports whether the modules were aligned.
func (t *Train) Rotate(ctx context.Context, speed float64) (bool, error) {
	aligned, err := t.AssumeTurnPose(ctx)
	if err != nil || !aligned {
		return false, err
	}
	return true, t.driveAll(ctx, speed)
}

func (t *Train) driveAll(ctx context.Context, speed float64) error {
	var err error
	for _, m := range t.modules {
		err = multierr.Append(err, m.SetDriveSpeed(ctx, speed))
		t.publish(m.name+".drive", speed)
	}
	return err
}

// steerAll runs fn on every module after stopping its drive and reports whether all of
// them arrived.
func (t *Train) steerAll(ctx context.Context, fn func(Corner, *Module) (bool, error)) (bool, error) {
	all := true
	var err error
	for c, m := range t.modules {
		err = multierr.Append(err, m.SetDriveSpeed(ctx, 0))
		arrived, aerr := fn(Corner(c), m)
		if aerr != nil {
			err = multierr.Append(err, aerr)
			all = false
			continue
		}
		all = all && arrived
	}
	return all && err == nil, err
}

func (t *Train) publish(key string, value interface{}) {
	if t.telemetry != nil {
		t.telemetry.Publish(key, value)
	}
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180
}
