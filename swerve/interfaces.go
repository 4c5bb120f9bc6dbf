package swerve

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/owatonnarobotics/2021-Robot-sub000/recorder"
)

// Actuator drives the steering and drive motors of one module. Positions reflect the
// physical result of the previous tick's commands.
type Actuator interface {
	SetSteerSpeed(ctx context.Context, speed float64) error
	SetDriveSpeed(ctx context.Context, speed float64) error
	// SteerPosition is the accumulated steering count since power on, in the same
	// units as Config.UnitsPerRev.
	SteerPosition(ctx context.Context) (float64, error)
	DrivePosition(ctx context.Context) (float64, error)
	SetBrakeMode(ctx context.Context, drive, steer bool) error
}

// Heading reports the robot's field-relative yaw in degrees, counter-clockwise
// positive and unwrapped.
type Heading interface {
	Yaw(ctx context.Context) (float64, error)
	ResetYaw(ctx context.Context) error
}

// Vision reports the horizontal offset of the tracked target in degrees, positive
// when the target is to the right of center.
type Vision interface {
	HorizontalOffset(ctx context.Context) (float64, error)
	HasTarget(ctx context.Context) (bool, error)
	SetIlluminator(ctx context.Context, on bool) error
}

// Telemetry is a fire-and-forget sink; nothing in this package reads it back.
type Telemetry interface {
	Publish(key string, value interface{})
}

// Recorder receives raw operator samples while recording and is flushed otherwise.
type Recorder interface {
	Record(s recorder.Sample)
	Publish() []recorder.Sample
}

// ModuleControl is the narrow capability a train lends to autonomous steps.
type ModuleControl interface {
	Name() string
	Position(ctx context.Context) (float64, error)
	AssumePosition(ctx context.Context, target float64) (bool, error)
	SetDriveSpeed(ctx context.Context, speed float64) error
	DrivePosition(ctx context.Context) (float64, error)
}

// ErrPositionUnavailable is matched by every error caused by a failed or stale
// actuator position read.
var ErrPositionUnavailable = errors.New("actuator position unavailable")

// PositionError reports which module could not read its position.
type PositionError struct {
	Module string
	Err    error
}

func (e *PositionError) Error() string {
	return fmt.Sprintf("module %s: position unavailable: %v", e.Module, e.Err)
}

// Unwrap returns the underlying read failure.
func (e *PositionError) Unwrap() error { return e.Err }

// Is makes every PositionError match ErrPositionUnavailable.
func (e *PositionError) Is(target error) bool { return target == ErrPositionUnavailable }
