// Package hardware adapts viam components to the collaborators a swerve train needs.
package hardware

import (
	"context"

	"github.com/pkg/errors"
	"go.viam.com/rdk/components/motor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"

	"github.com/owatonnarobotics/2021-Robot-sub000/swerve"
)

// MotorActuator drives a swerve module through two viam motors. Positions are motor
// revolutions, which makes UnitsPerRev the steering gear ratio.
type MotorActuator struct {
	steer  motor.Motor
	drive  motor.Motor
	logger logging.Logger
}

var _ swerve.Actuator = (*MotorActuator)(nil)

// NewMotorActuator pairs a steering and a drive motor.
func NewMotorActuator(steer, drive motor.Motor, logger logging.Logger) *MotorActuator {
	return &MotorActuator{steer: steer, drive: drive, logger: logger}
}

// SetSteerSpeed sets the steering motor power.
func (a *MotorActuator) SetSteerSpeed(ctx context.Context, speed float64) error {
	return a.steer.SetPower(ctx, speed, nil)
}

// SetDriveSpeed sets the drive motor power.
func (a *MotorActuator) SetDriveSpeed(ctx context.Context, speed float64) error {
	return a.drive.SetPower(ctx, speed, nil)
}

// SteerPosition returns the steering motor position in revolutions.
func (a *MotorActuator) SteerPosition(ctx context.Context) (float64, error) {
	return a.steer.Position(ctx, nil)
}

// DrivePosition returns the drive motor position in revolutions.
func (a *MotorActuator) DrivePosition(ctx context.Context) (float64, error) {
	return a.drive.Position(ctx, nil)
}

// SetBrakeMode asks each motor to brake or coast at zero power. Motors without
// DoCommand support keep their own idle behaviour.
func (a *MotorActuator) SetBrakeMode(ctx context.Context, drive, steer bool) error {
	if err := setBrake(ctx, a.drive, drive, a.logger); err != nil {
		return errors.Wrap(err, "drive motor")
	}
	if err := setBrake(ctx, a.steer, steer, a.logger); err != nil {
		return errors.Wrap(err, "steer motor")
	}
	return nil
}

func setBrake(ctx context.Context, m motor.Motor, brake bool, logger logging.Logger) error {
	_, err := m.DoCommand(ctx, map[string]interface{}{"command": "set_brake", "brake": brake})
	if errors.Is(err, resource.ErrDoUnimplemented) {
		logger.Debugw("motor has no brake mode", "motor", m.Name().ShortName())
		return nil
	}
	return err
}

// MotorMechanism runs an auxiliary mechanism motor at a power setpoint.
type MotorMechanism struct {
	motor motor.Motor
}

// NewMotorMechanism wraps m.
func NewMotorMechanism(m motor.Motor) *MotorMechanism {
	return &MotorMechanism{motor: m}
}

// SetSpeed sets the motor power, stopping it at zero.
func (m *MotorMechanism) SetSpeed(ctx context.Context, speed float64) error {
	if speed == 0 {
		return m.motor.Stop(ctx, nil)
	}
	return m.motor.SetPower(ctx, speed, nil)
}
