package canmodule

import (
	"context"
	"fmt"

	"github.com/owatonnarobotics/2021-Robot-sub000/swerve"
)

// Actuator is one swerve module's steering and drive controller pair.
type Actuator struct {
	bus          *Bus
	steer, drive uint8
}

var _ swerve.Actuator = (*Actuator)(nil)

// SetSteerSpeed sets the steering duty cycle.
func (a *Actuator) SetSteerSpeed(ctx context.Context, speed float64) error {
	a.bus.setDutyCycle(a.steer, speed)
	return nil
}

// SetDriveSpeed sets the drive duty cycle.
func (a *Actuator) SetDriveSpeed(ctx context.Context, speed float64) error {
	a.bus.setDutyCycle(a.drive, speed)
	return nil
}

// SteerPosition returns the steering motor's rotations since power on.
func (a *Actuator) SteerPosition(ctx context.Context) (float64, error) {
	return a.bus.position(a.steer)
}

// DrivePosition returns the drive motor's rotations since power on.
func (a *Actuator) DrivePosition(ctx context.Context) (float64, error) {
	return a.bus.position(a.drive)
}

// SetBrakeMode sets whether each controller brakes or coasts at zero output.
func (a *Actuator) SetBrakeMode(ctx context.Context, drive, steer bool) error {
	a.bus.setBrake(a.drive, drive)
	a.bus.setBrake(a.steer, steer)
	return nil
}

func controllerKey(controller uint8, field string) string {
	return fmt.Sprintf("can.%d.%s", controller, field)
}
