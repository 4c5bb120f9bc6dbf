package hardware

import (
	"context"

	"go.viam.com/rdk/components/input"

	"github.com/owatonnarobotics/2021-Robot-sub000/swerve"
)

// GamepadMapping assigns controller inputs to drive intent.
type GamepadMapping struct {
	X, Y, Z     input.Control
	InvertY     bool
	Precision   input.Control
	HeadingLock input.Control
	Record      input.Control
}

// DefaultGamepadMapping is left stick translation, right stick rotation, triggers for
// precision and heading lock and select to record.
func DefaultGamepadMapping() GamepadMapping {
	return GamepadMapping{
		X:           input.AbsoluteX,
		Y:           input.AbsoluteY,
		Z:           input.AbsoluteRX,
		InvertY:     true,
		Precision:   input.ButtonLT,
		HeadingLock: input.ButtonRT,
		Record:      input.ButtonSelect,
	}
}

// Gamepad samples an input controller once per tick.
type Gamepad struct {
	controller input.Controller
	mapping    GamepadMapping
}

// NewGamepad wraps c.
func NewGamepad(c input.Controller, mapping GamepadMapping) *Gamepad {
	return &Gamepad{controller: c, mapping: mapping}
}

// Sample returns the operator's current intent.
func (g *Gamepad) Sample(ctx context.Context) (swerve.DriveCommand, error) {
	events, err := g.controller.Events(ctx, nil)
	if err != nil {
		return swerve.DriveCommand{}, err
	}
	value := func(c input.Control) float64 {
		return events[c].Value
	}
	pressed := func(c input.Control) bool {
		return events[c].Value > 0.5
	}
	y := value(g.mapping.Y)
	if g.mapping.InvertY {
		y = -y
	}
	return swerve.DriveCommand{
		X:           value(g.mapping.X),
		Y:           y,
		Z:           value(g.mapping.Z),
		Precision:   pressed(g.mapping.Precision),
		HeadingLock: pressed(g.mapping.HeadingLock),
		Record:      pressed(g.mapping.Record),
	}, nil
}
