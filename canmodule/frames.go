package canmodule

import (
	"github.com/go-daq/canbus"
)

// Payload layout of the controller command frame.
var (
	signalDutyCycle = Signal{Scalar: 1.0 / 32767, Start: 0, Length: 16, LittleEndian: true, Signed: true}
	signalBrake     = Signal{Scalar: 1, Start: 16, Length: 8, LittleEndian: true}
	signalEnable    = Signal{Scalar: 1, Start: 24, Length: 8, LittleEndian: true}
)

// Payload layout of the controller status frame.
var (
	signalPosition = Signal{Scalar: 1.0 / 4096, Start: 0, Length: 32, LittleEndian: true, Signed: true}
	signalVelocity = Signal{Scalar: 0.1, Start: 32, Length: 16, LittleEndian: true, Signed: true}
)

// command is the latest setpoint for one controller.
type command struct {
	DutyCycle float64
	Brake     bool
	Enabled   bool
}

// toFrame converts the command to a CAN frame addressed to id.
func (cmd command) toFrame(id uint32) canbus.Frame {
	frame := canbus.Frame{
		ID:   id,
		Data: make([]byte, 8),
		Kind: canbus.SFF,
	}
	duty := cmd.DutyCycle
	if !cmd.Enabled {
		duty = 0
	}
	// the layout fits the payload, so Insert cannot fail
	_ = signalDutyCycle.Insert(frame.Data, duty)
	_ = signalBrake.Insert(frame.Data, boolByte(cmd.Brake))
	_ = signalEnable.Insert(frame.Data, boolByte(cmd.Enabled))
	return frame
}

func boolByte(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// status is the latest report from one controller, positions in motor rotations and
// velocities in rpm.
type status struct {
	Position float64
	Velocity float64
}

func decodeStatus(data []byte) (status, error) {
	pos, err := signalPosition.Extract(data)
	if err != nil {
		return status{}, err
	}
	vel, err := signalVelocity.Extract(data)
	if err != nil {
		return status{}, err
	}
	return status{Position: pos, Velocity: vel}, nil
}
