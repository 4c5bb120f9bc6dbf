package hardware

import (
	"context"

	"github.com/pkg/errors"
	"go.viam.com/rdk/components/board"
	"go.viam.com/rdk/components/input"
	"go.viam.com/rdk/components/motor"
	"go.viam.com/rdk/components/movementsensor"
	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/spatialmath"
)

type fakeMotor struct {
	motor.Motor
	name     string
	power    float64
	position float64
	stopped  int
	brake    interface{}
	doErr    error
}

func (m *fakeMotor) Name() resource.Name {
	return motor.Named(m.name)
}

func (m *fakeMotor) SetPower(ctx context.Context, powerPct float64, extra map[string]interface{}) error {
	m.power = powerPct
	return nil
}

func (m *fakeMotor) Position(ctx context.Context, extra map[string]interface{}) (float64, error) {
	return m.position, nil
}

func (m *fakeMotor) Stop(ctx context.Context, extra map[string]interface{}) error {
	m.power = 0
	m.stopped++
	return nil
}

func (m *fakeMotor) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	if m.doErr != nil {
		return nil, m.doErr
	}
	if cmd["command"] != "set_brake" {
		return nil, errors.New("unexpected command")
	}
	m.brake = cmd["brake"]
	return map[string]interface{}{}, nil
}

type fakeMovementSensor struct {
	movementsensor.MovementSensor
	yawDegrees float64
	err        error
}

func (s *fakeMovementSensor) Orientation(ctx context.Context, extra map[string]interface{}) (spatialmath.Orientation, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &spatialmath.EulerAngles{Yaw: s.yawDegrees * 3.141592653589793 / 180}, nil
}

type fakeSensor struct {
	sensor.Sensor
	readings map[string]interface{}
	err      error
}

func (s *fakeSensor) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	return s.readings, s.err
}

type fakePin struct {
	board.GPIOPin
	high bool
	sets int
}

func (p *fakePin) Set(ctx context.Context, high bool, extra map[string]interface{}) error {
	p.high = high
	p.sets++
	return nil
}

type fakeController struct {
	input.Controller
	events map[input.Control]input.Event
	err    error
}

func (c *fakeController) Events(ctx context.Context, extra map[string]interface{}) (map[input.Control]input.Event, error) {
	return c.events, c.err
}
