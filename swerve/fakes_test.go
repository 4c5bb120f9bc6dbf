package swerve

import (
	"context"
	"sync"
)

type fakeActuator struct {
	steerPos   float64
	drivePos   float64
	steerSpeed float64
	driveSpeed float64
	steerErr   error
	driveErr   error
	driveBrake bool
	steerBrake bool
}

func (a *fakeActuator) SetSteerSpeed(ctx context.Context, speed float64) error {
	a.steerSpeed = speed
	return nil
}

func (a *fakeActuator) SetDriveSpeed(ctx context.Context, speed float64) error {
	a.driveSpeed = speed
	return nil
}

func (a *fakeActuator) SteerPosition(ctx context.Context) (float64, error) {
	if a.steerErr != nil {
		return 0, a.steerErr
	}
	return a.steerPos, nil
}

func (a *fakeActuator) DrivePosition(ctx context.Context) (float64, error) {
	if a.driveErr != nil {
		return 0, a.driveErr
	}
	return a.drivePos, nil
}

func (a *fakeActuator) SetBrakeMode(ctx context.Context, drive, steer bool) error {
	a.driveBrake, a.steerBrake = drive, steer
	return nil
}

// simulate advances the physical state by one tick at gain units per full output.
func (a *fakeActuator) simulate(gain float64) {
	a.steerPos += a.steerSpeed * gain
	a.drivePos += a.driveSpeed * gain
}

type fakeHeading struct {
	yaw float64
	err error
}

func (h *fakeHeading) Yaw(ctx context.Context) (float64, error) {
	return h.yaw, h.err
}

func (h *fakeHeading) ResetYaw(ctx context.Context) error {
	h.yaw = 0
	return nil
}

type fakeVision struct {
	hasTarget bool
	offset    float64
	err       error
	lit       bool
}

func (v *fakeVision) HorizontalOffset(ctx context.Context) (float64, error) {
	return v.offset, v.err
}

func (v *fakeVision) HasTarget(ctx context.Context) (bool, error) {
	return v.hasTarget, v.err
}

func (v *fakeVision) SetIlluminator(ctx context.Context, on bool) error {
	v.lit = on
	return nil
}

type fakeTelemetry struct {
	mu     sync.Mutex
	values map[string]interface{}
}

func (f *fakeTelemetry) Publish(key string, value interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values == nil {
		f.values = map[string]interface{}{}
	}
	f.values[key] = value
}

func (f *fakeTelemetry) get(key string) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[key]
}
