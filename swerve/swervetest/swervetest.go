// Package swervetest provides in-memory hardware for exercising a swerve train without
// a robot.
package swervetest

import (
	"context"
	"sync"

	"go.viam.com/rdk/logging"

	"github.com/owatonnarobotics/2021-Robot-sub000/swerve"
)

// Actuator is a swerve.Actuator whose positions only move when Simulate is called.
type Actuator struct {
	mu         sync.Mutex
	steerPos   float64
	drivePos   float64
	steerSpeed float64
	driveSpeed float64
	steerErr   error
	driveBrake bool
	steerBrake bool
}

var _ swerve.Actuator = (*Actuator)(nil)

// SetSteerSpeed records the commanded steering output.
func (a *Actuator) SetSteerSpeed(ctx context.Context, speed float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.steerSpeed = speed
	return nil
}

// SetDriveSpeed records the commanded drive output.
func (a *Actuator) SetDriveSpeed(ctx context.Context, speed float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.driveSpeed = speed
	return nil
}

// SteerPosition returns the simulated steering count or the injected error.
func (a *Actuator) SteerPosition(ctx context.Context) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.steerErr != nil {
		return 0, a.steerErr
	}
	return a.steerPos, nil
}

// DrivePosition returns the simulated drive count.
func (a *Actuator) DrivePosition(ctx context.Context) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.drivePos, nil
}

// SetBrakeMode records the brake modes.
func (a *Actuator) SetBrakeMode(ctx context.Context, drive, steer bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.driveBrake, a.steerBrake = drive, steer
	return nil
}

// Speeds returns the last commanded outputs.
func (a *Actuator) Speeds() (steer, drive float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.steerSpeed, a.driveSpeed
}

// Positions returns the simulated counts.
func (a *Actuator) Positions() (steer, drive float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.steerPos, a.drivePos
}

// SetPositions overrides the simulated counts.
func (a *Actuator) SetPositions(steer, drive float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.steerPos, a.drivePos = steer, drive
}

// SetSteerError makes steering reads fail with err until cleared with nil.
func (a *Actuator) SetSteerError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.steerErr = err
}

// BrakeModes returns the last brake modes applied.
func (a *Actuator) BrakeModes() (drive, steer bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.driveBrake, a.steerBrake
}

// Simulate advances both counts by one tick at gain units per full output.
func (a *Actuator) Simulate(gain float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.steerPos += a.steerSpeed * gain
	a.drivePos += a.driveSpeed * gain
}

// Heading is a settable swerve.Heading.
type Heading struct {
	mu      sync.Mutex
	degrees float64
	err     error
}

var _ swerve.Heading = (*Heading)(nil)

// Yaw returns the current heading.
func (h *Heading) Yaw(ctx context.Context) (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.degrees, h.err
}

// ResetYaw zeroes the heading.
func (h *Heading) ResetYaw(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.degrees = 0
	return nil
}

// Set overrides the heading.
func (h *Heading) Set(degrees float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.degrees = degrees
}

// Turn adds delta degrees to the heading.
func (h *Heading) Turn(delta float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.degrees += delta
}

// SetError makes yaw reads fail with err until cleared with nil.
func (h *Heading) SetError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

// Vision is a settable swerve.Vision.
type Vision struct {
	mu          sync.Mutex
	hasTarget   bool
	offset      float64
	illuminated bool
	err         error
}

var _ swerve.Vision = (*Vision)(nil)

// HorizontalOffset returns the configured offset.
func (v *Vision) HorizontalOffset(ctx context.Context) (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.offset, v.err
}

// HasTarget reports whether a target is configured.
func (v *Vision) HasTarget(ctx context.Context) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.hasTarget, v.err
}

// SetIlluminator records the illuminator state.
func (v *Vision) SetIlluminator(ctx context.Context, on bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.illuminated = on
	return nil
}

// SetTarget configures what the camera sees.
func (v *Vision) SetTarget(hasTarget bool, offset float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.hasTarget, v.offset = hasTarget, offset
}

// Illuminated returns the illuminator state.
func (v *Vision) Illuminated() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.illuminated
}

// Rig is a complete simulated train.
type Rig struct {
	Train     *swerve.Train
	Config    *swerve.Config
	Actuators [swerve.NumCorners]*Actuator
	Modules   [swerve.NumCorners]*swerve.Module
	Heading   *Heading
	Vision    *Vision
}

// NewRig builds a train over simulated hardware using the default configuration as
// adjusted by mutate, which may be nil. rec may be nil.
func NewRig(logger logging.Logger, mutate func(*swerve.Config), rec swerve.Recorder) (*Rig, error) {
	cfg := swerve.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	r := &Rig{Config: &cfg, Heading: &Heading{}, Vision: &Vision{}}
	for c := range r.Actuators {
		r.Actuators[c] = &Actuator{}
		r.Modules[c] = swerve.NewModule(swerve.Corner(c).String(), r.Actuators[c], r.Config, logger)
	}
	train, err := swerve.NewTrain(r.Config, swerve.Parts{
		FrontRight: r.Modules[swerve.FrontRight],
		FrontLeft:  r.Modules[swerve.FrontLeft],
		RearLeft:   r.Modules[swerve.RearLeft],
		RearRight:  r.Modules[swerve.RearRight],
		Heading:    r.Heading,
		Vision:     r.Vision,
		Recorder:   rec,
	}, logger)
	if err != nil {
		return nil, err
	}
	r.Train = train
	return r, nil
}

// Simulate advances every actuator by one tick. When the modules are spinning the
// train, the heading follows at degreesPerUnit for each unit of drive travel; clockwise
// spin lowers the heading.
func (r *Rig) Simulate(gain, degreesPerUnit float64) {
	var sum float64
	for _, a := range r.Actuators {
		_, drive := a.Speeds()
		sum += drive
		a.Simulate(gain)
	}
	if degreesPerUnit != 0 && r.spinning() {
		r.Heading.Turn(-sum / float64(len(r.Actuators)) * gain * degreesPerUnit)
	}
}

// spinning reports whether every module sits in the turn pose.
func (r *Rig) spinning() bool {
	arrived, err := r.Train.InTurnPose(context.Background())
	return err == nil && arrived
}

// AlignSteering sets every module's steering count to units.
func (r *Rig) AlignSteering(units float64) {
	for _, a := range r.Actuators {
		_, drive := a.Positions()
		a.SetPositions(units, drive)
	}
}

// DriveSpeeds returns every module's commanded drive output.
func (r *Rig) DriveSpeeds() [swerve.NumCorners]float64 {
	var out [swerve.NumCorners]float64
	for c, a := range r.Actuators {
		_, out[c] = a.Speeds()
	}
	return out
}
