package main

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	clk "github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	viamutils "go.viam.com/utils"

	"go.viam.com/rdk/components/base"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/spatialmath"

	"github.com/owatonnarobotics/2021-Robot-sub000/auto"
	"github.com/owatonnarobotics/2021-Robot-sub000/swerve"
	"github.com/owatonnarobotics/2021-Robot-sub000/vector"
)

const (
	modeTeleop = "teleop"
	modeAuto   = "auto"

	mmPerInch = 25.4
)

var errStepAborted = errors.New("autonomous step aborted")

type mechanism struct {
	auto.Mechanism
	calibration *auto.Calibration
}

// runningStep is an autonomous step owned by the control loop.
type runningStep struct {
	seq  *auto.Sequence
	done chan error
	once sync.Once
}

func (r *runningStep) finish(err error) {
	r.once.Do(func() {
		r.done <- err
	})
}

type swerveBase struct {
	resource.Named
	resource.AlwaysRebuild
	baseParts

	conf       *Config
	geometries []spatialmath.Geometry
	clock      clk.Clock
	logger     logging.Logger

	// driveMu serializes control ticks with commands that touch the train directly.
	driveMu      sync.Mutex
	wasRecording bool
	lastErr      string

	mu        sync.Mutex
	operator  swerve.DriveCommand
	active    *runningStep
	recording bool
	takeName  string

	isMoving                atomic.Bool
	activeBackgroundWorkers sync.WaitGroup
	cancel                  func()
}

// newSwerveBase starts the control loop over already built parts. A nil clock uses the
// wall clock.
func newSwerveBase(
	name resource.Name,
	conf *Config,
	parts baseParts,
	geometries []spatialmath.Geometry,
	clock clk.Clock,
	logger logging.Logger,
) *swerveBase {
	if clock == nil {
		clock = clk.New()
	}
	cancelCtx, cancel := context.WithCancel(context.Background())
	b := &swerveBase{
		Named:      name.AsNamed(),
		baseParts:  parts,
		conf:       conf,
		geometries: geometries,
		clock:      clock,
		logger:     logger,
		cancel:     cancel,
	}

	ticker := clock.Ticker(conf.tick())
	b.activeBackgroundWorkers.Add(1)
	viamutils.ManagedGo(func() {
		b.controlThread(cancelCtx, ticker)
	}, b.activeBackgroundWorkers.Done)
	return b
}

// controlThread runs one control tick every period until ctx is done.
func (b *swerveBase) controlThread(ctx context.Context, ticker *clk.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		b.tick(ctx)
	}
}

// tick executes the active autonomous step, or drives the latest operator command when
// there is none.
func (b *swerveBase) tick(ctx context.Context) {
	b.driveMu.Lock()
	defer b.driveMu.Unlock()

	b.mu.Lock()
	run := b.active
	cmd := b.operator
	recording, takeName := b.recording, b.takeName
	b.mu.Unlock()

	if run != nil {
		done, err := run.seq.Execute(ctx)
		if err == nil && !done {
			return
		}
		b.finishStep(ctx, run, err)
		return
	}

	if b.gamepad != nil {
		pad, err := b.gamepad.Sample(ctx)
		if err != nil {
			b.reportErr(errors.Wrap(err, "sampling gamepad"))
		} else if b.engaged(pad) {
			cmd = pad
		}
	}
	cmd.Record = cmd.Record || recording
	if b.wasRecording && !cmd.Record {
		if _, _, err := b.saveTake(ctx, takeName); err != nil {
			b.reportErr(err)
		}
	}
	b.wasRecording = cmd.Record
	b.board.Publish(telemRecording, cmd.Record)

	b.reportErr(b.train.Drive(ctx, cmd))
}

// engaged reports whether the gamepad asks for anything beyond stick noise.
func (b *swerveBase) engaged(cmd swerve.DriveCommand) bool {
	dz := b.train.Config().Deadzone
	return math.Abs(cmd.X) >= dz || math.Abs(cmd.Y) >= dz || math.Abs(cmd.Z) >= dz ||
		cmd.Precision || cmd.HeadingLock || cmd.Record
}

// reportErr logs an error once until a different one occurs.
func (b *swerveBase) reportErr(err error) {
	if err == nil {
		if b.lastErr != "" {
			b.logger.Info("control loop recovered")
			b.lastErr = ""
			b.board.Publish(telemLastError, "")
		}
		return
	}
	if msg := err.Error(); msg != b.lastErr {
		b.logger.Errorw("control loop error", "error", err)
		b.lastErr = msg
		b.board.Publish(telemLastError, msg)
	}
}

// saveTake ends the current recording and stores it. Unnamed takes are named after the
// time they ended.
func (b *swerveBase) saveTake(ctx context.Context, name string) (string, int, error) {
	take := b.recorder.Publish()
	if take == nil {
		return "", 0, nil
	}
	if name == "" {
		name = "take-" + b.clock.Now().Format("20060102-150405")
	}
	if err := b.store.Save(ctx, name, take); err != nil {
		return "", 0, err
	}
	return name, len(take), nil
}

// startStep hands step to the control loop, aborting whatever step was running.
func (b *swerveBase) startStep(name string, step auto.Step) *runningStep {
	run := &runningStep{seq: auto.NewSequence(name, b.logger, step), done: make(chan error, 1)}

	b.mu.Lock()
	prev := b.active
	b.active = run
	b.operator = swerve.DriveCommand{}
	b.mu.Unlock()

	if prev != nil {
		b.logger.Infow("autonomous step replaced", "previous", prev.seq.String(), "next", name)
		prev.finish(errStepAborted)
	}
	// steps that never drive the modules must not inherit teleop outputs
	if err := b.stopTrain(context.Background()); err != nil {
		b.logger.Errorw("failed to stop before autonomous step", "error", err)
	}
	b.isMoving.Store(true)
	b.board.Publish(telemMode, modeAuto)
	b.board.Publish(telemStep, name)
	b.logger.Infow("autonomous step started", "step", name)
	return run
}

// finishStep retires run once its sequence finished or failed. Must hold driveMu.
func (b *swerveBase) finishStep(ctx context.Context, run *runningStep, err error) {
	b.mu.Lock()
	current := b.active == run
	if current {
		b.active = nil
	}
	b.mu.Unlock()

	if err != nil {
		b.logger.Errorw("autonomous step failed", "step", run.seq.String(), "error", err)
		if cleanupErr := run.seq.Abort(ctx); cleanupErr != nil {
			b.logger.Errorw("failed to clean up after step failure", "error", cleanupErr)
		}
		if stopErr := b.train.Stop(ctx); stopErr != nil {
			b.logger.Errorw("failed to stop after step failure", "error", stopErr)
		}
	} else {
		b.logger.Infow("autonomous step finished", "step", run.seq.String())
	}
	if current {
		b.isMoving.Store(false)
		b.board.Publish(telemMode, modeTeleop)
		b.board.Publish(telemStep, "")
	}
	run.finish(err)
}

// abortStep cancels the active step, or only run when it is non-nil, and reports
// whether anything was aborted.
func (b *swerveBase) abortStep(ctx context.Context, run *runningStep) bool {
	b.mu.Lock()
	if b.active == nil || (run != nil && b.active != run) {
		b.mu.Unlock()
		return false
	}
	aborted := b.active
	b.active = nil
	b.mu.Unlock()

	b.driveMu.Lock()
	err := aborted.seq.Abort(ctx)
	b.driveMu.Unlock()
	if err != nil {
		b.logger.Errorw("failed to clean up aborted step", "step", aborted.seq.String(), "error", err)
	}

	b.logger.Infow("autonomous step aborted", "step", aborted.seq.String())
	aborted.finish(errStepAborted)
	b.board.Publish(telemMode, modeTeleop)
	b.board.Publish(telemStep, "")
	return true
}

// runStep runs step on the control loop and waits for it to finish.
func (b *swerveBase) runStep(ctx context.Context, name string, step auto.Step) error {
	run := b.startStep(name, step)
	select {
	case <-ctx.Done():
		if b.abortStep(context.Background(), run) {
			if err := b.stopTrain(context.Background()); err != nil {
				b.logger.Errorw("failed to stop after cancelled step", "error", err)
			}
		}
		return ctx.Err()
	case err := <-run.done:
		return err
	}
}

func (b *swerveBase) stopTrain(ctx context.Context) error {
	b.driveMu.Lock()
	defer b.driveMu.Unlock()
	b.isMoving.Store(false)
	return b.train.Stop(ctx)
}

func (b *swerveBase) setOperator(ctx context.Context, cmd swerve.DriveCommand) {
	b.abortStep(ctx, nil)
	b.mu.Lock()
	b.operator = cmd
	b.mu.Unlock()
	moving := cmd.X != 0 || cmd.Y != 0 || cmd.Z != 0
	b.isMoving.Store(moving)
	b.board.Publish(telemMoving, moving)
}

// MoveStraight drives the given distance along the robot's forward axis as it points
// when the move starts. Distance is the mean drive encoder travel; a negative distance
// or speed drives backward.
func (b *swerveBase) MoveStraight(ctx context.Context, distanceMm int, mmPerSec float64, extra map[string]interface{}) error {
	if distanceMm == 0 {
		return nil
	}
	if mmPerSec == 0 {
		return errors.New("mmPerSec must not be zero")
	}
	dir := vector.Forward
	if (distanceMm < 0) != (mmPerSec < 0) {
		dir = vector.Backward
	}
	speed := math.Min(1, math.Abs(mmPerSec)/b.conf.maxSpeedMmPerSec())
	inches := math.Abs(float64(distanceMm)) / mmPerInch
	return b.runStep(ctx, "move straight", auto.NewAssumeRobotDistance(b.train, dir, inches, speed))
}

// Spin turns the base in place by angleDeg, counter-clockwise positive. The rotate
// profile sets the speed, capped at degsPerSec as a fraction of the configured maximum.
// A zero degsPerSec leaves the profile uncapped.
func (b *swerveBase) Spin(ctx context.Context, angleDeg, degsPerSec float64, extra map[string]interface{}) error {
	if angleDeg == 0 {
		return nil
	}
	b.logger.Debugw("Spin", "angleDeg", angleDeg, "degsPerSec", degsPerSec)
	step := auto.NewAssumeRotationDegrees(b.train, angleDeg)
	step.SetSpeedLimit(math.Min(1, math.Abs(degsPerSec)/b.conf.maxDegsPerSec()))
	return b.runStep(ctx, "spin", step)
}

// SetPower sets the field-oriented drive power. linear.X is right, linear.Y forward and
// angular.Z counter-clockwise, all in [-1, 1].
func (b *swerveBase) SetPower(ctx context.Context, linear, angular r3.Vector, extra map[string]interface{}) error {
	b.logger.Debugw("SetPower", "linear", linear, "angular", angular)
	if linear.Z != 0 {
		b.logger.Warnw("Linear Z command non-zero and has no effect")
	}
	if angular.X != 0 || angular.Y != 0 {
		b.logger.Warnw("Angular X and Y commands non-zero and have no effect")
	}
	cmd := swerve.DriveCommand{X: linear.X, Y: linear.Y, Z: -angular.Z}
	if v, ok := extra["precision"].(bool); ok {
		cmd.Precision = v
	}
	if v, ok := extra["heading_lock"].(bool); ok {
		cmd.HeadingLock = v
	}
	b.setOperator(ctx, cmd)
	return nil
}

// SetVelocity sets the linear (mmPerSec) and angular (degsPerSec) velocity as a
// fraction of the configured maximums.
func (b *swerveBase) SetVelocity(ctx context.Context, linear, angular r3.Vector, extra map[string]interface{}) error {
	maxSpeed, maxDegs := b.conf.maxSpeedMmPerSec(), b.conf.maxDegsPerSec()
	return b.SetPower(ctx,
		r3.Vector{X: linear.X / maxSpeed, Y: linear.Y / maxSpeed},
		r3.Vector{Z: angular.Z / maxDegs},
		extra)
}

// Stop aborts any autonomous step and stops every module.
func (b *swerveBase) Stop(ctx context.Context, extra map[string]interface{}) error {
	b.setOperator(ctx, swerve.DriveCommand{})
	return b.stopTrain(ctx)
}

func (b *swerveBase) IsMoving(ctx context.Context) (bool, error) {
	return b.isMoving.Load(), nil
}

func (b *swerveBase) Properties(ctx context.Context, extra map[string]interface{}) (base.Properties, error) {
	return base.Properties{
		WidthMeters:              b.conf.trackWidthMm() / 1000.0,
		WheelCircumferenceMeters: b.train.Config().WheelCircumference * mmPerInch / 1000.0,
	}, nil
}

func (b *swerveBase) Geometries(ctx context.Context, extra map[string]interface{}) ([]spatialmath.Geometry, error) {
	return b.geometries, nil
}

// Close stops the control loop and the train and releases the hardware.
func (b *swerveBase) Close(ctx context.Context) error {
	b.abortStep(ctx, nil)
	b.cancel()
	b.activeBackgroundWorkers.Wait()

	b.mu.Lock()
	takeName := b.takeName
	b.mu.Unlock()
	_, _, err := b.saveTake(ctx, takeName)
	err = multierr.Combine(err, b.stopTrain(ctx))
	return multierr.Combine(err, b.baseParts.close(ctx))
}
