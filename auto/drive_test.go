package auto

import (
	"context"
	"math"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/test"

	"github.com/owatonnarobotics/2021-Robot-sub000/swerve"
	"github.com/owatonnarobotics/2021-Robot-sub000/swerve/swervetest"
	"github.com/owatonnarobotics/2021-Robot-sub000/vector"
)

func newRig(t *testing.T) *swervetest.Rig {
	t.Helper()
	rig, err := swervetest.NewRig(logging.NewTestLogger(t), nil, nil)
	test.That(t, err, test.ShouldBeNil)
	return rig
}

// run ticks step until it finishes, simulating the rig after every tick.
func run(t *testing.T, rig *swervetest.Rig, step Step, maxTicks int, degreesPerUnit float64) int {
	t.Helper()
	ctx := context.Background()
	test.That(t, step.Init(ctx), test.ShouldBeNil)
	for tick := 1; tick <= maxTicks; tick++ {
		done, err := step.Execute(ctx)
		test.That(t, err, test.ShouldBeNil)
		if done {
			test.That(t, step.Cleanup(ctx), test.ShouldBeNil)
			return tick
		}
		rig.Simulate(0.5, degreesPerUnit)
	}
	t.Fatalf("%s did not finish in %d ticks", stepName(step), maxTicks)
	return 0
}

func TestAssumeDirection(t *testing.T) {
	rig := newRig(t)
	rig.Heading.Set(0)
	run(t, rig, NewAssumeDirection(rig.Train, vector.Left), 500, 0)

	want := rig.Config.UnitsPerRev / 4
	for _, m := range rig.Train.Modules() {
		pos, err := m.Position(context.Background())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, math.Abs(pos-want), test.ShouldBeLessThanOrEqualTo, rig.Config.Tolerance)
	}
	for _, speed := range rig.DriveSpeeds() {
		test.That(t, speed, test.ShouldEqual, 0)
	}
}

func TestAssumeDistance(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()
	step := NewAssumeDistance(rig.Train, vector.Forward, 30, 0.5)
	test.That(t, step.String(), test.ShouldEqual, "drive 30.0in at 0°")

	_, err := step.Execute(ctx)
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, step.Init(ctx), test.ShouldBeNil)
	target := 30 / (4 * math.Pi) * rig.Config.DriveUnitsPerRev
	test.That(t, step.target, test.ShouldAlmostEqual, target)

	finished := false
	for tick := 0; tick < 200 && !finished; tick++ {
		travelled, err := step.Travelled(ctx)
		test.That(t, err, test.ShouldBeNil)
		done, err := step.Execute(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, done, test.ShouldEqual, travelled >= target)
		if done {
			for _, speed := range rig.DriveSpeeds() {
				test.That(t, speed, test.ShouldEqual, 0)
			}
			finished = true
			continue
		}
		for _, a := range rig.Actuators {
			a.Simulate(1)
		}
	}
	test.That(t, finished, test.ShouldBeTrue)
	test.That(t, step.Cleanup(ctx), test.ShouldBeNil)
}

func TestAssumeDistanceAlignsFirst(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()
	step := NewAssumeDistance(rig.Train, vector.Right, 10, 0.5)
	test.That(t, step.Init(ctx), test.ShouldBeNil)

	done, err := step.Execute(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, done, test.ShouldBeFalse)
	for _, speed := range rig.DriveSpeeds() {
		test.That(t, speed, test.ShouldEqual, 0)
	}

	rig.AlignSteering(0.75 * rig.Config.UnitsPerRev)
	_, err = step.Execute(ctx)
	test.That(t, err, test.ShouldBeNil)
	for _, speed := range rig.DriveSpeeds() {
		test.That(t, speed, test.ShouldEqual, 0.5)
	}
}

func TestAssumeRobotDistance(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()
	rig.Heading.Set(90)

	step := NewAssumeRobotDistance(rig.Train, vector.Forward, 10, 0.5)
	test.That(t, step.Init(ctx), test.ShouldBeNil)
	test.That(t, step.direction.Angle(), test.ShouldAlmostEqual, math.Pi/2)

	// wheels already point along the robot's forward axis
	done, err := step.Execute(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, done, test.ShouldBeFalse)
	for _, a := range rig.Actuators {
		steer, drive := a.Speeds()
		test.That(t, steer, test.ShouldEqual, 0)
		test.That(t, drive, test.ShouldEqual, 0.5)
	}

	// the direction stays fixed in the field once resolved
	rig.Heading.Set(60)
	_, err = step.Execute(ctx)
	test.That(t, err, test.ShouldBeNil)
	for _, speed := range rig.DriveSpeeds() {
		test.That(t, speed, test.ShouldEqual, 0)
	}

	back := NewAssumeRobotDistance(rig.Train, vector.Backward, 10, 0.5)
	test.That(t, back.Init(ctx), test.ShouldBeNil)
	test.That(t, back.direction.Angle(), test.ShouldAlmostEqual, 3*math.Pi/2)

	rig.Heading.SetError(errors.New("imu gone"))
	test.That(t, NewAssumeRobotDistance(rig.Train, vector.Forward, 10, 0.5).Init(ctx), test.ShouldNotBeNil)
}

func TestAssumeAngleSpeedLimit(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()
	for c, a := range rig.Actuators {
		a.SetPositions(turnPose(rig, swerve.Corner(c)), 0)
	}
	step := NewAssumeRotationDegrees(rig.Train, 170)
	step.SetSpeedLimit(0.1)
	test.That(t, step.Init(ctx), test.ShouldBeNil)
	_, err := step.Execute(ctx)
	test.That(t, err, test.ShouldBeNil)
	for _, speed := range rig.DriveSpeeds() {
		test.That(t, speed, test.ShouldAlmostEqual, -0.1)
	}

	step.SetSpeedLimit(0)
	_, err = step.Execute(ctx)
	test.That(t, err, test.ShouldBeNil)
	want := -rig.Config.RotateProfile.Speed(170)
	for _, speed := range rig.DriveSpeeds() {
		test.That(t, speed, test.ShouldAlmostEqual, want)
	}
}

func TestAssumeAngle(t *testing.T) {
	rig := newRig(t)
	run(t, rig, NewAssumeAngle(rig.Train, 90), 3000, 20)

	heading, err := rig.Train.Heading(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, math.Abs(heading-90), test.ShouldBeLessThanOrEqualTo, rig.Config.RotateTolerance)
	for _, speed := range rig.DriveSpeeds() {
		test.That(t, speed, test.ShouldEqual, 0)
	}
}

func TestAssumeRotationDegrees(t *testing.T) {
	rig := newRig(t)
	rig.Heading.Set(30)
	step := NewAssumeRotationDegrees(rig.Train, -45)
	test.That(t, step.String(), test.ShouldEqual, "turn by -45.0°")
	run(t, rig, step, 3000, 20)

	heading, err := rig.Train.Heading(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, math.Abs(heading+15), test.ShouldBeLessThanOrEqualTo, rig.Config.RotateTolerance)
}

func TestAssumeAngleSpinsClockwiseForNegativeError(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()
	for c, a := range rig.Actuators {
		a.SetPositions(turnPose(rig, swerve.Corner(c)), 0)
	}
	step := NewAssumeAngle(rig.Train, -60)
	test.That(t, step.Init(ctx), test.ShouldBeNil)
	_, err := step.Execute(ctx)
	test.That(t, err, test.ShouldBeNil)
	for _, speed := range rig.DriveSpeeds() {
		test.That(t, speed, test.ShouldBeGreaterThan, 0)
	}
}

func TestAssumeAngleHeadingError(t *testing.T) {
	rig := newRig(t)
	rig.Heading.SetError(errors.New("imu gone"))
	_, err := NewAssumeAngle(rig.Train, 10).Execute(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "imu gone")

	err = NewAssumeRotationDegrees(rig.Train, 10).Init(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
}

func TestAssumeDistancePositionError(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()
	step := NewAssumeDistance(rig.Train, vector.Forward, 10, 0.5)
	test.That(t, step.Init(ctx), test.ShouldBeNil)

	rig.Actuators[swerve.FrontLeft].SetSteerError(errors.New("stale"))
	_, err := step.Execute(ctx)
	test.That(t, errors.Is(err, swerve.ErrPositionUnavailable), test.ShouldBeTrue)
}

func turnPose(rig *swervetest.Rig, c swerve.Corner) float64 {
	deg := 90 - rig.Config.RotationAngles[c]
	units := deg / 360 * rig.Config.UnitsPerRev
	if units < 0 {
		units += rig.Config.UnitsPerRev
	}
	return units
}
