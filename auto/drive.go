package auto

import (
	"context"
	"fmt"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/owatonnarobotics/2021-Robot-sub000/vector"
)

// AssumeDirection points every module along a field-relative direction.
type AssumeDirection struct {
	train     Drivetrain
	direction vector.Vector2
}

// NewAssumeDirection returns a step that finishes once every module points along dir.
func NewAssumeDirection(train Drivetrain, dir vector.Vector2) *AssumeDirection {
	return &AssumeDirection{train: train, direction: dir}
}

func (s *AssumeDirection) String() string {
	return fmt.Sprintf("assume direction %.0f°", s.direction.Angle()*180/math.Pi)
}

// Init does nothing.
func (s *AssumeDirection) Init(ctx context.Context) error { return nil }

// Execute steers toward the direction.
func (s *AssumeDirection) Execute(ctx context.Context) (bool, error) {
	return s.train.AssumeDirection(ctx, s.direction)
}

// Cleanup does nothing; the modules hold their last output.
func (s *AssumeDirection) Cleanup(ctx context.Context) error { return nil }

// AssumeDistance translates along a field-relative direction until the drive encoders
// have travelled the requested distance.
type AssumeDistance struct {
	train     Drivetrain
	direction vector.Vector2
	inches    float64
	speed     float64
	// robot is the robot-relative direction resolved into direction at Init.
	robot *vector.Vector2

	target float64
	start  []float64
}

// NewAssumeDistance returns a step that drives inches along dir at speed.
func NewAssumeDistance(train Drivetrain, dir vector.Vector2, inches, speed float64) *AssumeDistance {
	return &AssumeDistance{train: train, direction: dir, inches: math.Abs(inches), speed: math.Abs(speed)}
}

// NewAssumeRobotDistance is NewAssumeDistance with dir relative to the robot's heading
// at Init. The field direction is fixed from then on, so the train keeps driving along
// the line it faced when the step started.
func NewAssumeRobotDistance(train Drivetrain, dir vector.Vector2, inches, speed float64) *AssumeDistance {
	s := NewAssumeDistance(train, dir, inches, speed)
	s.robot = &dir
	return s
}

func (s *AssumeDistance) String() string {
	return fmt.Sprintf("drive %.1fin at %.0f°", s.inches, s.direction.Angle()*180/math.Pi)
}

// Init captures the drive encoder positions the distance is measured from.
func (s *AssumeDistance) Init(ctx context.Context) error {
	if s.robot != nil {
		heading, err := s.train.Heading(ctx)
		if err != nil {
			return errors.Wrap(err, "reading heading")
		}
		s.direction = vector.Polar(1, s.robot.Angle()+heading*math.Pi/180)
	}
	s.target = s.train.Config().DistanceToUnits(s.inches)
	modules := s.train.Modules()
	s.start = make([]float64, len(modules))
	for i, m := range modules {
		pos, err := m.DrivePosition(ctx)
		if err != nil {
			return err
		}
		s.start[i] = pos
	}
	return nil
}

// Travelled returns the mean drive encoder delta since Init.
func (s *AssumeDistance) Travelled(ctx context.Context) (float64, error) {
	modules := s.train.Modules()
	var sum float64
	for i, m := range modules {
		pos, err := m.DrivePosition(ctx)
		if err != nil {
			return 0, err
		}
		sum += math.Abs(pos - s.start[i])
	}
	return sum / float64(len(modules)), nil
}

// Execute drives until the target is reached, then commands zero drive speed.
func (s *AssumeDistance) Execute(ctx context.Context) (bool, error) {
	if s.start == nil {
		return false, errors.New("distance step executed before init")
	}
	travelled, err := s.Travelled(ctx)
	if err != nil {
		return false, multierr.Combine(err, s.train.Stop(ctx))
	}
	if travelled >= s.target {
		var err error
		for _, m := range s.train.Modules() {
			err = multierr.Append(err, m.SetDriveSpeed(ctx, 0))
		}
		return err == nil, err
	}
	_, err = s.train.Translate(ctx, s.direction, s.speed)
	return false, err
}

// Cleanup stops the train.
func (s *AssumeDistance) Cleanup(ctx context.Context) error {
	return s.train.Stop(ctx)
}

// AssumeAngle spins in place to an absolute field heading in degrees. The modules are
// pre-positioned into the turn pose before any drive output is applied.
type AssumeAngle struct {
	train   Drivetrain
	heading float64
	limit   float64
}

// NewAssumeAngle returns a step that turns to heading degrees, counter-clockwise
// positive.
func NewAssumeAngle(train Drivetrain, heading float64) *AssumeAngle {
	return &AssumeAngle{train: train, heading: heading}
}

func (s *AssumeAngle) String() string {
	return fmt.Sprintf("turn to %.1f°", s.heading)
}

// SetSpeedLimit caps the magnitude of the rotate profile's output. Zero or less
// removes the cap.
func (s *AssumeAngle) SetSpeedLimit(limit float64) {
	s.limit = limit
}

// Init does nothing.
func (s *AssumeAngle) Init(ctx context.Context) error { return nil }

// Execute turns toward the heading with the rotate profile.
func (s *AssumeAngle) Execute(ctx context.Context) (bool, error) {
	heading, err := s.train.Heading(ctx)
	if err != nil {
		return false, multierr.Combine(errors.Wrap(err, "reading heading"), s.train.Stop(ctx))
	}
	cfg := s.train.Config()
	remaining := s.heading - heading
	if math.Abs(remaining) <= cfg.RotateTolerance {
		return true, s.train.Stop(ctx)
	}
	speed := cfg.RotateProfile.Speed(remaining)
	if s.limit > 0 && math.Abs(speed) > s.limit {
		speed = math.Copysign(s.limit, speed)
	}
	// positive spin is clockwise, which lowers the heading
	_, err = s.train.Rotate(ctx, -speed)
	return false, err
}

// Cleanup stops the train.
func (s *AssumeAngle) Cleanup(ctx context.Context) error {
	return s.train.Stop(ctx)
}

// AssumeRotationDegrees spins in place by a relative number of degrees measured from
// the heading at Init.
type AssumeRotationDegrees struct {
	AssumeAngle
	degrees float64
}

// NewAssumeRotationDegrees returns a step that turns by degrees, counter-clockwise
// positive.
func NewAssumeRotationDegrees(train Drivetrain, degrees float64) *AssumeRotationDegrees {
	return &AssumeRotationDegrees{AssumeAngle: AssumeAngle{train: train}, degrees: degrees}
}

func (s *AssumeRotationDegrees) String() string {
	return fmt.Sprintf("turn by %.1f°", s.degrees)
}

// Init fixes the absolute target from the current heading.
func (s *AssumeRotationDegrees) Init(ctx context.Context) error {
	heading, err := s.train.Heading(ctx)
	if err != nil {
		return errors.Wrap(err, "reading heading")
	}
	s.heading = heading + s.degrees
	return nil
}
