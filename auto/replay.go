package auto

import (
	"context"
	"fmt"

	"github.com/owatonnarobotics/2021-Robot-sub000/recorder"
	"github.com/owatonnarobotics/2021-Robot-sub000/swerve"
)

// RunPrerecorded replays a recorded take through the train, one sample per tick.
type RunPrerecorded struct {
	train   Drivetrain
	name    string
	samples []recorder.Sample
	index   int
}

// NewRunPrerecorded returns a replay step for samples.
func NewRunPrerecorded(train Drivetrain, name string, samples []recorder.Sample) *RunPrerecorded {
	return &RunPrerecorded{train: train, name: name, samples: samples}
}

func (s *RunPrerecorded) String() string {
	return fmt.Sprintf("replay %s (%d samples)", s.name, len(s.samples))
}

// Remaining returns the number of samples not yet played.
func (s *RunPrerecorded) Remaining() int { return len(s.samples) - s.index }

// Init rewinds to the first sample.
func (s *RunPrerecorded) Init(ctx context.Context) error {
	s.index = 0
	return nil
}

// Execute plays the next sample. It finishes, stopping the train, on the tick after the
// last sample was played.
func (s *RunPrerecorded) Execute(ctx context.Context) (bool, error) {
	if s.index >= len(s.samples) {
		return true, s.train.Stop(ctx)
	}
	cmd := swerve.CommandFromSample(s.samples[s.index])
	s.index++
	return false, s.train.Drive(ctx, cmd)
}

// Cleanup stops the train.
func (s *RunPrerecorded) Cleanup(ctx context.Context) error {
	return s.train.Stop(ctx)
}
