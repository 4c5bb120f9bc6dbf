// Package auto sequences autonomous behaviour for a swerve train. Every step advances
// one tick per Execute call and never blocks the control loop.
package auto

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"

	"github.com/owatonnarobotics/2021-Robot-sub000/swerve"
	"github.com/owatonnarobotics/2021-Robot-sub000/vector"
)

// Step is one unit of autonomous behaviour.
//
// Init is called once on entry. Execute is called once per tick and returns true on the
// tick its goal is met. Cleanup is called once, right after that tick.
type Step interface {
	Init(ctx context.Context) error
	Execute(ctx context.Context) (bool, error)
	Cleanup(ctx context.Context) error
}

// Drivetrain is what steps need from a swerve train.
type Drivetrain interface {
	Drive(ctx context.Context, cmd swerve.DriveCommand) error
	AssumeDirection(ctx context.Context, dir vector.Vector2) (bool, error)
	Translate(ctx context.Context, dir vector.Vector2, speed float64) (bool, error)
	Rotate(ctx context.Context, speed float64) (bool, error)
	TrackTarget(ctx context.Context) (swerve.LockState, error)
	Heading(ctx context.Context) (float64, error)
	Stop(ctx context.Context) error
	Modules() []swerve.ModuleControl
	Config() *swerve.Config
	Vision() swerve.Vision
}

var _ Drivetrain = (*swerve.Train)(nil)

// State is the lifecycle of a sequence.
type State int

// Sequence states.
const (
	StatePending State = iota
	StateRunning
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Sequence runs steps strictly in order and is itself a step. When a step finishes,
// its Cleanup and the next step's Init both run on the same tick; the next step is
// first executed on the following tick.
type Sequence struct {
	name   string
	steps  []Step
	logger logging.Logger

	cursor int
	state  State
	err    error
	// live is set while the current step is initialized and not yet cleaned up.
	live bool
}

// ErrAborted marks a sequence its owner gave up on.
var ErrAborted = errors.New("sequence aborted")

// NewSequence returns a pending sequence of steps.
func NewSequence(name string, logger logging.Logger, steps ...Step) *Sequence {
	return &Sequence{name: name, steps: steps, logger: logger}
}

func (s *Sequence) String() string { return s.name }

// State returns the sequence's lifecycle state.
func (s *Sequence) State() State { return s.state }

// Cursor returns the index of the current step.
func (s *Sequence) Cursor() int { return s.cursor }

// Len returns the number of steps.
func (s *Sequence) Len() int { return len(s.steps) }

// Err returns the failure that ended the sequence, if any.
func (s *Sequence) Err() error { return s.err }

// Init rewinds to the first step and initializes it.
func (s *Sequence) Init(ctx context.Context) error {
	s.cursor = 0
	s.err = nil
	s.live = false
	s.state = StateRunning
	if len(s.steps) == 0 {
		s.state = StateDone
		return nil
	}
	return s.initCurrent(ctx)
}

// Execute ticks the current step.
func (s *Sequence) Execute(ctx context.Context) (bool, error) {
	switch s.state {
	case StatePending:
		if err := s.Init(ctx); err != nil {
			return false, err
		}
		if s.state == StateDone {
			return true, nil
		}
	case StateDone:
		return true, nil
	case StateFailed:
		return false, s.err
	}

	step := s.steps[s.cursor]
	done, err := step.Execute(ctx)
	if err != nil {
		return false, s.fail(err, "executing")
	}
	if !done {
		return false, nil
	}
	s.live = false
	if err := step.Cleanup(ctx); err != nil {
		return false, s.fail(err, "cleaning up")
	}
	s.logger.Debugw("autonomous step complete", "sequence", s.name, "step", stepName(step), "index", s.cursor)

	s.cursor++
	if s.cursor >= len(s.steps) {
		s.state = StateDone
		s.logger.Infow("autonomous sequence complete", "sequence", s.name)
		return true, nil
	}
	return false, s.initCurrent(ctx)
}

// Cleanup does nothing; every step cleans up after itself.
func (s *Sequence) Cleanup(ctx context.Context) error { return nil }

// Abort cleans up the current step when it was initialized but never finished, as
// happens after a failure or when the owner gives up on the sequence. A running
// sequence is marked failed with ErrAborted.
func (s *Sequence) Abort(ctx context.Context) error {
	if s.state == StateRunning {
		s.state = StateFailed
		s.err = errors.Wrapf(ErrAborted, "%s at step %d", s.name, s.cursor)
	}
	if !s.live {
		return nil
	}
	s.live = false
	if inner, ok := s.steps[s.cursor].(*Sequence); ok {
		return inner.Abort(ctx)
	}
	return s.steps[s.cursor].Cleanup(ctx)
}

func (s *Sequence) initCurrent(ctx context.Context) error {
	if err := s.steps[s.cursor].Init(ctx); err != nil {
		return s.fail(err, "initializing")
	}
	s.live = true
	return nil
}

func (s *Sequence) fail(err error, action string) error {
	s.state = StateFailed
	s.err = errors.Wrapf(err, "%s step %d (%s) of %s", action, s.cursor, stepName(s.steps[s.cursor]), s.name)
	s.logger.Errorw("autonomous sequence failed", "sequence", s.name, "error", s.err)
	return s.err
}

func stepName(step Step) string {
	if s, ok := step.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", step)
}
