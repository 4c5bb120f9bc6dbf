package auto

import (
	"context"
	"fmt"
	"time"

	clk "github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// ErrTargetNotFound is returned when a vision lock times out.
var ErrTargetNotFound = errors.New("vision target not acquired")

type lockPhase int

const (
	phaseIlluminate lockPhase = iota
	phaseSearch
	phaseTrack
	phaseDone
)

func (p lockPhase) String() string {
	switch p {
	case phaseIlluminate:
		return "illuminate"
	case phaseSearch:
		return "search"
	case phaseTrack:
		return "track"
	case phaseDone:
		return "done"
	default:
		return fmt.Sprintf("lockPhase(%d)", int(p))
	}
}

// VisionLockOptions tune a VisionLock.
type VisionLockOptions struct {
	// SettleTicks is how many consecutive ticks the target must stay inside the lock
	// tolerance. Defaults to 5.
	SettleTicks int
	// SearchSpeed spins the train while no target is visible; zero waits in place.
	SearchSpeed float64
	// Timeout fails the step when no lock was reached in time; zero never times out.
	Timeout time.Duration
}

// VisionLock turns the illuminator on, then rotates in place until the vision target is
// centered and stays centered.
type VisionLock struct {
	train Drivetrain
	clock clk.Clock
	opts  VisionLockOptions

	phase       lockPhase
	lockedTicks int
	started     time.Time
}

// NewVisionLock returns a vision lock step. A nil clock uses the wall clock.
func NewVisionLock(train Drivetrain, clock clk.Clock, opts VisionLockOptions) *VisionLock {
	if clock == nil {
		clock = clk.New()
	}
	if opts.SettleTicks <= 0 {
		opts.SettleTicks = 5
	}
	return &VisionLock{train: train, clock: clock, opts: opts}
}

func (s *VisionLock) String() string { return "vision lock" }

// Phase returns the current sub-state name.
func (s *VisionLock) Phase() string { return s.phase.String() }

// Init resets the sub-state machine.
func (s *VisionLock) Init(ctx context.Context) error {
	if s.train.Vision() == nil {
		return errors.New("vision lock requires a vision source")
	}
	s.phase = phaseIlluminate
	s.lockedTicks = 0
	s.started = s.clock.Now()
	return nil
}

// Execute advances the sub-state machine by one tick.
func (s *VisionLock) Execute(ctx context.Context) (bool, error) {
	if s.phase == phaseDone {
		return true, nil
	}
	if s.opts.Timeout > 0 && s.clock.Since(s.started) >= s.opts.Timeout {
		return false, multierr.Combine(
			errors.Wrapf(ErrTargetNotFound, "after %s in %s phase", s.opts.Timeout, s.phase),
			s.train.Stop(ctx),
		)
	}

	switch s.phase {
	case phaseIlluminate:
		if err := s.train.Vision().SetIlluminator(ctx, true); err != nil {
			return false, err
		}
		// the camera needs a lit frame before a reading means anything
		s.phase = phaseSearch
		return false, nil
	case phaseSearch:
		state, err := s.train.TrackTarget(ctx)
		if err != nil {
			return false, err
		}
		if !state.HasTarget {
			_, err := s.train.Rotate(ctx, s.opts.SearchSpeed)
			return false, err
		}
		s.phase = phaseTrack
		return s.track(ctx, state.Locked, state.Z)
	default:
		state, err := s.train.TrackTarget(ctx)
		if err != nil {
			return false, err
		}
		if !state.HasTarget {
			s.phase = phaseSearch
			s.lockedTicks = 0
			_, err := s.train.Rotate(ctx, s.opts.SearchSpeed)
			return false, err
		}
		return s.track(ctx, state.Locked, state.Z)
	}
}

func (s *VisionLock) track(ctx context.Context, locked bool, z float64) (bool, error) {
	if !locked {
		s.lockedTicks = 0
		_, err := s.train.Rotate(ctx, z)
		return false, err
	}
	s.lockedTicks++
	if _, err := s.train.Rotate(ctx, 0); err != nil {
		return false, err
	}
	if s.lockedTicks >= s.opts.SettleTicks {
		s.phase = phaseDone
		return true, nil
	}
	return false, nil
}

// Cleanup turns the illuminator off and stops the train.
func (s *VisionLock) Cleanup(ctx context.Context) error {
	var err error
	if v := s.train.Vision(); v != nil {
		err = v.SetIlluminator(ctx, false)
	}
	return multierr.Append(err, s.train.Stop(ctx))
}
