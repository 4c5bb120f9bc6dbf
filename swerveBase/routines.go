package main

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/owatonnarobotics/2021-Robot-sub000/auto"
	"github.com/owatonnarobotics/2021-Robot-sub000/vector"
)

const (
	routineDriveSquare = "drive-square"
	routineVisionLock  = "vision-lock"
	routineTurnAround  = "turn-around"
	routineReplayLast  = "replay"
	replayPrefix       = "replay:"

	squareSideInches = 36
	squareSpeed      = 0.5
	searchSpeed      = 0.15
)

func routineNames() []string {
	names := []string{routineDriveSquare, routineVisionLock, routineTurnAround, routineReplayLast, replayPrefix + "<name>"}
	sort.Strings(names)
	return names
}

// routine builds the named autonomous routine.
func (b *swerveBase) routine(ctx context.Context, name string) (auto.Step, error) {
	switch {
	case name == routineDriveSquare:
		steps := make([]auto.Step, 0, 4)
		for _, dir := range []vector.Vector2{vector.Forward, vector.Right, vector.Backward, vector.Left} {
			steps = append(steps, auto.NewAssumeDistance(b.train, dir, squareSideInches, squareSpeed))
		}
		return auto.NewSequence(name, b.logger, steps...), nil

	case name == routineVisionLock:
		if b.train.Vision() == nil {
			return nil, errors.New("vision-lock needs a vision_sensor")
		}
		return auto.NewVisionLock(b.train, b.clock, auto.VisionLockOptions{
			SearchSpeed: searchSpeed,
			Timeout:     b.conf.visionTimeout(),
		}), nil

	case name == routineTurnAround:
		return auto.NewAssumeRotationDegrees(b.train, 180), nil

	case name == routineReplayLast:
		take := b.recorder.Last()
		if len(take) == 0 {
			return nil, errors.New("nothing has been recorded yet")
		}
		return auto.NewRunPrerecorded(b.train, "last take", take), nil

	case strings.HasPrefix(name, replayPrefix):
		recording := strings.TrimPrefix(name, replayPrefix)
		take, err := b.store.Load(ctx, recording)
		if err != nil {
			return nil, err
		}
		return auto.NewRunPrerecorded(b.train, recording, take), nil

	default:
		return nil, errors.Errorf("no such routine %q, expected one of %s", name, strings.Join(routineNames(), "|"))
	}
}
