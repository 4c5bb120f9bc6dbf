package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/owatonnarobotics/2021-Robot-sub000/auto"
)

// DoCommand executes additional commands beyond the Base{} interface: calibration,
// recording and autonomous routines.
func (b *swerveBase) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	name, ok := cmd["command"]
	if !ok {
		return nil, errors.New("missing 'command' value")
	}
	switch name {
	case "zero":
		b.driveMu.Lock()
		err := b.train.SetZero(ctx)
		b.driveMu.Unlock()
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"return": "zero command processed"}, nil

	case "set_brake":
		drive, err := boolArg(cmd, "drive")
		if err != nil {
			return nil, err
		}
		steer, err := boolArg(cmd, "steer")
		if err != nil {
			return nil, err
		}
		b.driveMu.Lock()
		err = b.train.SetBrakeMode(ctx, drive, steer)
		b.driveMu.Unlock()
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"return": "set_brake command processed"}, nil

	case "reset_yaw":
		b.driveMu.Lock()
		err := b.train.ResetHeading(ctx)
		b.driveMu.Unlock()
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"return": "reset_yaw command processed"}, nil

	case "record_start":
		takeName, _ := cmd["name"].(string)
		b.mu.Lock()
		if b.recording {
			b.mu.Unlock()
			return nil, errors.New("already recording")
		}
		b.recording, b.takeName = true, takeName
		b.mu.Unlock()
		b.logger.Infow("recording started", "name", takeName)
		return map[string]interface{}{"return": "record_start command processed"}, nil

	case "record_stop":
		b.driveMu.Lock()
		defer b.driveMu.Unlock()
		b.mu.Lock()
		if !b.recording {
			b.mu.Unlock()
			return nil, errors.New("not recording")
		}
		takeName := b.takeName
		b.recording, b.takeName = false, ""
		b.mu.Unlock()
		b.wasRecording = false
		saved, samples, err := b.saveTake(ctx, takeName)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"return":  "record_stop command processed",
			"name":    saved,
			"samples": samples,
		}, nil

	case "list_recordings":
		list, err := b.store.List(ctx)
		if err != nil {
			return nil, err
		}
		recordings := make([]interface{}, 0, len(list))
		for _, s := range list {
			recordings = append(recordings, map[string]interface{}{
				"name":       s.Name,
				"created_at": s.CreatedAt.Format(time.RFC3339),
				"samples":    s.Samples,
			})
		}
		return map[string]interface{}{"recordings": recordings}, nil

	case "delete_recording":
		recording, ok := cmd["name"].(string)
		if !ok {
			return nil, errors.New("name must be set to a string")
		}
		if err := b.store.Delete(ctx, recording); err != nil {
			return nil, err
		}
		return map[string]interface{}{"return": "delete_recording command processed"}, nil

	case "run_auto":
		routine, ok := cmd["routine"].(string)
		if !ok {
			return nil, errors.New("routine must be set to a string")
		}
		step, err := b.routine(ctx, routine)
		if err != nil {
			return nil, err
		}
		b.startStep(routine, step)
		return map[string]interface{}{"return": fmt.Sprintf("run_auto command processed: %s", routine)}, nil

	case "abort":
		aborted := b.abortStep(ctx, nil)
		if err := b.stopTrain(ctx); err != nil {
			return nil, err
		}
		return map[string]interface{}{"return": "abort command processed", "aborted": aborted}, nil

	case "run_mechanism":
		step, err := b.mechanismStep(cmd)
		if err != nil {
			return nil, err
		}
		b.startStep(step.String(), step)
		return map[string]interface{}{"return": "run_mechanism command processed", "speed": step.Speed()}, nil

	case "get_telemetry":
		if heading, err := b.train.Heading(ctx); err == nil {
			b.board.Publish(telemHeading, heading)
		}
		b.board.Publish(telemMoving, b.isMoving.Load())
		return b.board.Snapshot(), nil

	default:
		return nil, fmt.Errorf("no such command: %s", name)
	}
}

// mechanismStep builds a timed mechanism run from either a direct speed or an input
// for the mechanism's calibration.
func (b *swerveBase) mechanismStep(cmd map[string]interface{}) (*auto.RunMechanism, error) {
	mechName, ok := cmd["name"].(string)
	if !ok {
		return nil, errors.New("name must be set to a string")
	}
	m, ok := b.mechanisms[mechName]
	if !ok {
		return nil, errors.Errorf("no such mechanism: %s", mechName)
	}
	seconds, ok := cmd["seconds"].(float64)
	if !ok || seconds <= 0 {
		return nil, errors.New("seconds must be set to a positive number")
	}
	duration := time.Duration(seconds * float64(time.Second))

	if speed, ok := cmd["speed"].(float64); ok {
		return auto.NewRunMechanism(b.clock, m, speed, duration), nil
	}
	input, ok := cmd["input"].(float64)
	if !ok {
		return nil, errors.New("speed or input must be set to a number")
	}
	if m.calibration == nil {
		return nil, errors.Errorf("mechanism %s has no calibration for input", mechName)
	}
	return auto.NewCalibratedMechanism(b.clock, m, *m.calibration, input, duration), nil
}

func boolArg(cmd map[string]interface{}, key string) (bool, error) {
	raw, ok := cmd[key]
	if !ok {
		return false, errors.Errorf("%s must be set and a boolean value", key)
	}
	v, ok := raw.(bool)
	if !ok {
		return false, errors.Errorf("%s value must be a boolean", key)
	}
	return v, nil
}
