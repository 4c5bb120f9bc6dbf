package hardware

import (
	"context"

	"github.com/pkg/errors"
	"go.viam.com/rdk/components/board"
	"go.viam.com/rdk/components/sensor"

	"github.com/owatonnarobotics/2021-Robot-sub000/auto"
	"github.com/owatonnarobotics/2021-Robot-sub000/swerve"
)

// Default reading keys, as published by common vision coprocessors.
const (
	DefaultOffsetKey = "tx"
	DefaultTargetKey = "tv"
)

// SensorVision reads target data from a sensor's readings and drives an illuminator
// through a GPIO pin.
type SensorVision struct {
	sensor      sensor.Sensor
	illuminator board.GPIOPin
	offsetKey   string
	targetKey   string
	calibration *auto.Calibration
}

var _ swerve.Vision = (*SensorVision)(nil)

// VisionOption configures a SensorVision.
type VisionOption func(*SensorVision)

// WithKeys overrides the reading keys.
func WithKeys(offsetKey, targetKey string) VisionOption {
	return func(v *SensorVision) {
		if offsetKey != "" {
			v.offsetKey = offsetKey
		}
		if targetKey != "" {
			v.targetKey = targetKey
		}
	}
}

// WithOffsetCalibration converts the raw offset reading, for example pixels, to degrees.
func WithOffsetCalibration(cal auto.Calibration) VisionOption {
	return func(v *SensorVision) {
		v.calibration = &cal
	}
}

// NewSensorVision wraps s. illuminator may be nil.
func NewSensorVision(s sensor.Sensor, illuminator board.GPIOPin, opts ...VisionOption) *SensorVision {
	v := &SensorVision{sensor: s, illuminator: illuminator, offsetKey: DefaultOffsetKey, targetKey: DefaultTargetKey}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// HorizontalOffset returns degrees to the target, positive to the right.
func (v *SensorVision) HorizontalOffset(ctx context.Context) (float64, error) {
	readings, err := v.sensor.Readings(ctx, nil)
	if err != nil {
		return 0, err
	}
	raw, ok := readings[v.offsetKey]
	if !ok {
		return 0, errors.Errorf("vision readings have no %q", v.offsetKey)
	}
	offset, ok := toFloat(raw)
	if !ok {
		return 0, errors.Errorf("vision reading %q must be a number, got %T", v.offsetKey, raw)
	}
	if v.calibration != nil {
		offset = v.calibration.Eval(offset)
	}
	return offset, nil
}

// HasTarget reports whether the camera sees a target.
func (v *SensorVision) HasTarget(ctx context.Context) (bool, error) {
	readings, err := v.sensor.Readings(ctx, nil)
	if err != nil {
		return false, err
	}
	switch t := readings[v.targetKey].(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	default:
		f, ok := toFloat(t)
		if !ok {
			return false, errors.Errorf("vision reading %q must be a bool or number, got %T", v.targetKey, t)
		}
		return f > 0.5, nil
	}
}

// SetIlluminator switches the illuminator pin, if there is one.
func (v *SensorVision) SetIlluminator(ctx context.Context, on bool) error {
	if v.illuminator == nil {
		return nil
	}
	return v.illuminator.Set(ctx, on, nil)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
