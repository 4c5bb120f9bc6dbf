package hardware

import (
	"context"
	"math"
	"sync"

	"github.com/pkg/errors"
	"go.viam.com/rdk/components/movementsensor"
	rdkutils "go.viam.com/rdk/utils"

	"github.com/owatonnarobotics/2021-Robot-sub000/swerve"
)

// OrientationHeading turns a movement sensor's orientation into an unwrapped,
// resettable yaw.
type OrientationHeading struct {
	sensor movementsensor.MovementSensor

	mu     sync.Mutex
	primed bool
	raw    float64
	total  float64
	zero   float64
}

var _ swerve.Heading = (*OrientationHeading)(nil)

// NewOrientationHeading wraps ms.
func NewOrientationHeading(ms movementsensor.MovementSensor) *OrientationHeading {
	return &OrientationHeading{sensor: ms}
}

// Yaw returns degrees turned counter-clockwise since the last reset, without wrapping.
func (h *OrientationHeading) Yaw(ctx context.Context) (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.update(ctx); err != nil {
		return 0, err
	}
	return h.total - h.zero, nil
}

// ResetYaw makes the current orientation zero.
func (h *OrientationHeading) ResetYaw(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.update(ctx); err != nil {
		return err
	}
	h.zero = h.total
	return nil
}

// update folds the latest sensor yaw into the running total. Sensor yaw wraps at
// ±180°, so each step is taken the short way round.
func (h *OrientationHeading) update(ctx context.Context) error {
	o, err := h.sensor.Orientation(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "reading orientation")
	}
	if o == nil {
		return errors.New("movement sensor returned no orientation")
	}
	raw := rdkutils.RadToDeg(o.EulerAngles().Yaw)
	if math.IsNaN(raw) {
		return errors.New("movement sensor yaw is NaN")
	}
	if !h.primed {
		h.raw, h.total, h.zero, h.primed = raw, raw, raw, true
		return nil
	}
	delta := math.Remainder(raw-h.raw, 360)
	h.raw = raw
	h.total += delta
	return nil
}
