package swerve

import "math"

// Conditioner shapes raw operator axes before they reach the kinematics.
type Conditioner struct {
	Deadzone        float64
	RotationDamping float64
}

// Condition zeroes axes inside the deadzone and damps rotation in proportion to the
// translation magnitude, so stick drift while translating does not spin the robot.
func (c Conditioner) Condition(x, y, z float64) (float64, float64, float64) {
	x = c.deadzone(clamp(x, -1, 1))
	y = c.deadzone(clamp(y, -1, 1))
	z = c.deadzone(clamp(z, -1, 1))
	translation := math.Min(1, math.Hypot(x, y))
	z *= 1 - c.RotationDamping*translation
	return x, y, z
}

func (c Conditioner) deadzone(v float64) float64 {
	if math.Abs(v) < c.Deadzone {
		return 0
	}
	return v
}
