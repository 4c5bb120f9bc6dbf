// Package swerve implements the kinematics and closed-loop steering control of a four
// wheel independently steered drivetrain.
package swerve

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// Corner identifies one of the four modules of a train. The order is also the order
// in which modules are commanded every tick.
type Corner int

// Corners, in command order.
const (
	FrontRight Corner = iota
	FrontLeft
	RearLeft
	RearRight
	NumCorners
)

func (c Corner) String() string {
	switch c {
	case FrontRight:
		return "front_right"
	case FrontLeft:
		return "front_left"
	case RearLeft:
		return "rear_left"
	case RearRight:
		return "rear_right"
	default:
		return fmt.Sprintf("Corner(%d)", int(c))
	}
}

// SpeedProfile is the three regime approach curve used by every closed-loop law in
// this package: a sigmoid far from the target, a fixed creep speed near it and a fixed
// settle speed right next to it.
type SpeedProfile struct {
	Far      float64 `json:"far"`
	Near     float64 `json:"near"`
	Creep    float64 `json:"creep"`
	Settle   float64 `json:"settle"`
	Slope    float64 `json:"slope"`
	Midpoint float64 `json:"midpoint"`
}

// Speed returns the signed output for the remaining distance. The sign always follows
// remaining.
func (p SpeedProfile) Speed(remaining float64) float64 {
	if remaining == 0 {
		return 0
	}
	r := math.Abs(remaining)
	var speed float64
	switch {
	case r >= p.Far:
		speed = p.sigmoid(r)
	case r >= p.Near:
		speed = p.Creep
	default:
		speed = p.Settle
	}
	return math.Copysign(speed, remaining)
}

func (p SpeedProfile) sigmoid(r float64) float64 {
	return 1 / (1 + math.Exp(-p.Slope*r+p.Midpoint))
}

func (p SpeedProfile) validate(name string) error {
	switch {
	case p.Near <= 0:
		return errors.Errorf("%s: near threshold must be positive", name)
	case p.Far < p.Near:
		return errors.Errorf("%s: far threshold %.3f is below near threshold %.3f", name, p.Far, p.Near)
	case p.Settle <= 0:
		return errors.Errorf("%s: settle speed must be positive", name)
	case p.Creep < p.Settle:
		return errors.Errorf("%s: creep speed %.3f is below settle speed %.3f", name, p.Creep, p.Settle)
	case p.Slope <= 0:
		return errors.Errorf("%s: slope must be positive", name)
	case p.sigmoid(p.Far) < p.Creep:
		return errors.Errorf("%s: sigmoid at far threshold (%.3f) is below creep speed %.3f",
			name, p.sigmoid(p.Far), p.Creep)
	}
	return nil
}

// Config is the immutable tuning and geometry of a train. Build one with
// DefaultConfig, adjust it, Validate it, and share it by pointer.
type Config struct {
	// UnitsPerRev is the number of steering actuator units in one wheel revolution.
	UnitsPerRev float64 `json:"units_per_rev,omitempty"`
	// Tolerance is the steering arrival window in actuator units.
	Tolerance    float64      `json:"tolerance,omitempty"`
	SteerProfile SpeedProfile `json:"steer_profile,omitempty"`

	// RotationAngles holds θ for each corner in degrees; a wheel's rotation
	// contribution is z·(cos(θ−heading), sin(θ−heading)).
	RotationAngles [NumCorners]float64 `json:"rotation_angles,omitempty"`

	Deadzone        float64 `json:"deadzone,omitempty"`
	RotationDamping float64 `json:"rotation_damping,omitempty"`
	ExecutionCap    float64 `json:"execution_cap,omitempty"`
	PrecisionCap    float64 `json:"precision_cap,omitempty"`
	IdleRecenter    bool    `json:"idle_recenter,omitempty"`

	// LockProfile and LockTolerance are in degrees of vision offset.
	LockProfile   SpeedProfile `json:"lock_profile,omitempty"`
	LockTolerance float64      `json:"lock_tolerance,omitempty"`

	// RotateProfile and RotateTolerance are in degrees of heading error.
	RotateProfile   SpeedProfile `json:"rotate_profile,omitempty"`
	RotateTolerance float64      `json:"rotate_tolerance,omitempty"`

	// WheelCircumference is in inches; DriveUnitsPerRev is drive encoder units per
	// wheel revolution.
	WheelCircumference float64 `json:"wheel_circumference,omitempty"`
	DriveUnitsPerRev   float64 `json:"drive_units_per_rev,omitempty"`
}

// DefaultConfig returns the tuning of the competition robot.
func DefaultConfig() Config {
	return Config{
		UnitsPerRev: 17.976,
		Tolerance:   0.1,
		SteerProfile: SpeedProfile{
			Far:      3.75,
			Near:     1,
			Creep:    0.2,
			Settle:   0.02,
			Slope:    1,
			Midpoint: 5,
		},
		RotationAngles:  [NumCorners]float64{225, 135, 45, 315},
		Deadzone:        0.1,
		RotationDamping: 0.5,
		ExecutionCap:    0.9,
		PrecisionCap:    0.3,
		IdleRecenter:    true,
		LockProfile: SpeedProfile{
			Far:      10,
			Near:     2,
			Creep:    0.08,
			Settle:   0.03,
			Slope:    0.25,
			Midpoint: 4,
		},
		LockTolerance: 0.5,
		RotateProfile: SpeedProfile{
			Far:      20,
			Near:     5,
			Creep:    0.15,
			Settle:   0.05,
			Slope:    0.15,
			Midpoint: 4,
		},
		RotateTolerance:    1,
		WheelCircumference: 4 * math.Pi,
		DriveUnitsPerRev:   6.86,
	}
}

// Merge returns a copy of cfg with every non-zero field of o applied on top. Profiles
// are replaced as a whole. IdleRecenter cannot be cleared through Merge.
func (cfg Config) Merge(o Config) Config {
	set := func(dst *float64, v float64) {
		if v != 0 {
			*dst = v
		}
	}
	setProfile := func(dst *SpeedProfile, v SpeedProfile) {
		if v != (SpeedProfile{}) {
			*dst = v
		}
	}
	set(&cfg.UnitsPerRev, o.UnitsPerRev)
	set(&cfg.Tolerance, o.Tolerance)
	setProfile(&cfg.SteerProfile, o.SteerProfile)
	if o.RotationAngles != [NumCorners]float64{} {
		cfg.RotationAngles = o.RotationAngles
	}
	set(&cfg.Deadzone, o.Deadzone)
	set(&cfg.RotationDamping, o.RotationDamping)
	set(&cfg.ExecutionCap, o.ExecutionCap)
	set(&cfg.PrecisionCap, o.PrecisionCap)
	cfg.IdleRecenter = cfg.IdleRecenter || o.IdleRecenter
	setProfile(&cfg.LockProfile, o.LockProfile)
	set(&cfg.LockTolerance, o.LockTolerance)
	setProfile(&cfg.RotateProfile, o.RotateProfile)
	set(&cfg.RotateTolerance, o.RotateTolerance)
	set(&cfg.WheelCircumference, o.WheelCircumference)
	set(&cfg.DriveUnitsPerRev, o.DriveUnitsPerRev)
	return cfg
}

// Validate ensures the configuration describes a usable train.
func (cfg *Config) Validate() error {
	if cfg.UnitsPerRev <= 0 {
		return errors.New("units_per_rev must be positive")
	}
	if cfg.Tolerance <= 0 || cfg.Tolerance >= cfg.UnitsPerRev/2 {
		return errors.Errorf("tolerance must be in (0, %.3f)", cfg.UnitsPerRev/2)
	}
	if cfg.Deadzone < 0 || cfg.Deadzone >= 1 {
		return errors.New("deadzone must be in [0, 1)")
	}
	if cfg.RotationDamping < 0 || cfg.RotationDamping > 1 {
		return errors.New("rotation_damping must be in [0, 1]")
	}
	if cfg.ExecutionCap <= 0 || cfg.ExecutionCap > 1 {
		return errors.New("execution_cap must be in (0, 1]")
	}
	if cfg.PrecisionCap <= 0 || cfg.PrecisionCap > cfg.ExecutionCap {
		return errors.New("precision_cap must be in (0, execution_cap]")
	}
	if cfg.LockTolerance <= 0 || cfg.RotateTolerance <= 0 {
		return errors.New("lock_tolerance and rotate_tolerance must be positive")
	}
	if cfg.WheelCircumference <= 0 || cfg.DriveUnitsPerRev <= 0 {
		return errors.New("wheel_circumference and drive_units_per_rev must be positive")
	}
	if err := cfg.SteerProfile.validate("steer_profile"); err != nil {
		return err
	}
	if err := cfg.LockProfile.validate("lock_profile"); err != nil {
		return err
	}
	return cfg.RotateProfile.validate("rotate_profile")
}

// DistanceToUnits converts a wheel travel distance in inches to drive encoder units.
func (cfg *Config) DistanceToUnits(inches float64) float64 {
	return inches / cfg.WheelCircumference * cfg.DriveUnitsPerRev
}

// normalize reduces an absolute position into [0, unitsPerRev).
func normalize(position, unitsPerRev float64) float64 {
	p := math.Mod(position, unitsPerRev)
	if p < 0 {
		p += unitsPerRev
	}
	if p >= unitsPerRev {
		p = 0
	}
	return p
}
