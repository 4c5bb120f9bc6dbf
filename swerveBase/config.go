package main

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/resource"

	"github.com/owatonnarobotics/2021-Robot-sub000/auto"
	"github.com/owatonnarobotics/2021-Robot-sub000/canmodule"
	"github.com/owatonnarobotics/2021-Robot-sub000/swerve"
)

// Defaults for unset config values.
const (
	defaultTickMs           = 20
	defaultMaxSpeedMmPerSec = 3000.0
	defaultMaxDegsPerSec    = 360.0
	defaultTrackWidthMm     = 560.0
	defaultVisionTimeoutSec = 5.0
)

// ModuleConfig names the hardware behind one corner. Either both motors or both CAN
// controller indices are set.
type ModuleConfig struct {
	SteerMotor string  `json:"steer_motor,omitempty"`
	DriveMotor string  `json:"drive_motor,omitempty"`
	SteerCAN   *uint8  `json:"steer_can,omitempty"`
	DriveCAN   *uint8  `json:"drive_can,omitempty"`
	ZeroOffset float64 `json:"zero_offset,omitempty"`
}

func (mc *ModuleConfig) usesCAN() bool {
	return mc.SteerCAN != nil || mc.DriveCAN != nil
}

func (mc *ModuleConfig) validate(path string, useCAN bool) error {
	if !useCAN {
		if mc.usesCAN() {
			return resource.NewConfigValidationError(path, errors.New("steer_can and drive_can require a can section"))
		}
		if mc.SteerMotor == "" {
			return resource.NewConfigValidationFieldRequiredError(path, "steer_motor")
		}
		if mc.DriveMotor == "" {
			return resource.NewConfigValidationFieldRequiredError(path, "drive_motor")
		}
		return nil
	}
	if mc.SteerCAN == nil {
		return resource.NewConfigValidationFieldRequiredError(path, "steer_can")
	}
	if mc.DriveCAN == nil {
		return resource.NewConfigValidationFieldRequiredError(path, "drive_can")
	}
	if *mc.SteerCAN == *mc.DriveCAN {
		return resource.NewConfigValidationError(path, errors.New("steer_can and drive_can must differ"))
	}
	return nil
}

// CANConfig selects the SocketCAN transport for modules.
type CANConfig struct {
	Channel        string `json:"channel,omitempty"`
	CommandBaseID  uint32 `json:"command_base_id,omitempty"`
	StatusBaseID   uint32 `json:"status_base_id,omitempty"`
	CommsTimeoutMs int    `json:"comms_timeout_ms,omitempty"`
}

func (c *CANConfig) busConfig() canmodule.Config {
	cfg := canmodule.DefaultConfig()
	if c.Channel != "" {
		cfg.Channel = c.Channel
	}
	if c.CommandBaseID != 0 {
		cfg.CommandBaseID = c.CommandBaseID
	}
	if c.StatusBaseID != 0 {
		cfg.StatusBaseID = c.StatusBaseID
	}
	if c.CommsTimeoutMs > 0 {
		cfg.CommsTimeout = time.Duration(c.CommsTimeoutMs) * time.Millisecond
	}
	return cfg
}

// MechanismConfig names an auxiliary motor. Calibration, when set, maps a run_mechanism
// input to a speed.
type MechanismConfig struct {
	Name        string            `json:"name"`
	Motor       string            `json:"motor"`
	Calibration *auto.Calibration `json:"calibration,omitempty"`
}

// Config configures a swerve base.
type Config struct {
	FrontRight ModuleConfig `json:"front_right"`
	FrontLeft  ModuleConfig `json:"front_left"`
	RearLeft   ModuleConfig `json:"rear_left"`
	RearRight  ModuleConfig `json:"rear_right"`
	CAN        *CANConfig   `json:"can,omitempty"`

	MovementSensor  string   `json:"movement_sensor"`
	VisionSensor    string   `json:"vision_sensor,omitempty"`
	VisionKeys      []string `json:"vision_keys,omitempty"`
	Board           string   `json:"board,omitempty"`
	IlluminatorPin  string   `json:"illuminator_pin,omitempty"`
	InputController string   `json:"input_controller,omitempty"`

	Mechanisms []MechanismConfig `json:"mechanisms,omitempty"`

	TickMs           int     `json:"tick_ms,omitempty"`
	RecordingsPath   string  `json:"recordings_path,omitempty"`
	MaxSpeedMmPerSec float64 `json:"max_speed_mm_per_sec,omitempty"`
	MaxDegsPerSec    float64 `json:"max_degs_per_sec,omitempty"`
	TrackWidthMm     float64 `json:"track_width_mm,omitempty"`
	VisionTimeoutSec float64 `json:"vision_timeout_sec,omitempty"`

	Tuning *swerve.Config `json:"tuning,omitempty"`
}

func (cfg *Config) modules() [swerve.NumCorners]*ModuleConfig {
	return [swerve.NumCorners]*ModuleConfig{
		swerve.FrontRight: &cfg.FrontRight,
		swerve.FrontLeft:  &cfg.FrontLeft,
		swerve.RearLeft:   &cfg.RearLeft,
		swerve.RearRight:  &cfg.RearRight,
	}
}

// Validate ensures all parts of the config are valid and returns the implicit
// dependencies.
func (cfg *Config) Validate(path string) ([]string, error) {
	deps := []string{}
	useCAN := cfg.CAN != nil
	for c, mc := range cfg.modules() {
		if err := mc.validate(fmt.Sprintf("%s.%s", path, swerve.Corner(c)), useCAN); err != nil {
			return nil, err
		}
		if !useCAN {
			deps = append(deps, mc.SteerMotor, mc.DriveMotor)
		}
	}

	if cfg.MovementSensor == "" {
		return nil, resource.NewConfigValidationFieldRequiredError(path, "movement_sensor")
	}
	deps = append(deps, cfg.MovementSensor)

	if cfg.VisionSensor != "" {
		deps = append(deps, cfg.VisionSensor)
	}
	if len(cfg.VisionKeys) > 2 {
		return nil, resource.NewConfigValidationError(path, errors.New("vision_keys holds at most an offset and a target key"))
	}
	if cfg.IlluminatorPin != "" {
		if cfg.Board == "" {
			return nil, resource.NewConfigValidationFieldRequiredError(path, "board")
		}
		deps = append(deps, cfg.Board)
	}
	if cfg.InputController != "" {
		deps = append(deps, cfg.InputController)
	}

	seen := map[string]bool{}
	for i, mc := range cfg.Mechanisms {
		mpath := fmt.Sprintf("%s.mechanisms.%d", path, i)
		if mc.Name == "" {
			return nil, resource.NewConfigValidationFieldRequiredError(mpath, "name")
		}
		if mc.Motor == "" {
			return nil, resource.NewConfigValidationFieldRequiredError(mpath, "motor")
		}
		if seen[mc.Name] {
			return nil, resource.NewConfigValidationError(mpath, errors.Errorf("duplicate mechanism %q", mc.Name))
		}
		seen[mc.Name] = true
		deps = append(deps, mc.Motor)
	}

	if cfg.TickMs < 0 || cfg.MaxSpeedMmPerSec < 0 || cfg.MaxDegsPerSec < 0 || cfg.TrackWidthMm < 0 {
		return nil, resource.NewConfigValidationError(path, errors.New("tick_ms and max speeds must not be negative"))
	}
	if _, err := cfg.trainConfig(); err != nil {
		return nil, resource.NewConfigValidationError(path, err)
	}
	return deps, nil
}

// trainConfig returns the default tuning with any overrides applied.
func (cfg *Config) trainConfig() (*swerve.Config, error) {
	tc := swerve.DefaultConfig()
	if cfg.Tuning != nil {
		tc = tc.Merge(*cfg.Tuning)
	}
	if err := tc.Validate(); err != nil {
		return nil, errors.Wrap(err, "tuning")
	}
	return &tc, nil
}

func (cfg *Config) tick() time.Duration {
	if cfg.TickMs <= 0 {
		return defaultTickMs * time.Millisecond
	}
	return time.Duration(cfg.TickMs) * time.Millisecond
}

func (cfg *Config) maxSpeedMmPerSec() float64 {
	return orDefault(cfg.MaxSpeedMmPerSec, defaultMaxSpeedMmPerSec)
}

func (cfg *Config) maxDegsPerSec() float64 {
	return orDefault(cfg.MaxDegsPerSec, defaultMaxDegsPerSec)
}

func (cfg *Config) trackWidthMm() float64 {
	return orDefault(cfg.TrackWidthMm, defaultTrackWidthMm)
}

func (cfg *Config) visionTimeout() time.Duration {
	return time.Duration(orDefault(cfg.VisionTimeoutSec, defaultVisionTimeoutSec) * float64(time.Second))
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}
