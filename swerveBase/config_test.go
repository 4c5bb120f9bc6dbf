package main

import (
	"testing"

	"go.viam.com/test"

	"github.com/owatonnarobotics/2021-Robot-sub000/swerve"
)

func motorConfig() *Config {
	return &Config{
		FrontRight:     ModuleConfig{SteerMotor: "fr-steer", DriveMotor: "fr-drive"},
		FrontLeft:      ModuleConfig{SteerMotor: "fl-steer", DriveMotor: "fl-drive"},
		RearLeft:       ModuleConfig{SteerMotor: "rl-steer", DriveMotor: "rl-drive"},
		RearRight:      ModuleConfig{SteerMotor: "rr-steer", DriveMotor: "rr-drive"},
		MovementSensor: "imu",
	}
}

func canIndex(i uint8) *uint8 { return &i }

func TestValidateMotors(t *testing.T) {
	cfg := motorConfig()
	cfg.VisionSensor = "limelight"
	cfg.Board = "pi"
	cfg.IlluminatorPin = "18"
	cfg.InputController = "gamepad"
	cfg.Mechanisms = []MechanismConfig{{Name: "intake", Motor: "intake-motor"}}

	deps, err := cfg.Validate("path")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deps, test.ShouldResemble, []string{
		"fr-steer", "fr-drive", "fl-steer", "fl-drive", "rl-steer", "rl-drive", "rr-steer", "rr-drive",
		"imu", "limelight", "pi", "gamepad", "intake-motor",
	})
}

func TestValidateCAN(t *testing.T) {
	cfg := &Config{
		FrontRight:     ModuleConfig{SteerCAN: canIndex(0), DriveCAN: canIndex(1)},
		FrontLeft:      ModuleConfig{SteerCAN: canIndex(2), DriveCAN: canIndex(3)},
		RearLeft:       ModuleConfig{SteerCAN: canIndex(4), DriveCAN: canIndex(5)},
		RearRight:      ModuleConfig{SteerCAN: canIndex(6), DriveCAN: canIndex(7)},
		CAN:            &CANConfig{Channel: "can1", CommsTimeoutMs: 500},
		MovementSensor: "imu",
	}
	deps, err := cfg.Validate("path")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deps, test.ShouldResemble, []string{"imu"})

	bus := cfg.CAN.busConfig()
	test.That(t, bus.Channel, test.ShouldEqual, "can1")
	test.That(t, bus.CommsTimeout.Milliseconds(), test.ShouldEqual, 500)
	test.That(t, bus.CommandBaseID, test.ShouldEqual, uint32(0x300))
}

func TestValidateErrors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing steer motor", func(c *Config) { c.RearLeft.SteerMotor = "" }, "steer_motor"},
		{"missing movement sensor", func(c *Config) { c.MovementSensor = "" }, "movement_sensor"},
		{"can index without bus", func(c *Config) { c.FrontLeft.SteerCAN = canIndex(1) }, "require a can section"},
		{"can bus missing index", func(c *Config) {
			c.CAN = &CANConfig{}
			for _, mc := range c.modules() {
				mc.SteerCAN, mc.DriveCAN = canIndex(0), canIndex(1)
			}
			c.RearRight.DriveCAN = nil
		}, "drive_can"},
		{"can shared index", func(c *Config) {
			c.CAN = &CANConfig{}
			for _, mc := range c.modules() {
				mc.SteerCAN, mc.DriveCAN = canIndex(3), canIndex(3)
			}
		}, "must differ"},
		{"illuminator without board", func(c *Config) { c.IlluminatorPin = "18" }, "board"},
		{"duplicate mechanism", func(c *Config) {
			c.Mechanisms = []MechanismConfig{{Name: "a", Motor: "m1"}, {Name: "a", Motor: "m2"}}
		}, "duplicate mechanism"},
		{"mechanism without motor", func(c *Config) { c.Mechanisms = []MechanismConfig{{Name: "a"}} }, "motor"},
		{"too many vision keys", func(c *Config) { c.VisionKeys = []string{"a", "b", "c"} }, "vision_keys"},
		{"negative tick", func(c *Config) { c.TickMs = -1 }, "must not be negative"},
		{"bad tuning", func(c *Config) { c.Tuning = &swerve.Config{PrecisionCap: 0.95} }, "precision_cap"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := motorConfig()
			tc.mutate(cfg)
			_, err := cfg.Validate("path")
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.want)
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := motorConfig()
	test.That(t, cfg.tick().Milliseconds(), test.ShouldEqual, defaultTickMs)
	test.That(t, cfg.maxSpeedMmPerSec(), test.ShouldEqual, defaultMaxSpeedMmPerSec)
	test.That(t, cfg.maxDegsPerSec(), test.ShouldEqual, defaultMaxDegsPerSec)
	test.That(t, cfg.visionTimeout().Seconds(), test.ShouldEqual, defaultVisionTimeoutSec)

	cfg.TickMs = 10
	cfg.Tuning = &swerve.Config{Deadzone: 0.05}
	test.That(t, cfg.tick().Milliseconds(), test.ShouldEqual, 10)
	tc, err := cfg.trainConfig()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tc.Deadzone, test.ShouldEqual, 0.05)
	test.That(t, tc.UnitsPerRev, test.ShouldEqual, swerve.DefaultConfig().UnitsPerRev)
}

func TestRoutineNames(t *testing.T) {
	test.That(t, routineNames(), test.ShouldResemble, []string{
		"drive-square", "replay", "replay:<name>", "turn-around", "vision-lock",
	})
}
