package main

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/rdk/components/base"
	"go.viam.com/rdk/components/board"
	"go.viam.com/rdk/components/input"
	"go.viam.com/rdk/components/motor"
	"go.viam.com/rdk/components/movementsensor"
	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/spatialmath"

	"github.com/owatonnarobotics/2021-Robot-sub000/canmodule"
	"github.com/owatonnarobotics/2021-Robot-sub000/hardware"
	"github.com/owatonnarobotics/2021-Robot-sub000/recorder"
	"github.com/owatonnarobotics/2021-Robot-sub000/recordstore"
	"github.com/owatonnarobotics/2021-Robot-sub000/swerve"
	"github.com/owatonnarobotics/2021-Robot-sub000/telemetry"
)

// Telemetry keys published by the base itself.
const (
	telemMode       = "mode"
	telemStep       = "step"
	telemMoving     = "moving"
	telemRecording  = "recording"
	telemHeading    = "heading"
	telemTakeLength = "recorder.take_samples"
	telemLastError  = "last_error"
)

func telemetryDefaults() map[string]interface{} {
	return map[string]interface{}{
		telemMode:       modeTeleop,
		telemStep:       "",
		telemMoving:     false,
		telemRecording:  false,
		telemTakeLength: 0,
	}
}

// newBase builds a swerve base from its dependencies. Modules are driven either by
// motor components or directly over a CAN bus.
func newBase(ctx context.Context, deps resource.Dependencies, conf resource.Config, logger logging.Logger) (base.Base, error) {
	newConf, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return nil, err
	}
	trainCfg, err := newConf.trainConfig()
	if err != nil {
		return nil, err
	}

	var geometries []spatialmath.Geometry
	if conf.Frame != nil {
		frame, err := conf.Frame.ParseConfig()
		if err != nil {
			return nil, err
		}
		geometries = append(geometries, frame.Geometry())
	}

	tel := telemetry.NewBoard(telemetryDefaults())
	parts := baseParts{board: tel, recorder: recorder.New(tel, telemTakeLength)}

	success := false
	defer func() {
		if !success {
			if err := parts.close(ctx); err != nil {
				logger.Errorw("failed to release partially built base", "error", err)
			}
		}
	}()

	actuators, err := newActuators(newConf, deps, tel, logger, &parts)
	if err != nil {
		return nil, err
	}
	var modules [swerve.NumCorners]*swerve.Module
	for c, mc := range newConf.modules() {
		modules[c] = swerve.NewModule(swerve.Corner(c).String(), actuators[c], trainCfg, logger)
		modules[c].SetZeroOffset(mc.ZeroOffset)
	}

	ms, err := movementsensor.FromDependencies(deps, newConf.MovementSensor)
	if err != nil {
		return nil, err
	}
	trainParts := swerve.Parts{
		FrontRight: modules[swerve.FrontRight],
		FrontLeft:  modules[swerve.FrontLeft],
		RearLeft:   modules[swerve.RearLeft],
		RearRight:  modules[swerve.RearRight],
		Heading:    hardware.NewOrientationHeading(ms),
		Recorder:   parts.recorder,
		Telemetry:  tel,
	}
	if newConf.VisionSensor != "" {
		vision, err := newVision(newConf, deps)
		if err != nil {
			return nil, err
		}
		trainParts.Vision = vision
	}
	if parts.train, err = swerve.NewTrain(trainCfg, trainParts, logger); err != nil {
		return nil, err
	}

	if newConf.InputController != "" {
		controller, err := input.FromDependencies(deps, newConf.InputController)
		if err != nil {
			return nil, err
		}
		parts.gamepad = hardware.NewGamepad(controller, hardware.DefaultGamepadMapping())
	}

	parts.mechanisms = map[string]mechanism{}
	for _, mc := range newConf.Mechanisms {
		m, err := motor.FromDependencies(deps, mc.Motor)
		if err != nil {
			return nil, err
		}
		parts.mechanisms[mc.Name] = mechanism{Mechanism: hardware.NewMotorMechanism(m), calibration: mc.Calibration}
	}

	if parts.store, err = recordstore.Open(newConf.RecordingsPath, logger); err != nil {
		return nil, err
	}

	b := newSwerveBase(conf.ResourceName(), newConf, parts, geometries, nil, logger)
	success = true
	return b, nil
}

func newActuators(
	cfg *Config,
	deps resource.Dependencies,
	tel swerve.Telemetry,
	logger logging.Logger,
	parts *baseParts,
) ([swerve.NumCorners]swerve.Actuator, error) {
	var actuators [swerve.NumCorners]swerve.Actuator
	if cfg.CAN != nil {
		var controllers []uint8
		for _, mc := range cfg.modules() {
			controllers = append(controllers, *mc.SteerCAN, *mc.DriveCAN)
		}
		bus, err := canmodule.Open(cfg.CAN.busConfig(), controllers, tel, logger)
		if err != nil {
			return actuators, errors.Wrap(err, "opening CAN bus")
		}
		parts.closers = append(parts.closers, bus.Close)
		for c, mc := range cfg.modules() {
			actuators[c] = bus.Actuator(*mc.SteerCAN, *mc.DriveCAN)
		}
		return actuators, nil
	}

	for c, mc := range cfg.modules() {
		steer, err := motor.FromDependencies(deps, mc.SteerMotor)
		if err != nil {
			return actuators, err
		}
		drive, err := motor.FromDependencies(deps, mc.DriveMotor)
		if err != nil {
			return actuators, err
		}
		actuators[c] = hardware.NewMotorActuator(steer, drive, logger)
	}
	return actuators, nil
}

func newVision(cfg *Config, deps resource.Dependencies) (*hardware.SensorVision, error) {
	s, err := sensor.FromDependencies(deps, cfg.VisionSensor)
	if err != nil {
		return nil, err
	}
	var pin board.GPIOPin
	if cfg.IlluminatorPin != "" {
		b, err := board.FromDependencies(deps, cfg.Board)
		if err != nil {
			return nil, err
		}
		if pin, err = b.GPIOPinByName(cfg.IlluminatorPin); err != nil {
			return nil, err
		}
	}
	var opts []hardware.VisionOption
	switch len(cfg.VisionKeys) {
	case 1:
		opts = append(opts, hardware.WithKeys(cfg.VisionKeys[0], ""))
	case 2:
		opts = append(opts, hardware.WithKeys(cfg.VisionKeys[0], cfg.VisionKeys[1]))
	}
	return hardware.NewSensorVision(s, pin, opts...), nil
}

// baseParts are the collaborators a swerve base drives.
type baseParts struct {
	train      *swerve.Train
	recorder   *recorder.Recorder
	board      *telemetry.Board
	store      *recordstore.Store
	gamepad    *hardware.Gamepad
	mechanisms map[string]mechanism
	closers    []func(context.Context) error
}

func (p *baseParts) close(ctx context.Context) error {
	var err error
	for _, c := range p.closers {
		err = multierr.Combine(err, c(ctx))
	}
	if p.store != nil {
		err = multierr.Combine(err, p.store.Close())
	}
	return err
}
