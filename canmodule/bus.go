// Package canmodule drives swerve modules whose steering and drive motor controllers
// sit on a SocketCAN bus.
package canmodule

import (
	"context"
	"sync"
	"time"

	clk "github.com/benbjohnson/clock"
	"github.com/go-daq/canbus"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"
	viamutils "go.viam.com/utils"
	"golang.org/x/sys/unix"

	"github.com/owatonnarobotics/2021-Robot-sub000/swerve"
)

// Socket is the part of a CAN socket the bus uses.
type Socket interface {
	Send(frame canbus.Frame) (int, error)
	Recv() (canbus.Frame, error)
	Close() error
}

// Config describes the bus and its timing.
type Config struct {
	Channel         string        `json:"channel,omitempty"`
	CommandBaseID   uint32        `json:"command_base_id,omitempty"`
	StatusBaseID    uint32        `json:"status_base_id,omitempty"`
	PublishInterval time.Duration `json:"publish_interval,omitempty"`
	// CommsTimeout zeroes every output when no command arrived for this long. Zero
	// disables it.
	CommsTimeout time.Duration `json:"comms_timeout,omitempty"`
	// StatusTimeout is how old a status report may be before positions are treated as
	// unavailable.
	StatusTimeout time.Duration `json:"status_timeout,omitempty"`
}

// DefaultConfig returns the bus layout of the competition robot.
func DefaultConfig() Config {
	return Config{
		Channel:         "can0",
		CommandBaseID:   0x300,
		StatusBaseID:    0x340,
		PublishInterval: 10 * time.Millisecond,
		CommsTimeout:    time.Second,
		StatusTimeout:   100 * time.Millisecond,
	}
}

type report struct {
	status
	at time.Time
}

// Bus heartbeats the latest command of every controller and collects their status
// reports.
type Bus struct {
	cfg       Config
	clock     clk.Clock
	logger    logging.Logger
	telemetry swerve.Telemetry
	rx        Socket

	mu          sync.Mutex
	commands    map[uint8]command
	reports     map[uint8]report
	lastCommand time.Time
	timedOut    bool

	cancel                  func()
	activeBackgroundWorkers sync.WaitGroup
}

// Open binds sockets on cfg.Channel filtered to the status frames of controllers.
func Open(cfg Config, controllers []uint8, telemetry swerve.Telemetry, logger logging.Logger) (*Bus, error) {
	socketSend, err := canbus.New()
	if err != nil {
		return nil, err
	}
	if err := socketSend.Bind(cfg.Channel); err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "binding %s", cfg.Channel), socketSend.Close())
	}

	socketRecv, err := canbus.New()
	if err != nil {
		return nil, multierr.Combine(err, socketSend.Close())
	}
	filters := make([]unix.CanFilter, 0, len(controllers))
	for _, c := range controllers {
		filters = append(filters, unix.CanFilter{Id: cfg.StatusBaseID + uint32(c), Mask: unix.CAN_SFF_MASK})
	}
	if err := socketRecv.SetFilters(filters); err != nil {
		return nil, multierr.Combine(err, socketSend.Close(), socketRecv.Close())
	}
	if err := socketRecv.Bind(cfg.Channel); err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "binding %s", cfg.Channel), socketSend.Close(), socketRecv.Close())
	}

	return NewBus(cfg, socketSend, socketRecv, nil, telemetry, logger), nil
}

// NewBus starts the publish and receive threads over already bound sockets. A nil clock
// uses the wall clock; telemetry may be nil.
func NewBus(cfg Config, tx, rx Socket, clock clk.Clock, telemetry swerve.Telemetry, logger logging.Logger) *Bus {
	if clock == nil {
		clock = clk.New()
	}
	defaults := DefaultConfig()
	if cfg.PublishInterval <= 0 {
		cfg.PublishInterval = defaults.PublishInterval
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = defaults.StatusTimeout
	}

	// created before the thread starts so that no tick is missed
	ticker := clock.Ticker(cfg.PublishInterval)
	cancelCtx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		cfg:         cfg,
		clock:       clock,
		logger:      logger,
		telemetry:   telemetry,
		rx:          rx,
		commands:    map[uint8]command{},
		reports:     map[uint8]report{},
		lastCommand: clock.Now(),
		cancel:      cancel,
	}

	b.activeBackgroundWorkers.Add(2)
	viamutils.ManagedGo(func() {
		b.publishThread(cancelCtx, tx, ticker)
	}, b.activeBackgroundWorkers.Done)
	viamutils.ManagedGo(func() {
		b.receiveThread(cancelCtx, rx)
	}, b.activeBackgroundWorkers.Done)
	return b
}

// Actuator returns a swerve.Actuator for the steering and drive controllers at the
// given indices.
func (b *Bus) Actuator(steer, drive uint8) *Actuator {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range []uint8{steer, drive} {
		if _, ok := b.commands[c]; !ok {
			b.commands[c] = command{}
		}
	}
	return &Actuator{bus: b, steer: steer, drive: drive}
}

func (b *Bus) setDutyCycle(controller uint8, duty float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cmd := b.commands[controller]
	cmd.DutyCycle = duty
	cmd.Enabled = true
	b.commands[controller] = cmd
	b.lastCommand = b.clock.Now()
}

func (b *Bus) setBrake(controller uint8, brake bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cmd := b.commands[controller]
	cmd.Brake = brake
	b.commands[controller] = cmd
}

// position returns the latest reported position of controller in rotations.
func (b *Bus) position(controller uint8) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.reports[controller]
	if !ok {
		return 0, errors.Wrapf(swerve.ErrPositionUnavailable, "controller %d has not reported", controller)
	}
	if age := b.clock.Since(r.at); age > b.cfg.StatusTimeout {
		return 0, errors.Wrapf(swerve.ErrPositionUnavailable, "controller %d status is %s old", controller, age)
	}
	return r.Position, nil
}

// frames returns the frames to send this heartbeat. Outputs are zeroed once the comms
// timeout has passed.
func (b *Bus) frames() []canbus.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	timedOut := b.cfg.CommsTimeout > 0 && b.clock.Since(b.lastCommand) > b.cfg.CommsTimeout
	if timedOut != b.timedOut {
		if timedOut {
			b.logger.Warnw("comms timeout, zeroing motor outputs", "timeout", b.cfg.CommsTimeout)
		} else {
			b.logger.Infow("commands resumed")
		}
		b.timedOut = timedOut
	}
	frames := make([]canbus.Frame, 0, len(b.commands))
	for c, cmd := range b.commands {
		if timedOut {
			cmd.DutyCycle = 0
		}
		frames = append(frames, cmd.toFrame(b.cfg.CommandBaseID+uint32(c)))
	}
	return frames
}

// publishThread re-sends every controller's latest command each interval.
func (b *Bus) publishThread(ctx context.Context, socket Socket, ticker *clk.Ticker) {
	defer func() {
		if err := socket.Close(); err != nil {
			b.logger.Errorw("closing CAN tx socket", "error", err)
		}
	}()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// leave every controller stopped
			b.disableAll()
			b.send(socket, b.frames())
			return
		case <-ticker.C:
		}
		b.send(socket, b.frames())
	}
}

func (b *Bus) send(socket Socket, frames []canbus.Frame) {
	for _, frame := range frames {
		if _, err := socket.Send(frame); err != nil {
			b.logger.Errorw("command send error", "id", frame.ID, "error", err)
		}
	}
}

func (b *Bus) disableAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c, cmd := range b.commands {
		cmd.DutyCycle = 0
		cmd.Enabled = false
		b.commands[c] = cmd
	}
}

// receiveThread stores status reports as they arrive.
func (b *Bus) receiveThread(ctx context.Context, socket Socket) {
	for {
		if ctx.Err() != nil {
			return
		}
		frame, err := socket.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Errorw("CAN rx error", "error", err)
			viamutils.SelectContextOrWait(ctx, b.cfg.PublishInterval)
			continue
		}
		if frame.ID < b.cfg.StatusBaseID || frame.ID-b.cfg.StatusBaseID > 0xff {
			continue
		}
		controller := uint8(frame.ID - b.cfg.StatusBaseID)
		st, err := decodeStatus(frame.Data)
		if err != nil {
			b.logger.Warnw("malformed status frame", "id", frame.ID, "error", err)
			continue
		}
		b.mu.Lock()
		b.reports[controller] = report{status: st, at: b.clock.Now()}
		b.mu.Unlock()
		if b.telemetry != nil {
			b.telemetry.Publish(controllerKey(controller, "velocity"), st.Velocity)
		}
	}
}

// Close stops both threads. The publish thread sends one final disabled frame per
// controller first.
func (b *Bus) Close(ctx context.Context) error {
	b.cancel()
	// unblocks Recv
	err := b.rx.Close()
	b.activeBackgroundWorkers.Wait()
	return err
}
