package auto

import (
	"context"
	"sync"
	"testing"
	"time"

	clk "github.com/benbjohnson/clock"
	"go.viam.com/test"
)

func TestWaitSeconds(t *testing.T) {
	ctx := context.Background()
	mockClock := clk.NewMock()
	step := NewWaitSeconds(mockClock, 1.5)
	test.That(t, step.String(), test.ShouldEqual, "wait 1.5s")

	test.That(t, step.Init(ctx), test.ShouldBeNil)
	done, err := step.Execute(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, done, test.ShouldBeFalse)

	mockClock.Add(time.Second)
	done, _ = step.Execute(ctx)
	test.That(t, done, test.ShouldBeFalse)

	mockClock.Add(500 * time.Millisecond)
	done, _ = step.Execute(ctx)
	test.That(t, done, test.ShouldBeTrue)

	test.That(t, step.Init(ctx), test.ShouldBeNil)
	done, _ = step.Execute(ctx)
	test.That(t, done, test.ShouldBeFalse)
}

type fakeMechanism struct {
	mu     sync.Mutex
	speeds []float64
}

func (m *fakeMechanism) SetSpeed(ctx context.Context, speed float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speeds = append(m.speeds, speed)
	return nil
}

func TestRunMechanism(t *testing.T) {
	ctx := context.Background()
	mockClock := clk.NewMock()
	mech := &fakeMechanism{}
	step := NewRunMechanism(mockClock, mech, 0.8, 2*time.Second)

	test.That(t, step.Init(ctx), test.ShouldBeNil)
	for i := 0; i < 3; i++ {
		done, err := step.Execute(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, done, test.ShouldBeFalse)
		mockClock.Add(time.Second / 2)
	}
	mockClock.Add(time.Second)
	done, err := step.Execute(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, done, test.ShouldBeTrue)
	test.That(t, mech.speeds, test.ShouldResemble, []float64{0.8, 0.8, 0.8, 0})
}

func TestCalibration(t *testing.T) {
	cal := Calibration{Coefficients: []float64{1, 2, 3}}
	test.That(t, cal.Eval(0), test.ShouldEqual, 1)
	test.That(t, cal.Eval(2), test.ShouldEqual, 17)
	test.That(t, cal.Eval(-1), test.ShouldEqual, 2)
	test.That(t, Calibration{}.Eval(5), test.ShouldEqual, 0)

	cal.Min, cal.Max = 0, 1
	test.That(t, cal.Eval(2), test.ShouldEqual, 1)

	aim := Calibration{Coefficients: []float64{0.2, 0.01}, Min: -1, Max: 1}
	step := NewCalibratedMechanism(clk.NewMock(), &fakeMechanism{}, aim, 40, time.Second)
	test.That(t, step.Speed(), test.ShouldAlmostEqual, 0.6)

	step = NewRunMechanism(nil, &fakeMechanism{}, 3, time.Second)
	test.That(t, step.Speed(), test.ShouldEqual, 1)
}
