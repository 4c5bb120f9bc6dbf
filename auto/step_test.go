package auto

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/test"
)

type countingStep struct {
	name  string
	need  int
	calls int
	fail  error
	tick  *int
	log   *[]string
}

func (s *countingStep) String() string { return s.name }

func (s *countingStep) Init(ctx context.Context) error {
	s.calls = 0
	*s.log = append(*s.log, fmt.Sprintf("%d init %s", *s.tick, s.name))
	return nil
}

func (s *countingStep) Execute(ctx context.Context) (bool, error) {
	if s.fail != nil {
		return false, s.fail
	}
	s.calls++
	*s.log = append(*s.log, fmt.Sprintf("%d execute %s", *s.tick, s.name))
	return s.calls >= s.need, nil
}

func (s *countingStep) Cleanup(ctx context.Context) error {
	*s.log = append(*s.log, fmt.Sprintf("%d cleanup %s", *s.tick, s.name))
	return nil
}

func TestSequenceOrdering(t *testing.T) {
	ctx := context.Background()
	var log []string
	tick := 0
	steps := []Step{
		&countingStep{name: "a", need: 2, tick: &tick, log: &log},
		&countingStep{name: "b", need: 3, tick: &tick, log: &log},
		&countingStep{name: "c", need: 1, tick: &tick, log: &log},
	}
	seq := NewSequence("ordering", logging.NewTestLogger(t), steps...)
	test.That(t, seq.State(), test.ShouldEqual, StatePending)
	test.That(t, seq.Init(ctx), test.ShouldBeNil)
	test.That(t, seq.State(), test.ShouldEqual, StateRunning)

	for tick = 1; tick <= 6; tick++ {
		done, err := seq.Execute(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, done, test.ShouldEqual, tick == 6)
	}
	test.That(t, seq.State(), test.ShouldEqual, StateDone)

	test.That(t, log, test.ShouldResemble, []string{
		"0 init a",
		"1 execute a",
		"2 execute a",
		"2 cleanup a",
		"2 init b",
		"3 execute b",
		"4 execute b",
		"5 execute b",
		"5 cleanup b",
		"5 init c",
		"6 execute c",
		"6 cleanup c",
	})

	done, err := seq.Execute(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, done, test.ShouldBeTrue)
	test.That(t, len(log), test.ShouldEqual, 12)
	test.That(t, seq.Cleanup(ctx), test.ShouldBeNil)
}

func TestSequenceLazyInit(t *testing.T) {
	ctx := context.Background()
	var log []string
	tick := 0
	seq := NewSequence("lazy", logging.NewTestLogger(t),
		&countingStep{name: "only", need: 1, tick: &tick, log: &log})

	done, err := seq.Execute(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, done, test.ShouldBeTrue)
	test.That(t, log, test.ShouldResemble, []string{"0 init only", "0 execute only", "0 cleanup only"})
}

func TestSequenceEmpty(t *testing.T) {
	seq := NewSequence("empty", logging.NewTestLogger(t))
	done, err := seq.Execute(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, done, test.ShouldBeTrue)
	test.That(t, seq.State(), test.ShouldEqual, StateDone)
}

func TestSequenceFailure(t *testing.T) {
	ctx := context.Background()
	var log []string
	tick := 0
	boom := errors.New("boom")
	seq := NewSequence("failing", logging.NewTestLogger(t),
		&countingStep{name: "first", need: 1, tick: &tick, log: &log},
		&countingStep{name: "second", need: 1, fail: boom, tick: &tick, log: &log},
	)
	test.That(t, seq.Init(ctx), test.ShouldBeNil)

	done, err := seq.Execute(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, done, test.ShouldBeFalse)
	test.That(t, seq.Cursor(), test.ShouldEqual, 1)

	_, err = seq.Execute(ctx)
	test.That(t, errors.Is(err, boom), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "second")
	test.That(t, seq.State(), test.ShouldEqual, StateFailed)

	_, again := seq.Execute(ctx)
	test.That(t, again, test.ShouldEqual, err)
	test.That(t, seq.Err(), test.ShouldEqual, err)

	test.That(t, seq.Init(ctx), test.ShouldBeNil)
	test.That(t, seq.State(), test.ShouldEqual, StateRunning)
	test.That(t, seq.Err(), test.ShouldBeNil)
}

func TestNestedSequence(t *testing.T) {
	ctx := context.Background()
	var log []string
	tick := 0
	logger := logging.NewTestLogger(t)
	inner := NewSequence("inner", logger,
		&countingStep{name: "x", need: 1, tick: &tick, log: &log},
		&countingStep{name: "y", need: 1, tick: &tick, log: &log},
	)
	outer := NewSequence("outer", logger, inner, &countingStep{name: "z", need: 1, tick: &tick, log: &log})
	test.That(t, outer.Init(ctx), test.ShouldBeNil)

	calls := 0
	for done := false; !done; calls++ {
		var err error
		done, err = outer.Execute(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, calls, test.ShouldBeLessThan, 10)
	}
	test.That(t, calls, test.ShouldEqual, 3)
	test.That(t, inner.State(), test.ShouldEqual, StateDone)
}

func TestStateString(t *testing.T) {
	test.That(t, StateRunning.String(), test.ShouldEqual, "running")
	test.That(t, State(9).String(), test.ShouldEqual, "State(9)")
}

func TestSequenceAbort(t *testing.T) {
	ctx := context.Background()
	var log []string
	tick := 0
	logger := logging.NewTestLogger(t)

	t.Run("running", func(t *testing.T) {
		log = nil
		inner := NewSequence("inner", logger, &countingStep{name: "x", need: 5, tick: &tick, log: &log})
		seq := NewSequence("outer", logger, inner)
		done, err := seq.Execute(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, done, test.ShouldBeFalse)

		test.That(t, seq.Abort(ctx), test.ShouldBeNil)
		test.That(t, seq.State(), test.ShouldEqual, StateFailed)
		test.That(t, errors.Is(seq.Err(), ErrAborted), test.ShouldBeTrue)
		test.That(t, log, test.ShouldResemble, []string{"0 init x", "0 execute x", "0 cleanup x"})

		// a second abort has nothing left to clean up
		test.That(t, seq.Abort(ctx), test.ShouldBeNil)
		test.That(t, log, test.ShouldHaveLength, 3)
	})

	t.Run("after failure", func(t *testing.T) {
		log = nil
		boom := errors.New("boom")
		seq := NewSequence("failing", logger, &countingStep{name: "y", need: 1, fail: boom, tick: &tick, log: &log})
		_, err := seq.Execute(ctx)
		test.That(t, errors.Is(err, boom), test.ShouldBeTrue)

		test.That(t, seq.Abort(ctx), test.ShouldBeNil)
		test.That(t, errors.Is(seq.Err(), boom), test.ShouldBeTrue)
		test.That(t, log, test.ShouldResemble, []string{"0 init y", "0 cleanup y"})
	})

	t.Run("finished", func(t *testing.T) {
		log = nil
		seq := NewSequence("quick", logger, &countingStep{name: "z", need: 1, tick: &tick, log: &log})
		done, err := seq.Execute(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, done, test.ShouldBeTrue)
		test.That(t, seq.Abort(ctx), test.ShouldBeNil)
		test.That(t, seq.State(), test.ShouldEqual, StateDone)
		test.That(t, log, test.ShouldResemble, []string{"0 init z", "0 execute z", "0 cleanup z"})
	})
}
