// Package recorder buffers raw operator samples so that a driven path can be replayed
// later as an autonomous step.
package recorder

import (
	"sync"
)

// Flags are the operator modifiers active for a sample.
type Flags uint32

// Known flags. Higher bits are free for application buttons.
const (
	FlagPrecision Flags = 1 << iota
	FlagHeadingLock
)

// Has reports whether every bit of f2 is set in f.
func (f Flags) Has(f2 Flags) bool { return f&f2 == f2 }

// Sample is one tick of raw operator input.
type Sample struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Flags Flags   `json:"flags,omitempty"`
}

// IsZero reports whether the sample carries no motion.
func (s Sample) IsZero() bool {
	return s.X == 0 && s.Y == 0 && s.Z == 0
}

// Sink receives published takes.
type Sink interface {
	Publish(key string, value interface{})
}

// Recorder accumulates samples between publishes. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	samples []Sample
	last    []Sample
	sink    Sink
	key     string
}

// New returns an empty recorder. When sink is non-nil every non-empty take is also
// published to it under key.
func New(sink Sink, key string) *Recorder {
	return &Recorder{sink: sink, key: key}
}

// Record appends one sample to the current take.
func (r *Recorder) Record(s Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
}

// Publish ends the current take and returns it with leading idle samples trimmed. It
// returns nil and leaves the last take untouched when nothing but idle samples was
// recorded.
func (r *Recorder) Publish() []Sample {
	r.mu.Lock()
	take := trimLeading(r.samples)
	r.samples = nil
	if len(take) == 0 {
		r.mu.Unlock()
		return nil
	}
	r.last = take
	sink, key := r.sink, r.key
	r.mu.Unlock()

	if sink != nil {
		sink.Publish(key, len(take))
	}
	return take
}

// Last returns a copy of the most recently published take.
func (r *Recorder) Last() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sample, len(r.last))
	copy(out, r.last)
	return out
}

// Len returns the number of samples in the current take.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

// Reset discards the current take.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = nil
}

func trimLeading(samples []Sample) []Sample {
	start := 0
	for start < len(samples) && samples[start].IsZero() {
		start++
	}
	out := make([]Sample, len(samples)-start)
	copy(out, samples[start:])
	return out
}
