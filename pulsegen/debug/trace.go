package debug

import "github.com/halvard/go-pulsegen/pulsegen/pwm"

// Trace is a fixed-capacity ring buffer of per-tick output vectors, used as
// the waveform history the frontends render. It is driven from the rig's
// single update loop and is not safe for concurrent use.
type Trace struct {
	vectors  []pwm.OutputVector
	channels int
	index    int
	count    int
}

// NewTrace creates a trace for the given channel count holding the most
// recent capacity ticks.
func NewTrace(channels, capacity int) *Trace {
	if capacity < 1 {
		capacity = 1
	}
	return &Trace{
		vectors:  make([]pwm.OutputVector, capacity),
		channels: channels,
	}
}

// Push records the output vector of one tick, evicting the oldest entry
// once the buffer is full.
func (t *Trace) Push(v pwm.OutputVector) {
	t.vectors[t.index] = v
	t.index = (t.index + 1) % len(t.vectors)
	if t.count < len(t.vectors) {
		t.count++
	}
}

// Window returns up to n of the most recent vectors, oldest first.
func (t *Trace) Window(n int) []pwm.OutputVector {
	if n > t.count {
		n = t.count
	}
	if n <= 0 {
		return nil
	}

	result := make([]pwm.OutputVector, n)
	for i := 0; i < n; i++ {
		// index of the vector (n-i) entries ago
		idx := (t.index - n + i + 2*len(t.vectors)) % len(t.vectors)
		result[i] = t.vectors[idx]
	}
	return result
}

// Channels returns the channel count the trace was created for.
func (t *Trace) Channels() int { return t.channels }

// Len returns the number of ticks currently held.
func (t *Trace) Len() int { return t.count }

// Cap returns the trace capacity in ticks.
func (t *Trace) Cap() int { return len(t.vectors) }

// Clear drops all recorded vectors.
func (t *Trace) Clear() {
	t.index = 0
	t.count = 0
}
