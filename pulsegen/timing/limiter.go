package timing

import "time"

// Limiter controls the pacing of the rig's update loop.
type Limiter interface {
	// WaitForNextUpdate blocks until it's time for the next frontend
	// update. Returns immediately if timing is behind schedule.
	WaitForNextUpdate()

	// Reset resets the timing state, useful after pauses.
	Reset()
}

// NewNoOpLimiter returns a limiter that doesn't limit (for headless mode).
func NewNoOpLimiter() Limiter {
	return &noOpLimiter{}
}

type noOpLimiter struct{}

func (n *noOpLimiter) WaitForNextUpdate() {}
func (n *noOpLimiter) Reset()             {}

const (
	// DefaultUpdateRate is the frontend refresh rate in updates per second.
	DefaultUpdateRate = 60.0

	// DefaultTicksPerUpdate is how many generator ticks run between
	// frontend updates when a scope is attached.
	DefaultTicksPerUpdate = 32
)

// UpdateDuration returns the target duration between frontend updates for
// the given rate.
func UpdateDuration(updatesPerSecond float64) time.Duration {
	if updatesPerSecond <= 0 {
		updatesPerSecond = DefaultUpdateRate
	}
	return time.Duration(float64(time.Second) / updatesPerSecond)
}
