// Package debug holds inspection data extracted from a running rig: a
// point-in-time snapshot of the generator state and a ring buffer of recent
// output vectors for waveform displays.
package debug

import "github.com/halvard/go-pulsegen/pulsegen/pwm"

// ChannelState is the complete configuration and live state of one channel.
type ChannelState struct {
	Index     int
	Enabled   bool
	Duty      uint8
	Threshold uint64
	Counter   uint64
	Output    bool
}

// RigState represents the rig's run state as shown in debug displays.
type RigState int

const (
	RigRunning RigState = iota
	RigPaused
)

// Snapshot contains all debug information needed by the frontends.
type Snapshot struct {
	Channels []ChannelState
	Latched  pwm.ControlWord
	Ticks    uint64
	Output   pwm.OutputVector
	State    RigState
	Width    int
	Selected int // channel currently targeted by interactive actions
}
