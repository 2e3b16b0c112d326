package backend

import (
	"github.com/halvard/go-pulsegen/pulsegen/debug"
	"github.com/halvard/go-pulsegen/pulsegen/input/action"
	"github.com/halvard/go-pulsegen/pulsegen/input/event"
)

// Backend represents a complete frontend platform (rendering + input).
// Backends are responsible for:
// - Rendering the waveform trace to their specific output (terminal, SDL window)
// - Translating platform-specific input events to Actions
// - Handling backend-specific features (snapshots, log panels)
type Backend interface {
	// Init configures the backend. Required before calling Update.
	Init(config Config) error

	// Update renders the current waveform trace and returns any input
	// events gathered since the last call.
	Update(trace *debug.Trace) ([]InputEvent, error)

	// Cleanup resources when shutting down
	Cleanup() error
}

// ActionHandler is implemented by backends that handle display-side actions
// themselves (snapshot keys, log level filters). The rig forwards events to
// it after its own handling.
type ActionHandler interface {
	HandleAction(act action.Action)
}

// DebugDataProvider lets backends pull a state snapshot for display.
type DebugDataProvider interface {
	ExtractSnapshot() *debug.Snapshot
}

// InputEvent pairs an action with how the key was observed.
type InputEvent struct {
	Action action.Action
	Type   event.Type
}

// Config holds configuration for backends.
type Config struct {
	Title          string
	Channels       int
	UpdateRate     float64 // frontend updates per second
	TicksPerUpdate int     // generator ticks between updates
	ShowDebug      bool    // backends may ignore unsupported features
	DebugProvider  DebugDataProvider
}
