//go:build sdl2

package sdl2

import (
	"fmt"
	"log/slog"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/halvard/go-pulsegen/pulsegen/backend"
	"github.com/halvard/go-pulsegen/pulsegen/debug"
	"github.com/halvard/go-pulsegen/pulsegen/input/action"
	"github.com/halvard/go-pulsegen/pulsegen/input/event"
)

const (
	windowWidth  = 1024
	windowHeight = 512

	laneGap = 8 // vertical pixels between channel lanes
)

// Backend implements the backend interface using SDL2 bindings.
// Note: building this requires SDL2 development libraries installed.
// Default builds skip this and use a stubbed renderer, see build tags (sdl2)
type Backend struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	running  bool
	config   backend.Config

	eventQueue   []backend.InputEvent
	currentTrace *debug.Trace
}

// New creates a new SDL2 backend
func New() *Backend {
	return &Backend{}
}

// Init initializes the SDL2 backend
func (s *Backend) Init(config backend.Config) error {
	s.config = config

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return fmt.Errorf("failed to initialize SDL2: %v", err)
	}

	window, err := sdl.CreateWindow(
		config.Title,
		sdl.WINDOWPOS_CENTERED,
		sdl.WINDOWPOS_CENTERED,
		windowWidth,
		windowHeight,
		sdl.WINDOW_SHOWN,
	)
	if err != nil {
		sdl.Quit()
		return fmt.Errorf("failed to create window: %v", err)
	}
	s.window = window

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
	if err != nil {
		window.Destroy()
		sdl.Quit()
		return fmt.Errorf("failed to create renderer: %v", err)
	}
	s.renderer = renderer

	s.running = true
	slog.Info("SDL2 scope initialized", "channels", config.Channels)

	return nil
}

// Update renders the waveform trace and returns pending input events.
func (s *Backend) Update(trace *debug.Trace) ([]backend.InputEvent, error) {
	for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
		s.handleEvent(ev)
	}

	events := s.eventQueue
	s.eventQueue = nil

	if !s.running {
		return events, nil
	}

	s.currentTrace = trace
	s.renderTrace(trace)

	return events, nil
}

// Cleanup cleans up SDL2 resources
func (s *Backend) Cleanup() error {
	slog.Info("Cleaning up SDL2 scope")

	if s.renderer != nil {
		s.renderer.Destroy()
	}
	if s.window != nil {
		s.window.Destroy()
	}
	sdl.Quit()

	return nil
}

// HandleAction processes display-side actions forwarded by the rig.
func (s *Backend) HandleAction(act action.Action) {
	switch act {
	case action.RigSnapshot:
		var snap *debug.Snapshot
		if s.config.DebugProvider != nil {
			snap = s.config.DebugProvider.ExtractSnapshot()
		}
		debug.TakeSnapshot(s.currentTrace, snap)
	}
}

func (s *Backend) handleEvent(ev sdl.Event) {
	switch e := ev.(type) {
	case *sdl.QuitEvent:
		s.running = false
		s.queueAction(action.RigQuit)

	case *sdl.KeyboardEvent:
		if e.Type == sdl.KEYDOWN && e.Repeat == 0 {
			s.handleKeyDown(e.Keysym.Sym)
		}
	}
}

// keyMapping maps SDL2 keys to actions
var keyMapping = map[sdl.Keycode]action.Action{
	sdl.K_TAB:          action.ChannelSelectNext,
	sdl.K_RIGHT:        action.ChannelSelectNext,
	sdl.K_LEFT:         action.ChannelSelectPrev,
	sdl.K_UP:           action.DutyIncrease,
	sdl.K_DOWN:         action.DutyDecrease,
	sdl.K_PLUS:         action.DutyIncrease,
	sdl.K_MINUS:        action.DutyDecrease,
	sdl.K_RETURN:       action.ChannelToggle,
	sdl.K_e:            action.ChannelToggle,
	sdl.K_r:            action.GeneratorReset,
	sdl.K_SPACE:        action.RigPauseToggle,
	sdl.K_p:            action.RigPauseToggle,
	sdl.K_n:            action.RigStepTick,
	sdl.K_F12:          action.RigSnapshot,
	sdl.K_q:            action.RigQuit,
	sdl.K_ESCAPE:       action.RigQuit,
	sdl.K_LEFTBRACKET:  action.DebugLogLevelDecrease,
	sdl.K_RIGHTBRACKET: action.DebugLogLevelIncrease,
}

func (s *Backend) handleKeyDown(key sdl.Keycode) {
	if act, exists := keyMapping[key]; exists {
		if act == action.RigQuit {
			s.running = false
		}
		s.queueAction(act)
	}
}

func (s *Backend) queueAction(act action.Action) {
	s.eventQueue = append(s.eventQueue, backend.InputEvent{Action: act, Type: event.Press})
}

// renderTrace draws one lane per channel, a filled rect per asserted tick,
// newest tick at the right edge.
func (s *Backend) renderTrace(trace *debug.Trace) {
	s.renderer.SetDrawColor(0x10, 0x10, 0x10, 0xFF)
	s.renderer.Clear()

	channels := trace.Channels()
	if channels == 0 {
		s.renderer.Present()
		return
	}

	laneHeight := (windowHeight - (channels+1)*laneGap) / channels
	window := trace.Window(windowWidth)
	offset := int32(windowWidth - len(window))

	for ch := 0; ch < channels; ch++ {
		top := int32(laneGap + ch*(laneHeight+laneGap))

		// lane baseline
		s.renderer.SetDrawColor(0x30, 0x30, 0x30, 0xFF)
		s.renderer.DrawLine(0, top+int32(laneHeight), windowWidth, top+int32(laneHeight))

		s.renderer.SetDrawColor(0x30, 0xE0, 0x60, 0xFF)
		for x, v := range window {
			if !v.Bit(ch) {
				continue
			}
			s.renderer.FillRect(&sdl.Rect{
				X: offset + int32(x),
				Y: top,
				W: 1,
				H: int32(laneHeight),
			})
		}
	}

	s.renderer.Present()
}
