// Package terminal implements a tcell-based oscilloscope view: one waveform
// lane per channel scrolling right to left, a channel status pane and a log
// panel fed by a slog ring buffer.
package terminal

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"

	"github.com/halvard/go-pulsegen/pulsegen/backend"
	"github.com/halvard/go-pulsegen/pulsegen/backend/terminal/render"
	"github.com/halvard/go-pulsegen/pulsegen/debug"
	"github.com/halvard/go-pulsegen/pulsegen/input/action"
	"github.com/halvard/go-pulsegen/pulsegen/input/event"
)

const (
	minTermWidth  = 60
	minTermHeight = 16

	laneLabelWidth = 6 // "ch0 ▸|"
	logBufferSize  = 100
)

// Backend implements the backend interface using tcell for terminal
// rendering.
type Backend struct {
	screen     tcell.Screen
	running    bool
	logBuffer  *render.LogBuffer
	logLevel   slog.Level
	config     backend.Config
	eventQueue []backend.InputEvent // collected between Update calls

	debugProvider backend.DebugDataProvider
	currentTrace  *debug.Trace
}

// New creates a new terminal backend
func New() *Backend {
	return &Backend{
		logLevel: slog.LevelInfo,
	}
}

// Init initializes the terminal backend
func (t *Backend) Init(config backend.Config) error {
	t.config = config
	t.debugProvider = config.DebugProvider
	t.eventQueue = make([]backend.InputEvent, 0)

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to initialize terminal: %v", err)
	}

	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize terminal: %v", err)
	}

	t.screen = screen
	t.running = true

	// Capture logs into the panel instead of stderr.
	t.logBuffer = render.NewLogBuffer(logBufferSize)
	handler := render.NewLogBufferHandler(t.logBuffer, slog.LevelDebug)
	slog.SetDefault(slog.New(handler))

	slog.Info("Terminal scope initialized", "channels", config.Channels)

	t.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	t.screen.Clear()

	go t.handleSignals()

	return nil
}

// Update renders the waveform trace and returns pending input events.
func (t *Backend) Update(trace *debug.Trace) ([]backend.InputEvent, error) {
	for t.screen.HasPendingEvent() {
		ev := t.screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventKey:
			t.processKeyEvent(ev)
		case *tcell.EventResize:
			t.screen.Sync()
		}
	}

	events := t.eventQueue
	t.eventQueue = nil

	if !t.running {
		return events, nil
	}

	t.currentTrace = trace
	t.render(trace)
	t.screen.Show()

	return events, nil
}

// Cleanup cleans up terminal resources
func (t *Backend) Cleanup() error {
	if t.screen != nil {
		slog.Info("Cleaning up terminal scope")
		t.screen.Fini()
	}
	return nil
}

// HandleAction processes display-side actions forwarded by the rig.
func (t *Backend) HandleAction(act action.Action) {
	switch act {
	case action.RigSnapshot:
		var snap *debug.Snapshot
		if t.debugProvider != nil {
			snap = t.debugProvider.ExtractSnapshot()
		}
		debug.TakeSnapshot(t.currentTrace, snap)
	case action.RigDebugToggle:
		t.config.ShowDebug = !t.config.ShowDebug
		if t.config.ShowDebug {
			slog.Info("Status pane enabled")
		} else {
			slog.Info("Status pane disabled")
		}
	case action.DebugLogLevelIncrease:
		t.changeLogLevel(1)
	case action.DebugLogLevelDecrease:
		t.changeLogLevel(-1)
	}
}

func (t *Backend) handleSignals() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)

	<-signals
	t.running = false
	t.eventQueue = append(t.eventQueue, backend.InputEvent{Action: action.RigQuit, Type: event.Press})
}

// keyMapping maps tcell special keys to actions
var keyMapping = map[tcell.Key]action.Action{
	tcell.KeyTab:    action.ChannelSelectNext,
	tcell.KeyRight:  action.ChannelSelectNext,
	tcell.KeyLeft:   action.ChannelSelectPrev,
	tcell.KeyUp:     action.DutyIncrease,
	tcell.KeyDown:   action.DutyDecrease,
	tcell.KeyEnter:  action.ChannelToggle,
	tcell.KeyF10:    action.RigDebugToggle,
	tcell.KeyF12:    action.RigSnapshot,
	tcell.KeyEscape: action.RigQuit,
	tcell.KeyCtrlC:  action.RigQuit,
}

// runeMapping maps printable keys to actions
var runeMapping = map[rune]action.Action{
	'+': action.DutyIncrease,
	'=': action.DutyIncrease,
	'-': action.DutyDecrease,
	'_': action.DutyDecrease,
	'e': action.ChannelToggle,
	'r': action.GeneratorReset,
	' ': action.RigPauseToggle,
	'p': action.RigPauseToggle,
	'n': action.RigStepTick,
	'd': action.RigDebugToggle,
	']': action.DebugLogLevelIncrease,
	'[': action.DebugLogLevelDecrease,
	'q': action.RigQuit,
}

func (t *Backend) processKeyEvent(ev *tcell.EventKey) {
	if act, exists := keyMapping[ev.Key()]; exists {
		if act == action.RigQuit {
			t.running = false
		}
		t.queueAction(act)
		return
	}

	if ev.Key() == tcell.KeyRune {
		if act, exists := runeMapping[ev.Rune()]; exists {
			if act == action.RigQuit {
				t.running = false
			}
			t.queueAction(act)
		}
	}
}

func (t *Backend) queueAction(act action.Action) {
	slog.Debug("Key event", "action", action.GetInfo(act).Description)
	t.eventQueue = append(t.eventQueue, backend.InputEvent{Action: act, Type: event.Press})
}

func (t *Backend) changeLogLevel(direction int) {
	oldLevel := t.logLevel
	switch direction {
	case -1:
		switch t.logLevel {
		case slog.LevelDebug:
			t.logLevel = slog.LevelInfo
		case slog.LevelInfo:
			t.logLevel = slog.LevelWarn
		case slog.LevelWarn:
			t.logLevel = slog.LevelError
		}
	case 1:
		switch t.logLevel {
		case slog.LevelError:
			t.logLevel = slog.LevelWarn
		case slog.LevelWarn:
			t.logLevel = slog.LevelInfo
		case slog.LevelInfo:
			t.logLevel = slog.LevelDebug
		}
	}
	if oldLevel != t.logLevel {
		slog.Info("Log filter changed", "from", oldLevel, "to", t.logLevel)
	}
}

func (t *Backend) render(trace *debug.Trace) {
	termWidth, termHeight := t.screen.Size()
	if termWidth < minTermWidth || termHeight < minTermHeight {
		t.screen.Clear()
		style := tcell.StyleDefault.Foreground(tcell.ColorRed)
		msg := fmt.Sprintf("Terminal too small! Need at least %dx%d", minTermWidth, minTermHeight)
		for i, ch := range msg {
			t.screen.SetContent(i, termHeight/2, ch, nil, style)
		}
		return
	}

	t.screen.Clear()

	var snap *debug.Snapshot
	if t.debugProvider != nil {
		snap = t.debugProvider.ExtractSnapshot()
	}

	t.drawTitle(termWidth, snap)

	lanesY := 1
	lanesEnd := t.drawLanes(lanesY, termWidth, trace, snap)

	statusEnd := lanesEnd
	if t.config.ShowDebug && snap != nil {
		statusEnd = t.drawStatus(lanesEnd+1, termWidth, snap)
	}

	t.drawLogs(statusEnd+1, termWidth, termHeight)
	t.drawHelp(termWidth, termHeight)
}

func (t *Backend) drawTitle(termWidth int, snap *debug.Snapshot) {
	titleStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)

	state := "RUNNING"
	ticks := uint64(0)
	if snap != nil {
		ticks = snap.Ticks
		if snap.State == debug.RigPaused {
			state = "PAUSED"
		}
	}
	title := fmt.Sprintf(" %s [%s] tick %d ", t.config.Title, state, ticks)
	for i, ch := range title {
		if i < termWidth {
			t.screen.SetContent(i, 0, ch, nil, titleStyle)
		}
	}
}

// drawLanes renders one waveform row per channel, newest tick at the right
// edge. Returns the y coordinate of the last drawn row.
func (t *Backend) drawLanes(startY, termWidth int, trace *debug.Trace, snap *debug.Snapshot) int {
	laneWidth := termWidth - laneLabelWidth - 1
	if laneWidth < 1 {
		laneWidth = 1
	}
	window := trace.Window(laneWidth)

	labelStyle := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	selectedStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	highStyle := tcell.StyleDefault.Foreground(tcell.ColorGreen)
	lowStyle := tcell.StyleDefault.Foreground(tcell.ColorGray)

	y := startY
	for ch := 0; ch < trace.Channels(); ch++ {
		style := labelStyle
		marker := ' '
		if snap != nil && snap.Selected == ch {
			style = selectedStyle
			marker = '▸'
		}
		label := fmt.Sprintf("ch%d %c|", ch, marker)
		for i, r := range label {
			t.screen.SetContent(i, y, r, nil, style)
		}

		// Right-align the window so the newest tick hugs the right edge.
		x := laneLabelWidth + (laneWidth - len(window))
		for _, v := range window {
			if v.Bit(ch) {
				t.screen.SetContent(x, y, '█', nil, highStyle)
			} else {
				t.screen.SetContent(x, y, '_', nil, lowStyle)
			}
			x++
		}
		y++
	}
	return y - 1
}

// drawStatus renders the per-channel configuration pane. Returns the y of
// the last drawn row.
func (t *Backend) drawStatus(startY, termWidth int, snap *debug.Snapshot) int {
	headerStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite)

	header := fmt.Sprintf(" Channels (latched: %s) ", snap.Latched)
	for i, r := range header {
		if i < termWidth {
			t.screen.SetContent(i, startY, r, nil, headerStyle)
		}
	}

	y := startY + 1
	for _, ch := range snap.Channels {
		state := "off"
		if ch.Enabled {
			state = "ON "
		}
		out := 0
		if ch.Output {
			out = 1
		}
		line := fmt.Sprintf("  ch%d [%s] duty=%2d thr=%d ctr=%d out=%d",
			ch.Index, state, ch.Duty, ch.Threshold, ch.Counter, out)
		for i, r := range line {
			if i < termWidth {
				t.screen.SetContent(i, y, r, nil, style)
			}
		}
		y++
	}
	return y - 1
}

func (t *Backend) drawLogs(startY, termWidth, termHeight int) {
	headerStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)

	levelStr := "INFO"
	switch t.logLevel {
	case slog.LevelDebug:
		levelStr = "DEBUG"
	case slog.LevelWarn:
		levelStr = "WARN"
	case slog.LevelError:
		levelStr = "ERROR"
	}
	header := fmt.Sprintf(" Logs [%s] ([/] filter) ", levelStr)
	for i, r := range header {
		if i < termWidth {
			t.screen.SetContent(i, startY, r, nil, headerStyle)
		}
	}

	maxLines := termHeight - startY - 2
	if maxLines < 1 {
		return
	}

	var visible []render.LogEntry
	for _, entry := range t.logBuffer.Recent(0) {
		if entry.Level >= t.logLevel {
			visible = append(visible, entry)
			if len(visible) == maxLines {
				break
			}
		}
	}

	// Newest entry on the bottom line of the panel.
	y := startY + len(visible)
	for _, entry := range visible {
		line := render.FormatLogEntry(entry)
		style := tcell.StyleDefault.Foreground(tcell.ColorWhite)
		switch entry.Level {
		case slog.LevelDebug:
			style = tcell.StyleDefault.Foreground(tcell.ColorGray)
		case slog.LevelWarn:
			style = tcell.StyleDefault.Foreground(tcell.ColorYellow)
		case slog.LevelError:
			style = tcell.StyleDefault.Foreground(tcell.ColorRed)
		}
		for i, r := range line {
			if i < termWidth {
				t.screen.SetContent(i, y, r, nil, style)
			}
		}
		y--
	}
}

func (t *Backend) drawHelp(termWidth, termHeight int) {
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	help := " Tab=channel +/-=duty Enter=toggle R=reset SPACE=pause N=step F12=snapshot D=status Q=quit "
	for i, r := range help {
		if i < termWidth {
			t.screen.SetContent(i, termHeight-1, r, nil, style)
		}
	}
}
