package pulsegen

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvard/go-pulsegen/pulsegen/backend"
	"github.com/halvard/go-pulsegen/pulsegen/capture"
	"github.com/halvard/go-pulsegen/pulsegen/debug"
	"github.com/halvard/go-pulsegen/pulsegen/input/action"
	"github.com/halvard/go-pulsegen/pulsegen/input/event"
	"github.com/halvard/go-pulsegen/pulsegen/pwm"
	"github.com/halvard/go-pulsegen/pulsegen/stim"
)

func newTestGenerator(t *testing.T, channels, width int) *pwm.Generator {
	t.Helper()
	g, err := pwm.New(channels, width)
	require.NoError(t, err)
	return g
}

func TestRig_TickOnceRecordsEverywhere(t *testing.T) {
	g := newTestGenerator(t, 3, 8)

	var buf bytes.Buffer
	csvSink, err := capture.NewCSVRecorder(&buf, 3)
	require.NoError(t, err)

	raw := pwm.ControlWord{Trigger: true, Channel: 0, Duty: 15}.Encode()
	r := NewRig(g, stim.NewHold(raw), WithSinks(csvSink))

	for i := 0; i < 5; i++ {
		assert.True(t, r.TickOnce())
	}
	require.NoError(t, csvSink.End())

	assert.Equal(t, uint64(5), g.Ticks())
	assert.Equal(t, 5, r.Trace().Len())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 6, "header plus one row per tick")
	assert.Equal(t, "1,0,0,0", lines[2], "configuration latency keeps tick 1 low")
	assert.Equal(t, "2,1,0,0", lines[3], "channel 0 asserts from the third tick")
}

func TestRig_ScriptExhaustion(t *testing.T) {
	g := newTestGenerator(t, 2, 8)
	script, err := stim.ParseScript(strings.NewReader("set 0 on 8\nhold 4"))
	require.NoError(t, err)

	r := NewRig(g, script)

	assert.Equal(t, 5, r.RunTicks(100), "RunTicks stops at the end of the program")
	assert.False(t, r.TickOnce())
	assert.Equal(t, uint64(5), g.Ticks())
}

func TestRig_InteractiveActions(t *testing.T) {
	g := newTestGenerator(t, 4, 8)
	q := stim.NewQueue()
	r := NewRig(g, q)

	// Select channel 1 and raise its duty twice, then enable it.
	r.HandleAction(action.ChannelSelectNext)
	r.HandleAction(action.DutyIncrease)
	r.HandleAction(action.DutyIncrease)
	r.HandleAction(action.ChannelToggle)

	// Words land through the normal tick path with the usual latency.
	r.RunTicks(8)

	assert.True(t, g.ChannelEnabled(1))
	assert.Equal(t, uint8(2), g.ChannelDuty(1), "consecutive increments accumulate despite the latency")

	// Toggle again: disable.
	r.HandleAction(action.ChannelToggle)
	r.RunTicks(4)
	assert.False(t, g.ChannelEnabled(1))
}

func TestRig_SelectWraps(t *testing.T) {
	g := newTestGenerator(t, 3, 8)
	r := NewRig(g, stim.NewQueue())

	r.HandleAction(action.ChannelSelectPrev)
	assert.Equal(t, 2, r.ExtractSnapshot().Selected)
	r.HandleAction(action.ChannelSelectNext)
	assert.Equal(t, 0, r.ExtractSnapshot().Selected)
}

func TestRig_ResetAction(t *testing.T) {
	g := newTestGenerator(t, 2, 8)
	q := stim.NewQueue()
	r := NewRig(g, q)

	q.Push(pwm.ControlWord{Trigger: true, Channel: 0, Duty: 9}.Encode())
	r.RunTicks(10)
	require.True(t, g.ChannelEnabled(0))

	r.HandleAction(action.GeneratorReset)
	r.RunTicks(1)

	assert.False(t, g.ChannelEnabled(0))
	assert.Equal(t, uint64(0xFF), g.ChannelCounter(0))
}

func TestRig_ExtractSnapshot(t *testing.T) {
	g := newTestGenerator(t, 2, 8)
	raw := pwm.ControlWord{Trigger: true, Channel: 1, Duty: 4}.Encode()
	r := NewRig(g, stim.NewHold(raw))

	r.RunTicks(3)
	snap := r.ExtractSnapshot()

	require.Len(t, snap.Channels, 2)
	assert.Equal(t, uint64(3), snap.Ticks)
	assert.Equal(t, 8, snap.Width)
	assert.Equal(t, debug.RigRunning, snap.State)
	assert.True(t, snap.Channels[1].Enabled)
	assert.Equal(t, uint8(4), snap.Channels[1].Duty)
	assert.Equal(t, uint64(4<<4), snap.Channels[1].Threshold)
	assert.True(t, snap.Channels[1].Output, "counter 0 is below the threshold on tick 3")

	r.HandleAction(action.RigPauseToggle)
	assert.Equal(t, debug.RigPaused, r.ExtractSnapshot().State)
}

// scriptedBackend feeds a fixed sequence of event batches to the run loop.
type scriptedBackend struct {
	batches [][]backend.InputEvent
	updates int
	actions []action.Action
	cleaned bool
}

func (b *scriptedBackend) Init(backend.Config) error { return nil }

func (b *scriptedBackend) Update(trace *debug.Trace) ([]backend.InputEvent, error) {
	defer func() { b.updates++ }()
	if b.updates < len(b.batches) {
		return b.batches[b.updates], nil
	}
	return []backend.InputEvent{{Action: action.RigQuit, Type: event.Press}}, nil
}

func (b *scriptedBackend) Cleanup() error { b.cleaned = true; return nil }

func (b *scriptedBackend) HandleAction(act action.Action) { b.actions = append(b.actions, act) }

func TestRig_RunLoopQuit(t *testing.T) {
	g := newTestGenerator(t, 2, 8)
	r := NewRig(g, stim.NewQueue(), WithTicksPerUpdate(10))

	b := &scriptedBackend{batches: [][]backend.InputEvent{
		{}, // one empty update before quitting
	}}
	require.NoError(t, r.Run(b))

	assert.Equal(t, 2, b.updates, "quit event ends the loop on the second update")
	assert.Equal(t, uint64(20), g.Ticks())
}

func TestRig_RunLoopPauseAndStep(t *testing.T) {
	g := newTestGenerator(t, 2, 8)
	r := NewRig(g, stim.NewQueue(), WithTicksPerUpdate(10))

	b := &scriptedBackend{batches: [][]backend.InputEvent{
		{{Action: action.RigPauseToggle, Type: event.Press}},
		{{Action: action.RigStepTick, Type: event.Press}},
		{}, // paused: the step has been consumed, no ticks here
	}}
	require.NoError(t, r.Run(b))

	// update 1 runs 10 ticks then pauses; update 2 runs none and requests a
	// step; update 3 runs the single stepped tick; update 4 quits.
	assert.Equal(t, uint64(11), g.Ticks())
	assert.Contains(t, b.actions, action.RigPauseToggle, "display actions are forwarded to the backend")
}

func TestRig_RunLoopStopsWhenExhausted(t *testing.T) {
	g := newTestGenerator(t, 2, 8)
	script, err := stim.ParseScript(strings.NewReader("word 0x00\nhold 14"))
	require.NoError(t, err)

	r := NewRig(g, script, WithTicksPerUpdate(10))
	b := &scriptedBackend{batches: [][]backend.InputEvent{{}, {}, {}, {}}}

	require.NoError(t, r.Run(b))
	assert.Equal(t, uint64(15), g.Ticks())
	assert.LessOrEqual(t, b.updates, 3, "loop ends once the stimulus runs out")
}
