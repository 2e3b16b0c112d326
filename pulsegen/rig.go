// Package pulsegen couples a PWM generator with a stimulus source, capture
// sinks, a waveform trace and a frontend, and drives them tick by tick.
package pulsegen

import (
	"log/slog"

	"github.com/halvard/go-pulsegen/pulsegen/backend"
	"github.com/halvard/go-pulsegen/pulsegen/capture"
	"github.com/halvard/go-pulsegen/pulsegen/debug"
	"github.com/halvard/go-pulsegen/pulsegen/input"
	"github.com/halvard/go-pulsegen/pulsegen/input/action"
	"github.com/halvard/go-pulsegen/pulsegen/input/event"
	"github.com/halvard/go-pulsegen/pulsegen/pwm"
	"github.com/halvard/go-pulsegen/pulsegen/stim"
	"github.com/halvard/go-pulsegen/pulsegen/timing"
)

const defaultTraceCapacity = 4096

// Rig drives one generator from one stimulus source. Every tick flows
// through the generator's control word front door, including the words
// synthesized from interactive scope actions.
type Rig struct {
	gen     *pwm.Generator
	source  stim.Source
	queue   *stim.Queue // non-nil when the source is interactive
	sinks   []capture.Sink
	trace   *debug.Trace
	handler *input.Handler
	limiter timing.Limiter

	ticksPerUpdate int
	selected       int
	paused         bool
	stepRequested  bool
	running        bool
	exhausted      bool

	// Intended per-channel settings for interactive control. The generator
	// lags queued words by the configuration latency, so consecutive
	// actions build on these rather than on generator reads.
	wantEnabled []bool
	wantDuty    []uint8
}

// RigOption configures a Rig.
type RigOption func(*Rig)

// WithSinks attaches capture sinks; every tick is recorded to each.
func WithSinks(sinks ...capture.Sink) RigOption {
	return func(r *Rig) { r.sinks = append(r.sinks, sinks...) }
}

// WithTraceCapacity sets how many ticks of output history are kept for the
// frontends.
func WithTraceCapacity(n int) RigOption {
	return func(r *Rig) { r.trace = debug.NewTrace(r.gen.Channels(), n) }
}

// WithLimiter sets the pacing of the update loop. Defaults to no limiting.
func WithLimiter(l timing.Limiter) RigOption {
	return func(r *Rig) { r.limiter = l }
}

// WithTicksPerUpdate sets how many ticks run between frontend updates.
func WithTicksPerUpdate(n int) RigOption {
	return func(r *Rig) {
		if n > 0 {
			r.ticksPerUpdate = n
		}
	}
}

// NewRig creates a rig around an existing generator and stimulus source.
func NewRig(gen *pwm.Generator, source stim.Source, opts ...RigOption) *Rig {
	r := &Rig{
		gen:            gen,
		source:         source,
		handler:        input.NewHandler(),
		limiter:        timing.NewNoOpLimiter(),
		ticksPerUpdate: timing.DefaultTicksPerUpdate,
	}
	if q, ok := source.(*stim.Queue); ok {
		r.queue = q
	}
	r.trace = debug.NewTrace(gen.Channels(), defaultTraceCapacity)
	r.wantEnabled = make([]bool, gen.Channels())
	r.wantDuty = make([]uint8, gen.Channels())

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Generator returns the underlying generator, for inspection between ticks.
func (r *Rig) Generator() *pwm.Generator { return r.gen }

// Trace returns the waveform history buffer.
func (r *Rig) Trace() *debug.Trace { return r.trace }

// TickOnce pulls one (word, reset) pair from the stimulus source and runs a
// single generator tick, recording the output to the trace and every sink.
// Returns false once the source is exhausted.
func (r *Rig) TickOnce() bool {
	if r.exhausted {
		return false
	}

	raw, reset, ok := r.source.Next()
	if !ok {
		slog.Info("Stimulus exhausted", "ticks", r.gen.Ticks())
		r.exhausted = true
		r.running = false
		return false
	}

	out := r.gen.Tick(raw, reset)
	tick := r.gen.Ticks() - 1

	r.trace.Push(out)
	for _, s := range r.sinks {
		s.Record(tick, out)
	}
	return true
}

// RunTicks runs up to n ticks and returns how many actually ran.
func (r *Rig) RunTicks(n int) int {
	for i := 0; i < n; i++ {
		if !r.TickOnce() {
			return i
		}
	}
	return n
}

// Run drives the main loop: a batch of ticks, one frontend update, input
// handling, pacing. It returns when a quit action arrives or the stimulus
// runs out. The caller owns backend Init/Cleanup and sink End.
func (r *Rig) Run(b backend.Backend) error {
	r.running = true

	for r.running {
		if !r.paused {
			r.RunTicks(r.ticksPerUpdate)
		} else if r.stepRequested {
			r.TickOnce()
			r.stepRequested = false
		}

		events, err := b.Update(r.trace)
		if err != nil {
			return err
		}

		for _, evt := range events {
			if !r.handler.ProcessEvent(evt) {
				continue
			}
			if evt.Type != event.Press {
				continue
			}
			r.HandleAction(evt.Action)
			if ah, ok := b.(backend.ActionHandler); ok {
				ah.HandleAction(evt.Action)
			}
		}

		if r.exhausted {
			break
		}
		r.limiter.WaitForNextUpdate()
	}

	return nil
}

// HandleAction applies a rig-level action. Channel programming actions are
// synthesized into control words and queued through the normal tick path,
// never poked into the generator out of band.
func (r *Rig) HandleAction(act action.Action) {
	switch act {
	case action.ChannelSelectNext:
		r.selected = (r.selected + 1) % r.gen.Channels()
		slog.Info("Selected channel", "channel", r.selected)
	case action.ChannelSelectPrev:
		r.selected = (r.selected + r.gen.Channels() - 1) % r.gen.Channels()
		slog.Info("Selected channel", "channel", r.selected)

	case action.ChannelToggle:
		r.wantEnabled[r.selected] = !r.wantEnabled[r.selected]
		r.pushWord()

	case action.DutyIncrease:
		if r.wantDuty[r.selected] < 15 {
			r.wantDuty[r.selected]++
		}
		r.pushWord()
	case action.DutyDecrease:
		if r.wantDuty[r.selected] > 0 {
			r.wantDuty[r.selected]--
		}
		r.pushWord()

	case action.GeneratorReset:
		if r.queue == nil {
			slog.Debug("Reset unavailable with scripted stimulus")
			return
		}
		slog.Info("Reset queued")
		for i := range r.wantEnabled {
			r.wantEnabled[i] = false
			r.wantDuty[i] = 0
		}
		r.queue.PushReset()

	case action.RigPauseToggle:
		r.paused = !r.paused
		if r.paused {
			slog.Info("Paused", "tick", r.gen.Ticks())
		} else {
			slog.Info("Resumed", "tick", r.gen.Ticks())
			r.limiter.Reset()
		}
	case action.RigStepTick:
		if r.paused {
			r.stepRequested = true
		}

	case action.RigQuit:
		r.running = false
	}
}

// pushWord queues a control word carrying the selected channel's intended
// settings.
func (r *Rig) pushWord() {
	if r.queue == nil {
		slog.Debug("Interactive control unavailable with scripted stimulus")
		return
	}
	word := pwm.ControlWord{
		Trigger: r.wantEnabled[r.selected],
		Channel: uint8(r.selected),
		Duty:    r.wantDuty[r.selected],
	}
	slog.Info("Control word queued", "word", word)
	r.queue.Push(word.Encode())
}

// ExtractSnapshot implements backend.DebugDataProvider.
func (r *Rig) ExtractSnapshot() *debug.Snapshot {
	n := r.gen.Channels()
	out := r.gen.LastOutput()

	snap := &debug.Snapshot{
		Channels: make([]debug.ChannelState, n),
		Latched:  r.gen.LatchedWord(),
		Ticks:    r.gen.Ticks(),
		Output:   out,
		Width:    r.gen.Width(),
		Selected: r.selected,
		State:    debug.RigRunning,
	}
	if r.paused {
		snap.State = debug.RigPaused
	}

	for i := 0; i < n; i++ {
		snap.Channels[i] = debug.ChannelState{
			Index:     i,
			Enabled:   r.gen.ChannelEnabled(i),
			Duty:      r.gen.ChannelDuty(i),
			Threshold: r.gen.ChannelThreshold(i),
			Counter:   r.gen.ChannelCounter(i),
			Output:    out.Bit(i),
		}
	}
	return snap
}

var _ backend.DebugDataProvider = (*Rig)(nil)
