package pwm

import (
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
)

const (
	// MinChannels and MaxChannels bound the number of output lines. The
	// channel select field is 3 bits, so indexes above 6 can still appear
	// on the bus; selects naming a channel >= the configured count are
	// silently dropped.
	MinChannels = 1
	MaxChannels = 7

	// MinWidth and MaxWidth bound the counter width in bits.
	MinWidth = 8
	MaxWidth = 64

	// dutyBits is the width of the duty code field; the code is shifted
	// into the top bits of the counter range to form the threshold.
	dutyBits = 4
)

// Generator is a multi-channel PWM output generator. Each channel has an
// enable flag, a duty threshold and a free-running counter; a channel's
// output is asserted while its counter is below its threshold.
//
// All state advances through Tick, once per clock cycle. Configuration
// written on tick t only affects counter behaviour from tick t+2 onward:
// the control word is latched on tick t, decoded during tick t+1 (after
// that tick's counters and outputs are produced) and first observed by the
// counters on tick t+2. This keeps configuration changes from racing the
// counters they affect.
//
// Generator is not safe for concurrent use; it is meant to be driven by a
// single caller issuing one tick at a time.
type Generator struct {
	channels int
	width    uint
	mask     uint64 // 2^width - 1, the all-set idle/reset counter value

	latched   ControlWord
	enabled   []bool
	threshold []uint64
	counter   []uint64

	ticks   uint64
	lastOut OutputVector

	logger *slog.Logger
}

// Option configures a Generator at construction.
type Option func(*Generator)

// WithLogger sets the logger used for construction and reset messages.
// Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(g *Generator) { g.logger = l } }

// New creates a generator with the given channel count and counter width.
// All channels start disabled with threshold 0 and counters at the all-set
// value, so every output is low until a channel is configured and enabled.
func New(channels, width int, opts ...Option) (*Generator, error) {
	if channels < MinChannels || channels > MaxChannels {
		return nil, errors.Errorf("pwm: channel count %d out of range [%d,%d]", channels, MinChannels, MaxChannels)
	}
	if width < MinWidth || width > MaxWidth {
		return nil, errors.Errorf("pwm: counter width %d out of range [%d,%d]", width, MinWidth, MaxWidth)
	}

	g := &Generator{
		channels:  channels,
		width:     uint(width),
		enabled:   make([]bool, channels),
		threshold: make([]uint64, channels),
		counter:   make([]uint64, channels),
		logger:    slog.Default(),
	}

	if width == 64 {
		g.mask = ^uint64(0)
	} else {
		g.mask = (uint64(1) << g.width) - 1
	}

	for i := range g.counter {
		g.counter[i] = g.mask
	}

	for _, opt := range opts {
		opt(g)
	}

	g.logger.Debug("pwm generator created", "channels", channels, "width", width)

	return g, nil
}

// Tick consumes one control bus value and reset flag and returns the output
// vector for this tick. The four stages run in a fixed order so that the
// counters and outputs observe the configuration decoded on the previous
// tick, while the word latched on the previous tick is decoded for the next:
//
//  1. latch the raw word (or the zero word on reset)
//  2. advance counters using the previous tick's configuration
//  3. derive outputs from the counters and that same configuration
//  4. decode the previously latched word into the configuration
func (g *Generator) Tick(raw uint8, reset bool) OutputVector {
	prev := g.latched
	g.latch(raw, reset)
	g.advance(reset)
	out := g.outputs()
	g.decode(prev, reset)

	g.ticks++
	g.lastOut = out
	return out
}

// latch captures the raw control word, or the zero word on reset.
func (g *Generator) latch(raw uint8, reset bool) {
	if reset {
		g.latched = ControlWord{}
		return
	}
	g.latched = DecodeControlWord(raw)
}

// advance steps every counter once. Enabled channels increment with silent
// wraparound; disabled channels are pinned to the all-set value every tick,
// so an enable transition always starts the next active tick at counter 0
// (all-set + 1 wraps to 0). Reset forces every counter to all-set.
func (g *Generator) advance(reset bool) {
	for i := range g.counter {
		if reset || !g.enabled[i] {
			g.counter[i] = g.mask
			continue
		}
		g.counter[i] = (g.counter[i] + 1) & g.mask
	}
}

// decode applies a control word to the channel configuration. On reset all
// channels are disabled and their thresholds zeroed. Otherwise exactly the
// selected channel is updated; a select naming a channel beyond the
// configured count is dropped without touching any state.
func (g *Generator) decode(word ControlWord, reset bool) {
	if reset {
		for i := range g.enabled {
			g.enabled[i] = false
			g.threshold[i] = 0
		}
		return
	}

	i := int(word.Channel)
	if i >= g.channels {
		return
	}

	g.enabled[i] = word.Trigger
	g.threshold[i] = uint64(word.Duty) << (g.width - dutyBits)
}

// outputs derives the output vector from the current counters and
// thresholds. A disabled channel is always low because its counter is
// pinned at the all-set value, which no threshold exceeds.
func (g *Generator) outputs() OutputVector {
	var out OutputVector
	for i := range g.counter {
		if g.counter[i] < g.threshold[i] {
			out |= 1 << uint(i)
		}
	}
	return out
}

// Channels returns the configured channel count.
func (g *Generator) Channels() int { return g.channels }

// Width returns the configured counter width in bits.
func (g *Generator) Width() int { return int(g.width) }

// MaxCounter returns the all-set idle/reset counter value (2^W - 1).
func (g *Generator) MaxCounter() uint64 { return g.mask }

// Ticks returns the number of ticks executed since construction.
func (g *Generator) Ticks() uint64 { return g.ticks }

// LastOutput returns the output vector produced by the most recent tick.
func (g *Generator) LastOutput() OutputVector { return g.lastOut }

// LatchedWord returns the control word captured on the most recent tick.
func (g *Generator) LatchedWord() ControlWord { return g.latched }

// ChannelEnabled reports whether channel i is enabled.
func (g *Generator) ChannelEnabled(i int) bool {
	g.checkChannel(i)
	return g.enabled[i]
}

// ChannelThreshold returns channel i's duty threshold.
func (g *Generator) ChannelThreshold(i int) uint64 {
	g.checkChannel(i)
	return g.threshold[i]
}

// ChannelCounter returns channel i's current counter value.
func (g *Generator) ChannelCounter(i int) uint64 {
	g.checkChannel(i)
	return g.counter[i]
}

// ChannelDuty returns channel i's configured 4-bit duty code, recovered
// from the threshold.
func (g *Generator) ChannelDuty(i int) uint8 {
	g.checkChannel(i)
	return uint8(g.threshold[i] >> (g.width - dutyBits))
}

func (g *Generator) checkChannel(i int) {
	if i < 0 || i >= g.channels {
		panic(fmt.Sprintf("pwm: channel index %d out of range [0,%d)", i, g.channels))
	}
}

func (g *Generator) String() string {
	return fmt.Sprintf("pwm.Generator{channels=%d width=%d ticks=%d out=%s}",
		g.channels, g.width, g.ticks, g.lastOut.Format(g.channels))
}
