// Package modulate turns an audio file into a stimulus stream: the PCM
// signal is folded into per-window mean amplitudes, each mapped to a 4-bit
// duty code and issued as a control word re-programming one channel. This
// is the classic class-D amplifier use of a PWM generator.
package modulate

import (
	"log/slog"
	"math"

	"github.com/pkg/errors"

	"github.com/halvard/go-pulsegen/pulsegen/pwm"
)

const (
	// DefaultWindowSamples is how many PCM samples fold into one duty
	// update.
	DefaultWindowSamples = 256
	// DefaultUpdateEvery is how many ticks each duty update is held for.
	DefaultUpdateEvery = 64

	maxDuty = 15
)

// Modulator implements stim.Source. It emits a finite program: one control
// word per tick, re-programming the target channel's duty every updateEvery
// ticks, then a final disable word.
type Modulator struct {
	channel     int
	updateEvery int
	duties      []uint8

	window int // current duty window
	held   int // ticks the current window has been held
	done   bool
}

// Option configures a Modulator.
type Option func(*settings)

type settings struct {
	windowSamples int
	updateEvery   int
}

// WithWindowSamples sets how many PCM samples fold into one duty window.
func WithWindowSamples(n int) Option { return func(s *settings) { s.windowSamples = n } }

// WithUpdateEvery sets how many ticks each duty window is held for.
func WithUpdateEvery(n int) Option { return func(s *settings) { s.updateEvery = n } }

// NewFromFile decodes a .wav or .mp3 file and builds the modulation program
// for the given channel.
func NewFromFile(path string, channel int, opts ...Option) (*Modulator, error) {
	if channel < 0 || channel >= pwm.MaxChannels {
		return nil, errors.Errorf("modulate: channel %d out of range [0,%d)", channel, pwm.MaxChannels)
	}

	p, err := decodePCM(path)
	if err != nil {
		return nil, err
	}

	return newModulator(p.data, channel, opts...)
}

func newModulator(data []float32, channel int, opts ...Option) (*Modulator, error) {
	s := settings{
		windowSamples: DefaultWindowSamples,
		updateEvery:   DefaultUpdateEvery,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.windowSamples < 1 {
		return nil, errors.Errorf("modulate: window size %d must be positive", s.windowSamples)
	}
	if s.updateEvery < 1 {
		return nil, errors.Errorf("modulate: update interval %d must be positive", s.updateEvery)
	}
	if len(data) == 0 {
		return nil, errors.New("modulate: audio stream is empty")
	}

	m := &Modulator{
		channel:     channel,
		updateEvery: s.updateEvery,
		duties:      foldDuties(data, s.windowSamples),
	}

	slog.Debug("Modulation program built",
		"channel", channel,
		"windows", len(m.duties),
		"ticks", m.Len())

	return m, nil
}

// foldDuties reduces the PCM stream to one duty code per window: the mean
// absolute amplitude of the window, scaled against the stream's peak.
func foldDuties(data []float32, windowSamples int) []uint8 {
	var peak float64
	for _, v := range data {
		if a := math.Abs(float64(v)); a > peak {
			peak = a
		}
	}

	windows := (len(data) + windowSamples - 1) / windowSamples
	duties := make([]uint8, 0, windows)

	for start := 0; start < len(data); start += windowSamples {
		end := start + windowSamples
		if end > len(data) {
			end = len(data)
		}

		var sum float64
		for _, v := range data[start:end] {
			sum += math.Abs(float64(v))
		}
		mean := sum / float64(end-start)

		duty := uint8(0)
		if peak > 0 {
			duty = uint8(math.Round(mean / peak * maxDuty))
			if duty > maxDuty {
				duty = maxDuty
			}
		}
		duties = append(duties, duty)
	}

	return duties
}

// Len returns the total number of ticks in the program, including the final
// disable word.
func (m *Modulator) Len() int {
	return len(m.duties)*m.updateEvery + 1
}

func (m *Modulator) Next() (uint8, bool, bool) {
	if m.done {
		return 0, false, false
	}

	if m.window >= len(m.duties) {
		// final tick: disable the channel
		m.done = true
		word := pwm.ControlWord{Trigger: false, Channel: uint8(m.channel)}.Encode()
		return word, false, true
	}

	word := pwm.ControlWord{
		Trigger: true,
		Channel: uint8(m.channel),
		Duty:    m.duties[m.window],
	}.Encode()

	m.held++
	if m.held >= m.updateEvery {
		m.held = 0
		m.window++
	}

	return word, false, true
}
