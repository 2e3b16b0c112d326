package capture

import (
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/youpy/go-wav"

	"github.com/halvard/go-pulsegen/pulsegen/pwm"
)

// WAVRecorder records one channel's output as 8-bit mono PCM, one sample
// per tick. Samples are buffered in memory in their entirety and written to
// disk on End, so it is only suitable for bounded runs.
type WAVRecorder struct {
	filename   string
	channel    int
	sampleRate uint32
	buffer     []wav.Sample
}

const (
	wavLow  = 0x00
	wavHigh = 0xFF

	// DefaultWAVSampleRate is the sample rate stamped on captures when the
	// caller has no meaningful tick frequency to report.
	DefaultWAVSampleRate = 44100
)

// NewWAVRecorder creates a recorder for the given output channel. The
// sample rate only affects playback speed; pass DefaultWAVSampleRate when
// the tick rate has no real-time meaning.
func NewWAVRecorder(filename string, channel int, sampleRate uint32) (*WAVRecorder, error) {
	if channel < 0 || channel >= pwm.MaxChannels {
		return nil, errors.Errorf("capture: wav channel %d out of range [0,%d)", channel, pwm.MaxChannels)
	}
	if sampleRate == 0 {
		return nil, errors.New("capture: wav sample rate must be positive")
	}
	return &WAVRecorder{
		filename:   filename,
		channel:    channel,
		sampleRate: sampleRate,
		buffer:     make([]wav.Sample, 0),
	}, nil
}

func (w *WAVRecorder) Record(tick uint64, out pwm.OutputVector) {
	s := wav.Sample{}
	if out.Bit(w.channel) {
		s.Values[0] = wavHigh
	} else {
		s.Values[0] = wavLow
	}
	w.buffer = append(w.buffer, s)
}

// End encodes the buffered samples and writes the WAV file.
func (w *WAVRecorder) End() (rerr error) {
	f, err := os.Create(w.filename)
	if err != nil {
		return errors.Wrap(err, "capture: creating wav file")
	}
	defer func() {
		if err := f.Close(); err != nil && rerr == nil {
			rerr = errors.Wrap(err, "capture: closing wav file")
		}
	}()

	enc := wav.NewWriter(f, uint32(len(w.buffer)), 1, w.sampleRate, 8)
	if enc == nil {
		return errors.New("capture: bad parameters for wav encoding")
	}

	slog.Info("Writing channel capture", "path", w.filename, "channel", w.channel, "samples", len(w.buffer))
	if err := enc.WriteSamples(w.buffer); err != nil {
		return errors.Wrap(err, "capture: writing wav samples")
	}

	return nil
}

func (w *WAVRecorder) Reset() {
	w.buffer = w.buffer[:0]
}
