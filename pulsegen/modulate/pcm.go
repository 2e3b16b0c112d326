package modulate

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/pkg/errors"
)

// pcmData is a mono PCM stream decoded from an audio file. Sample values
// are not normalised; the duty mapping works off the stream's own peak.
type pcmData struct {
	sampleRate float64
	totalTime  float64 // in seconds
	data       []float32
}

// firstChannel copies channel 0 out of an interleaved buffer.
func firstChannel(buf *audio.Float32Buffer, numChans int) []float32 {
	if numChans < 1 {
		numChans = 1
	}
	out := make([]float32, 0, len(buf.Data)/numChans)
	for i := 0; i < len(buf.Data); i += numChans {
		out = append(out, buf.Data[i])
	}
	return out
}

// decodePCM loads a .wav or .mp3 file into mono PCM, taking the left
// channel of stereo sources.
func decodePCM(path string) (pcmData, error) {
	p := pcmData{
		data: make([]float32, 0),
	}

	f, err := os.Open(path)
	if err != nil {
		return p, errors.Wrap(err, "modulate")
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		dec := wav.NewDecoder(f)
		if dec == nil {
			return p, errors.New("modulate: wav: error decoding")
		}

		if !dec.IsValidFile() {
			return p, errors.New("modulate: wav: not a valid wav file")
		}

		slog.Debug("Loading modulation source", "format", "wav", "path", path)

		// load all data at once
		buf, err := dec.FullPCMBuffer()
		if err != nil {
			return p, errors.Wrap(err, "modulate: wav")
		}
		p.data = firstChannel(buf.AsFloat32Buffer(), int(dec.NumChans))
		p.sampleRate = float64(dec.SampleRate)

		dur, err := dec.Duration()
		if err != nil {
			return p, errors.Wrap(err, "modulate: wav")
		}
		p.totalTime = dur.Seconds()

	case ".mp3":
		dec, err := mp3.NewDecoder(f)
		if err != nil {
			return p, errors.Wrap(err, "modulate: mp3")
		}

		slog.Debug("Loading modulation source", "format", "mp3", "path", path)

		// go-mp3 output is always 16-bit little endian stereo, so a sample
		// pair is 4 bytes; take the left channel only.
		err = nil
		chunk := make([]byte, 4096)
		for err != io.EOF {
			var chunkLen int
			chunkLen, err = dec.Read(chunk)
			if err != nil && err != io.EOF {
				return p, errors.Wrap(err, "modulate: mp3")
			}

			for i := 0; i+1 < chunkLen; i += 4 {
				// little endian 16 bit sample, two's complement
				v := int(chunk[i]) | (int(chunk[i+1]) << 8)
				if v >= 32768 {
					v -= 65536
				}
				p.data = append(p.data, float32(v))
			}
		}

		p.sampleRate = float64(dec.SampleRate())
		p.totalTime = float64(len(p.data)) / p.sampleRate

	default:
		return p, errors.Errorf("modulate: unsupported audio format %q", filepath.Ext(path))
	}

	slog.Debug("Modulation source decoded",
		"samples", len(p.data),
		"sample_rate", p.sampleRate,
		"duration_s", p.totalTime)

	return p, nil
}
