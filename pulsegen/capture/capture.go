// Package capture records the generator's per-tick outputs to external
// formats: WAV audio, CSV tables and VCD waveform dumps.
package capture

import "github.com/halvard/go-pulsegen/pulsegen/pwm"

// Sink consumes one output vector per tick. End finalizes the capture
// (flushing or encoding buffered data); Reset discards anything recorded
// so far where the format allows it.
type Sink interface {
	Record(tick uint64, out pwm.OutputVector)
	End() error
	Reset()
}
