package capture

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvard/go-pulsegen/pulsegen/pwm"
)

func TestCSVRecorder(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewCSVRecorder(&buf, 3)
	require.NoError(t, err)

	r.Record(0, pwm.OutputVector(0b101))
	r.Record(1, pwm.OutputVector(0b010))
	require.NoError(t, r.End())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "tick,ch0,ch1,ch2", lines[0])
	assert.Equal(t, "0,1,0,1", lines[1])
	assert.Equal(t, "1,0,1,0", lines[2])
}

func TestCSVRecorder_Validation(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewCSVRecorder(&buf, 0)
	assert.Error(t, err)
	_, err = NewCSVRecorder(&buf, 8)
	assert.Error(t, err)
}

func TestVCDRecorder(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewVCDRecorder(&buf, 2)
	require.NoError(t, err)

	r.Record(0, pwm.OutputVector(0b00))
	r.Record(1, pwm.OutputVector(0b01)) // ch0 rises
	r.Record(2, pwm.OutputVector(0b01)) // no change, no record
	r.Record(3, pwm.OutputVector(0b10)) // ch0 falls, ch1 rises
	require.NoError(t, r.End())

	out := buf.String()

	assert.Contains(t, out, "$timescale 1ns $end")
	assert.Contains(t, out, "$var wire 1 ! ch0 $end")
	assert.Contains(t, out, "$var wire 1 \" ch1 $end")
	assert.Contains(t, out, "$enddefinitions $end")

	// Initial dump at tick 0, both low.
	assert.Contains(t, out, "#0\n$dumpvars\n0!\n0\"\n$end\n")

	// Rising edge on ch0 at tick 1; nothing at tick 2; swap at tick 3.
	assert.Contains(t, out, "#1\n1!\n")
	assert.NotContains(t, out, "#2\n")
	assert.Contains(t, out, "#3\n0!\n1\"\n")
}

func TestWAVRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ch0.wav")
	r, err := NewWAVRecorder(path, 0, DefaultWAVSampleRate)
	require.NoError(t, err)

	for i := uint64(0); i < 100; i++ {
		out := pwm.OutputVector(0)
		if i%4 == 0 {
			out = pwm.OutputVector(1)
		}
		r.Record(i, out)
	}
	require.NoError(t, r.End())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "RIFF"), "file should carry a RIFF header")
	assert.Contains(t, string(data[:16]), "WAVE")
}

func TestWAVRecorder_Validation(t *testing.T) {
	_, err := NewWAVRecorder("x.wav", 7, DefaultWAVSampleRate)
	assert.Error(t, err, "channel index beyond the maximum is rejected")
	_, err = NewWAVRecorder("x.wav", 0, 0)
	assert.Error(t, err, "zero sample rate is rejected")
}

func TestWAVRecorder_Reset(t *testing.T) {
	r, err := NewWAVRecorder("unused.wav", 0, DefaultWAVSampleRate)
	require.NoError(t, err)

	r.Record(0, pwm.OutputVector(1))
	r.Record(1, pwm.OutputVector(0))
	require.Len(t, r.buffer, 2)

	r.Reset()
	assert.Empty(t, r.buffer)
}
